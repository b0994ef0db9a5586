package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Model       ModelConfig       `yaml:"model"`
	Debug       DebugConfig       `yaml:"debug"`
	Translation TranslationConfig `yaml:"translation"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type ServerConfig struct {
	Socket string `yaml:"socket"`
	// HTTPAddr disables the HTTP surface when empty.
	HTTPAddr string `yaml:"http_addr"`
}

// ModelConfig selects the backend and the model artifacts it loads.
type ModelConfig struct {
	Backend         string  `yaml:"backend"` // moonshine | whisper
	Name            string  `yaml:"name"`    // base | tiny
	ONNXRepo        string  `yaml:"onnx_repo"`
	ConfigRepo      string  `yaml:"config_repo"`
	Precision       string  `yaml:"precision"` // quantized | float
	CacheDir        string  `yaml:"cache_dir"`
	HFToken         string  `yaml:"-"`
	SampleRate      int     `yaml:"sample_rate"`
	MinGenTokens    int     `yaml:"min_gen_tokens"`
	TokensPerSecond float64 `yaml:"tokens_per_second"`
	ONNXRuntimeLib  string  `yaml:"onnxruntime_lib"`
	Threads         int     `yaml:"threads"`
	WhisperPath     string  `yaml:"whisper_model_path"`
}

type DebugConfig struct {
	SaveAudio bool   `yaml:"save_audio"`
	Dir       string `yaml:"dir"`
}

type TranslationConfig struct {
	BaseURL    string `yaml:"base_url"`
	Enabled    bool   `yaml:"enabled"`
	TimeoutSec int    `yaml:"timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | console
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Socket:   "/tmp/moonshine.sock",
			HTTPAddr: ":8080",
		},
		Model: ModelConfig{
			Backend:         "moonshine",
			Name:            "base",
			ONNXRepo:        "UsefulSensors/moonshine",
			Precision:       "quantized",
			SampleRate:      16000,
			MinGenTokens:    6,
			TokensPerSecond: 6,
			WhisperPath:     "./models/ggml-base.en.bin",
		},
		Debug: DebugConfig{Dir: "stt_debug"},
		Translation: TranslationConfig{
			BaseURL:    "https://libretranslate.obiente.cloud",
			TimeoutSec: 8,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch v {
		case "0", "false", "no", "off", "False", "FALSE":
			return false
		default:
			return true
		}
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// Load builds the configuration from defaults, an optional YAML file named by
// MOONSHINE_CONFIG and the environment, in that order of precedence (last wins).
// A .env file in the working directory is loaded into the environment first.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("MOONSHINE_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Socket = getenv("MOONSHINE_SOCKET", c.Server.Socket)
	if v, ok := os.LookupEnv("MOONSHINE_HTTP_ADDR"); ok {
		c.Server.HTTPAddr = v
	}

	m := &c.Model
	m.Backend = getenv("MOONSHINE_BACKEND", m.Backend)
	m.Name = getenv("MOONSHINE_MODEL", m.Name)
	m.ONNXRepo = getenv("MOONSHINE_ONNX_REPO", m.ONNXRepo)
	m.ConfigRepo = getenv("MOONSHINE_CONFIG_REPO", m.ConfigRepo)
	m.Precision = getenv("MOONSHINE_PRECISION", m.Precision)
	m.CacheDir = getenv("MOONSHINE_CACHE_DIR", m.CacheDir)
	m.HFToken = getenv("HF_TOKEN", m.HFToken)
	m.SampleRate = getenvInt("MOONSHINE_SAMPLE_RATE", m.SampleRate)
	m.MinGenTokens = getenvInt("MOONSHINE_MIN_GEN_TOKENS", m.MinGenTokens)
	m.TokensPerSecond = getenvFloat("MOONSHINE_TOKENS_PER_SECOND", m.TokensPerSecond)
	m.ONNXRuntimeLib = getenv("ONNXRUNTIME_LIB", m.ONNXRuntimeLib)
	m.Threads = getenvInt("MOONSHINE_THREADS", m.Threads)
	m.WhisperPath = getenv("WHISPER_MODEL_PATH", m.WhisperPath)

	c.Debug.SaveAudio = getenvBool("MOONSHINE_DEBUG_SAVE_AUDIO", c.Debug.SaveAudio)
	c.Debug.Dir = getenv("MOONSHINE_DEBUG_DIR", c.Debug.Dir)

	c.Translation.BaseURL = getenv("TRANSLATION_BASE_URL", c.Translation.BaseURL)
	c.Translation.Enabled = getenvBool("MOONSHINE_TRANSLATIONS", c.Translation.Enabled)
	c.Translation.TimeoutSec = getenvInt("TRANSLATION_TIMEOUT", c.Translation.TimeoutSec)

	c.Logging.Level = getenv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getenv("LOG_FORMAT", c.Logging.Format)
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Model.Validate(); err != nil {
		return fmt.Errorf("model config: %w", err)
	}
	if err := c.Debug.Validate(); err != nil {
		return fmt.Errorf("debug config: %w", err)
	}
	if err := c.Translation.Validate(); err != nil {
		return fmt.Errorf("translation config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

func (s *ServerConfig) Validate() error {
	if s.Socket == "" && s.HTTPAddr == "" {
		return fmt.Errorf("at least one of socket or http_addr must be set")
	}
	return nil
}

func (m *ModelConfig) Validate() error {
	switch m.Backend {
	case "moonshine":
		if m.Name != "base" && m.Name != "tiny" {
			return fmt.Errorf("name must be base or tiny, got %q", m.Name)
		}
		if m.Precision != "quantized" && m.Precision != "float" {
			return fmt.Errorf("precision must be quantized or float, got %q", m.Precision)
		}
		if m.ONNXRepo == "" {
			return fmt.Errorf("onnx_repo cannot be empty")
		}
	case "whisper":
		if m.WhisperPath == "" {
			return fmt.Errorf("whisper_model_path cannot be empty")
		}
	default:
		return fmt.Errorf("backend must be moonshine or whisper, got %q", m.Backend)
	}
	if m.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", m.SampleRate)
	}
	if m.MinGenTokens < 1 {
		return fmt.Errorf("min_gen_tokens must be at least 1, got %d", m.MinGenTokens)
	}
	if m.TokensPerSecond <= 0 {
		return fmt.Errorf("tokens_per_second must be positive, got %f", m.TokensPerSecond)
	}
	if m.Threads < 0 {
		return fmt.Errorf("threads cannot be negative, got %d", m.Threads)
	}
	return nil
}

func (d *DebugConfig) Validate() error {
	if d.SaveAudio && d.Dir == "" {
		return fmt.Errorf("dir cannot be empty when save_audio is enabled")
	}
	return nil
}

func (t *TranslationConfig) Validate() error {
	if t.Enabled && t.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty when translations are enabled")
	}
	if t.TimeoutSec < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.TimeoutSec)
	}
	return nil
}

func (l *LoggingConfig) Validate() error {
	if l.Format != "json" && l.Format != "console" {
		return fmt.Errorf("format must be json or console, got %q", l.Format)
	}
	return nil
}
