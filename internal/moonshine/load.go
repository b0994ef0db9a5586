package moonshine

import (
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/gomoonshine/internal/onnx"
)

// ArtifactStore resolves a file inside a model repository to a local path.
type ArtifactStore interface {
	Resolve(repo, filename string) (string, error)
}

// Source names the model variant to load.
type Source struct {
	Model     string // "base" or "tiny"
	ONNXRepo  string // e.g. "UsefulSensors/moonshine"
	Precision string // "quantized" or "float"
	// ConfigRepo overrides the repository holding config.json and tokenizer.json.
	ConfigRepo string
}

// DefaultConfigRepo is the published repository for a model variant's config and tokenizer.
func DefaultConfigRepo(model string) string { return "UsefulSensors/moonshine-" + model }

// ModelRepo holds config.json and tokenizer.json for the variant. It does not
// depend on ONNXRepo, so graph mirrors keep resolving the published config.
func (s Source) ModelRepo() string {
	if s.ConfigRepo != "" {
		return s.ConfigRepo
	}
	return DefaultConfigRepo(s.Model)
}

func (s Source) EncoderFile() string {
	return fmt.Sprintf("onnx/merged/%s/%s/encoder_model.onnx", s.Model, s.Precision)
}

func (s Source) DecoderFile() string {
	return fmt.Sprintf("onnx/merged/%s/%s/decoder_model_merged.onnx", s.Model, s.Precision)
}

// Loader bundles the collaborators needed to build a Session from published artifacts.
type Loader struct {
	Store         ArtifactStore
	Runtime       onnx.Runtime
	LoadTokenizer func(path string) (Tokenizer, error)
}

// Load resolves config, tokenizer and both graphs, builds a session and warms it up.
// Every failure is fatal: the returned session is either nil or ready to serve.
func Load(l Loader, src Source, opts Options) (*Session, error) {
	resolve := func(repo, file string) (string, error) {
		p, err := l.Store.Resolve(repo, file)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrArtifactUnavailable, err)
		}
		return p, nil
	}

	cfgPath, err := resolve(src.ModelRepo(), "config.json")
	if err != nil {
		return nil, err
	}
	cfg, err := LoadModelConfig(cfgPath)
	if err != nil {
		return nil, err
	}

	tokPath, err := resolve(src.ModelRepo(), "tokenizer.json")
	if err != nil {
		return nil, err
	}
	tok, err := l.LoadTokenizer(tokPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifactUnavailable, err)
	}

	var closers []io.Closer
	fail := func(err error) (*Session, error) {
		if c, ok := tok.(io.Closer); ok {
			closers = append(closers, c)
		}
		for _, c := range closers {
			c.Close()
		}
		return nil, err
	}

	encPath, err := resolve(src.ONNXRepo, src.EncoderFile())
	if err != nil {
		return fail(err)
	}
	decPath, err := resolve(src.ONNXRepo, src.DecoderFile())
	if err != nil {
		return fail(err)
	}

	enc, err := l.Runtime.Open(encPath)
	if err != nil {
		return fail(fmt.Errorf("%w: encoder: %w", ErrArtifactUnavailable, err))
	}
	closers = append(closers, enc)
	dec, err := l.Runtime.Open(decPath)
	if err != nil {
		return fail(fmt.Errorf("%w: decoder: %w", ErrArtifactUnavailable, err))
	}
	closers = append(closers, dec)

	s, err := NewSession(Models{Config: cfg, Encoder: enc, Decoder: dec, Tokenizer: tok}, opts)
	if err != nil {
		return fail(err)
	}
	log.Info().
		Str("model", src.Model).
		Str("precision", src.Precision).
		Int("layers", cfg.DecoderLayers).
		Int("kv_heads", cfg.NumKeyValueHeads).
		Int("head_dim", cfg.HeadDim).
		Msg("moonshine: model loaded")

	if err := s.Warmup(); err != nil {
		return fail(fmt.Errorf("warmup: %w", err))
	}
	return s, nil
}
