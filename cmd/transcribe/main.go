// Command transcribe runs one WAV file through the configured backend and prints timings.
//
// Usage:
//
//	transcribe [-model base|tiny] [-precision quantized|float] <audio.wav>
//
// Everything else is read from the same environment and config file as the server.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/obiente/translate/gomoonshine/internal/audio"
	"github.com/obiente/translate/gomoonshine/internal/backend"
	"github.com/obiente/translate/gomoonshine/internal/config"
	"github.com/obiente/translate/gomoonshine/internal/logging"
)

func main() {
	model := flag.String("model", "", "moonshine model variant (overrides MOONSHINE_MODEL)")
	precision := flag.String("precision", "", "moonshine weight precision (overrides MOONSHINE_PRECISION)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <audio_file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *model != "" {
		cfg.Model.Name = *model
	}
	if *precision != "" {
		cfg.Model.Precision = *precision
	}
	if err := cfg.Model.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, "console")

	if err := run(cfg, flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, path string) error {
	fmt.Printf("Loading %s model (%s) ...\n", cfg.Model.Backend, cfg.Model.Name)
	t, err := backend.Open(cfg, nil)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	defer t.Close()

	samples, err := audio.LoadFile(path, t.SampleRate())
	if err != nil {
		return err
	}
	audioSec := audio.Duration(samples, t.SampleRate())

	fmt.Println("Transcribing ...")
	start := time.Now()
	text, err := t.Transcribe(samples)
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}
	elapsed := time.Since(start)

	fmt.Printf("audio sample time: %dms\n", int(audioSec*1000))
	fmt.Printf("transcribe time:  %dms\n", elapsed.Milliseconds())
	fmt.Printf("speed: %.1fx\n", audioSec/elapsed.Seconds())
	fmt.Printf("result: %s\n", text)
	return nil
}
