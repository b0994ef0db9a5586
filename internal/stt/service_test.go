package stt

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/obiente/translate/gomoonshine/internal/audio"
	"github.com/obiente/translate/gomoonshine/internal/metrics"
	"github.com/obiente/translate/gomoonshine/internal/moonshine"
	"github.com/obiente/translate/gomoonshine/internal/whisper"
)

type fakeTranscriber struct {
	rate    int
	text    string
	err     error
	panics  bool
	lengths []int
}

func (f *fakeTranscriber) Transcribe(samples []float32) (string, error) {
	f.lengths = append(f.lengths, len(samples))
	if f.panics {
		panic("index out of range")
	}
	return f.text, f.err
}

func (f *fakeTranscriber) SampleRate() int { return f.rate }
func (f *fakeTranscriber) Close() error    { return nil }

func newTestService(t *fakeTranscriber) (*Service, *metrics.Metrics) {
	m := metrics.NewMetrics("test")
	return NewService(t, m).WithLogger(zerolog.Nop()), m
}

func writeWAV(t *testing.T, n, rate int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := audio.WriteWAVFile(path, make([]float32, n), rate); err != nil {
		t.Fatalf("WriteWAVFile failed: %v", err)
	}
	return path
}

func TestTranscribeFile(t *testing.T) {
	ft := &fakeTranscriber{rate: 16000, text: "hello world"}
	s, m := newTestService(ft)

	res := s.TranscribeFile(writeWAV(t, 8000, 8000))
	if res.Failed() || res.Text != "hello world" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(ft.lengths) != 1 || ft.lengths[0] != 16000 {
		t.Errorf("expected one second resampled to 16000 samples, got %v", ft.lengths)
	}
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("file", "ok")); got != 1 {
		t.Errorf("ok requests = %v, want 1", got)
	}
}

func TestTranscribeFileMissing(t *testing.T) {
	ft := &fakeTranscriber{rate: 16000}
	s, _ := newTestService(ft)
	path := filepath.Join(t.TempDir(), "nope.wav")

	res := s.TranscribeFile(path)
	if res.Error != "File not found: "+path {
		t.Errorf("unexpected error %q", res.Error)
	}
	if res.Kind != KindAudioFormat {
		t.Errorf("kind = %q, want %q", res.Kind, KindAudioFormat)
	}
	if len(ft.lengths) != 0 {
		t.Error("backend must not run for a missing file")
	}
}

func TestTranscribeFileNotWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(path, []byte("definitely not audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, m := newTestService(&fakeTranscriber{rate: 16000})

	res := s.TranscribeFile(path)
	if res.Kind != KindAudioFormat {
		t.Fatalf("expected an audio format failure, got %+v", res)
	}
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("file", KindAudioFormat)); got != 1 {
		t.Errorf("audio_format requests = %v, want 1", got)
	}
}

func TestTranscribeSamplesErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind string
	}{
		{"encoder failure", fmt.Errorf("%w: encoder: boom", moonshine.ErrInference), KindInference},
		{"whisper failure", fmt.Errorf("%w: process audio", whisper.ErrInference), KindInference},
		{"artifact", fmt.Errorf("%w: config.json", moonshine.ErrArtifactUnavailable), KindArtifactUnavailable},
		{"unknown", errors.New("something else"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestService(&fakeTranscriber{rate: 16000, text: "partial", err: tt.err})
			res := s.TranscribeSamples(make([]float32, 16000), 16000)
			if res.Kind != tt.kind {
				t.Errorf("kind = %q, want %q", res.Kind, tt.kind)
			}
			if res.Text != "" {
				t.Errorf("error results must not carry text, got %q", res.Text)
			}
		})
	}
}

func TestTranscribeSamplesRecoversPanic(t *testing.T) {
	s, _ := newTestService(&fakeTranscriber{rate: 16000, panics: true})

	res := s.TranscribeSamples(make([]float32, 100), 16000)
	if res.Kind != KindInternal || !strings.Contains(res.Error, "index out of range") {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestResultJSON(t *testing.T) {
	tests := []struct {
		res  Result
		want string
	}{
		{Result{Text: "hi there"}, `{"text":"hi there"}`},
		{Result{}, `{"text":""}`},
		{Result{Error: "File not found: /tmp/x.wav", Kind: KindAudioFormat}, `{"error":"File not found: /tmp/x.wav","kind":"audio_format"}`},
	}
	for _, tt := range tests {
		b, err := json.Marshal(tt.res)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		if string(b) != tt.want {
			t.Errorf("got %s, want %s", b, tt.want)
		}
	}
}

func TestTranscribeWAV(t *testing.T) {
	ft := &fakeTranscriber{rate: 16000, text: "ok"}
	s, m := newTestService(ft)

	data, err := os.ReadFile(writeWAV(t, 4000, 16000))
	if err != nil {
		t.Fatal(err)
	}
	if res := s.TranscribeWAV(data); res.Text != "ok" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(ft.lengths) != 1 || ft.lengths[0] != 4000 {
		t.Errorf("expected 4000 samples, got %v", ft.lengths)
	}

	if res := s.TranscribeWAV([]byte("nope")); res.Kind != KindAudioFormat {
		t.Errorf("expected an audio format failure, got %+v", res)
	}
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("wav", KindAudioFormat)); got != 1 {
		t.Errorf("wav audio_format requests = %v, want 1", got)
	}
}
