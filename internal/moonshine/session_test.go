package moonshine

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newTestSession(t *testing.T, enc *fakeEncoder, dec *fakeDecoder, opts Options) *Session {
	t.Helper()
	nop := zerolog.Nop()
	opts.Logger = &nop
	if opts.SampleRate == 0 {
		opts.SampleRate = testRate
	}
	s, err := NewSession(Models{Config: testConfig(), Encoder: enc, Decoder: dec, Tokenizer: fakeTokenizer{}}, opts)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	return s
}

func TestTranscribeSilenceYieldsEmptyText(t *testing.T) {
	s := newTestSession(t, &fakeEncoder{}, newFakeDecoder(testConfig(), always(testEOS)), Options{})

	text, err := s.Transcribe(seconds(1))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "" {
		t.Errorf("expected empty text, got %q", text)
	}
}

func TestTranscribeTrimsDecodedText(t *testing.T) {
	dec := newFakeDecoder(testConfig(), func(step int, _ []float32, _ []int64) []int64 {
		if step < 2 {
			return []int64{int64(10 + step)}
		}
		return []int64{testEOS}
	})
	s := newTestSession(t, &fakeEncoder{}, dec, Options{})

	text, err := s.Transcribe(seconds(2))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "w10 w11" {
		t.Errorf("expected %q, got %q", "w10 w11", text)
	}
}

func TestTranscribeIsDeterministic(t *testing.T) {
	// The emitted tokens depend on the encoder output, so identical audio must
	// produce identical text across calls that each start from a fresh cache.
	dec := newFakeDecoder(testConfig(), func(step int, hidden []float32, _ []int64) []int64 {
		if step >= 4 {
			return []int64{testEOS}
		}
		return []int64{int64(3 + (int(hidden[0])+step)%10)}
	})
	s := newTestSession(t, &fakeEncoder{}, dec, Options{})

	samples := seconds(2)
	for i := range samples {
		samples[i] = float32(i%7) / 100
	}

	first, err := s.Transcribe(samples)
	if err != nil {
		t.Fatalf("first Transcribe failed: %v", err)
	}
	firstCalls := len(dec.calls)
	dec.reset()

	second, err := s.Transcribe(samples)
	if err != nil {
		t.Fatalf("second Transcribe failed: %v", err)
	}
	if first != second {
		t.Errorf("expected identical text, got %q and %q", first, second)
	}
	if len(dec.calls) != firstCalls {
		t.Errorf("expected %d decoder steps on the second call, got %d", firstCalls, len(dec.calls))
	}
	for _, slot := range Slots(testConfig().DecoderLayers) {
		if got := dec.calls[0].inputs[slot.InputName()].Shape[2]; got != 0 {
			t.Errorf("second call %s started with seqLen %d, expected an empty cache", slot.InputName(), got)
		}
	}
}

func TestTranscribeEncoderFailure(t *testing.T) {
	enc := &fakeEncoder{err: errors.New("runtime exploded")}
	s := newTestSession(t, enc, newFakeDecoder(testConfig(), always(5)), Options{})

	text, err := s.Transcribe(seconds(1))
	if !errors.Is(err, ErrInference) {
		t.Fatalf("expected ErrInference, got %v", err)
	}
	if text != "" {
		t.Errorf("expected no text alongside an error, got %q", text)
	}
}

func TestTranscribePadsShortAudio(t *testing.T) {
	enc := &fakeEncoder{}
	s := newTestSession(t, enc, newFakeDecoder(testConfig(), always(testEOS)), Options{})

	for _, n := range []int{0, 100, testRate/2 - 1, testRate / 2, testRate} {
		enc.lengths = nil
		if _, err := s.Transcribe(make([]float32, n)); err != nil {
			t.Fatalf("%d samples: Transcribe failed: %v", n, err)
		}
		want := int64(max(n, testRate/2))
		if enc.lengths[0] != want {
			t.Errorf("%d samples: encoder saw %d samples, want %d", n, enc.lengths[0], want)
		}
	}
}

func TestWarmupNeverPersistsAudio(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "debug")
	enc := &fakeEncoder{}
	s := newTestSession(t, enc, newFakeDecoder(testConfig(), always(testEOS)), Options{DebugDir: dir})

	if err := s.Warmup(); err != nil {
		t.Fatalf("Warmup failed: %v", err)
	}
	if len(enc.lengths) != 1 || enc.lengths[0] != testRate {
		t.Errorf("expected one encoder call with one second of audio, got %v", enc.lengths)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("warmup must not touch the debug directory, stat returned %v", err)
	}

	if _, err := s.Transcribe(seconds(0.25)); err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one archived utterance, got %d", len(entries))
	}
	if name := entries[0].Name(); !strings.HasSuffix(name, "_4000samples.wav") {
		t.Errorf("archived file %q should record the raw pre-padding length", name)
	}
}

func TestDebugPersistenceFailureIsSwallowed(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec := &fakeRecorder{}
	dec := newFakeDecoder(testConfig(), func(step int, _ []float32, _ []int64) []int64 {
		if step == 0 {
			return []int64{12}
		}
		return []int64{testEOS}
	})
	s := newTestSession(t, &fakeEncoder{}, dec, Options{
		DebugDir: filepath.Join(blocker, "debug"),
		Recorder: rec,
	})

	text, err := s.Transcribe(seconds(1))
	if err != nil {
		t.Fatalf("debug failures must not abort transcription: %v", err)
	}
	if text != "w12" {
		t.Errorf("expected %q, got %q", "w12", text)
	}
	if rec.debugFails != 1 {
		t.Errorf("expected one recorded debug failure, got %d", rec.debugFails)
	}
	if rec.generations != 1 {
		t.Errorf("expected one recorded generation, got %d", rec.generations)
	}
}

func TestNewSessionValidatesDecoderAgainstConfig(t *testing.T) {
	deeper := testConfig()
	deeper.DecoderLayers = 4
	dec := newFakeDecoder(testConfig(), always(testEOS))

	_, err := NewSession(Models{Config: deeper, Encoder: &fakeEncoder{}, Decoder: dec, Tokenizer: fakeTokenizer{}}, Options{})
	if !errors.Is(err, ErrArtifactUnavailable) {
		t.Fatalf("expected ErrArtifactUnavailable, got %v", err)
	}
}

func TestNewSessionRequiresModels(t *testing.T) {
	_, err := NewSession(Models{Config: testConfig()}, Options{})
	if !errors.Is(err, ErrArtifactUnavailable) {
		t.Fatalf("expected ErrArtifactUnavailable, got %v", err)
	}
}
