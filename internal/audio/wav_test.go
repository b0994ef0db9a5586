package audio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteAndLoadWAVFile(t *testing.T) {
	const rate = 16000
	samples := make([]float32, rate/4)
	for i := range samples {
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/rate))
	}

	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := WriteWAVFile(path, samples, rate); err != nil {
		t.Fatalf("WriteWAVFile failed: %v", err)
	}

	got, err := LoadFile(path, rate)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if len(got) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(got))
	}
	for i := range samples {
		if math.Abs(float64(got[i]-samples[i])) > 1e-3 {
			t.Fatalf("sample %d: expected %f, got %f", i, samples[i], got[i])
		}
	}
}

func TestLoadFileResamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "8k.wav")
	if err := WriteWAVFile(path, make([]float32, 8000), 8000); err != nil {
		t.Fatalf("WriteWAVFile failed: %v", err)
	}
	got, err := LoadFile(path, 16000)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if len(got) != 16000 {
		t.Errorf("expected 16000 samples after resampling, got %d", len(got))
	}
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.wav")
	if err := os.WriteFile(garbage, []byte("definitely not RIFF data"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{name: "missing file", path: filepath.Join(dir, "missing.wav")},
		{name: "not a wav", path: garbage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(tt.path, 16000)
			if !errors.Is(err, ErrFormat) {
				t.Fatalf("expected ErrFormat, got %v", err)
			}
		})
	}
}

func TestDecodePCM16LEToFloat32(t *testing.T) {
	// 0x4000 = 16384 (0.5), 0xC000 = -16384 (-0.5)
	out, sr, err := DecodePCM16LEToFloat32([]byte{0x00, 0x40, 0x00, 0xC0}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sr != 16000 {
		t.Errorf("expected default rate 16000, got %d", sr)
	}
	if len(out) != 2 || out[0] != 0.5 || out[1] != -0.5 {
		t.Errorf("unexpected samples %v", out)
	}

	if _, _, err := DecodePCM16LEToFloat32([]byte{0x01}, 16000); !errors.Is(err, ErrFormat) {
		t.Errorf("expected ErrFormat for odd length, got %v", err)
	}
}

func TestResampleLinear(t *testing.T) {
	in := []float32{0, 1, 2, 3}
	if out := ResampleLinear(in, 16000, 16000); len(out) != 4 {
		t.Errorf("same rate should pass through, got %d samples", len(out))
	}
	up := ResampleLinear(in, 8000, 16000)
	if len(up) != 8 {
		t.Fatalf("expected 8 samples, got %d", len(up))
	}
	if up[1] != 0.5 {
		t.Errorf("expected interpolated 0.5, got %f", up[1])
	}
	if up[len(up)-1] != 3 {
		t.Errorf("expected tail clamped to last sample, got %f", up[len(up)-1])
	}
}
