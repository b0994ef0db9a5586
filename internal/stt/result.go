package stt

import (
	"encoding/json"
	"errors"

	"github.com/obiente/translate/gomoonshine/internal/audio"
	"github.com/obiente/translate/gomoonshine/internal/moonshine"
	"github.com/obiente/translate/gomoonshine/internal/whisper"
)

// Error kinds reported to callers.
const (
	KindInference           = "inference_failure"
	KindAudioFormat         = "audio_format"
	KindArtifactUnavailable = "artifact_unavailable"
	KindInternal            = "internal"
)

// Result is the reply for one request: either Text or Error (with Kind) is meaningful.
type Result struct {
	Text  string
	Error string
	Kind  string
}

// Failed reports whether the request produced an error.
func (r Result) Failed() bool { return r.Error != "" }

// MarshalJSON emits {"text": ...} on success and {"error": ..., "kind": ...} otherwise,
// so an error reply never carries text.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Failed() {
		return json.Marshal(struct {
			Error string `json:"error"`
			Kind  string `json:"kind,omitempty"`
		}{r.Error, r.Kind})
	}
	return json.Marshal(struct {
		Text string `json:"text"`
	}{r.Text})
}

func failure(err error) Result {
	return Result{Error: err.Error(), Kind: Kind(err)}
}

// Kind classifies err into one of the reported error kinds.
func Kind(err error) string {
	switch {
	case errors.Is(err, moonshine.ErrInference), errors.Is(err, whisper.ErrInference):
		return KindInference
	case errors.Is(err, audio.ErrFormat):
		return KindAudioFormat
	case errors.Is(err, moonshine.ErrArtifactUnavailable), errors.Is(err, whisper.ErrUnavailable):
		return KindArtifactUnavailable
	default:
		return KindInternal
	}
}
