package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/gomoonshine/internal/stt"
)

// maxUploadBytes caps POST /v1/transcribe bodies (about 5 minutes of 16-bit stereo 44.1 kHz).
const maxUploadBytes = 50 << 20

// Transcriber handles uploaded WAV files.
type Transcriber interface {
	TranscribeWAV(data []byte) stt.Result
}

// Deps are the handlers the router mounts. Nil members leave their route unmounted.
type Deps struct {
	STT       Transcriber
	Websocket http.HandlerFunc
	Metrics   http.Handler
}

func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})
	if d.Metrics != nil {
		mux.Handle("/metrics", d.Metrics)
	}
	if d.STT != nil {
		mux.HandleFunc("POST /v1/transcribe", transcribeHandler(d.STT))
	}
	// Utterance transcription WebSocket
	if d.Websocket != nil {
		mux.HandleFunc("/ws/transcribe", d.Websocket)
	}
	return mux
}

func transcribeHandler(t Transcriber) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
		if err != nil {
			writeResult(w, http.StatusRequestEntityTooLarge, stt.Result{Error: "request body too large", Kind: stt.KindAudioFormat})
			return
		}
		res := t.TranscribeWAV(data)
		writeResult(w, statusFor(res), res)
	}
}

func statusFor(res stt.Result) int {
	if !res.Failed() {
		return http.StatusOK
	}
	switch res.Kind {
	case stt.KindAudioFormat:
		return http.StatusBadRequest
	case stt.KindArtifactUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeResult(w http.ResponseWriter, status int, res stt.Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		log.Warn().Err(err).Msg("http: write result")
	}
}
