// Package ws serves utterance transcription over a websocket.
//
// A client sends "start", streams audio with "chunk" messages and sends "stop" to have
// the buffered utterance transcribed. The reply is a "transcript" message, optionally
// carrying translations, which is also forwarded to every peer in the client's room.
package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/gomoonshine/internal/audio"
	"github.com/obiente/translate/gomoonshine/internal/metrics"
	"github.com/obiente/translate/gomoonshine/internal/stt"
	"github.com/obiente/translate/gomoonshine/internal/translation"
)

const (
	readTimeout = 60 * time.Second
	// maxBufferSeconds bounds one utterance; older audio is dropped first.
	maxBufferSeconds = 60
)

// Transcriber turns a buffered utterance into a result.
type Transcriber interface {
	TranscribeSamples(samples []float32, rate int) stt.Result
	SampleRate() int
}

type Options struct {
	// Translator enables translations when non-nil.
	Translator         *translation.Client
	TranslationTimeout time.Duration
	Metrics            *metrics.Metrics
}

type Server struct {
	stt      Transcriber
	opts     Options
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	rooms    map[string]map[*peer]peerInfo
}

// peer is one websocket connection. gorilla connections allow a single concurrent writer.
type peer struct {
	conn *websocket.Conn
	wmu  sync.Mutex
	peerInfo
}

// peerInfo is copied into the room table on join so other connections never read a live peer.
type peerInfo struct {
	peerID    string
	peerLabel string
	channelID string
}

func (p *peer) send(v any) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	return p.conn.WriteJSON(v)
}

// utterance is the per-connection session state.
type utterance struct {
	samples         []float32
	sequence        int
	sourceLanguage  string
	targetLanguages []string
	alternatives    int
}

func NewServer(t Transcriber, opts Options) *Server {
	if opts.TranslationTimeout <= 0 {
		opts.TranslationTimeout = 8 * time.Second
	}
	return &Server{
		stt:  t,
		opts: opts,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024 * 16,
			WriteBufferSize: 1024 * 16,
		},
		rooms: make(map[string]map[*peer]peerInfo),
	}
}

func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws: upgrade failed")
		return
	}
	defer conn.Close()
	s.opts.Metrics.StreamOpened()
	defer s.opts.Metrics.StreamClosed()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(readTimeout)) })

	p := &peer{conn: conn}
	var (
		roomID string
		u      utterance
	)
	defer func() { s.leaveRoom(roomID, p) }()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Msg("ws: read error")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		if mt != websocket.TextMessage {
			continue
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = p.send(map[string]any{"type": "error", "detail": "invalid json"})
			continue
		}

		switch msg["type"] {
		case "ping":
			_ = p.send(map[string]any{"type": "pong", "ts": msg["ts"]})
		case "start":
			u = utterance{}
			if v, ok := msg["channel_id"].(string); ok {
				p.channelID = v
			}
			if v, ok := msg["language"].(string); ok {
				u.sourceLanguage = v
			}
			if v, ok := msg["target_languages"].([]any); ok {
				for _, lang := range v {
					if l, ok := lang.(string); ok && l != "" {
						u.targetLanguages = append(u.targetLanguages, l)
					}
				}
			}
			if v, ok := msg["translation_alternatives"].(float64); ok && v > 0 {
				u.alternatives = int(v)
			}
			log.Info().
				Str("channel", p.channelID).
				Str("source_lang", u.sourceLanguage).
				Strs("target_langs", u.targetLanguages).
				Msg("ws: utterance started")
			_ = p.send(map[string]any{"type": "started"})
		case "join_room":
			rid, _ := msg["room_id"].(string)
			if rid == "" {
				break
			}
			if v, ok := msg["peer_id"].(string); ok {
				p.peerID = v
			}
			if v, ok := msg["peer_label"].(string); ok {
				p.peerLabel = v
			}
			s.leaveRoom(roomID, p)
			s.joinRoom(rid, p)
			roomID = rid
			_ = p.send(map[string]any{"type": "room_joined", "room_id": roomID, "peer_id": p.peerID, "peer_label": p.peerLabel})
		case "leave_room":
			s.leaveRoom(roomID, p)
			roomID = ""
			_ = p.send(map[string]any{"type": "room_left"})
		case "chunk":
			if detail := s.appendChunk(&u, msg); detail != "" {
				_ = p.send(map[string]any{"type": "error", "detail": detail})
			}
		case "stop":
			payload := s.finish(&u)
			if err := p.send(payload); err != nil {
				log.Warn().Err(err).Msg("ws: failed to send transcript")
			}
			if roomID != "" && payload["type"] == "transcript" {
				rp := map[string]any{
					"type":       "room_transcript",
					"room_id":    roomID,
					"peer_id":    p.peerID,
					"peer_label": p.peerLabel,
					"channel_id": p.channelID,
				}
				for k, v := range payload {
					if k != "type" {
						rp[k] = v
					}
				}
				s.broadcast(roomID, p, rp)
			}
			u.samples = nil
		default:
			_ = p.send(map[string]any{"type": "error", "detail": "unknown message type"})
		}
	}
}

// appendChunk decodes one base64 WAV or PCM16 chunk into the utterance buffer.
// It returns a client-facing error detail, or "" on success.
func (s *Server) appendChunk(u *utterance, msg map[string]any) string {
	b64, _ := msg["data"].(string)
	if b64 == "" {
		return ""
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "invalid base64 audio"
	}

	var (
		pcm []float32
		sr  int
	)
	if mt, _ := msg["mime_type"].(string); mt == "audio/pcm" || mt == "audio/L16" || mt == "audio/pcm16" {
		pcm, sr, err = audio.DecodePCM16LEToFloat32(raw, int(asFloat(msg["sample_rate"])))
	} else {
		pcm, sr, err = audio.DecodeWAVToFloat32(raw)
	}
	if err != nil {
		log.Warn().Err(err).Msg("ws: audio decode failed")
		return "decode audio failed"
	}

	rate := s.stt.SampleRate()
	pcm = audio.ResampleLinear(pcm, sr, rate)
	u.samples = append(u.samples, pcm...)
	if limit := maxBufferSeconds * rate; len(u.samples) > limit {
		u.samples = u.samples[len(u.samples)-limit:]
		log.Debug().Int("buffer_samples", len(u.samples)).Msg("ws: trimmed utterance buffer")
	}
	if v, ok := msg["sequence"].(float64); ok {
		u.sequence = int(v)
	}
	return ""
}

// finish transcribes the buffered utterance and builds the reply.
func (s *Server) finish(u *utterance) map[string]any {
	res := s.stt.TranscribeSamples(u.samples, s.stt.SampleRate())
	if res.Failed() {
		return map[string]any{"type": "error", "detail": res.Error, "kind": res.Kind, "sequence": u.sequence}
	}

	translations := map[string]translation.Translation{}
	if s.opts.Translator != nil && len(u.targetLanguages) > 0 && res.Text != "" {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.TranslationTimeout)
		m, err := s.opts.Translator.Translate(ctx, res.Text, u.sourceLanguage, u.targetLanguages, u.alternatives)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("ws: translation request failed")
		} else {
			translations = m
		}
	}
	return map[string]any{
		"type":         "transcript",
		"text":         res.Text,
		"language":     u.sourceLanguage,
		"isFinal":      true,
		"sequence":     u.sequence,
		"translations": translations,
	}
}

func (s *Server) joinRoom(room string, p *peer) {
	if room == "" {
		return
	}
	s.mu.Lock()
	m := s.rooms[room]
	if m == nil {
		m = make(map[*peer]peerInfo)
		s.rooms[room] = m
	}
	m[p] = p.peerInfo
	s.mu.Unlock()
	s.broadcastRoster(room)
}

func (s *Server) leaveRoom(room string, p *peer) {
	if room == "" || p == nil {
		return
	}
	s.mu.Lock()
	if m := s.rooms[room]; m != nil {
		delete(m, p)
		if len(m) == 0 {
			delete(s.rooms, room)
		}
	}
	s.mu.Unlock()
	s.broadcastRoster(room)
}

func (s *Server) members(room string) map[*peer]peerInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[*peer]peerInfo, len(s.rooms[room]))
	for p, info := range s.rooms[room] {
		out[p] = info
	}
	return out
}

func (s *Server) broadcast(room string, sender *peer, payload map[string]any) {
	for p, info := range s.members(room) {
		if p == sender || (sender.peerID != "" && info.peerID == sender.peerID) {
			continue
		}
		_ = p.send(payload)
	}
}

func (s *Server) broadcastRoster(room string) {
	peers := s.members(room)
	roster := make([]map[string]any, 0, len(peers))
	for _, info := range peers {
		roster = append(roster, map[string]any{
			"peer_id":    info.peerID,
			"peer_label": info.peerLabel,
			"channel_id": info.channelID,
		})
	}
	payload := map[string]any{"type": "room_roster", "members": roster}
	for p := range peers {
		_ = p.send(payload)
	}
}

func asFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f
	default:
		return 0
	}
}
