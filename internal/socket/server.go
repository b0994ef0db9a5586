// Package socket serves transcription requests over a unix domain socket.
//
// A client connects, writes the path of a WAV file and reads back one JSON object,
// {"text": ...} or {"error": ...}, after which the server closes the connection.
package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/gomoonshine/internal/stt"
)

const maxRequestBytes = 4096

// Handler transcribes the file named by a request.
type Handler interface {
	TranscribeFile(path string) stt.Result
}

// Server accepts and serves one connection at a time.
type Server struct {
	path        string
	handler     Handler
	readTimeout time.Duration
}

func NewServer(path string, h Handler) *Server {
	return &Server{path: path, handler: h, readTimeout: 30 * time.Second}
}

// ListenAndServe binds the socket and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if _, err := os.Stat(s.path); err == nil {
		if err := os.Remove(s.path); err != nil {
			return fmt.Errorf("remove stale socket: %w", err)
		}
	}
	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.path, err)
	}
	if err := os.Chmod(s.path, 0o666); err != nil {
		ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}
	log.Info().Str("socket", s.path).Msg("socket: listening")
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then closes ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	defer ln.Close()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				log.Info().Msg("socket: stopped")
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer conn.Close()

	if s.readTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	}
	buf := make([]byte, maxRequestBytes)
	n, err := conn.Read(buf)
	if err != nil && n == 0 {
		log.Debug().Err(err).Msg("socket: read failed")
		return
	}
	path := strings.TrimSpace(string(buf[:n]))
	if path == "" {
		return
	}

	res := s.handler.TranscribeFile(path)
	b, err := json.Marshal(res)
	if err != nil {
		log.Error().Err(err).Msg("socket: encode reply")
		return
	}
	if _, err := conn.Write(b); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("socket: write reply")
	}
}
