package server

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/studiowebux/k6ui/internal/loadtest"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamReadTimeout  = 30 * time.Second

	messageTypeOutput = "output"
	messageTypeResult = "result"
	messageTypeError  = "error"
)

// streamMessage is one server to client message on the stream endpoint.
type streamMessage struct {
	Type   string           `json:"type"`
	Line   string           `json:"line,omitempty"`
	Result *loadtest.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
	Status int              `json:"status,omitempty"`
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || s.corsOrigin == "*" {
		return true
	}
	if s.corsOrigin != "" && origin == s.corsOrigin {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

// handleStream runs one load test per connection. The client sends the
// configuration as its first message and receives k6 output line by line
// followed by a single result or error message.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		s.logger.LogCtx(r.Context(), "level", "warning", "message", "websocket upgrade failed", "error", err.Error())
		return
	}
	defer conn.Close()

	ctx := context.WithoutCancel(r.Context())
	out := &streamWriter{conn: conn}

	var cfg loadtest.Config
	conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	if err := conn.ReadJSON(&cfg); err != nil {
		out.send(streamMessage{Type: messageTypeError, Error: "invalid load test configuration: " + err.Error(), Status: http.StatusBadRequest})
		return
	}
	conn.SetReadDeadline(time.Time{})

	result, err := s.service.Run(ctx, cfg, out)
	out.flush()

	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.LogCtx(ctx, "level", "error", "message", "streamed load test failed", "error", err.Error())
		}
		out.send(streamMessage{Type: messageTypeError, Error: err.Error(), Status: status})
	} else {
		out.send(streamMessage{Type: messageTypeResult, Result: result})
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

// streamWriter turns k6 output into one websocket message per line. It is
// safe for concurrent use since stdout and stderr are copied separately.
type streamWriter struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	pending []byte
	broken  bool
}

func (w *streamWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		line := string(bytes.TrimRight(w.pending[:i], "\r"))
		w.pending = w.pending[i+1:]
		w.sendLocked(streamMessage{Type: messageTypeOutput, Line: line})
	}

	// A client that went away must not fail the k6 run.
	return len(p), nil
}

func (w *streamWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pending) > 0 {
		w.sendLocked(streamMessage{Type: messageTypeOutput, Line: string(w.pending)})
		w.pending = nil
	}
}

func (w *streamWriter) send(msg streamMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sendLocked(msg)
}

func (w *streamWriter) sendLocked(msg streamMessage) {
	if w.broken {
		return
	}
	w.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	if err := w.conn.WriteJSON(msg); err != nil {
		w.broken = true
	}
}
