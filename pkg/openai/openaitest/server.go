// Package openaitest provides fake chat-completions endpoints for tests.
package openaitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
)

// Chunk renders a data line carrying one choice delta.
func Chunk(content string) string {
	b, _ := json.Marshal(map[string]any{
		"object": "chat.completion.chunk",
		"model":  "gpt-4o",
		"choices": []map[string]any{
			{"index": 0, "delta": map[string]any{"content": content}},
		},
	})
	return "data: " + string(b) + "\n\n"
}

// Done is the end-of-stream sentinel line.
const Done = "data: [DONE]\n\n"

// Server is an httptest server that replays scripted SSE lines and keeps
// the last request it received.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	lastBody    []byte
	lastHeaders http.Header
	requests    int
}

// NewStreamServer replays lines in order, flushing after each one.
func NewStreamServer(lines ...string) *Server {
	s := &Server{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.capture(r)
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)

		flusher, _ := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprint(w, line)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
	return s
}

// NewErrorServer answers every request with status and body.
func NewErrorServer(status int, body string) *Server {
	s := &Server{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.capture(r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	return s
}

// NewBlockingServer sends lines and then holds the connection open until
// the client goes away.
func NewBlockingServer(lines ...string) *Server {
	s := &Server{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.capture(r)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)

		flusher, _ := w.(http.Flusher)
		if flusher != nil {
			flusher.Flush()
		}
		for _, line := range lines {
			fmt.Fprint(w, line)
			if flusher != nil {
				flusher.Flush()
			}
		}
		<-r.Context().Done()
	}))
	return s
}

func (s *Server) capture(r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastBody = body
	s.lastHeaders = r.Header.Clone()
	s.requests++
}

// LastBody returns the body of the most recent request.
func (s *Server) LastBody() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastBody
}

// LastHeaders returns the headers of the most recent request.
func (s *Server) LastHeaders() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHeaders
}

// Requests returns how many requests the server has seen.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}
