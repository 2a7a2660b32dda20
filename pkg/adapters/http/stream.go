package http

import (
	"fmt"
	"net/http"
	"sync"
)

// StreamManager fans completed turns out to SSE subscribers of a session.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan string]struct{} // session key -> set of channels
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan string]struct{}),
	}
}

// Subscribe registers a buffered channel for sessionKey. The returned func unsubscribes.
func (sm *StreamManager) Subscribe(sessionKey string) (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[sessionKey]; !ok {
		sm.subscribers[sessionKey] = make(map[chan string]struct{})
	}
	sm.subscribers[sessionKey][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[sessionKey]; ok {
			if _, live := subs[ch]; !live {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, sessionKey)
			}
		}
	}
}

// Broadcast delivers msg to every subscriber of sessionKey. Slow clients drop messages.
func (sm *StreamManager) Broadcast(sessionKey, msg string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	delivered := 0
	for ch := range sm.subscribers[sessionKey] {
		select {
		case ch <- msg:
			delivered++
		default:
		}
	}
	return delivered
}

// SubscribeEvents handles the GET /events?session_key=... request (SSE).
// Every turn completed for the session is pushed as one "turn" event.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	sessionKey := r.URL.Query().Get("session_key")
	if sessionKey == "" {
		http.Error(w, "session_key is required", http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(sessionKey)
	defer cancel()
	s.logger.Debug("SSE subscriber connected", "session_key", sessionKey)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE subscriber disconnected", "session_key", sessionKey)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: turn\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
