package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/MrWong99/vesper/internal/intent"
	"github.com/MrWong99/vesper/internal/observe"
)

// maxCommandBytes bounds the body of a typed command.
const maxCommandBytes = 4 << 10

type commandRequest struct {
	Text string `json:"text"`
}

type commandResponse struct {
	Intent   intent.Intent `json:"intent"`
	Response string        `json:"response"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// routes builds the HTTP surface:
//
//	GET  /ws           device gateway (WebSocket)
//	POST /api/command  typed command, classified and executed without speech
//	GET  /healthz      liveness
//	GET  /readyz       readiness
//	GET  /metrics      Prometheus scrape endpoint
func (a *App) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /ws", a.hub)
	mux.HandleFunc("POST /api/command", a.handleCommand)
	a.health.Register(mux)
	mux.Handle("GET /metrics", a.scrape)
	return observe.Middleware(a.metrics)(mux)
}

func (a *App) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommandBytes))
	if err := dec.Decode(&req); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, errorResponse{Error: "invalid command body"})
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "text is required"})
		return
	}

	in, reply := a.Command(r.Context(), text)
	observe.Logger(r.Context()).Debug("typed command handled", "kind", in.Kind(), "reply", reply)
	writeJSON(w, http.StatusOK, commandResponse{Intent: in, Response: reply})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
