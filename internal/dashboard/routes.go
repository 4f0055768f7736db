package dashboard

import (
	"encoding/json"
	"net/http"

	"btcdigital/internal/engine"
)

// Server wires the websocket hub and the plain-JSON status endpoint onto
// a single mux, ready to hand to http.ListenAndServe.
type Server struct {
	hub      *Hub
	snapshot func() engine.EngineSnapshot
}

func NewServer(hub *Hub, snapshot func() engine.EngineSnapshot) *Server {
	return &Server{hub: hub, snapshot: snapshot}
}

func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.hub.ServeWs)
	mux.HandleFunc("/status", s.handleStatus)
	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.snapshot())
}
