package server

import "net/http"

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/summarize", s.handleSummarize)
	mux.HandleFunc("POST /api/videos", s.handleCreateVideo)
	mux.HandleFunc("GET /api/videos/{id}", s.handleGetVideo)
	mux.HandleFunc("POST /api/chat", s.handleChat)

	return s.recoverPanic(s.logRequest(mux))
}
