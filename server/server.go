// Package server exposes the assistant over HTTP: query, load-file
// with a poll-able loading status, history clearing and a full
// database reset.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/tienvm/ragdoc/pkg/assistant"
)

type Server struct {
	assistant *assistant.Assistant
}

func New(a *assistant.Assistant) *Server {
	return &Server{assistant: a}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/query", s.handleQuery)
	mux.HandleFunc("/load-file", s.handleLoadFile)
	mux.HandleFunc("/loading-status", s.handleLoadingStatus)
	mux.HandleFunc("/clear-history", s.handleClearHistory)
	mux.HandleFunc("/reset-database", s.handleResetDatabase)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// ListenAndServe runs the server until the listener fails.
func (s *Server) ListenAndServe(port int) error {
	log.Printf("starting server on port %d", port)
	return http.ListenAndServe(fmt.Sprintf(":%d", port), s.Handler())
}

type queryRequest struct {
	Question    string `json:"question"`
	WantSources bool   `json:"want_sources"`
}

type queryResponse struct {
	Answer     string      `json:"answer"`
	HasSources bool        `json:"has_sources"`
	Sources    interface{} `json:"sources,omitempty"`
}

type loadRequest struct {
	FilePath    string `json:"file_path"`
	IsDirectory bool   `json:"is_directory"`
	ForceReload bool   `json:"force_reload"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Question == "" {
		respondWithError(w, "question must not be empty", http.StatusBadRequest)
		return
	}

	result := s.assistant.Answer(r.Context(), req.Question, true)
	if result.Failure {
		respondWithError(w, result.Answer, http.StatusInternalServerError)
		return
	}

	resp := queryResponse{
		Answer:     result.Answer,
		HasSources: result.HasSources(),
	}
	if result.HasSources() {
		resp.Sources = result.Sources
	}
	respondWithJSON(w, resp)
}

func (s *Server) handleLoadFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.FilePath == "" {
		respondWithError(w, "file_path must not be empty", http.StatusBadRequest)
		return
	}

	if s.assistant.Status().IsLoading {
		respondWithError(w, "a document load is already in progress", http.StatusConflict)
		return
	}

	// Ingestion runs long; answer immediately and let the caller poll
	// /loading-status. The assistant's busy flag rejects overlapping
	// loads that slip past the check above.
	go func() {
		_, err := s.assistant.LoadDocuments(context.Background(), []string{req.FilePath}, req.ForceReload)
		if err != nil && !errors.Is(err, assistant.ErrBusy) {
			log.Printf("background load of %s failed: %v", req.FilePath, err)
		}
	}()

	respondWithJSON(w, messageResponse{Success: true, Message: "document load started"})
}

func (s *Server) handleLoadingStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondWithJSON(w, s.assistant.Status())
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.assistant.ResetConversation(); err != nil {
		respondWithError(w, err.Error(), http.StatusConflict)
		return
	}
	respondWithJSON(w, messageResponse{Success: true, Message: "conversation history cleared"})
}

func (s *Server) handleResetDatabase(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.assistant.ResetIndex(r.Context()); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, assistant.ErrBusy) {
			status = http.StatusConflict
		}
		respondWithError(w, err.Error(), status)
		return
	}
	respondWithJSON(w, messageResponse{Success: true, Message: "index destroyed"})
}

func respondWithJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondWithError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(errorResponse{Error: message})
}
