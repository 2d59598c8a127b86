// Package httpapi exposes the content repositories, media uploads and
// one-time login codes over HTTP, and pushes remote changes to websocket
// clients.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"content_sync/internal/domain"
	"content_sync/internal/service"
	"content_sync/internal/twofactor"
	"content_sync/internal/upload"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	content *service.Content
	uploads *upload.Service
	auth    *twofactor.Service
	hub     *Hub
	logger  *slog.Logger
}

func NewServer(content *service.Content, uploads *upload.Service, auth *twofactor.Service, hub *Hub, logger *slog.Logger) *Server {
	return &Server{
		content: content,
		uploads: uploads,
		auth:    auth,
		hub:     hub,
		logger:  logger.With("component", "http"),
	}
}

func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()

	registerCollection(api, s, domain.Banners, s.content.Banners)
	registerCollection(api, s, domain.Videos, s.content.Videos)
	registerCollection(api, s, domain.Notices, s.content.Notices)

	api.HandleFunc("/promos/{slot}", s.handleGetPromo).Methods("GET")
	api.HandleFunc("/promos/{slot}", s.handleSavePromo).Methods("PUT")
	api.HandleFunc("/promos/{slot}/refresh", s.handleRefreshPromo).Methods("POST")

	api.HandleFunc("/refresh", s.handleRefresh).Methods("POST")

	api.HandleFunc("/uploads/{bucket}", s.handleUpload).Methods("POST")
	api.HandleFunc("/uploads", s.handleDeleteUpload).Methods("DELETE")

	api.HandleFunc("/auth/code", s.handleSendCode).Methods("POST")
	api.HandleFunc("/auth/verify", s.handleVerifyCode).Methods("POST")

	if s.hub != nil {
		api.Handle("/changes", s.hub).Methods("GET")
	}

	return router
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"remote":  s.content.RemoteConfigured(),
		"uploads": s.uploads != nil && s.uploads.Configured(),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	stats, err := s.content.Refresh(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"refreshed":   stats.Refreshed,
		"skipped":     stats.Skipped,
		"errors":      stats.Errors,
		"duration_ms": stats.Duration.Milliseconds(),
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_, _ = w.Write(response)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidEntity):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidCode):
		respondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrRemoteNotConfigured):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		respondError(w, http.StatusBadGateway, err.Error())
	}
}
