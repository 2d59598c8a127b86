package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/gorilla/mux"

	"content_sync/internal/domain"
	"content_sync/internal/twofactor"
	"content_sync/internal/upload"
)

const maxUploadMemory = 32 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	bucket := mux.Vars(r)["bucket"]
	if !upload.KnownBucket(bucket) {
		respondError(w, http.StatusNotFound, "unknown bucket")
		return
	}
	if s.uploads == nil || !s.uploads.Configured() {
		respondError(w, http.StatusServiceUnavailable, domain.ErrRemoteNotConfigured.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, upload.MaxVideoSize+(1<<20))
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart payload")
		return
	}

	part, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer part.Close()

	file := upload.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        part,
	}

	if err := upload.ValidateFor(bucket, file); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.uploads.UploadTo(r.Context(), bucket, file)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleDeleteUpload(w http.ResponseWriter, r *http.Request) {
	if s.uploads == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := s.uploads.DeleteByURL(r.Context(), r.URL.Query().Get("url")); err != nil {
		s.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sendCodeRequest struct {
	Email  string `json:"email"`
	UserID string `json:"userId"`
}

type verifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (s *Server) handleSendCode(w http.ResponseWriter, r *http.Request) {
	var req sendCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.UserID == "" {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	code, err := s.auth.SendCode(withClient(r), req.Email, req.UserID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{"expiresAt": code.ExpiresAt})
}

func (s *Server) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Code == "" {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	ctx := withClient(r)
	err := s.auth.ValidateCode(ctx, req.Email, req.Code)
	if err != nil {
		if !errors.Is(err, domain.ErrRemoteNotConfigured) {
			s.auth.LogLoginAttempt(ctx, req.Email, false, err.Error())
		}
		s.respondServiceError(w, err)
		return
	}

	s.auth.LogLoginAttempt(ctx, req.Email, true, "")
	respondJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

func withClient(r *http.Request) context.Context {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return twofactor.WithClient(r.Context(), twofactor.ClientInfo{
		IPAddress: host,
		UserAgent: r.UserAgent(),
	})
}
