package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"content_sync/internal/domain"
	"content_sync/internal/service"
)

func registerCollection[T domain.Entity[T]](api *mux.Router, s *Server, collection domain.Collection, repo *service.CollectionRepository[T]) {
	base := "/" + string(collection)

	api.HandleFunc(base, func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, repo.Get(r.Context()))
	}).Methods("GET")

	api.HandleFunc(base, func(w http.ResponseWriter, r *http.Request) {
		var items []T
		if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request payload")
			return
		}
		mirror := repo.Save(r.Context(), items)
		s.respondWrite(w, r, mirror, func() any { return repo.Cached(r.Context()) })
	}).Methods("PUT")

	api.HandleFunc(base+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		var item T
		if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request payload")
			return
		}
		if item.EntityID() != mux.Vars(r)["id"] {
			respondError(w, http.StatusBadRequest, "id in body does not match path")
			return
		}
		mirror := repo.Update(r.Context(), item)
		s.respondWrite(w, r, mirror, func() any { return item })
	}).Methods("PUT")

	api.HandleFunc(base+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		mirror := repo.Delete(r.Context(), mux.Vars(r)["id"])
		s.respondWrite(w, r, mirror, nil)
	}).Methods("DELETE")
}

func (s *Server) handleGetPromo(w http.ResponseWriter, r *http.Request) {
	slot, err := domain.ParsePromoSlot(mux.Vars(r)["slot"])
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.content.Promo(slot).Get(r.Context()))
}

func (s *Server) handleSavePromo(w http.ResponseWriter, r *http.Request) {
	slot, err := domain.ParsePromoSlot(mux.Vars(r)["slot"])
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	var promo domain.PromoCard
	if err := json.NewDecoder(r.Body).Decode(&promo); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	mirror := s.content.Promo(slot).Save(r.Context(), promo)
	s.respondWrite(w, r, mirror, func() any { return promo })
}

func (s *Server) handleRefreshPromo(w http.ResponseWriter, r *http.Request) {
	slot, err := domain.ParsePromoSlot(mux.Vars(r)["slot"])
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	promo, err := s.content.Promo(slot).Refresh(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, promo)
}

// respondWrite answers a write whose local half already happened. A remote
// failure is only reported as an error with ?wait=true; otherwise the answer
// is 200 once the mirror finished and 202 while it is pending.
func (s *Server) respondWrite(w http.ResponseWriter, r *http.Request, mirror *service.Mirror, body func() any) {
	if err := mirror.Err(); errors.Is(err, domain.ErrInvalidEntity) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))

	status := http.StatusOK
	if wait {
		if err := mirror.Wait(r.Context()); err != nil {
			s.logger.Warn("remote mirror failed", "path", r.URL.Path, "error", err)
			respondError(w, http.StatusBadGateway, "saved locally, remote write failed: "+err.Error())
			return
		}
	} else {
		select {
		case <-mirror.Done():
			if err := mirror.Err(); err != nil {
				s.logger.Warn("remote mirror failed, kept locally", "path", r.URL.Path, "error", err)
			}
		default:
			status = http.StatusAccepted
		}
	}

	if body == nil {
		w.WriteHeader(status)
		return
	}
	respondJSON(w, status, body())
}
