package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/org/fleetadmin/internal/records"
	"github.com/org/fleetadmin/pkg/models"
)

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

// --- Travellers ---

func (s *Server) TravellerCreateHandler(w http.ResponseWriter, r *http.Request) {
	var profile models.TravellerProfile
	if err := decodeJSON(r, &profile); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess := sessionFromCtx(r.Context())
	t, err := s.sessions.CreateTraveller(r.Context(), sess, &profile)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": t.ID, "registered_at": t.RegisteredAt})
}

// TravellerListHandler lists traveller IDs, or searches decrypted profiles
// when a ?q= term is present.
func (s *Server) TravellerListHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromCtx(r.Context())
	if term := r.URL.Query().Get("q"); term != "" {
		matches, err := s.sessions.SearchTravellers(r.Context(), sess, term)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if matches == nil {
			matches = []*records.TravellerMatch{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"travellers": matches})
		return
	}
	travellers, err := s.sessions.ListTravellers(r.Context(), sess)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	ids := make([]map[string]any, 0, len(travellers))
	for _, t := range travellers {
		ids = append(ids, map[string]any{"id": t.ID, "registered_at": t.RegisteredAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"travellers": ids})
}

func (s *Server) TravellerGetHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid traveller id")
		return
	}
	sess := sessionFromCtx(r.Context())
	profile, err := s.sessions.GetTraveller(r.Context(), sess, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) TravellerUpdateHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid traveller id")
		return
	}
	var profile models.TravellerProfile
	if err := decodeJSON(r, &profile); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess := sessionFromCtx(r.Context())
	if err := s.sessions.UpdateTraveller(r.Context(), sess, id, &profile); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) TravellerDeleteHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid traveller id")
		return
	}
	sess := sessionFromCtx(r.Context())
	if err := s.sessions.DeleteTraveller(r.Context(), sess, id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// --- Scooters ---

func (s *Server) ScooterCreateHandler(w http.ResponseWriter, r *http.Request) {
	var scooter models.Scooter
	if err := decodeJSON(r, &scooter); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess := sessionFromCtx(r.Context())
	if err := s.sessions.CreateScooter(r.Context(), sess, &scooter); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, scooter)
}

// ScooterListHandler lists the fleet, filtered by a ?q= substring when
// present.
func (s *Server) ScooterListHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromCtx(r.Context())
	var (
		scooters []*models.Scooter
		err      error
	)
	if term := r.URL.Query().Get("q"); term != "" {
		scooters, err = s.sessions.SearchScooters(r.Context(), sess, term)
	} else {
		scooters, err = s.sessions.ListScooters(r.Context(), sess)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if scooters == nil {
		scooters = []*models.Scooter{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scooters": scooters})
}

func (s *Server) ScooterGetHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid scooter id")
		return
	}
	sess := sessionFromCtx(r.Context())
	scooter, err := s.sessions.GetScooter(r.Context(), sess, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scooter)
}

func (s *Server) ScooterUpdateHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid scooter id")
		return
	}
	var scooter models.Scooter
	if err := decodeJSON(r, &scooter); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	scooter.ID = id
	sess := sessionFromCtx(r.Context())
	if err := s.sessions.UpdateScooter(r.Context(), sess, &scooter); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scooter)
}

func (s *Server) ScooterTelemetryHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid scooter id")
		return
	}
	var tel models.ScooterTelemetry
	if err := decodeJSON(r, &tel); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess := sessionFromCtx(r.Context())
	scooter, err := s.sessions.UpdateScooterTelemetry(r.Context(), sess, id, &tel)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scooter)
}

func (s *Server) ScooterDeleteHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid scooter id")
		return
	}
	sess := sessionFromCtx(r.Context())
	if err := s.sessions.DeleteScooter(r.Context(), sess, id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
