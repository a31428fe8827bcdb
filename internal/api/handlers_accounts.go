package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/org/fleetadmin/pkg/models"
)

type accountCreateRequest struct {
	Handle    string      `json:"handle"`
	Password  string      `json:"password"`
	Role      models.Role `json:"role"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
}

type accountResponse struct {
	ID        int64       `json:"id"`
	Handle    string      `json:"handle"`
	Role      models.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

func (s *Server) AccountCreateHandler(w http.ResponseWriter, r *http.Request) {
	var req accountCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Handle == "" || req.Password == "" || !req.Role.Valid() {
		writeError(w, http.StatusBadRequest, "handle, password and a valid role are required")
		return
	}

	sess := sessionFromCtx(r.Context())
	account, err := s.sessions.CreateAccount(r.Context(), sess, req.Handle, req.Password, req.Role, req.FirstName, req.LastName)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, accountResponse{
		ID: account.ID, Handle: account.Handle, Role: account.Role, CreatedAt: account.CreatedAt,
	})
}

func (s *Server) AccountListHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromCtx(r.Context())
	accounts, err := s.sessions.ListAccounts(r.Context(), sess)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, accountResponse{ID: a.ID, Handle: a.Handle, Role: a.Role, CreatedAt: a.CreatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": out})
}

func (s *Server) AccountDeleteHandler(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")
	sess := sessionFromCtx(r.Context())
	if err := s.sessions.DeleteAccount(r.Context(), sess, handle); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type profileUpdateRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (s *Server) AccountProfileHandler(w http.ResponseWriter, r *http.Request) {
	var req profileUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FirstName == "" || req.LastName == "" {
		writeError(w, http.StatusBadRequest, "first_name and last_name are required")
		return
	}
	handle := chi.URLParam(r, "handle")
	sess := sessionFromCtx(r.Context())
	if err := s.sessions.UpdateAccountProfile(r.Context(), sess, handle, req.FirstName, req.LastName); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "profile updated"})
}

type resetPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

func (s *Server) AccountResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	handle := chi.URLParam(r, "handle")
	sess := sessionFromCtx(r.Context())
	if err := s.sessions.ResetPassword(r.Context(), sess, handle, req.NewPassword); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "password reset"})
}
