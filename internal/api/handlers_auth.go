package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/org/fleetadmin/internal/credential"
	"github.com/org/fleetadmin/pkg/models"
)

type loginRequest struct {
	Handle   string `json:"handle"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token           string      `json:"token"`
	Role            models.Role `json:"role"`
	ExpiresAt       time.Time   `json:"expires_at"`
	SuspiciousCount int64       `json:"suspicious_count,omitempty"`
}

func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Handle == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "handle and password are required")
		return
	}

	res, err := s.sessions.Login(r.Context(), req.Handle, req.Password)
	if err != nil {
		if errors.Is(err, credential.ErrAuthentication) {
			loginFailuresTotal.Inc()
		}
		writeDomainError(w, err)
		return
	}
	suspiciousEntries.Set(float64(res.SuspiciousCount))

	writeJSON(w, http.StatusOK, loginResponse{
		Token:           res.Token,
		Role:            res.Session.Role,
		ExpiresAt:       res.Session.ExpiresAt,
		SuspiciousCount: res.SuspiciousCount,
	})
}

func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromCtx(r.Context())
	if err := s.sessions.Logout(r.Context(), sess); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (s *Server) WhoamiHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromCtx(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"handle":     sess.Handle,
		"role":       sess.Role,
		"expires_at": sess.ExpiresAt,
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (s *Server) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess := sessionFromCtx(r.Context())
	if err := s.sessions.ChangePassword(r.Context(), sess, req.CurrentPassword, req.NewPassword); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "password changed"})
}
