package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) BackupCreateHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromCtx(r.Context())
	ref, err := s.sessions.CreateBackup(r.Context(), sess)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ref)
}

func (s *Server) BackupListHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromCtx(r.Context())
	refs, err := s.sessions.ListBackups(r.Context(), sess)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"backups": refs})
}

func (s *Server) BackupRestoreHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess := sessionFromCtx(r.Context())
	if err := s.sessions.RestoreBackup(r.Context(), sess, id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "restored"})
}

type restoreCodeIssueRequest struct {
	BackupID     string `json:"backup_id"`
	TargetHandle string `json:"target_handle"`
}

func (s *Server) RestoreCodeIssueHandler(w http.ResponseWriter, r *http.Request) {
	var req restoreCodeIssueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BackupID == "" || req.TargetHandle == "" {
		writeError(w, http.StatusBadRequest, "backup_id and target_handle are required")
		return
	}
	sess := sessionFromCtx(r.Context())
	code, rc, err := s.sessions.IssueRestoreCode(r.Context(), sess, req.BackupID, req.TargetHandle)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	// The plaintext code is returned exactly once.
	writeJSON(w, http.StatusCreated, map[string]any{
		"code":          code,
		"backup_id":     rc.BackupID,
		"target_handle": rc.TargetHandle,
	})
}

func (s *Server) RestoreCodeListHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromCtx(r.Context())
	codes, err := s.sessions.ListRestoreCodes(r.Context(), sess)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"restore_codes": codes})
}

type restoreCodeRequest struct {
	Code string `json:"code"`
}

func (s *Server) RestoreCodeRedeemHandler(w http.ResponseWriter, r *http.Request) {
	var req restoreCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess := sessionFromCtx(r.Context())
	rc, err := s.sessions.RedeemRestoreCode(r.Context(), sess, req.Code)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "restored", "backup_id": rc.BackupID})
}

func (s *Server) RestoreCodeRevokeHandler(w http.ResponseWriter, r *http.Request) {
	var req restoreCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess := sessionFromCtx(r.Context())
	if err := s.sessions.RevokeRestoreCode(r.Context(), sess, req.Code); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}
