package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/lawdesk/kioskd/internal/quota"
	"github.com/lawdesk/kioskd/internal/service"
	"github.com/lawdesk/kioskd/internal/session"
	"github.com/lawdesk/kioskd/internal/storage"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		http.Error(w, `{"error":"Internal Server Error","message":"Failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

type loginRequest struct {
	Registration string `json:"registration"`
	CPF          string `json:"cpf"`
	ClientTag    string `json:"client_tag,omitempty"`
}

type loginResponse struct {
	Registration string `json:"registration"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	StartedAt    string `json:"started_at"`
	LimitMinutes int    `json:"limit_minutes"`
	Token        string `json:"token"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.Authenticate(r.Context(), service.LoginRequest{
		Registration: req.Registration,
		CPF:          req.CPF,
		ClientTag:    req.ClientTag,
	})
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, verr.Error())
		case errors.Is(err, service.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
		case errors.Is(err, session.ErrAlreadyActive):
			writeError(w, http.StatusConflict, "A session is already active for this registration")
		default:
			s.logger.Error().Err(err).Msg("Login failed")
			writeError(w, http.StatusInternalServerError, "Login failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Registration: result.Profile.Registration,
		Name:         result.Profile.Name,
		Role:         result.Profile.Role,
		StartedAt:    result.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
		LimitMinutes: result.LimitMinutes,
		Token:        result.Token,
	})
}

func (s *Server) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	registration := mux.Vars(r)["registration"]

	if !registrationMatchesToken(r, registration) {
		writeError(w, http.StatusForbidden, "Token does not match registration")
		return
	}

	status, err := s.service.Status(r.Context(), registration)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			writeError(w, http.StatusNotFound, "No active session")
			return
		}
		s.logger.Error().Err(err).Str("registration", registration).Msg("Status poll failed")
		writeError(w, http.StatusInternalServerError, "Failed to query session")
		return
	}

	writeJSON(w, http.StatusOK, status)
}

type printRequest struct {
	Registration string `json:"registration"`
	Pages        int64  `json:"pages"`
}

type printResponse struct {
	Registration string `json:"registration"`
	Requested    int64  `json:"requested"`
	Free         int64  `json:"free"`
	Billed       int64  `json:"billed"`
	Cost         string `json:"cost"`
}

func (s *Server) handlePrint(w http.ResponseWriter, r *http.Request) {
	var req printRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Registration == "" {
		writeError(w, http.StatusBadRequest, "Registration is required")
		return
	}

	if !registrationMatchesToken(r, req.Registration) {
		writeError(w, http.StatusForbidden, "Token does not match registration")
		return
	}

	receipt, err := s.service.Print(r.Context(), req.Registration, req.Pages)
	if err != nil {
		switch {
		case errors.Is(err, quota.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, "Page count must not be negative")
		case errors.Is(err, session.ErrNoSession):
			writeError(w, http.StatusNotFound, "No active session")
		default:
			s.logger.Error().Err(err).Str("registration", req.Registration).Msg("Print charge failed")
			writeError(w, http.StatusInternalServerError, "Failed to charge print job")
		}
		return
	}

	writeJSON(w, http.StatusOK, printResponse{
		Registration: req.Registration,
		Requested:    receipt.Requested,
		Free:         receipt.Free,
		Billed:       receipt.Billed,
		Cost:         receipt.CostString(),
	})
}

type logoutRequest struct {
	Registration string `json:"registration"`
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Registration == "" {
		writeError(w, http.StatusBadRequest, "Registration is required")
		return
	}

	if !registrationMatchesToken(r, req.Registration) {
		writeError(w, http.StatusForbidden, "Token does not match registration")
		return
	}

	// Logout is idempotent; a missing session is still a success.
	s.service.Terminate(r.Context(), req.Registration)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Logged out",
	})
}

func (s *Server) handleQuotaReport(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]

	days, err := s.quotas.ListDays(r.Context(), date)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			days = nil
		} else {
			s.logger.Error().Err(err).Str("date", date).Msg("Failed to list daily usage")
			writeError(w, http.StatusInternalServerError, "Failed to retrieve daily usage")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":  date,
		"users": days,
		"count": len(days),
	})
}
