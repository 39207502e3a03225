package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

const minPasswordLength = 8

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// credentials is the body of both /auth/register and /auth/login. Login
// ignores DisplayName.
type credentials struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

// errorBody is what every failed auth request answers with.
type errorBody struct {
	Error string `json:"error"`
}

var errBadBody = errors.New("invalid request body")

func decodeCredentials(r *http.Request) (credentials, error) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		return c, errBadBody
	}
	c.Email = strings.TrimSpace(c.Email)
	c.DisplayName = strings.TrimSpace(c.DisplayName)
	return c, nil
}

func (c credentials) validate(register bool) error {
	switch {
	case register && (c.Email == "" || c.Password == "" || c.DisplayName == ""):
		return errors.New("email, password, and displayName are required")
	case !register && (c.Email == "" || c.Password == ""):
		return errors.New("email and password are required")
	case register && len(c.Password) < minPasswordLength:
		return errors.New("password must be at least 8 characters")
	}
	return nil
}

// Register creates an account and answers with a session for it.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	c, err := decodeCredentials(r)
	if err == nil {
		err = c.validate(true)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{err.Error()})
		return
	}

	result, err := h.service.Register(r.Context(), c.Email, c.Password, c.DisplayName)
	if err != nil {
		h.fail(w, "register", err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// Login answers with a fresh session and the diagrams the account can open.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	c, err := decodeCredentials(r)
	if err == nil {
		err = c.validate(false)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{err.Error()})
		return
	}

	result, err := h.service.Login(r.Context(), c.Email, c.Password)
	if err != nil {
		h.fail(w, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Me returns the authenticated user in the same shape as the user field of
// a login response.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		h.fail(w, "get user", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrEmailTaken):
		status = http.StatusConflict
	case errors.Is(err, ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, ErrUserNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		slog.Error(op+" failed", "error", err)
		writeJSON(w, status, errorBody{"internal error"})
		return
	}
	writeJSON(w, status, errorBody{err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("write response", "error", err)
	}
}
