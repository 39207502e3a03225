package workspace

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/inamate/diagram/internal/auth"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the diagram endpoints on an authenticated subrouter.
func (h *Handler) Routes(api *mux.Router) {
	api.HandleFunc("/diagrams", h.List).Methods("GET")
	api.HandleFunc("/diagrams", h.Create).Methods("POST")
	api.HandleFunc("/diagrams/{diagramId}", h.Get).Methods("GET")
	api.HandleFunc("/diagrams/{diagramId}", h.Delete).Methods("DELETE")
	api.HandleFunc("/diagrams/{diagramId}/invite", h.Invite).Methods("POST")
	api.HandleFunc("/diagrams/{diagramId}/members", h.ListMembers).Methods("GET")
	api.HandleFunc("/diagrams/{diagramId}/members/{userId}", h.RemoveMember).Methods("DELETE")
	api.HandleFunc("/diagrams/{diagramId}/snapshots/latest", h.LatestSnapshot).Methods("GET")
}

type createRequest struct {
	Name   string `json:"name"`
	Sample bool   `json:"sample"`
}

type inviteRequest struct {
	Email string `json:"email"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	diagram, err := h.service.Create(r.Context(), req.Name, userID, req.Sample)
	if err != nil {
		slog.Error("create diagram failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusCreated, diagram)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	diagramID := mux.Vars(r)["diagramId"]

	diagram, err := h.service.Get(r.Context(), diagramID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, diagram)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	diagrams, err := h.service.List(r.Context(), userID)
	if err != nil {
		slog.Error("list diagrams failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, diagrams)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	diagramID := mux.Vars(r)["diagramId"]

	if err := h.service.Delete(r.Context(), diagramID, userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Invite(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	diagramID := mux.Vars(r)["diagramId"]

	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email is required"})
		return
	}

	if err := h.service.InviteByEmail(r.Context(), diagramID, userID, req.Email); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "invited"})
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	diagramID := mux.Vars(r)["diagramId"]

	members, err := h.service.ListMembers(r.Context(), diagramID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, members)
}

func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	vars := mux.Vars(r)

	if err := h.service.RemoveMember(r.Context(), vars["diagramId"], userID, vars["userId"]); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) LatestSnapshot(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	diagramID := mux.Vars(r)["diagramId"]

	data, err := h.service.LatestSnapshot(r.Context(), diagramID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
	case errors.Is(err, ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	case errors.Is(err, ErrNotMember):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not a diagram member"})
	case errors.Is(err, ErrOwnerRemoval):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot remove diagram owner"})
	default:
		slog.Error("service error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
