package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/shotcoach/internal/log"
	"github.com/ayusman/shotcoach/internal/store"
)

// UserHandler serves /api/users.
type UserHandler struct {
	store *store.Store
}

// NewUserHandler creates a UserHandler backed by s.
func NewUserHandler(s *store.Store) *UserHandler {
	return &UserHandler{store: s}
}

type createUserRequest struct {
	Name string `json:"name"`
}

type listUsersResponse struct {
	Users []*store.User `json:"users"`
}

func (h *UserHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/users"), "/")
	if path != "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.get(w, path)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.list(w)
	case http.MethodPost:
		h.create(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *UserHandler) list(w http.ResponseWriter) {
	users, err := h.store.Users().List()
	if err != nil {
		log.Error("list users", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []*store.User{}
	}
	writeJSON(w, http.StatusOK, listUsersResponse{Users: users})
}

func (h *UserHandler) get(w http.ResponseWriter, name string) {
	u, err := h.store.Users().GetByName(name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	u, err := h.store.Users().Create(req.Name)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusConflict, "user already exists")
			return
		}
		log.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	log.Info("user registered", "id", u.ID, "name", u.Name)
	writeJSON(w, http.StatusCreated, u)
}
