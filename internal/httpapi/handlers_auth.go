package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/openpantry/pantryscan/internal/auth"
	"github.com/openpantry/pantryscan/internal/model"
	"github.com/openpantry/pantryscan/internal/storage"
)

type registerPayload struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type userView struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

func toUserView(user model.User) userView {
	return userView{ID: user.ID, Email: user.Email, Username: user.Username}
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var payload registerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
		return
	}
	payload.Email = strings.TrimSpace(strings.ToLower(payload.Email))
	if _, err := mail.ParseAddress(payload.Email); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_email", "A valid email is required")
		return
	}
	if len(payload.Password) < 8 {
		writeError(w, http.StatusBadRequest, "weak_password", "Password must be at least 8 characters")
		return
	}
	username := strings.TrimSpace(payload.Username)
	if username == "" {
		username = payload.Email
	}

	hash, err := auth.HashPassword(payload.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "register_failed", err.Error())
		return
	}
	user, err := a.repo.CreateUser(r.Context(), payload.Email, username, hash)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			writeError(w, http.StatusConflict, "email_taken", "Email already registered")
			return
		}
		writeError(w, http.StatusInternalServerError, "register_failed", err.Error())
		return
	}

	token, err := a.tokens.Issue(user.ID, user.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"token": token, "user": toUserView(user)})
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
		return
	}
	email := strings.TrimSpace(strings.ToLower(payload.Email))

	user, err := a.repo.GetUserByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
			return
		}
		writeError(w, http.StatusInternalServerError, "login_failed", err.Error())
		return
	}
	if !auth.CheckPassword(user.PasswordHash, payload.Password) {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
		return
	}

	token, err := a.tokens.Issue(user.ID, user.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": toUserView(user)})
}

func (a *API) searchUsers(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query_required", "q parameter is required")
		return
	}
	users, err := a.repo.SearchUsers(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search_failed", err.Error())
		return
	}
	views := make([]userView, 0, len(users))
	for _, user := range users {
		views = append(views, toUserView(user))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": views})
}
