package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openpantry/pantryscan/internal/auth"
	"github.com/openpantry/pantryscan/internal/inventory"
)

func (a *API) listLocations(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	locations, err := a.inventory.ListLocations(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": locations})
}

type locationPayload struct {
	Name string `json:"name"`
}

func (a *API) createLocation(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	var payload locationPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
		return
	}
	location, created, err := a.inventory.CreateLocation(r.Context(), userID, payload.Name)
	if err != nil {
		if errors.Is(err, inventory.ErrNameRequired) {
			writeError(w, http.StatusBadRequest, "name_required", "Location name is required")
			return
		}
		writeError(w, http.StatusInternalServerError, "create_failed", err.Error())
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, location)
}
