package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openpantry/pantryscan/internal/auth"
	"github.com/openpantry/pantryscan/internal/model"
)

type processPayload struct {
	Image string `json:"image"`
}

// processBarcode decodes a captured frame. The body carries the JPEG as
// plain base64 without a data-URL prefix.
func (a *API) processBarcode(w http.ResponseWriter, r *http.Request) {
	var payload processPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
		return
	}
	if strings.TrimSpace(payload.Image) == "" {
		writeError(w, http.StatusBadRequest, "image_required", "No image provided")
		return
	}
	frame, err := base64.StdEncoding.DecodeString(payload.Image)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_image", "Invalid image format: "+err.Error())
		return
	}

	result, err := a.decoder.Decode(r.Context(), frame)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "process_failed", "Failed to process barcode: "+err.Error())
		return
	}

	if userID, ok := auth.UserID(r.Context()); ok {
		scan := model.Scan{
			ID:        uuid.NewString(),
			UserID:    userID,
			Barcode:   result.Code,
			Detected:  result.Detected,
			Source:    model.ScanSourceUpload,
			CreatedAt: time.Now().UTC(),
		}
		if err := a.repo.InsertScan(r.Context(), scan); err != nil {
			a.logger.Warn("scan record failed", "err", err)
		}
	}

	writeJSON(w, http.StatusOK, result)
}

func (a *API) recentScans(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		limit = value
	}
	scans, err := a.repo.ListRecentScans(r.Context(), userID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": scans})
}
