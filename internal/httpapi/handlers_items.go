package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/openpantry/pantryscan/internal/auth"
	"github.com/openpantry/pantryscan/internal/inventory"
	"github.com/openpantry/pantryscan/internal/product"
	"github.com/openpantry/pantryscan/internal/storage"
)

// lookupItem handles GET /api/items/{code}/ — lookup a UPC in the product
// database and create the item unless it already exists.
func (a *API) lookupItem(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	result, err := a.inventory.LookupUPC(r.Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, inventory.ErrBarcodeRequired):
			writeError(w, http.StatusBadRequest, "barcode_required", "UPC code is required")
		case errors.Is(err, product.ErrNotFound):
			writeError(w, http.StatusNotFound, "product_not_found", "No product found for UPC: "+code)
		default:
			writeError(w, http.StatusInternalServerError, "lookup_failed", "Failed to lookup UPC: "+err.Error())
		}
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}

// lookupProduct handles GET /api/items/lookup-product/{code}/ — metadata
// only, no item row is created.
func (a *API) lookupProduct(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	meta, err := a.inventory.LookupProduct(r.Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, inventory.ErrBarcodeRequired):
			writeError(w, http.StatusBadRequest, "barcode_required", "UPC code is required")
		case errors.Is(err, product.ErrNotFound):
			writeError(w, http.StatusNotFound, "product_not_found", "No product found for UPC: "+code)
		default:
			writeError(w, http.StatusInternalServerError, "lookup_failed", err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product_data": meta})
}

func (a *API) createItem(w http.ResponseWriter, r *http.Request) {
	var payload inventory.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
		return
	}
	result, err := a.inventory.CreateItem(r.Context(), payload)
	if err != nil {
		switch {
		case errors.Is(err, inventory.ErrBarcodeRequired):
			writeError(w, http.StatusBadRequest, "barcode_required", "Barcode is required")
		case errors.Is(err, inventory.ErrNameRequired):
			writeError(w, http.StatusBadRequest, "title_required", "Title is required")
		default:
			writeError(w, http.StatusInternalServerError, "create_failed", err.Error())
		}
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}

func (a *API) addToUser(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	itemID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || itemID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_item_id", "Item id must be a positive integer")
		return
	}
	var payload inventory.AddInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
		return
	}
	result, err := a.inventory.AddToUser(r.Context(), userID, itemID, payload)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "Item or location not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "add_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) listInventory(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	entries, err := a.inventory.ListInventory(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}
