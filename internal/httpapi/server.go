package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/openpantry/pantryscan/internal/auth"
	"github.com/openpantry/pantryscan/internal/barcode"
	"github.com/openpantry/pantryscan/internal/events"
	"github.com/openpantry/pantryscan/internal/inventory"
	"github.com/openpantry/pantryscan/internal/storage"
)

type API struct {
	inventory *inventory.Service
	repo      *storage.Repository
	decoder   barcode.Decoder
	tokens    *auth.Tokens
	hub       *events.Hub
	logger    *slog.Logger
}

func New(
	inv *inventory.Service,
	repo *storage.Repository,
	decoder barcode.Decoder,
	tokens *auth.Tokens,
	hub *events.Hub,
	logger *slog.Logger,
) *API {
	return &API{inventory: inv, repo: repo, decoder: decoder, tokens: tokens, hub: hub, logger: logger}
}

// Handler builds the full routing tree. Route shapes (trailing slashes
// included) match what the capture clients already call.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RecoverJSON(a.logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(RequestLogger(a.logger))

	r.Get("/healthz", a.health)

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/register/", a.register)
		api.Post("/auth/login/", a.login)

		api.Group(func(protected chi.Router) {
			protected.Use(a.tokens.Require(func(w http.ResponseWriter, code, message string) {
				writeError(w, http.StatusUnauthorized, code, message)
			}))

			protected.Get("/auth/search-users/", a.searchUsers)

			protected.Post("/barcode/process/", a.processBarcode)

			protected.Get("/items/lookup-product/{code}/", a.lookupProduct)
			protected.Post("/items/", a.createItem)
			protected.Post("/items/{id}/add-to-user/", a.addToUser)
			protected.Get("/items/{code}/", a.lookupItem)

			protected.Get("/locations/", a.listLocations)
			protected.Post("/locations/", a.createLocation)

			protected.Get("/inventory/", a.listInventory)
			protected.Get("/scans/recent/", a.recentScans)

			protected.Get("/events", a.hub.ServeHTTP)
		})
	})

	return r
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

// RunServer starts and gracefully stops the HTTP server with context
// cancellation.
func RunServer(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", "err", err)
			return err
		}
		return nil
	}
}
