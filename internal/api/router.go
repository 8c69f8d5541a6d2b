package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/valetops/tagtrack/internal/dayservice"
)

// NewRouter creates a chi router with all API routes mounted.
// sseHandler, if non-nil, is mounted at GET /events inside the auth
// group so live occupancy streams require the same token.
func NewRouter(session *dayservice.Session, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(session)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Operator commands.
	r.Post("/visits/checkin", h.CheckIn)
	r.Post("/visits/checkout", h.CheckOut)
	r.Post("/visits/edit", h.Edit)
	r.Post("/visits/delete", h.Delete)
	r.Get("/visits/{tag}", h.Query)

	// Reports.
	r.Get("/day", h.Day)
	r.Get("/day/summary", h.Summary)
	r.Get("/day/stats", h.Stats)
	r.Get("/day/inventory", h.Inventory)

	// Live updates.
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
