package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/valetops/tagtrack/internal/apperr"
	"github.com/valetops/tagtrack/internal/dayservice"
	"github.com/valetops/tagtrack/internal/tracker"
)

// Handler holds the API route handlers.
type Handler struct {
	session *dayservice.Session
}

// NewHandler creates a Handler over a day session.
func NewHandler(session *dayservice.Session) *Handler {
	return &Handler{session: session}
}

func parseField(name string) (tracker.Field, bool) {
	switch name {
	case "in", "":
		return tracker.FieldIn, true
	case "out":
		return tracker.FieldOut, true
	case "both":
		return tracker.FieldBoth, true
	default:
		return 0, false
	}
}

func decodeVisitRequest(w http.ResponseWriter, r *http.Request) (visitRequest, bool) {
	var req visitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return req, false
	}
	return req, true
}

func (req visitRequest) occurrence() int {
	if req.Occurrence == nil {
		return tracker.Latest
	}
	return *req.Occurrence
}

// writeCommandError maps the error taxonomy onto HTTP statuses.
func writeCommandError(w http.ResponseWriter, err error) {
	body := errorBody(err.Error())
	status := http.StatusUnprocessableEntity
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrAlreadyOpen),
		errors.Is(err, apperr.ErrNotOpen),
		errors.Is(err, apperr.ErrNegativeDuration):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrConfirmRequired):
		status = http.StatusConflict
		body.ConfirmRequired = true
	case apperr.Overridable(err):
		body.Overridable = true
	case errors.Is(err, apperr.ErrPersistence):
		slog.Error("persistence failure", slog.String("error", err.Error()))
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, body)
}

func (h *Handler) apply(w http.ResponseWriter, cmd tracker.Command) {
	res, err := h.session.Apply(cmd)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStayDTO(*res.Stay))
}

// CheckIn handles POST /visits/checkin.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeVisitRequest(w, r)
	if !ok {
		return
	}
	h.apply(w, tracker.CheckInCmd{Tag: req.Tag, Time: req.Time, Force: req.Force})
}

// CheckOut handles POST /visits/checkout.
func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeVisitRequest(w, r)
	if !ok {
		return
	}
	h.apply(w, tracker.CheckOutCmd{Tag: req.Tag, Time: req.Time, Force: req.Force})
}

// Edit handles POST /visits/edit.
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeVisitRequest(w, r)
	if !ok {
		return
	}
	field, ok := parseField(req.Field)
	if !ok || field == tracker.FieldBoth {
		writeJSON(w, http.StatusBadRequest, errorBody("field must be in or out"))
		return
	}
	h.apply(w, tracker.EditCmd{
		Tag:        req.Tag,
		Field:      field,
		Time:       req.Time,
		Occurrence: req.occurrence(),
		Force:      req.Force,
	})
}

// Delete handles POST /visits/delete.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeVisitRequest(w, r)
	if !ok {
		return
	}
	field, ok := parseField(req.Field)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("field must be in, out, or both"))
		return
	}
	h.apply(w, tracker.DeleteCmd{
		Tag:        req.Tag,
		Field:      field,
		Occurrence: req.occurrence(),
		Confirmed:  req.Confirmed,
	})
}

// Query handles GET /visits/{tag}.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	res, err := h.session.Apply(tracker.QueryCmd{Tag: chi.URLParam(r, "tag")})
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stays": toStayDTOs(res.Stays),
	})
}

// Day handles GET /day.
func (h *Handler) Day(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toDayDTO(h.session.Snapshot()))
}

// Summary handles GET /day/summary.
func (h *Handler) Summary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Summary())
}

// Stats handles GET /day/stats.
func (h *Handler) Stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Summary().Stats)
}

// Inventory handles GET /day/inventory.
func (h *Handler) Inventory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"rows": h.session.Inventory(),
	})
}
