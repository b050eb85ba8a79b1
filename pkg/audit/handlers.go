package audit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/httputil"
	"github.com/platinummonkey/folio/pkg/middleware"
	"github.com/platinummonkey/folio/pkg/rbac"
)

// Searcher queries stored audit events.
type Searcher interface {
	Search(ctx context.Context, filter SearchFilter) ([]*Event, error)
}

// Handlers provides HTTP handlers for audit log API. Admins only ever see
// their own tenant's events.
type Handlers struct {
	store Searcher
}

// NewHandlers creates new audit handlers
func NewHandlers(store Searcher) *Handlers {
	return &Handlers{store: store}
}

// RegisterRoutes registers audit log routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	admin := rbac.RequireRole(auth.RoleAdmin)
	router.Handle("/audit/events", admin(http.HandlerFunc(h.listEvents))).Methods("GET")
	router.Handle("/audit/export", admin(http.HandlerFunc(h.exportEvents))).Methods("GET")
}

// search runs the request's filter pinned to the caller's tenant. It writes
// the error response itself and reports whether the caller should continue.
func (h *Handlers) search(w http.ResponseWriter, r *http.Request) ([]*Event, SearchFilter, bool) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return nil, filter, false
	}

	user := middleware.CurrentUser(r)
	if user == nil || user.TenantID == nil {
		httputil.WriteForbidden(w, "tenant required")
		return nil, filter, false
	}
	tenantID := *user.TenantID
	filter.TenantID = &tenantID

	events, err := h.store.Search(r.Context(), filter)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return nil, filter, false
	}
	return events, filter, true
}

// listEvents handles GET /audit/events
func (h *Handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	events, filter, ok := h.search(w, r)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"events": events,
		"count":  len(events),
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// exportEvents handles GET /audit/export
func (h *Handlers) exportEvents(w http.ResponseWriter, r *http.Request) {
	format := ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = ExportFormatJSON
	}

	events, _, ok := h.search(w, r)
	if !ok {
		return
	}

	data, err := Export(events, format)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	switch format {
	case ExportFormatCSV:
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=audit-logs.csv")
	case ExportFormatNDJSON:
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Content-Disposition", "attachment; filename=audit-logs.ndjson")
	default:
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", "attachment; filename=audit-logs.json")
	}
	w.Write(data)
}

func parseFilter(r *http.Request) (SearchFilter, error) {
	q := r.URL.Query()
	filter := SearchFilter{
		ResourceType: ResourceType(q.Get("resource_type")),
		ResourceID:   q.Get("resource_id"),
	}

	var err error
	if filter.Limit, err = httputil.ParseQueryInt(r, "limit", 100); err != nil {
		return filter, err
	}
	if filter.Offset, err = httputil.ParseQueryInt(r, "offset", 0); err != nil {
		return filter, err
	}
	userID, err := httputil.ParseQueryInt64(r, "user_id", 0)
	if err != nil {
		return filter, err
	}
	if userID > 0 {
		filter.UserID = &userID
	}
	if et := q.Get("event_type"); et != "" {
		filter.EventTypes = []EventType{EventType(et)}
	}
	if s := q.Get("status"); s != "" {
		status := EventStatus(s)
		filter.Status = &status
	}
	if s := q.Get("start_time"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return filter, fmt.Errorf("invalid start_time: %s", s)
		}
		filter.StartTime = &t
	}
	if s := q.Get("end_time"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return filter, fmt.Errorf("invalid end_time: %s", s)
		}
		filter.EndTime = &t
	}
	return filter, nil
}
