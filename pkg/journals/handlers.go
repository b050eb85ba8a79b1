package journals

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/folio/pkg/audit"
	"github.com/platinummonkey/folio/pkg/httputil"
	"github.com/platinummonkey/folio/pkg/middleware"
)

// Handlers provides HTTP handlers for journals
type Handlers struct {
	service *Service
}

// NewHandlers creates new journal handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers journal routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/journals", h.list).Methods("GET")
	router.HandleFunc("/journals", h.create).Methods("POST")
	router.HandleFunc("/journals/search", h.search).Methods("GET")
	router.HandleFunc("/journals/{id:[0-9]+}", h.get).Methods("GET")
	router.HandleFunc("/journals/{id:[0-9]+}", h.update).Methods("PATCH")
	router.HandleFunc("/journals/{id:[0-9]+}/accepting", h.setAccepting).Methods("PUT")
	router.HandleFunc("/journals/{id:[0-9]+}/active", h.setActive).Methods("PUT")
}

// JournalRequest is the body of create and update requests.
type JournalRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ToggleRequest carries a boolean flag.
type ToggleRequest struct {
	Enabled bool `json:"enabled"`
}

// list handles GET /journals?accepting=true
func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	accepting, err := httputil.ParseQueryBool(r, "accepting", false)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	out, err := h.service.List(r.Context(), middleware.CurrentUser(r), accepting)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, out)
}

// search handles GET /journals/search?q=
func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Search(r.Context(), middleware.CurrentUser(r), r.URL.Query().Get("q"))
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, out)
}

// create handles POST /journals
func (h *Handlers) create(w http.ResponseWriter, r *http.Request) {
	var req JournalRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	j, err := h.service.Create(r.Context(), middleware.CurrentUser(r), req.Name, req.Description)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	_ = audit.Record(r.Context(), audit.EventJournalCreate, audit.ResourceJournal, strconv.FormatInt(j.ID, 10),
		"journal created", map[string]interface{}{"name": j.Name})
	httputil.WriteCreated(w, j)
}

// get handles GET /journals/{id}
func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	j, err := h.service.Get(r.Context(), middleware.CurrentUser(r), id)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, j)
}

// update handles PATCH /journals/{id}
func (h *Handlers) update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req JournalRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	j, err := h.service.Update(r.Context(), middleware.CurrentUser(r), id, req.Name, req.Description)
	h.respondUpdate(w, r, j, err, "journal updated", nil)
}

// setAccepting handles PUT /journals/{id}/accepting
func (h *Handlers) setAccepting(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req ToggleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	j, err := h.service.SetAccepting(r.Context(), middleware.CurrentUser(r), id, req.Enabled)
	h.respondUpdate(w, r, j, err, "submission intake changed", map[string]interface{}{"accepting_submissions": req.Enabled})
}

// setActive handles PUT /journals/{id}/active
func (h *Handlers) setActive(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req ToggleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	j, err := h.service.SetActive(r.Context(), middleware.CurrentUser(r), id, req.Enabled)
	h.respondUpdate(w, r, j, err, "journal activation changed", map[string]interface{}{"active": req.Enabled})
}

func (h *Handlers) respondUpdate(w http.ResponseWriter, r *http.Request, j *Journal, err error, msg string, metadata map[string]interface{}) {
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	_ = audit.Record(r.Context(), audit.EventJournalUpdate, audit.ResourceJournal, strconv.FormatInt(j.ID, 10), msg, metadata)
	httputil.WriteSuccess(w, j)
}
