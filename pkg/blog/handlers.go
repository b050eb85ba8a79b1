package blog

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/folio/pkg/audit"
	"github.com/platinummonkey/folio/pkg/httputil"
	"github.com/platinummonkey/folio/pkg/middleware"
)

// Handlers provides HTTP handlers for the blog
type Handlers struct {
	service *Service
}

// NewHandlers creates new blog handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterPublicRoutes registers routes readable without a token. When a
// token is supplied the caller may also read their own drafts.
func (h *Handlers) RegisterPublicRoutes(router *mux.Router) {
	router.HandleFunc("/blog", h.listPublished).Methods("GET")
	router.HandleFunc("/blog/{id:[0-9]+}", h.get).Methods("GET")
}

// RegisterRoutes registers authenticated blog routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/blog", h.create).Methods("POST")
	router.HandleFunc("/blog/mine", h.listMine).Methods("GET")
	router.HandleFunc("/blog/search", h.search).Methods("GET")
	router.HandleFunc("/blog/{id:[0-9]+}", h.update).Methods("PATCH")
	router.HandleFunc("/blog/{id:[0-9]+}", h.delete).Methods("DELETE")
	router.HandleFunc("/blog/{id:[0-9]+}/publish", h.publish).Methods("POST")
	router.HandleFunc("/blog/{id:[0-9]+}/unpublish", h.unpublish).Methods("POST")
}

// listPublished handles GET /blog?tenant_id=
func (h *Handlers) listPublished(w http.ResponseWriter, r *http.Request) {
	var tenantID *int64
	if raw := r.URL.Query().Get("tenant_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httputil.WriteBadRequest(w, "invalid tenant_id")
			return
		}
		tenantID = &id
	}
	out, err := h.service.ListPublished(r.Context(), tenantID)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, out)
}

// get handles GET /blog/{id}
func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	p, err := h.service.Get(r.Context(), middleware.CurrentUser(r), id)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, p)
}

// create handles POST /blog
func (h *Handlers) create(w http.ResponseWriter, r *http.Request) {
	var req PostInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	p, err := h.service.Create(r.Context(), middleware.CurrentUser(r), req)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	if p.Status == StatusPublished {
		_ = audit.Record(r.Context(), audit.EventBlogPublish, audit.ResourceBlogPost, strconv.FormatInt(p.ID, 10), "post published", nil)
	}
	httputil.WriteCreated(w, p)
}

// listMine handles GET /blog/mine
func (h *Handlers) listMine(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListByAuthor(r.Context(), middleware.CurrentUser(r))
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, out)
}

// search handles GET /blog/search?q=
func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Search(r.Context(), middleware.CurrentUser(r), r.URL.Query().Get("q"))
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, out)
}

// update handles PATCH /blog/{id}
func (h *Handlers) update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req PostInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	p, err := h.service.Update(r.Context(), middleware.CurrentUser(r), id, req)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, p)
}

// delete handles DELETE /blog/{id}
func (h *Handlers) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), middleware.CurrentUser(r), id); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	_ = audit.Record(r.Context(), audit.EventBlogDelete, audit.ResourceBlogPost, strconv.FormatInt(id, 10), "post deleted", nil)
	httputil.WriteNoContent(w)
}

// publish handles POST /blog/{id}/publish
func (h *Handlers) publish(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	p, err := h.service.Publish(r.Context(), middleware.CurrentUser(r), id)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	_ = audit.Record(r.Context(), audit.EventBlogPublish, audit.ResourceBlogPost, strconv.FormatInt(id, 10), "post published", nil)
	httputil.WriteSuccess(w, p)
}

// unpublish handles POST /blog/{id}/unpublish
func (h *Handlers) unpublish(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	p, err := h.service.Unpublish(r.Context(), middleware.CurrentUser(r), id)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, p)
}
