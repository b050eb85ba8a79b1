package assistant

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/folio/pkg/httputil"
	"github.com/platinummonkey/folio/pkg/middleware"
)

// StartRequest is the body of POST /assistant/conversations
type StartRequest struct {
	Title string `json:"title"`
}

// SendRequest is the body of POST /assistant/conversations/{id}/messages
type SendRequest struct {
	Message string `json:"message"`
}

// Handlers provides HTTP handlers for the research assistant
type Handlers struct {
	service *Service
}

// NewHandlers creates new assistant handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers assistant routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/assistant/conversations", h.list).Methods("GET")
	router.HandleFunc("/assistant/conversations", h.start).Methods("POST")
	router.HandleFunc("/assistant/conversations/{id:[0-9]+}", h.get).Methods("GET")
	router.HandleFunc("/assistant/conversations/{id:[0-9]+}", h.delete).Methods("DELETE")
	router.HandleFunc("/assistant/conversations/{id:[0-9]+}/messages", h.send).Methods("POST")
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.List(r.Context(), middleware.CurrentUser(r))
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, out)
}

func (h *Handlers) start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if r.ContentLength != 0 && !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	c, err := h.service.Start(r.Context(), middleware.CurrentUser(r), req.Title)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteCreated(w, c)
}

func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	c, err := h.service.Get(r.Context(), middleware.CurrentUser(r), id)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, c)
}

func (h *Handlers) send(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req SendRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	out, err := h.service.Send(r.Context(), middleware.CurrentUser(r), id, req.Message)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteCreated(w, out)
}

func (h *Handlers) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), middleware.CurrentUser(r), id); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
