package workflow

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/folio/pkg/audit"
	"github.com/platinummonkey/folio/pkg/httputil"
	"github.com/platinummonkey/folio/pkg/middleware"
)

// Handlers provides HTTP handlers for the editorial workflow
type Handlers struct {
	service *Service
}

// NewHandlers creates new workflow handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers workflow routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/submissions", h.listSubmissions).Methods("GET")
	router.HandleFunc("/submissions", h.createSubmission).Methods("POST")
	router.HandleFunc("/submissions/search", h.searchSubmissions).Methods("GET")
	router.HandleFunc("/submissions/{id:[0-9]+}", h.getSubmission).Methods("GET")
	router.HandleFunc("/submissions/{id:[0-9]+}/history", h.history).Methods("GET")
	router.HandleFunc("/submissions/{id:[0-9]+}/reviewers", h.assignReviewer).Methods("POST")
	router.HandleFunc("/submissions/{id:[0-9]+}/status", h.changeStatus).Methods("PUT")
	router.HandleFunc("/submissions/{id:[0-9]+}/manuscript", h.uploadManuscript).Methods("PUT")
	router.HandleFunc("/submissions/{id:[0-9]+}/manuscript", h.downloadManuscript).Methods("GET")
	router.HandleFunc("/reviews", h.listReviews).Methods("GET")
	router.HandleFunc("/reviews/{id:[0-9]+}", h.getReview).Methods("GET")
	router.HandleFunc("/reviews/{id:[0-9]+}/submit", h.submitReview).Methods("POST")
	router.HandleFunc("/dashboard", h.dashboard).Methods("GET")
	router.HandleFunc("/stats/me", h.authorStats).Methods("GET")
}

// CreateSubmissionRequest is the body of POST /submissions.
type CreateSubmissionRequest struct {
	JournalID int64  `json:"journal_id"`
	Title     string `json:"title"`
	Abstract  string `json:"abstract"`
}

// AssignReviewerRequest is the body of POST /submissions/{id}/reviewers.
type AssignReviewerRequest struct {
	ReviewerID int64 `json:"reviewer_id"`
}

// ChangeStatusRequest is the body of PUT /submissions/{id}/status.
type ChangeStatusRequest struct {
	Status Status `json:"status"`
	Reason string `json:"reason"`
}

func id(w http.ResponseWriter, r *http.Request) (int64, bool) {
	return httputil.ParsePathInt64OrError(w, r, "id")
}

// listSubmissions handles GET /submissions?journal_id=&status=&author_id=&limit=&offset=
func (h *Handlers) listSubmissions(w http.ResponseWriter, r *http.Request) {
	var (
		f   Filter
		err error
	)
	if f.JournalID, err = httputil.ParseQueryInt64(r, "journal_id", 0); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if f.AuthorID, err = httputil.ParseQueryInt64(r, "author_id", 0); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if f.Limit, err = httputil.ParseQueryInt(r, "limit", defaultListLimit); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if f.Offset, err = httputil.ParseQueryInt(r, "offset", 0); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	f.Status = Status(r.URL.Query().Get("status"))

	out, err := h.service.ListSubmissions(r.Context(), middleware.CurrentUser(r), f)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, out)
}

// searchSubmissions handles GET /submissions/search?q=&status=
func (h *Handlers) searchSubmissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.service.SearchSubmissions(r.Context(), middleware.CurrentUser(r), q.Get("q"), Status(q.Get("status")))
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, out)
}

// createSubmission handles POST /submissions
func (h *Handlers) createSubmission(w http.ResponseWriter, r *http.Request) {
	var req CreateSubmissionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	sub, err := h.service.CreateSubmission(r.Context(), middleware.CurrentUser(r), req.JournalID, req.Title, req.Abstract, "")
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	_ = audit.Record(r.Context(), audit.EventSubmissionCreate, audit.ResourceSubmission, strconv.FormatInt(sub.ID, 10),
		"submission created", map[string]interface{}{"journal_id": sub.JournalID})
	httputil.WriteCreated(w, sub)
}

// getSubmission handles GET /submissions/{id}
func (h *Handlers) getSubmission(w http.ResponseWriter, r *http.Request) {
	subID, ok := id(w, r)
	if !ok {
		return
	}
	sub, err := h.service.GetSubmission(r.Context(), middleware.CurrentUser(r), subID)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, sub)
}

// history handles GET /submissions/{id}/history
func (h *Handlers) history(w http.ResponseWriter, r *http.Request) {
	subID, ok := id(w, r)
	if !ok {
		return
	}
	out, err := h.service.SubmissionHistory(r.Context(), middleware.CurrentUser(r), subID)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, out)
}

// assignReviewer handles POST /submissions/{id}/reviewers
func (h *Handlers) assignReviewer(w http.ResponseWriter, r *http.Request) {
	subID, ok := id(w, r)
	if !ok {
		return
	}
	var req AssignReviewerRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	review, err := h.service.AssignReviewer(r.Context(), middleware.CurrentUser(r), subID, req.ReviewerID)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	_ = audit.Record(r.Context(), audit.EventReviewerAssign, audit.ResourceSubmission, strconv.FormatInt(subID, 10),
		"reviewer assigned", map[string]interface{}{"review_id": review.ID, "reviewer_id": review.ReviewerID})
	httputil.WriteCreated(w, review)
}

// changeStatus handles PUT /submissions/{id}/status
func (h *Handlers) changeStatus(w http.ResponseWriter, r *http.Request) {
	subID, ok := id(w, r)
	if !ok {
		return
	}
	var req ChangeStatusRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	sub, err := h.service.ChangeStatus(r.Context(), middleware.CurrentUser(r), subID, req.Status, req.Reason)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	_ = audit.Record(r.Context(), audit.EventStatusChange, audit.ResourceSubmission, strconv.FormatInt(subID, 10),
		"status changed", map[string]interface{}{"status": string(sub.Status)})
	httputil.WriteSuccess(w, sub)
}

// uploadManuscript handles PUT /submissions/{id}/manuscript (multipart, field "file")
func (h *Handlers) uploadManuscript(w http.ResponseWriter, r *http.Request) {
	subID, ok := id(w, r)
	if !ok {
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteBadRequest(w, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	sub, err := h.service.AttachManuscript(r.Context(), middleware.CurrentUser(r), subID, header.Filename, header.Size, file)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = audit.Record(r.Context(), audit.EventManuscriptUpload, audit.ResourceManuscript, strconv.FormatInt(subID, 10),
		"manuscript uploaded", map[string]interface{}{"size": sub.ManuscriptSize})
	httputil.WriteSuccess(w, sub)
}

// downloadManuscript handles GET /submissions/{id}/manuscript
func (h *Handlers) downloadManuscript(w http.ResponseWriter, r *http.Request) {
	subID, ok := id(w, r)
	if !ok {
		return
	}
	rc, name, err := h.service.OpenManuscript(r.Context(), middleware.CurrentUser(r), subID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer rc.Close()

	_ = audit.Record(r.Context(), audit.EventManuscriptDownload, audit.ResourceManuscript, strconv.FormatInt(subID, 10), "manuscript downloaded", nil)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrNoFileStore) {
		httputil.WriteErrorMessage(w, http.StatusNotImplemented, err.Error())
		return
	}
	httputil.WriteDomainError(w, r, err)
}

// listReviews handles GET /reviews?submission_id=&status=
func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	subID, err := httputil.ParseQueryInt64(r, "submission_id", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	f := ReviewFilter{SubmissionID: subID, Status: ReviewStatus(r.URL.Query().Get("status"))}
	out, err := h.service.ListReviews(r.Context(), middleware.CurrentUser(r), f)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, out)
}

// getReview handles GET /reviews/{id}
func (h *Handlers) getReview(w http.ResponseWriter, r *http.Request) {
	reviewID, ok := id(w, r)
	if !ok {
		return
	}
	review, err := h.service.GetReview(r.Context(), middleware.CurrentUser(r), reviewID)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, review)
}

// submitReview handles POST /reviews/{id}/submit
func (h *Handlers) submitReview(w http.ResponseWriter, r *http.Request) {
	reviewID, ok := id(w, r)
	if !ok {
		return
	}
	var req ReviewInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	review, err := h.service.SubmitReview(r.Context(), middleware.CurrentUser(r), reviewID, req)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	_ = audit.Record(r.Context(), audit.EventReviewSubmit, audit.ResourceReview, strconv.FormatInt(reviewID, 10),
		"review submitted", map[string]interface{}{"recommendation": string(review.Recommendation)})
	httputil.WriteSuccess(w, review)
}

// dashboard handles GET /dashboard
func (h *Handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Dashboard(r.Context(), middleware.CurrentUser(r))
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, d)
}

// authorStats handles GET /stats/me
func (h *Handlers) authorStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.AuthorStats(r.Context(), middleware.CurrentUser(r))
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, st)
}
