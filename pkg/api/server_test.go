package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/folio/pkg/assistant"
	"github.com/platinummonkey/folio/pkg/audit"
	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/blog"
	"github.com/platinummonkey/folio/pkg/database/dbtest"
	"github.com/platinummonkey/folio/pkg/identity"
	"github.com/platinummonkey/folio/pkg/journals"
	"github.com/platinummonkey/folio/pkg/observability"
	"github.com/platinummonkey/folio/pkg/tenants"
	"github.com/platinummonkey/folio/pkg/workflow"
)

type testServer struct {
	db     *sql.DB
	server *Server
	ids    *identity.Service
}

func newTestServer(t *testing.T, configure ...func(*Options)) *testServer {
	t.Helper()
	db := dbtest.New(t)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	ids := identity.NewService(db, &auth.BcryptHasher{Cost: bcrypt.MinCost})
	auditLog, err := audit.NewDBLogger(db)
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	opts := Options{
		DB:           db,
		Logger:       logger,
		Audit:        auditLog,
		AuditSearch:  auditLog,
		Metrics:      observability.NewMetrics(registry),
		Registry:     registry,
		Health:       observability.NewHealthChecker(db, nil, nil, "test"),
		RateLimitRPM: 1000,
	}
	for _, fn := range configure {
		fn(&opts)
	}
	s := NewServer(Services{
		Tokens:    auth.NewTokenStore(db, nil),
		Identity:  ids,
		Tenants:   tenants.NewService(db, nil),
		Journals:  journals.NewService(db, nil),
		Workflow:  workflow.NewService(db),
		Blog:      blog.NewService(db, nil),
		Assistant: assistant.NewService(db, nil, nil),
	}, opts)
	return &testServer{db: db, server: s, ids: ids}
}

func (ts *testServer) user(t *testing.T, tenantID *int64, email string, roles ...auth.RoleName) *auth.User {
	t.Helper()
	u := dbtest.User(t, ts.db, tenantID, email, roles...)
	require.NoError(t, ts.ids.SetPassword(context.Background(), u.ID, "secret"))
	return u
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) login(t *testing.T, email string) string {
	t.Helper()
	rec := ts.do(t, "POST", "/auth/tokens", "", map[string]string{"email": email, "password": "secret"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp identity.CreateTokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestServerSubmissionFlow(t *testing.T) {
	ts := newTestServer(t)
	tenant := dbtest.Tenant(t, ts.db, "one")
	ts.user(t, &tenant, "editor@one.org", auth.RoleEditor)
	ts.user(t, &tenant, "author@one.org", auth.RoleAuthor)

	editor := ts.login(t, "editor@one.org")
	author := ts.login(t, "author@one.org")

	rec := ts.do(t, "POST", "/journals", editor, journals.JournalRequest{Name: "Annals"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	j := decode[journals.Journal](t, rec)

	rec = ts.do(t, "POST", "/submissions", author, workflow.CreateSubmissionRequest{JournalID: j.ID, Title: "On Things", Abstract: "About things"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sub := decode[workflow.Submission](t, rec)
	assert.Equal(t, workflow.StatusSubmitted, sub.Status)

	// Authors cannot decide their own submissions; the denial is audited.
	rec = ts.do(t, "PUT", fmt.Sprintf("/submissions/%d/status", sub.ID), author, workflow.ChangeStatusRequest{Status: workflow.StatusAccepted})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var denied int
	require.NoError(t, ts.db.QueryRow(`SELECT COUNT(*) FROM audit_logs WHERE event_type = $1`, string(audit.EventAccessDenied)).Scan(&denied))
	assert.Equal(t, 1, denied)

	rec = ts.do(t, "PUT", fmt.Sprintf("/submissions/%d/status", sub.ID), editor, workflow.ChangeStatusRequest{Status: workflow.StatusRejected, Reason: "out of scope"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, workflow.StatusRejected, decode[workflow.Submission](t, rec).Status)

	rec = ts.do(t, "GET", fmt.Sprintf("/submissions/%d/history", sub.ID), author, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]workflow.HistoryEntry](t, rec), 2)
}

func TestServerAuthentication(t *testing.T) {
	ts := newTestServer(t)
	tenant := dbtest.Tenant(t, ts.db, "one")
	ts.user(t, &tenant, "user@one.org", auth.RoleUser)

	rec := ts.do(t, "GET", "/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, "GET", "/me", "folio_not-a-real-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, "POST", "/auth/tokens", "", map[string]string{"email": "user@one.org", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := ts.login(t, "user@one.org")
	rec = ts.do(t, "GET", "/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user@one.org", decode[identity.MeResponse](t, rec).Email)

	// Deactivated tenants lock their users out.
	_, err := ts.db.Exec(`UPDATE tenants SET active = $1 WHERE id = $2`, false, tenant)
	require.NoError(t, err)
	rec = ts.do(t, "GET", "/me", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServerPublicRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "GET", "/blog", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Write routes on the same path still require a token.
	rec = ts.do(t, "POST", "/blog", "", blog.PostInput{Title: "t", Content: "c"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, "GET", "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, "GET", "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "folio_http_requests_total")
}

func TestServerAssistantIsPrivate(t *testing.T) {
	ts := newTestServer(t)
	tenant := dbtest.Tenant(t, ts.db, "one")
	ts.user(t, &tenant, "a@one.org", auth.RoleAuthor)
	ts.user(t, &tenant, "b@one.org", auth.RoleAuthor)
	a := ts.login(t, "a@one.org")
	b := ts.login(t, "b@one.org")

	rec := ts.do(t, "POST", "/assistant/conversations", a, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	conv := decode[assistant.Conversation](t, rec)

	rec = ts.do(t, "POST", fmt.Sprintf("/assistant/conversations/%d/messages", conv.ID), a, assistant.SendRequest{Message: "How should I structure my methodology?"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, "GET", fmt.Sprintf("/assistant/conversations/%d", conv.ID), b, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerLoginIsRateLimited(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ts := newTestServer(t, func(o *Options) { o.Clock = clock })
	tenant := dbtest.Tenant(t, ts.db, "one")
	ts.user(t, &tenant, "user@one.org", auth.RoleUser)

	guess := map[string]string{"email": "user@one.org", "password": "wrong"}
	limited := false
	for i := 0; i < 200; i++ {
		rec := ts.do(t, "POST", "/auth/tokens", "", guess)
		if rec.Code == http.StatusTooManyRequests {
			assert.NotEmpty(t, rec.Header().Get("Retry-After"))
			limited = true
			break
		}
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	require.True(t, limited, "password guessing was never throttled")

	// Other clients keep their own budget.
	data, _ := json.Marshal(map[string]string{"email": "user@one.org", "password": "secret"})
	req := httptest.NewRequest("POST", "/auth/tokens", bytes.NewReader(data))
	req.RemoteAddr = "198.51.100.7:4000"
	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	clock.Advance(time.Minute)
	ts.login(t, "user@one.org")
}

func TestServerSelfService(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "POST", "/auth/onboard", "", identity.OnboardRequest{
		TenantName: "Acme Press", Email: "owner@acme.org", Password: "sixsix", Name: "Owner",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, "POST", "/auth/register", "", identity.RegisterRequest{Email: "new@example.com", Password: "sixsix", Name: "New"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, "POST", "/auth/tokens", "", map[string]string{"email": "new@example.com", "password": "sixsix"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	token := decode[identity.CreateTokenResponse](t, rec).Token

	rec = ts.do(t, "PATCH", "/me", token, identity.UpdateProfileRequest{Name: "Renamed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, "PUT", "/me/password", token, identity.ChangePasswordRequest{CurrentPassword: "sixsix", NewPassword: "sevenseven"})
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = ts.do(t, "GET", "/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Renamed", decode[identity.MeResponse](t, rec).Name)
}
