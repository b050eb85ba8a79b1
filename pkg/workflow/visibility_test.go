package workflow

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/database/dbtest"
	"github.com/platinummonkey/folio/pkg/errs"
)

// readPath is one way of reading submissions. Every read entry point of the
// service is listed here so that isolation is asserted for each of them.
type readPath struct {
	name string
	read func(ctx context.Context, f *fixture, actor *auth.User, all []*Submission) ([]int64, error)
}

var readPaths = []readPath{
	{"list", func(ctx context.Context, f *fixture, actor *auth.User, _ []*Submission) ([]int64, error) {
		subs, err := f.svc.ListSubmissions(ctx, actor, Filter{})
		return ids(subs), err
	}},
	{"list by journal", func(ctx context.Context, f *fixture, actor *auth.User, _ []*Submission) ([]int64, error) {
		var out []int64
		for _, j := range []int64{f.journal1.ID, f.journal2.ID} {
			subs, err := f.svc.ListSubmissions(ctx, actor, Filter{JournalID: j})
			if err != nil {
				return nil, err
			}
			out = append(out, ids(subs)...)
		}
		return out, nil
	}},
	{"list by status", func(ctx context.Context, f *fixture, actor *auth.User, _ []*Submission) ([]int64, error) {
		var out []int64
		for _, st := range Statuses {
			subs, err := f.svc.ListSubmissions(ctx, actor, Filter{Status: st})
			if err != nil {
				return nil, err
			}
			out = append(out, ids(subs)...)
		}
		return out, nil
	}},
	{"list by author", func(ctx context.Context, f *fixture, actor *auth.User, all []*Submission) ([]int64, error) {
		seen := map[int64]bool{}
		var out []int64
		for _, s := range all {
			if seen[s.AuthorID] {
				continue
			}
			seen[s.AuthorID] = true
			subs, err := f.svc.ListSubmissions(ctx, actor, Filter{AuthorID: s.AuthorID})
			if err != nil {
				return nil, err
			}
			out = append(out, ids(subs)...)
		}
		return out, nil
	}},
	{"search", func(ctx context.Context, f *fixture, actor *auth.User, _ []*Submission) ([]int64, error) {
		subs, err := f.svc.SearchSubmissions(ctx, actor, "paper", "")
		return ids(subs), err
	}},
	{"get", func(ctx context.Context, f *fixture, actor *auth.User, all []*Submission) ([]int64, error) {
		var out []int64
		for _, s := range all {
			got, err := f.svc.GetSubmission(ctx, actor, s.ID)
			if errs.KindOf(err) == errs.NotFound {
				continue
			}
			if err != nil {
				return nil, err
			}
			out = append(out, got.ID)
		}
		return out, nil
	}},
	{"history", func(ctx context.Context, f *fixture, actor *auth.User, all []*Submission) ([]int64, error) {
		var out []int64
		for _, s := range all {
			h, err := f.svc.SubmissionHistory(ctx, actor, s.ID)
			if errs.KindOf(err) == errs.NotFound {
				continue
			}
			if err != nil {
				return nil, err
			}
			out = append(out, h[0].SubmissionID)
		}
		return out, nil
	}},
}

func sorted(v []int64) []int64 {
	out := append([]int64{}, v...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestSubmissionVisibility(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	var all []*Submission
	all = append(all, f.submit(t, f.author1, f.journal1, "Paper one"))
	all = append(all, f.submit(t, f.author1, f.journal1, "Paper two"))
	all = append(all, f.submit(t, f.reviewer1, f.journal1, "Paper by a reviewer"))
	all = append(all, f.submit(t, f.author2, f.journal2, "Paper three"))
	all = append(all, f.submit(t, f.editor2, f.journal2, "Paper by an editor"))
	_, err := f.svc.AssignReviewer(ctx, f.editor1, all[0].ID, f.reviewer1.ID)
	require.NoError(t, err)

	tenantOf := map[int64]int64{}
	for _, s := range all {
		tenantOf[s.ID] = s.TenantID
	}
	ownedBy := func(u *auth.User) []int64 {
		var out []int64
		for _, s := range all {
			if s.AuthorID == u.ID {
				out = append(out, s.ID)
			}
		}
		return sorted(out)
	}
	inTenant := func(tenant int64) []int64 {
		var out []int64
		for _, s := range all {
			if s.TenantID == tenant {
				out = append(out, s.ID)
			}
		}
		return sorted(out)
	}

	homeless := dbtest.User(t, f.db, nil, "floating@example.com", auth.RoleEditor)

	expected := []struct {
		actor *auth.User
		want  []int64
	}{
		{f.author1, ownedBy(f.author1)},
		{f.author2, ownedBy(f.author2)},
		{f.reviewer1, ownedBy(f.reviewer1)},
		{f.reviewer2, nil},
		{f.editor1, inTenant(f.tenant1)},
		{f.admin1, inTenant(f.tenant1)},
		{f.editor2, inTenant(f.tenant2)},
		{homeless, nil},
		{nil, nil},
	}

	for _, path := range readPaths {
		for _, e := range expected {
			name := "anonymous"
			if e.actor != nil {
				name = e.actor.Email
			}
			t.Run(path.name+"/"+name, func(t *testing.T) {
				got, err := path.read(ctx, f, e.actor, all)
				require.NoError(t, err)
				got = sorted(got)
				if path.name == "list by status" || path.name == "list by journal" || path.name == "list by author" {
					got = dedupe(got)
				}
				assert.Equal(t, sorted(e.want), got)

				// Tenant isolation: nothing from another tenant leaks.
				if e.actor != nil && e.actor.TenantID != nil {
					for _, id := range got {
						assert.Equal(t, *e.actor.TenantID, tenantOf[id])
					}
				}
			})
		}
	}
}

func dedupe(v []int64) []int64 {
	out := []int64{}
	for i, x := range v {
		if i == 0 || v[i-1] != x {
			out = append(out, x)
		}
	}
	return out
}

func TestReviewVisibility(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	s1 := f.submit(t, f.author1, f.journal1, "Paper one")
	s2 := f.submit(t, f.author2, f.journal2, "Paper two")
	r1, err := f.svc.AssignReviewer(ctx, f.editor1, s1.ID, f.reviewer1.ID)
	require.NoError(t, err)
	r2, err := f.svc.AssignReviewer(ctx, f.editor1, s1.ID, f.admin1.ID)
	require.NoError(t, err)
	r3, err := f.svc.AssignReviewer(ctx, f.editor2, s2.ID, f.reviewer2.ID)
	require.NoError(t, err)

	reviewIDs := func(actor *auth.User, filter ReviewFilter) []int64 {
		rs, err := f.svc.ListReviews(ctx, actor, filter)
		require.NoError(t, err)
		out := []int64{}
		for _, r := range rs {
			out = append(out, r.ID)
		}
		return sorted(out)
	}

	assert.Equal(t, []int64{r1.ID}, reviewIDs(f.reviewer1, ReviewFilter{}))
	assert.Equal(t, sorted([]int64{r1.ID, r2.ID}), reviewIDs(f.editor1, ReviewFilter{}))
	assert.Equal(t, []int64{r3.ID}, reviewIDs(f.editor2, ReviewFilter{}))
	assert.Equal(t, []int64{}, reviewIDs(f.author1, ReviewFilter{}))
	assert.Equal(t, []int64{}, reviewIDs(f.editor2, ReviewFilter{SubmissionID: s1.ID}))
	assert.Equal(t, []int64{r1.ID}, reviewIDs(f.reviewer1, ReviewFilter{Status: ReviewPending}))
	assert.Equal(t, []int64{}, reviewIDs(f.reviewer1, ReviewFilter{Status: ReviewCompleted}))

	_, err = f.svc.GetReview(ctx, f.reviewer2, r1.ID)
	assert.Equal(t, errs.NotFound, errs.KindOf(err))
	_, err = f.svc.GetReview(ctx, f.editor2, r1.ID)
	assert.Equal(t, errs.NotFound, errs.KindOf(err))
	_, err = f.svc.GetReview(ctx, f.author1, r1.ID)
	assert.Equal(t, errs.NotFound, errs.KindOf(err))
	got, err := f.svc.GetReview(ctx, f.admin1, r1.ID)
	require.NoError(t, err)
	assert.Equal(t, f.tenant1, got.TenantID)
}

func TestListSubmissionsPaging(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	for i := 0; i < 5; i++ {
		f.submit(t, f.author1, f.journal1, "Paper")
		f.clock.Advance(1)
	}

	page1, err := f.svc.ListSubmissions(ctx, f.editor1, Filter{Limit: 2})
	require.NoError(t, err)
	page2, err := f.svc.ListSubmissions(ctx, f.editor1, Filter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.Len(t, page2, 2)
	assert.Greater(t, page1[0].ID, page1[1].ID)
	assert.Greater(t, page1[1].ID, page2[0].ID)

	_, err = f.svc.ListSubmissions(ctx, f.editor1, Filter{Status: "draft"})
	assert.Equal(t, errs.Validation, errs.KindOf(err))

	found, err := f.svc.SearchSubmissions(ctx, f.editor1, "PAPER", StatusAccepted)
	require.NoError(t, err)
	assert.Empty(t, found)
	found, err = f.svc.SearchSubmissions(ctx, f.editor1, "abstract", StatusSubmitted)
	require.NoError(t, err)
	assert.Len(t, found, 5)
}
