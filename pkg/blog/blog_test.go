package blog

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/database/dbtest"
	"github.com/platinummonkey/folio/pkg/errs"
)

type fixture struct {
	svc              *Service
	clock            *clockwork.FakeClock
	tenant1, tenant2 int64
	author, reader   *auth.User
	editor, outsider *auth.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	f := &fixture{svc: NewService(db, clock), clock: clock}
	f.tenant1 = dbtest.Tenant(t, db, "one")
	f.tenant2 = dbtest.Tenant(t, db, "two")
	f.author = dbtest.User(t, db, &f.tenant1, "author@one.org", auth.RoleAuthor)
	f.reader = dbtest.User(t, db, &f.tenant1, "reader@one.org", auth.RoleUser)
	f.editor = dbtest.User(t, db, &f.tenant1, "editor@one.org", auth.RoleEditor)
	f.outsider = dbtest.User(t, db, &f.tenant2, "editor@two.org", auth.RoleEditor)
	return f
}

func TestMakeExcerpt(t *testing.T) {
	assert.Equal(t, "short", MakeExcerpt("short"))
	exact := strings.Repeat("a", ExcerptLength)
	assert.Equal(t, exact, MakeExcerpt(exact))
	long := strings.Repeat("é", ExcerptLength+1)
	assert.Equal(t, strings.Repeat("é", ExcerptLength)+"...", MakeExcerpt(long))
}

func TestCreatePost(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.Create(ctx, f.reader, PostInput{Title: "T", Content: "C"})
	assert.Equal(t, errs.PermissionDenied, errs.KindOf(err))

	_, err = f.svc.Create(ctx, f.author, PostInput{Title: " ", Content: "C"})
	assert.Equal(t, errs.Validation, errs.KindOf(err))
	_, err = f.svc.Create(ctx, f.author, PostInput{Title: "T"})
	assert.Equal(t, errs.Validation, errs.KindOf(err))

	draft, err := f.svc.Create(ctx, f.author, PostInput{Title: "Draft", Content: "Body"})
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, draft.Status)
	assert.Equal(t, "Body", draft.Excerpt)
	assert.Nil(t, draft.PublishedAt)
	require.NotNil(t, draft.TenantID)
	assert.Equal(t, f.tenant1, *draft.TenantID)

	pub, err := f.svc.Create(ctx, f.editor, PostInput{Title: "News", Content: "Body", Excerpt: "Teaser", Publish: true})
	require.NoError(t, err)
	assert.Equal(t, StatusPublished, pub.Status)
	assert.Equal(t, "Teaser", pub.Excerpt)
	require.NotNil(t, pub.PublishedAt)
}

func TestPostVisibilityAndViews(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	draft, err := f.svc.Create(ctx, f.author, PostInput{Title: "Draft", Content: "Body"})
	require.NoError(t, err)

	for _, u := range []*auth.User{f.reader, f.outsider, nil} {
		_, err = f.svc.Get(ctx, u, draft.ID)
		assert.Equal(t, errs.NotFound, errs.KindOf(err))
	}
	for _, u := range []*auth.User{f.author, f.editor} {
		got, err := f.svc.Get(ctx, u, draft.ID)
		require.NoError(t, err)
		assert.Zero(t, got.ViewsCount)
	}

	_, err = f.svc.Publish(ctx, f.author, draft.ID)
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, nil, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ViewsCount)
	got, err = f.svc.Get(ctx, f.outsider, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ViewsCount)

	_, err = f.svc.Get(ctx, nil, 9999)
	assert.Equal(t, errs.NotFound, errs.KindOf(err))
}

func TestManagePost(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p, err := f.svc.Create(ctx, f.author, PostInput{Title: "Draft", Content: "Body"})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, f.reader, p.ID, PostInput{Title: "Hijack", Content: "x"})
	assert.Equal(t, errs.PermissionDenied, errs.KindOf(err))
	_, err = f.svc.Update(ctx, f.outsider, p.ID, PostInput{Title: "Hijack", Content: "x"})
	assert.Equal(t, errs.PermissionDenied, errs.KindOf(err))

	f.clock.Advance(time.Minute)
	updated, err := f.svc.Update(ctx, f.editor, p.ID, PostInput{Title: "Edited", Content: strings.Repeat("z", 300)})
	require.NoError(t, err)
	assert.Equal(t, "Edited", updated.Title)
	assert.Equal(t, strings.Repeat("z", 200)+"...", updated.Excerpt)

	published, err := f.svc.Publish(ctx, f.author, p.ID)
	require.NoError(t, err)
	first := *published.PublishedAt

	f.clock.Advance(time.Hour)
	again, err := f.svc.Publish(ctx, f.author, p.ID)
	require.NoError(t, err)
	assert.True(t, again.PublishedAt.Equal(first))

	unpublished, err := f.svc.Unpublish(ctx, f.editor, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, unpublished.Status)

	assert.Equal(t, errs.PermissionDenied, errs.KindOf(f.svc.Delete(ctx, f.outsider, p.ID)))
	require.NoError(t, f.svc.Delete(ctx, f.author, p.ID))
	assert.Equal(t, errs.NotFound, errs.KindOf(f.svc.Delete(ctx, f.author, p.ID)))
}

func TestListAndSearch(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.Create(ctx, f.author, PostInput{Title: "Peer review tips", Content: "Be kind", Publish: true})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.svc.Create(ctx, f.author, PostInput{Title: "Unfinished review", Content: "todo"})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.outsider, PostInput{Title: "Review season", Content: "Other tenant", Publish: true})
	require.NoError(t, err)

	all, err := f.svc.ListPublished(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "Review season", all[0].Title)

	one, err := f.svc.ListPublished(ctx, &f.tenant1)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "Peer review tips", one[0].Title)

	mine, err := f.svc.ListByAuthor(ctx, f.author)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	assert.Equal(t, "Unfinished review", mine[0].Title)

	found, err := f.svc.Search(ctx, f.reader, "REVIEW")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Peer review tips", found[0].Title)

	found, err = f.svc.Search(ctx, nil, "review")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = f.svc.Search(ctx, nil, "%")
	require.NoError(t, err)
	assert.Empty(t, found)
	found, err = f.svc.Search(ctx, nil, "peer_review")
	require.NoError(t, err)
	assert.Empty(t, found)

	_, err = f.svc.ListByAuthor(ctx, nil)
	assert.Equal(t, errs.PermissionDenied, errs.KindOf(err))
}
