package auth_test

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
)

func TestTokenGenerator(t *testing.T) {
	tg := auth.NewTokenGenerator()
	token, hash, prefix, err := tg.GenerateToken()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(token, auth.TokenPrefix))
	assert.True(t, strings.HasPrefix(token, prefix))
	assert.Len(t, prefix, len(auth.TokenPrefix)+8)
	assert.Equal(t, hash, tg.HashToken(token))
	assert.Len(t, hash, 64)
	assert.NoError(t, tg.ValidateTokenFormat(token))

	other, _, _, err := tg.GenerateToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)

	for _, bad := range []string{"", "ghp_abc", auth.TokenPrefix, auth.TokenPrefix + "not base64!"} {
		assert.Error(t, tg.ValidateTokenFormat(bad), bad)
	}
}

func TestTokenStore(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	store := auth.NewTokenStore(db, clock)
	user := dbtest.User(t, db, nil, "token@example.org", auth.RoleUser)

	record, plaintext, err := store.Create(ctx, user.ID, "cli", time.Hour)
	require.NoError(t, err)
	require.NotNil(t, record.ExpiresAt)
	assert.NotContains(t, record.TokenHash, plaintext)

	got, err := store.Validate(ctx, plaintext)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.UserID)
	require.NotNil(t, got.LastUsedAt)

	_, err = store.Validate(ctx, auth.TokenPrefix+"AAAA")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
	_, err = store.Validate(ctx, "garbage")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	clock.Advance(time.Hour)
	_, err = store.Validate(ctx, plaintext)
	assert.ErrorIs(t, err, auth.ErrInvalidToken, "expired at exactly ttl")

	forever, foreverText, err := store.Create(ctx, user.ID, "ci", 0)
	require.NoError(t, err)
	assert.Nil(t, forever.ExpiresAt)

	clock.Advance(time.Minute)
	n, err := store.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.ErrorIs(t, store.Revoke(ctx, user.ID+1, forever.ID), auth.ErrInvalidToken)
	require.NoError(t, store.Revoke(ctx, user.ID, forever.ID))
	assert.ErrorIs(t, store.Revoke(ctx, user.ID, forever.ID), auth.ErrInvalidToken)
	_, err = store.Validate(ctx, foreverText)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
