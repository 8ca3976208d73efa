package token

import (
	"context"
	"testing"
	"time"

	"github.com/existflow/postboard/internal/apperr"
	"github.com/existflow/postboard/internal/model"
	"github.com/existflow/postboard/internal/store/storetest"
	"github.com/existflow/postboard/internal/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	engine *Engine
	user   *model.User
	now    time.Time
}

func (f *fixture) clock() time.Time { return f.now }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := storetest.New(t)
	f := &fixture{now: time.UnixMilli(1_700_000_000_000)}

	users := user.NewService(st.Users(), user.WithClock(f.clock), user.WithBcryptCost(bcrypt.MinCost))
	u, err := users.Register(context.Background(), "alice1", "alice@example.com", "secret1")
	require.NoError(t, err)
	f.user = u

	f.engine = NewEngine(st.Tokens(), users, WithClock(f.clock))
	return f
}

func TestIssue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tok, err := f.engine.Issue(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Len(t, tok.ID, 64)
	assert.Equal(t, f.user.ID, tok.UserID)
	assert.Equal(t, "alice1", tok.Username)
	assert.Greater(t, tok.Expires, f.now.UnixMilli()+3_599_999)

	got, err := f.engine.GetByID(ctx, tok.ID)
	require.NoError(t, err)
	assert.Equal(t, tok, got)

	_, err = f.engine.Issue(ctx, "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestGetByIDAbsent(t *testing.T) {
	f := newFixture(t)

	got, err := f.engine.GetByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tok, err := f.engine.Issue(ctx, f.user.ID)
	require.NoError(t, err)

	assert.NoError(t, f.engine.Verify(ctx, tok.ID, "alice1"))

	err = f.engine.Verify(ctx, tok.ID, "mallory")
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "username must match")

	err = f.engine.Verify(ctx, "", "alice1")
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
	err = f.engine.Verify(ctx, tok.ID, "")
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

	// valid strictly before expiry, invalid at and after it
	f.now = time.UnixMilli(tok.Expires - 1)
	assert.NoError(t, f.engine.Verify(ctx, tok.ID, "alice1"))

	f.now = time.UnixMilli(tok.Expires)
	err = f.engine.Verify(ctx, tok.ID, "alice1")
	assert.True(t, apperr.Is(err, apperr.KindExpired))
}

func TestExtendLive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tok, err := f.engine.Issue(ctx, f.user.ID)
	require.NoError(t, err)

	f.now = f.now.Add(10 * time.Minute)
	extended, err := f.engine.Extend(ctx, tok.ID, 0)
	require.NoError(t, err)
	assert.Greater(t, extended.Expires, tok.Expires)
	assert.Equal(t, f.now.Add(DefaultWindow).UnixMilli(), extended.Expires)

	custom, err := f.engine.Extend(ctx, tok.ID, 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, f.now.Add(2*time.Hour).UnixMilli(), custom.Expires)
}

func TestExtendExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tok, err := f.engine.Issue(ctx, f.user.ID)
	require.NoError(t, err)

	f.now = time.UnixMilli(tok.Expires)
	_, err = f.engine.Extend(ctx, tok.ID, 0)
	assert.True(t, apperr.Is(err, apperr.KindExpired))

	got, err := f.engine.GetByID(ctx, tok.ID)
	require.NoError(t, err)
	assert.Equal(t, tok.Expires, got.Expires, "expired tokens are not revived")

	_, err = f.engine.Extend(ctx, "missing", 0)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tok, err := f.engine.Issue(ctx, f.user.ID)
	require.NoError(t, err)

	require.NoError(t, f.engine.Revoke(ctx, tok.ID))

	err = f.engine.Verify(ctx, tok.ID, "alice1")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	err = f.engine.Revoke(ctx, tok.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "revoking twice is reported")
}
