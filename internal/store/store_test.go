package store_test

import (
	"context"
	"testing"

	"github.com/existflow/postboard/internal/model"
	"github.com/existflow/postboard/internal/store"
	"github.com/existflow/postboard/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUser(t *testing.T, st *store.Store, id, username string) *model.User {
	t.Helper()
	u := &model.User{ID: id, Username: username, Email: username + "@example.com", PasswordHash: "x", Created: 1}
	require.NoError(t, st.Users().Create(context.Background(), u))
	return u
}

func ptr(s string) *string { return &s }

func TestUsers(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()
	users := st.Users()

	u := seedUser(t, st, "u1", "alice1")

	got, err := users.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, u, got)

	got, err = users.GetByUsername(ctx, "alice1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	_, err = users.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	dup := &model.User{ID: "u2", Username: "alice1", Email: "other@example.com", PasswordHash: "x"}
	assert.ErrorIs(t, users.Create(ctx, dup), store.ErrConflict)

	dup = &model.User{ID: "u3", Username: "bobbyb", Email: "alice1@example.com", PasswordHash: "x"}
	assert.ErrorIs(t, users.Create(ctx, dup), store.ErrConflict)

	require.NoError(t, users.UpdatePassword(ctx, "u1", "y"))
	got, err = users.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "y", got.PasswordHash)

	assert.ErrorIs(t, users.UpdatePassword(ctx, "missing", "y"), store.ErrNotFound)
}

func TestTokens(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()
	tokens := st.Tokens()
	seedUser(t, st, "u1", "alice1")

	tok := &model.Token{ID: "t1", UserID: "u1", Username: "alice1", Expires: 1000}
	require.NoError(t, tokens.Create(ctx, tok))

	got, err := tokens.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, tok, got)

	_, err = tokens.GetByIDAndUsername(ctx, "t1", "mallory")
	assert.ErrorIs(t, err, store.ErrNotFound)

	ok, err := tokens.ExtendIfLive(ctx, "t1", 5000, 999)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tokens.ExtendIfLive(ctx, "t1", 9000, 5000)
	require.NoError(t, err)
	assert.False(t, ok, "expires == now is not live")

	got, err = tokens.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), got.Expires)

	require.NoError(t, tokens.Delete(ctx, "t1"))
	assert.ErrorIs(t, tokens.Delete(ctx, "t1"), store.ErrNotFound)
}

func TestPosts(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()
	posts := st.Posts()
	seedUser(t, st, "u1", "alice1")

	root := &model.PostRecord{ID: "p1", Author: "u1", Title: "root", Content: "c", Created: 10, Modified: 10}
	require.NoError(t, posts.Create(ctx, root))

	// inserted out of order to check ordering by created then id
	for _, rec := range []*model.PostRecord{
		{ID: "c3", Author: "u1", Parent: ptr("p1"), Title: "t", Content: "c", Created: 30, Modified: 30},
		{ID: "c2", Author: "u1", Parent: ptr("p1"), Title: "t", Content: "c", Created: 20, Modified: 20},
		{ID: "c1", Author: "u1", Parent: ptr("p1"), Title: "t", Content: "c", Created: 20, Modified: 20},
	} {
		require.NoError(t, posts.Create(ctx, rec))
	}

	orphan := &model.PostRecord{ID: "x", Author: "u1", Parent: ptr("nope"), Title: "t", Content: "c"}
	assert.ErrorIs(t, posts.Create(ctx, orphan), store.ErrForeignKey)

	children, err := posts.ListChildren(ctx, "p1", 2)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "c1", children[0].ID)
	assert.Equal(t, "c2", children[1].ID)

	roots, err := posts.ListRoots(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Nil(t, roots[0].Parent)

	n, err := posts.CountChildren(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, posts.Update(ctx, "p1", ptr("new"), nil, 99))
	got, err := posts.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Title)
	assert.Equal(t, "c", got.Content)
	assert.Equal(t, int64(10), got.Created)
	assert.Equal(t, int64(99), got.Modified)

	assert.ErrorIs(t, posts.Update(ctx, "missing", ptr("x"), nil, 1), store.ErrNotFound)

	assert.ErrorIs(t, posts.Delete(ctx, "p1"), store.ErrForeignKey, "replies still reference p1")

	detached, err := posts.DetachChildren(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), detached)
	require.NoError(t, posts.Delete(ctx, "p1"))

	_, err = posts.GetByID(ctx, "p1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestWithTxRollsBack(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()
	seedUser(t, st, "u1", "alice1")

	err := st.WithTx(ctx, func(ctx context.Context, tx store.DBTX) error {
		rec := &model.PostRecord{ID: "p1", Author: "u1", Title: "t", Content: "c"}
		require.NoError(t, store.NewPostRepository(tx).Create(ctx, rec))
		return store.ErrConflict
	})
	require.ErrorIs(t, err, store.ErrConflict)

	_, err = st.Posts().GetByID(ctx, "p1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
