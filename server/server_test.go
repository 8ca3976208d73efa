package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/existflow/postboard/internal/config"
	"github.com/existflow/postboard/internal/model"
	"github.com/existflow/postboard/internal/store"
	"github.com/existflow/postboard/internal/store/storetest"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	*Server
	now time.Time
}

func (ts *testServer) clock() time.Time { return ts.now }

func newTestServer(t *testing.T, st *store.Store, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	cfg := config.DefaultConfig()
	for _, m := range mutate {
		m(cfg)
	}

	ts := &testServer{now: time.UnixMilli(1_700_000_000_000)}
	s, err := NewWithStore(cfg, st, WithClock(ts.clock), WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)
	ts.Server = s
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(TokenHeader, token)
	}
	rec := httptest.NewRecorder()
	ts.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["error"]
}

// register creates a user and logs them in
func (ts *testServer) register(t *testing.T, username string) (*model.User, *model.Token) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/user", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	u := decode[model.User](t, rec)

	rec = ts.do(t, http.MethodPost, "/token", "", map[string]string{"username": username, "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tok := decode[model.Token](t, rec)
	return &u, &tok
}

func newMockServer(t *testing.T) (*testServer, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return newTestServer(t, store.New(sqlx.NewDb(db, "postgres"))), mock
}

func TestGateMissingTokenNeverReachesHandler(t *testing.T) {
	ts, mock := newMockServer(t)

	// any query would fail against the mock and turn into a 500
	rec := ts.do(t, http.MethodGet, "/user/u1", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "token required", errorOf(t, rec))
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.authRejections.WithLabelValues("missing")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGateStorageFailure(t *testing.T) {
	ts, mock := newMockServer(t)
	mock.ExpectQuery(`SELECT .* FROM tokens WHERE id = \$1`).WithArgs("abc").
		WillReturnError(errors.New("connection refused"))

	rec := ts.do(t, http.MethodGet, "/posts", "abc", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", errorOf(t, rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGateRejections(t *testing.T) {
	ts := newTestServer(t, storetest.New(t))
	u, tok := ts.register(t, "alice1")

	rec := ts.do(t, http.MethodGet, "/user/"+u.ID, "not-a-token", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodGet, "/user/"+u.ID, tok.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	ts.now = time.UnixMilli(tok.Expires)
	rec = ts.do(t, http.MethodGet, "/user/"+u.ID, tok.ID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "token expired", errorOf(t, rec))
}

func TestUsers(t *testing.T) {
	ts := newTestServer(t, storetest.New(t))
	u, tok := ts.register(t, "alice1")

	rec := ts.do(t, http.MethodPost, "/user", "", map[string]string{
		"username": "alice1", "email": "other@example.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "username or email already exists", errorOf(t, rec))

	rec = ts.do(t, http.MethodPost, "/user", "", map[string]string{"username": "bob"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/user/"+u.ID, tok.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
	got := decode[model.User](t, rec)
	assert.Equal(t, "alice1", got.Username)

	rec = ts.do(t, http.MethodGet, "/user/missing", tok.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t, storetest.New(t))
	ts.register(t, "alice1")

	rec := ts.do(t, http.MethodPost, "/token", "", map[string]string{"username": "alice1", "password": "wrong-pass"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/token", "", map[string]string{"username": "alice1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/token", "", map[string]string{"username": "alice1", "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	tok := decode[model.Token](t, rec)
	assert.Equal(t, "alice1", tok.Username)
	assert.Greater(t, tok.Expires, ts.now.UnixMilli()+3_599_999)
}

func TestChangePassword(t *testing.T) {
	ts := newTestServer(t, storetest.New(t))
	alice, tok := ts.register(t, "alice1")
	bob, _ := ts.register(t, "bobby1")

	rec := ts.do(t, http.MethodPost, "/user/"+bob.ID+"/password", tok.ID,
		map[string]string{"password": "secret1", "newPassword": "secret2"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/user/"+alice.ID+"/password", tok.ID,
		map[string]string{"password": "wrong-pass", "newPassword": "secret2"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/user/"+alice.ID+"/password", tok.ID,
		map[string]string{"password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/user/"+alice.ID+"/password", tok.ID,
		map[string]string{"password": "secret1", "newPassword": "secret2"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/token", "", map[string]string{"username": "alice1", "password": "secret2"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTokens(t *testing.T) {
	ts := newTestServer(t, storetest.New(t))
	_, first := ts.register(t, "alice1")

	rec := ts.do(t, http.MethodGet, "/token/"+first.ID, first.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, *first, decode[model.Token](t, rec))

	rec = ts.do(t, http.MethodGet, "/token/missing", first.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ts.now = ts.now.Add(30 * time.Minute)
	rec = ts.do(t, http.MethodPost, "/token", "", map[string]string{"username": "alice1", "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[model.Token](t, rec)

	rec = ts.do(t, http.MethodPut, "/token/"+first.ID, second.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	extended := decode[model.Token](t, rec)
	assert.Greater(t, extended.Expires, first.Expires)

	rec = ts.do(t, http.MethodDelete, "/token/"+first.ID, second.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/posts", first.ID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "revoked token is rejected")

	rec = ts.do(t, http.MethodDelete, "/token/"+first.ID, second.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPut, "/token/missing", second.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExtendExpiredToken(t *testing.T) {
	ts := newTestServer(t, storetest.New(t))
	_, old := ts.register(t, "alice1")

	ts.now = ts.now.Add(30 * time.Minute)
	rec := ts.do(t, http.MethodPost, "/token", "", map[string]string{"username": "alice1", "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	fresh := decode[model.Token](t, rec)

	ts.now = ts.now.Add(40 * time.Minute)
	rec = ts.do(t, http.MethodPut, "/token/"+old.ID, fresh.ID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "token already expired", errorOf(t, rec))
}

func TestPosts(t *testing.T) {
	ts := newTestServer(t, storetest.New(t))
	alice, tok := ts.register(t, "alice1")

	create := func(title string, parent *string) model.Post {
		t.Helper()
		ts.now = ts.now.Add(time.Second)
		rec := ts.do(t, http.MethodPost, "/post", tok.ID, map[string]any{
			"title": title, "content": title + " body", "parent": parent,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return decode[model.Post](t, rec)
	}

	rec := ts.do(t, http.MethodPost, "/post", tok.ID, map[string]string{"content": "no title"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	p1 := create("p1", nil)
	p2 := create("p2", &p1.ID)
	create("p3", &p2.ID)
	assert.Equal(t, alice.ID, p1.Author.ID)

	rec = ts.do(t, http.MethodGet, "/post/"+p1.ID, tok.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tree := decode[model.Thread](t, rec)
	assert.Equal(t, p1.ID, tree.ID)
	assert.Empty(t, tree.Children, "default depth is 0")

	rec = ts.do(t, http.MethodGet, "/post/"+p1.ID+"?depth=1&limit=3", tok.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tree = decode[model.Thread](t, rec)
	require.Len(t, tree.Children, 1)
	assert.Equal(t, p2.ID, tree.Children[0].ID)
	assert.Empty(t, tree.Children[0].Children)
	assert.Equal(t, "alice1", tree.Children[0].Author.Username)

	for _, q := range []string{"?depth=abc", "?depth=99", "?limit=-1"} {
		rec = ts.do(t, http.MethodGet, "/post/"+p1.ID+q, tok.ID, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}

	rec = ts.do(t, http.MethodGet, "/post/missing", tok.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ts.now = ts.now.Add(time.Second)
	rec = ts.do(t, http.MethodPut, "/post/"+p1.ID, tok.ID, map[string]string{"title": "renamed"})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[model.Post](t, rec)
	assert.Equal(t, "renamed", updated.Title)
	assert.Equal(t, p1.Content, updated.Content)
	assert.Greater(t, updated.Modified, updated.Created)

	rec = ts.do(t, http.MethodPut, "/post/"+p1.ID, tok.ID, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPut, "/post/missing", tok.ID, map[string]string{"title": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/posts?depth=2", tok.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	threads := decode[[]model.Thread](t, rec)
	require.Len(t, threads, 1)
	assert.Equal(t, 3, threads[0].Count())

	rec = ts.do(t, http.MethodDelete, "/post/"+p1.ID, tok.ID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "replies block deletion under the reject policy")

	rec = ts.do(t, http.MethodDelete, "/post/missing", tok.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteCascadeConfigured(t *testing.T) {
	ts := newTestServer(t, storetest.New(t), func(c *config.Config) { c.Posts.DeletePolicy = "cascade" })
	_, tok := ts.register(t, "alice1")

	rec := ts.do(t, http.MethodPost, "/post", tok.ID, map[string]string{"title": "root", "content": "c"})
	require.Equal(t, http.StatusOK, rec.Code)
	root := decode[model.Post](t, rec)

	rec = ts.do(t, http.MethodPost, "/post", tok.ID, map[string]string{"title": "reply", "content": "c", "parent": root.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	reply := decode[model.Post](t, rec)

	rec = ts.do(t, http.MethodDelete, "/post/"+root.ID, tok.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/post/"+reply.ID, tok.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, storetest.New(t))

	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "postboard_http_requests_total"))
}
