// Package client talks to a postboard server and remembers the login
// session between CLI invocations.
package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/existflow/postboard/internal/model"
)

// ErrNotLoggedIn is returned by calls that need a session
var ErrNotLoggedIn = errors.New("not logged in, run 'postboard login' first")

// Session is persisted to session.json
type Session struct {
	ServerURL string `json:"server_url"`
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Expires   int64  `json:"expires"`
}

// APIError is a non-200 response from the server
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Client is the postboard API client
type Client struct {
	session     *Session
	sessionPath string
	httpClient  *http.Client
}

// New creates a client. serverURL is used unless the saved session
// already names a server.
func New(serverURL, sessionPath string, timeout time.Duration) *Client {
	c := &Client{
		sessionPath: sessionPath,
		httpClient:  &http.Client{Timeout: timeout},
	}
	c.loadSession(serverURL)
	return c
}

func (c *Client) loadSession(serverURL string) {
	c.session = &Session{ServerURL: serverURL}

	data, err := os.ReadFile(c.sessionPath)
	if err != nil {
		return
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return
	}
	if s.ServerURL == "" {
		s.ServerURL = serverURL
	}
	c.session = &s
}

func (c *Client) saveSession() error {
	if err := os.MkdirAll(filepath.Dir(c.sessionPath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c.session, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(c.sessionPath, data, 0600)
}

// Session returns a copy of the current session
func (c *Client) Session() Session {
	return *c.session
}

// SetServer changes the server URL
func (c *Client) SetServer(serverURL string) error {
	c.session.ServerURL = serverURL
	return c.saveSession()
}

// IsLoggedIn returns true if a token is stored
func (c *Client) IsLoggedIn() bool {
	return c.session.Token != ""
}

func (c *Client) do(method, path string, auth bool, body, out any) error {
	if auth && !c.IsLoggedIn() {
		return ErrNotLoggedIn
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.session.ServerURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("token", c.session.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		respBody, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(respBody, &e) != nil || e.Error == "" {
			e.Error = string(respBody)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Register creates an account and logs in with it
func (c *Client) Register(username, email, password string) (*model.User, error) {
	var u model.User
	err := c.do(http.MethodPost, "/user", false, map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, &u)
	if err != nil {
		return nil, err
	}

	if err := c.Login(username, password); err != nil {
		return nil, err
	}
	return &u, nil
}

// Login exchanges credentials for a token and stores it
func (c *Client) Login(username, password string) error {
	var tok model.Token
	err := c.do(http.MethodPost, "/token", false, map[string]string{
		"username": username,
		"password": password,
	}, &tok)
	if err != nil {
		return err
	}

	c.session.Token = tok.ID
	c.session.UserID = tok.UserID
	c.session.Username = tok.Username
	c.session.Expires = tok.Expires
	return c.saveSession()
}

// Logout revokes the token on the server and clears the session. The local
// session is cleared even when the server no longer knows the token.
func (c *Client) Logout() error {
	err := c.do(http.MethodDelete, "/token/"+url.PathEscape(c.session.Token), true, nil, nil)

	var apiErr *APIError
	if errors.As(err, &apiErr) && (apiErr.Status == http.StatusForbidden || apiErr.Status == http.StatusNotFound) {
		err = nil
	}

	c.session.Token = ""
	c.session.UserID = ""
	c.session.Username = ""
	c.session.Expires = 0
	if saveErr := c.saveSession(); saveErr != nil {
		return saveErr
	}
	return err
}

// Renew extends the current token by one window
func (c *Client) Renew() (*model.Token, error) {
	var tok model.Token
	if err := c.do(http.MethodPut, "/token/"+url.PathEscape(c.session.Token), true, nil, &tok); err != nil {
		return nil, err
	}
	c.session.Expires = tok.Expires
	return &tok, c.saveSession()
}

// Whoami resolves the current token to its user
func (c *Client) Whoami() (*model.User, *model.Token, error) {
	var tok model.Token
	if err := c.do(http.MethodGet, "/token/"+url.PathEscape(c.session.Token), true, nil, &tok); err != nil {
		return nil, nil, err
	}
	var u model.User
	if err := c.do(http.MethodGet, "/user/"+url.PathEscape(tok.UserID), true, nil, &u); err != nil {
		return nil, nil, err
	}
	return &u, &tok, nil
}

// ChangePassword changes the logged in user's password
func (c *Client) ChangePassword(oldPassword, newPassword string) error {
	return c.do(http.MethodPost, "/user/"+url.PathEscape(c.session.UserID)+"/password", true, map[string]string{
		"password":    oldPassword,
		"newPassword": newPassword,
	}, nil)
}

// CreatePost creates a post, as a reply when parent is not empty
func (c *Client) CreatePost(title, content, parent string) (*model.Post, error) {
	body := map[string]any{"title": title, "content": content}
	if parent != "" {
		body["parent"] = parent
	}
	var p model.Post
	if err := c.do(http.MethodPost, "/post", true, body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPost returns a post with depth levels of at most limit replies
func (c *Client) GetPost(id string, depth, limit int) (*model.Thread, error) {
	var t model.Thread
	if err := c.do(http.MethodGet, "/post/"+url.PathEscape(id)+treeQuery(depth, limit), true, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdatePost changes the non-nil fields
func (c *Client) UpdatePost(id string, title, content *string) (*model.Post, error) {
	body := map[string]string{}
	if title != nil {
		body["title"] = *title
	}
	if content != nil {
		body["content"] = *content
	}
	var p model.Post
	if err := c.do(http.MethodPut, "/post/"+url.PathEscape(id), true, body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeletePost deletes a post
func (c *Client) DeletePost(id string) error {
	return c.do(http.MethodDelete, "/post/"+url.PathEscape(id), true, nil, nil)
}

// ListPosts returns the logged in user's root posts with their trees
func (c *Client) ListPosts(depth, limit int) ([]*model.Thread, error) {
	var threads []*model.Thread
	if err := c.do(http.MethodGet, "/posts"+treeQuery(depth, limit), true, nil, &threads); err != nil {
		return nil, err
	}
	return threads, nil
}

func treeQuery(depth, limit int) string {
	q := url.Values{}
	q.Set("depth", strconv.Itoa(depth))
	q.Set("limit", strconv.Itoa(limit))
	return "?" + q.Encode()
}
