package server

import (
	"net/http"
	"strconv"

	"github.com/existflow/postboard/internal/apperr"
	"github.com/existflow/postboard/internal/post"
	"github.com/labstack/echo/v4"
)

type createPostRequest struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Parent  *string `json:"parent"`
}

type updatePostRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// treeBounds reads ?depth= and ?limit=, falling back to configured defaults
func (s *Server) treeBounds(c echo.Context) (depth, limit int, err error) {
	depth, err = intQuery(c, "depth", s.cfg.Posts.DefaultDepth)
	if err != nil {
		return 0, 0, err
	}
	limit, err = intQuery(c, "limit", s.cfg.Posts.DefaultLimit)
	if err != nil {
		return 0, 0, err
	}
	return depth, limit, nil
}

func intQuery(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Newf(apperr.KindInvalidInput, "%s must be an integer", name)
	}
	return n, nil
}

// handleCreatePost creates a post authored by the caller
func (s *Server) handleCreatePost(c echo.Context) error {
	var req createPostRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}

	p, err := s.posts.Create(c.Request().Context(), callerID(c), post.CreateInput{
		Title:   req.Title,
		Content: req.Content,
		Parent:  req.Parent,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// handleGetPost returns a post with its bounded reply tree
func (s *Server) handleGetPost(c echo.Context) error {
	depth, limit, err := s.treeBounds(c)
	if err != nil {
		return s.fail(c, err)
	}

	tree, err := s.posts.GetTree(c.Request().Context(), c.Param("id"), limit, depth)
	if err != nil {
		return s.fail(c, err)
	}
	if tree == nil {
		return s.fail(c, apperr.NotFound("post not found"))
	}
	return c.JSON(http.StatusOK, tree)
}

// handleUpdatePost changes title and/or content
func (s *Server) handleUpdatePost(c echo.Context) error {
	var req updatePostRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}

	p, err := s.posts.Update(c.Request().Context(), c.Param("id"), post.UpdateInput{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// handleDeletePost deletes a post
func (s *Server) handleDeletePost(c echo.Context) error {
	if err := s.posts.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "post deleted"})
}

// handleListPosts returns the caller's root posts with their trees
func (s *Server) handleListPosts(c echo.Context) error {
	depth, limit, err := s.treeBounds(c)
	if err != nil {
		return s.fail(c, err)
	}

	threads, err := s.posts.ListForUser(c.Request().Context(), callerID(c), limit, depth)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, threads)
}
