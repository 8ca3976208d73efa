package server

import (
	"net/http"

	"github.com/existflow/postboard/internal/apperr"
	"github.com/existflow/postboard/internal/logger"
	"github.com/labstack/echo/v4"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	Password    string `json:"password"`
	NewPassword string `json:"newPassword"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func invalidBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
}

// handleCreateUser handles user registration
func (s *Server) handleCreateUser(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}

	u, err := s.users.Register(c.Request().Context(), req.Username, req.Email, req.Password)
	if err != nil {
		return s.fail(c, err)
	}

	logger.Info("User registered", logger.F("username", u.Username), logger.F("user_id", u.ID))
	return c.JSON(http.StatusOK, u)
}

// handleGetUser returns a user record
func (s *Server) handleGetUser(c echo.Context) error {
	u, err := s.users.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// handleChangePassword changes the caller's own password
func (s *Server) handleChangePassword(c echo.Context) error {
	id := c.Param("id")
	if id != callerID(c) {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "cannot change another user's password"})
	}

	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}

	if err := s.users.ChangePassword(c.Request().Context(), id, req.Password, req.NewPassword); err != nil {
		return s.fail(c, err)
	}

	logger.Info("Password changed", logger.F("username", callerUsername(c)))
	return c.JSON(http.StatusOK, messageResponse{Message: "password changed"})
}

// handleCreateToken handles login
func (s *Server) handleCreateToken(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}

	ctx := c.Request().Context()
	u, err := s.users.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return s.fail(c, err)
	}

	tok, err := s.tokens.Issue(ctx, u.ID)
	if err != nil {
		return s.fail(c, err)
	}

	logger.Info("User logged in", logger.F("username", u.Username))
	return c.JSON(http.StatusOK, tok)
}

// handleGetToken returns a token record without checking its expiry
func (s *Server) handleGetToken(c echo.Context) error {
	tok, err := s.tokens.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	if tok == nil {
		return s.fail(c, apperr.NotFound("token not found"))
	}
	return c.JSON(http.StatusOK, tok)
}

// handleExtendToken renews a live token by one window
func (s *Server) handleExtendToken(c echo.Context) error {
	tok, err := s.tokens.Extend(c.Request().Context(), c.Param("id"), 0)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, tok)
}

// handleRevokeToken deletes a token
func (s *Server) handleRevokeToken(c echo.Context) error {
	if err := s.tokens.Revoke(c.Request().Context(), c.Param("id")); err != nil {
		return s.fail(c, err)
	}

	logger.Info("Token revoked", logger.F("username", callerUsername(c)))
	return c.JSON(http.StatusOK, messageResponse{Message: "token revoked"})
}
