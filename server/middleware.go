package server

import (
	"net/http"
	"time"

	"github.com/existflow/postboard/internal/apperr"
	"github.com/existflow/postboard/internal/logger"
	"github.com/labstack/echo/v4"
)

// Context keys set by authMiddleware
const (
	ctxUsername = "caller_username"
	ctxUserID   = "caller_user_id"
)

// TokenHeader carries the raw token id
const TokenHeader = "token"

// authMiddleware resolves the token header to a caller identity. It never
// changes token state.
func (s *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		id := c.Request().Header.Get(TokenHeader)
		if id == "" {
			return s.reject(c, "missing", "token required")
		}

		tok, err := s.tokens.GetByID(ctx, id)
		if err != nil {
			return s.fail(c, err)
		}
		if tok == nil {
			return s.reject(c, "unknown", "invalid token")
		}

		if err := s.tokens.Verify(ctx, id, tok.Username); err != nil {
			if apperr.Is(err, apperr.KindStorage) {
				return s.fail(c, err)
			}
			return s.reject(c, apperr.KindOf(err).String(), apperr.Message(err))
		}

		c.Set(ctxUsername, tok.Username)
		c.Set(ctxUserID, tok.UserID)
		return next(c)
	}
}

func (s *Server) reject(c echo.Context, reason, msg string) error {
	s.metrics.authRejections.WithLabelValues(reason).Inc()
	logger.Warn("Authentication rejected",
		logger.F("reason", reason),
		logger.F("uri", c.Request().RequestURI),
		logger.F("request_id", c.Response().Header().Get(echo.HeaderXRequestID)))
	return c.JSON(http.StatusForbidden, map[string]string{"error": msg})
}

func callerID(c echo.Context) string {
	id, _ := c.Get(ctxUserID).(string)
	return id
}

func callerUsername(c echo.Context) string {
	name, _ := c.Get(ctxUsername).(string)
	return name
}

// fail writes err as {"error": msg}. Storage failures are logged in full
// and reported to the client without detail.
func (s *Server) fail(c echo.Context, err error) error {
	kind := apperr.KindOf(err)
	if kind == apperr.KindStorage {
		logger.Error("Request failed",
			logger.F("method", c.Request().Method),
			logger.F("uri", c.Request().RequestURI),
			logger.F("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			logger.F("error", err))
	}
	return c.JSON(kind.HTTPStatus(), map[string]string{"error": apperr.Message(err)})
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		req := c.Request()

		err := next(c)
		if err != nil {
			c.Error(err)
		}

		res := c.Response()
		logger.Info("HTTP Request",
			logger.F("method", req.Method),
			logger.F("uri", req.RequestURI),
			logger.F("status", res.Status),
			logger.F("size", res.Size),
			logger.F("duration", time.Since(start).String()),
			logger.F("remote", c.RealIP()),
			logger.F("request_id", res.Header().Get(echo.HeaderXRequestID)))

		return nil
	}
}
