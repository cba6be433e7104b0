package auth

import (
	"context"
	"errors"

	authsvc "solv-backend/internal/application/auth"
	"solv-backend/internal/middleware"
	"solv-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Handlers holds dependencies for auth endpoints.
type Handlers struct {
	UserFinder authsvc.UserFinder
	Tokens     *authsvc.TokenIssuer
	Rdb        *redis.Client
	Config     middleware.SessionConfig
}

// Login POST /api/v1/auth/login authenticates and starts a Redis session.
func (h *Handlers) Login(c *fiber.Ctx) error {
	if h.UserFinder == nil {
		return response.Internal(c)
	}
	var req authsvc.LoginInput
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, authsvc.ErrCredentialsRequired.Error(), fiber.StatusBadRequest, nil)
	}
	user, err := h.UserFinder.FindByCredentials(c.UserContext(), req)
	if err != nil {
		return failLogin(c, err)
	}

	su := middleware.NewSessionUser(user)
	if err := middleware.StartSession(c, h.Rdb, h.Config, su); err != nil {
		log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Msg("auth/login: session not started")
		return response.Internal(c)
	}
	log.Info().Str("trace_id", middleware.GetTraceID(c)).Str("user_id", su.UserID).Msg("auth/login: success")
	return response.Success(c, "Login successful", fiber.Map{"user": su}, nil)
}

// Token POST /api/v1/auth/token exchanges credentials for a bearer token.
func (h *Handlers) Token(c *fiber.Ctx) error {
	if h.UserFinder == nil || h.Tokens == nil {
		return response.Internal(c)
	}
	var req authsvc.LoginInput
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, authsvc.ErrCredentialsRequired.Error(), fiber.StatusBadRequest, nil)
	}
	user, err := h.UserFinder.FindByCredentials(c.UserContext(), req)
	if err != nil {
		return failLogin(c, err)
	}
	token, exp, err := h.Tokens.Issue(user)
	if err != nil {
		log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Msg("auth/token: issue failed")
		return response.Internal(c)
	}
	return response.Success(c, "Token issued", fiber.Map{
		"access":     token,
		"token_type": "Bearer",
		"expires_in": int64(h.Tokens.TTL.Seconds()),
		"expires_at": exp.UTC(),
	}, nil)
}

// Me GET /api/v1/auth/me returns the resolved principal. Runs behind RequireAuth.
func (h *Handlers) Me(c *fiber.Ctx) error {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	var orgID interface{}
	if p.OrgID != nil {
		orgID = p.OrgID.String()
	}
	return response.Success(c, "Authenticated", fiber.Map{"user": fiber.Map{
		"user_id": p.UserID.String(),
		"role":    p.Role,
		"org_id":  orgID,
	}}, nil)
}

// Logout DELETE /api/v1/auth/logout removes the session from Redis and the
// user's session set, then clears the cookie.
func (h *Handlers) Logout(c *fiber.Ctx) error {
	sessionID := middleware.GetSessionID(c)
	ctx := context.Background()

	if sessionID != "" && h.Rdb != nil {
		if m, ok := middleware.GetUser(c).(map[string]interface{}); ok {
			if userID, _ := m["user_id"].(string); userID != "" {
				_ = h.Rdb.SRem(ctx, middleware.UserSessionsPrefix+userID, sessionID).Err()
			}
		}
		_ = h.Rdb.Del(ctx, middleware.SessionRedisPrefix+sessionID).Err()
	}
	middleware.DestroySession(c)

	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.MaxAge = -1
	c.Cookie(&cookie)

	return response.Success(c, "Logged out successfully", nil, nil)
}

func failLogin(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, authsvc.ErrCredentialsRequired):
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	case errors.Is(err, authsvc.ErrInvalidCredentials):
		return response.Unauthorized(c, err.Error())
	default:
		log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Msg("auth: credential lookup failed")
		return response.Internal(c)
	}
}
