package middleware

import (
	"strings"

	"solv-backend/internal/domain"
	"solv-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	userLocal      = "user"
	principalLocal = "principal"
)

// TokenVerifier turns a bearer token into the principal it was issued for.
type TokenVerifier interface {
	Verify(token string) (*domain.Principal, error)
}

// RequireAuth resolves the caller from an "Authorization: Bearer" token or,
// failing that, the session user. Returns 401 with the standard error format
// when neither is present. The principal is stored for GetPrincipal.
func RequireAuth(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token, ok := bearerToken(c); ok {
			if verifier == nil {
				return response.Unauthorized(c, "Given token not valid for any token type")
			}
			p, err := verifier.Verify(token)
			if err != nil {
				return response.Unauthorized(c, "Given token not valid for any token type")
			}
			c.Locals(principalLocal, *p)
			return c.Next()
		}

		p, ok := principalFromSession(GetUser(c))
		if !ok {
			return response.Unauthorized(c, "Authentication credentials were not provided.")
		}
		c.Locals(principalLocal, p)
		return c.Next()
	}
}

// GetUser returns the session user from Locals (nil if not logged in).
func GetUser(c *fiber.Ctx) interface{} {
	return c.Locals(userLocal)
}

// GetPrincipal returns the caller resolved by RequireAuth.
func GetPrincipal(c *fiber.Ctx) (domain.Principal, bool) {
	p, ok := c.Locals(principalLocal).(domain.Principal)
	return p, ok
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	h := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if h == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// principalFromSession reads the map stored by SetSessionUser. Sessions are
// JSON round-tripped through Redis so values arrive as strings or nil.
func principalFromSession(user interface{}) (domain.Principal, bool) {
	m, ok := user.(map[string]interface{})
	if !ok {
		return domain.Principal{}, false
	}
	idStr, _ := m["user_id"].(string)
	userID, err := uuid.Parse(idStr)
	if err != nil {
		return domain.Principal{}, false
	}
	p := domain.Principal{UserID: userID}
	p.Role, _ = m["role"].(string)
	switch v := m["org_id"].(type) {
	case string:
		if orgID, err := uuid.Parse(v); err == nil {
			p.OrgID = &orgID
		}
	case *string:
		if v != nil {
			if orgID, err := uuid.Parse(*v); err == nil {
				p.OrgID = &orgID
			}
		}
	}
	return p, true
}
