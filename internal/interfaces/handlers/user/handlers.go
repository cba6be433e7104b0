package user

import (
	"errors"

	usersvc "solv-backend/internal/application/user"
	"solv-backend/internal/middleware"
	"solv-backend/internal/pkg/response"
	"solv-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Handlers holds the user service and session config for register (session + cookie).
type Handlers struct {
	Service *usersvc.Service
	Config  middleware.SessionConfig
}

// Register POST /api/v1/users/register creates a WORKER without an
// organization and logs them in.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req usersvc.RegisterInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadBody(c, err)
	}
	u, err := h.Service.Register(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}
	if err := middleware.StartSession(c, h.Service.Rdb, h.Config, middleware.NewSessionUser(u)); err != nil {
		// The account exists; the client can still log in explicitly.
		log.Warn().Err(err).Str("user_id", u.ID.String()).Msg("register: session not started")
	}
	log.Info().Str("trace_id", middleware.GetTraceID(c)).Str("user_id", u.ID.String()).Msg("user registered")
	return response.SuccessCreated(c, "User created successfully", fiber.Map{"user": u}, nil)
}

// Get GET /api/v1/users/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		return response.Unauthorized(c, "Authentication credentials were not provided.")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, usersvc.ErrUserNotFound)
	}
	u, err := h.Service.Get(c.UserContext(), p, id)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "User found", fiber.Map{"user": u}, nil)
}

// AssignMembership PATCH /api/v1/users/:id/membership {"role": "WORKER"}.
// Requires assign_membership (middleware applied on route).
func (h *Handlers) AssignMembership(c *fiber.Ctx) error {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		return response.Unauthorized(c, "Authentication credentials were not provided.")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, usersvc.ErrUserNotFound)
	}
	var req usersvc.MembershipInput
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadBody(c, err)
		}
	}
	u, err := h.Service.AssignMembership(c.UserContext(), p, id, req)
	if err != nil {
		return fail(c, err)
	}
	log.Info().Str("trace_id", middleware.GetTraceID(c)).
		Str("user_id", u.ID.String()).Str("actor_id", p.UserID.String()).Str("role", u.Role).
		Msg("membership assigned")
	return response.Success(c, "Membership updated", fiber.Map{"user": u}, nil)
}

func fail(c *fiber.Ctx, err error) error {
	var fe validation.FieldErrors
	switch {
	case errors.As(err, &fe):
		return response.Invalid(c, fe)
	case errors.Is(err, usersvc.ErrAdminWithOrgRequired),
		errors.Is(err, usersvc.ErrUserInOtherOrg),
		errors.Is(err, usersvc.ErrCannotChangeOwnRole),
		errors.Is(err, usersvc.ErrOrgNeedsAdmin):
		return response.Forbidden(c, err.Error())
	case errors.Is(err, usersvc.ErrUserNotFound):
		return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
	default:
		log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Str("path", c.Path()).Msg("users: unexpected error")
		return response.Internal(c)
	}
}
