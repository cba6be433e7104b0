package org

import (
	"errors"

	orgsvc "solv-backend/internal/application/org"
	"solv-backend/internal/middleware"
	"solv-backend/internal/pkg/response"
	"solv-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Handlers bundles org handlers with dependencies.
type Handlers struct {
	Service *orgsvc.Service
}

// List GET /api/v1/organizations
func (h *Handlers) List(c *fiber.Ctx) error {
	orgs, err := h.Service.List(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Organizations retrieved", orgs, fiber.Map{"count": len(orgs)})
}

// Get GET /api/v1/organizations/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, orgsvc.ErrOrgNotFound)
	}
	o, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Organization retrieved", o, nil)
}

// Create POST /api/v1/organizations
func (h *Handlers) Create(c *fiber.Ctx) error {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		return response.Unauthorized(c, "Authentication credentials were not provided.")
	}
	in, err := orgsvc.DecodeOrgInput(c.Body())
	if err != nil {
		return response.BadBody(c, err)
	}
	o, err := h.Service.Create(c.UserContext(), p, in)
	if err != nil {
		return fail(c, err)
	}
	log.Info().Str("trace_id", middleware.GetTraceID(c)).
		Str("org_id", o.ID.String()).Str("actor_id", p.UserID.String()).
		Msg("organization created")
	return response.SuccessCreated(c, "Organization created", o, nil)
}

// Replace PUT /api/v1/organizations/:id
func (h *Handlers) Replace(c *fiber.Ctx) error {
	return h.update(c, false)
}

// Patch PATCH /api/v1/organizations/:id
func (h *Handlers) Patch(c *fiber.Ctx) error {
	return h.update(c, true)
}

func (h *Handlers) update(c *fiber.Ctx, partial bool) error {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		return response.Unauthorized(c, "Authentication credentials were not provided.")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, orgsvc.ErrOrgNotFound)
	}
	in, err := orgsvc.DecodeOrgInput(c.Body())
	if err != nil {
		return response.BadBody(c, err)
	}
	o, err := h.Service.Update(c.UserContext(), p, id, in, partial)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Organization updated", o, nil)
}

// Delete DELETE /api/v1/organizations/:id
func (h *Handlers) Delete(c *fiber.Ctx) error {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		return response.Unauthorized(c, "Authentication credentials were not provided.")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, orgsvc.ErrOrgNotFound)
	}
	if err := h.Service.Delete(c.UserContext(), p, id); err != nil {
		return fail(c, err)
	}
	log.Info().Str("trace_id", middleware.GetTraceID(c)).
		Str("org_id", id.String()).Str("actor_id", p.UserID.String()).
		Msg("organization deleted")
	return response.NoContent(c)
}

func fail(c *fiber.Ctx, err error) error {
	var fe validation.FieldErrors
	switch {
	case errors.As(err, &fe):
		return response.Invalid(c, fe)
	case errors.Is(err, orgsvc.ErrAdminRequired), errors.Is(err, orgsvc.ErrNotOrgAdmin):
		return response.Forbidden(c, err.Error())
	case errors.Is(err, orgsvc.ErrOrgNotFound):
		return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
	case errors.Is(err, orgsvc.ErrOrgHasUnits), errors.Is(err, orgsvc.ErrDuplicateOrg):
		return response.Error(c, err.Error(), fiber.StatusConflict, nil)
	default:
		log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Str("path", c.Path()).Msg("organizations: unexpected error")
		return response.Internal(c)
	}
}
