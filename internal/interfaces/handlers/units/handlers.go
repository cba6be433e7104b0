package units

import (
	"errors"

	unitsvc "solv-backend/internal/application/units"
	"solv-backend/internal/domain"
	"solv-backend/internal/middleware"
	"solv-backend/internal/pkg/response"
	"solv-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Handlers bundles unit handlers with dependencies.
type Handlers struct {
	Service *unitsvc.Service
}

// List GET /api/v1/units?status=&unit_type=&lab_test_status=
func (h *Handlers) List(c *fiber.Ctx) error {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		return response.Unauthorized(c, "Authentication credentials were not provided.")
	}
	units, err := h.Service.List(c.UserContext(), p, unitsvc.ListFilter{
		Status:        c.Query("status"),
		UnitType:      c.Query("unit_type"),
		LabTestStatus: c.Query("lab_test_status"),
	})
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Units retrieved", unitsvc.NewUnitViews(units), fiber.Map{"count": len(units)})
}

// Get GET /api/v1/units/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	p, id, ok, err := scoped(c)
	if !ok {
		return err
	}
	u, err := h.Service.Get(c.UserContext(), p, id)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Unit retrieved", unitsvc.NewUnitView(u), nil)
}

// Create POST /api/v1/units
func (h *Handlers) Create(c *fiber.Ctx) error {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		return response.Unauthorized(c, "Authentication credentials were not provided.")
	}
	if !p.HasOrganization() {
		return fail(c, unitsvc.ErrNoOrganization)
	}
	in, err := unitsvc.DecodeUnitInput(c.Body())
	if err != nil {
		return response.BadBody(c, err)
	}
	u, err := h.Service.Create(c.UserContext(), p, in)
	if err != nil {
		return fail(c, err)
	}
	log.Info().Str("trace_id", middleware.GetTraceID(c)).
		Str("unit_id", u.ID.String()).Str("org_id", u.CurrentOwnerID.String()).
		Msg("unit created")
	return response.SuccessCreated(c, "Unit created", unitsvc.NewUnitView(u), nil)
}

// Replace PUT /api/v1/units/:id
func (h *Handlers) Replace(c *fiber.Ctx) error {
	return h.update(c, false)
}

// Patch PATCH /api/v1/units/:id
func (h *Handlers) Patch(c *fiber.Ctx) error {
	return h.update(c, true)
}

func (h *Handlers) update(c *fiber.Ctx, partial bool) error {
	p, id, ok, err := scoped(c)
	if !ok {
		return err
	}
	in, err := unitsvc.DecodeUnitInput(c.Body())
	if err != nil {
		return response.BadBody(c, err)
	}
	u, err := h.Service.Update(c.UserContext(), p, id, in, partial)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Unit updated", unitsvc.NewUnitView(u), nil)
}

// Delete DELETE /api/v1/units/:id
func (h *Handlers) Delete(c *fiber.Ctx) error {
	p, id, ok, err := scoped(c)
	if !ok {
		return err
	}
	if err := h.Service.Delete(c.UserContext(), p, id); err != nil {
		return fail(c, err)
	}
	log.Info().Str("trace_id", middleware.GetTraceID(c)).Str("unit_id", id.String()).Msg("unit deleted")
	return response.NoContent(c)
}

// Lineage GET /api/v1/units/:id/lineage
func (h *Handlers) Lineage(c *fiber.Ctx) error {
	p, id, ok, err := scoped(c)
	if !ok {
		return err
	}
	chain, err := h.Service.Lineage(c.UserContext(), p, id)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Unit lineage retrieved", unitsvc.NewUnitViews(chain), fiber.Map{"depth": len(chain)})
}

// Children GET /api/v1/units/:id/children
func (h *Handlers) Children(c *fiber.Ctx) error {
	p, id, ok, err := scoped(c)
	if !ok {
		return err
	}
	children, err := h.Service.Children(c.UserContext(), p, id)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Unit children retrieved", unitsvc.NewUnitViews(children), fiber.Map{"count": len(children)})
}

// scoped resolves the caller and the :id param. When ok is false the response
// has been written and err is what the handler should return.
func scoped(c *fiber.Ctx) (p domain.Principal, id uuid.UUID, ok bool, err error) {
	p, ok = middleware.GetPrincipal(c)
	if !ok {
		return p, id, false, response.Unauthorized(c, "Authentication credentials were not provided.")
	}
	id, perr := uuid.Parse(c.Params("id"))
	if perr != nil {
		return p, id, false, response.Error(c, unitsvc.ErrUnitNotFound.Error(), fiber.StatusNotFound, nil)
	}
	return p, id, true, nil
}

func fail(c *fiber.Ctx, err error) error {
	var fe validation.FieldErrors
	switch {
	case errors.As(err, &fe):
		return response.Invalid(c, fe)
	case errors.Is(err, unitsvc.ErrNoOrganization):
		return response.Forbidden(c, err.Error())
	case errors.Is(err, unitsvc.ErrUnitNotFound):
		return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
	default:
		log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Str("path", c.Path()).Msg("units: unexpected error")
		return response.Internal(c)
	}
}
