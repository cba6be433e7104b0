package units

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	unitsvc "solv-backend/internal/application/units"
	"solv-backend/internal/domain"
	"solv-backend/internal/middleware"
	"solv-backend/internal/pkg/constants"
	"solv-backend/internal/pkg/testdb"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newApp mounts the unit routes for a session user in org (nil: no organization).
func newApp(db *gorm.DB, org *domain.Organization) *fiber.App {
	h := &Handlers{Service: &unitsvc.Service{DB: db, Now: func() time.Time { return testdb.HarvestDate }}}
	var orgID interface{}
	if org != nil {
		orgID = org.ID.String()
	}
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user", map[string]interface{}{
			"user_id": uuid.New().String(),
			"role":    constants.Worker,
			"org_id":  orgID,
		})
		return c.Next()
	})
	app.Use(middleware.RequireAuth(nil))
	app.Get("/units", h.List)
	app.Post("/units", h.Create)
	app.Get("/units/:id", h.Get)
	app.Put("/units/:id", h.Replace)
	app.Patch("/units/:id", h.Patch)
	app.Delete("/units/:id", h.Delete)
	app.Get("/units/:id/lineage", h.Lineage)
	app.Get("/units/:id/children", h.Children)
	return app
}

func send(t *testing.T, app *fiber.App, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		buf = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func TestCreate_AssignsOwnerAndDefaults(t *testing.T) {
	db := testdb.New(t)
	green := testdb.Org(t, db, "GreenFarm", "LIC-1")
	app := newApp(db, green)

	code, out := send(t, app, "POST", "/units", map[string]interface{}{"cultivar_name": "Blue Dream", "weight": 2})
	require.Equal(t, fiber.StatusCreated, code)
	data, _ := out["data"].(map[string]interface{})
	assert.Equal(t, green.ID.String(), data["current_owner"])
	assert.Equal(t, "HARVEST", data["unit_type"])
	assert.Equal(t, "Unknown", data["storage_location"])
	assert.Equal(t, "PENDING", data["quality_grade"])
	assert.Equal(t, "2024-09-14", data["date_harvested"])
}

func TestCreate_MalformedBody(t *testing.T) {
	db := testdb.New(t)
	app := newApp(db, testdb.Org(t, db, "GreenFarm", "LIC-1"))

	req := httptest.NewRequest("POST", "/units", bytes.NewReader([]byte(`{"weight":`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreate_WrongTypesAreFieldErrors(t *testing.T) {
	db := testdb.New(t)
	app := newApp(db, testdb.Org(t, db, "GreenFarm", "LIC-1"))

	tests := []struct {
		body    string
		field   string
		message string
	}{
		{`{"cultivar_name":"OG","weight":"abc"}`, "weight", "A valid number is required."},
		{`{"cultivar_name":"OG","weight":true}`, "weight", "A valid number is required."},
		{`{"cultivar_name":"OG","weight":null}`, "weight", "This field may not be null."},
		{`{"cultivar_name":"OG","weight":1,"unit_type":5}`, "unit_type", "Not a valid string."},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/units", bytes.NewReader([]byte(tt.body)))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

			raw, _ := io.ReadAll(resp.Body)
			var out struct {
				Error struct {
					Message string              `json:"message"`
					Details map[string][]string `json:"details"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(raw, &out))
			assert.Equal(t, "Validation failed", out.Error.Message)
			assert.Equal(t, []string{tt.message}, out.Error.Details[tt.field])
		})
	}

	var n int64
	require.NoError(t, db.Model(&domain.Unit{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestCreate_WeightAsNumericString(t *testing.T) {
	db := testdb.New(t)
	app := newApp(db, testdb.Org(t, db, "GreenFarm", "LIC-1"))

	code, out := send(t, app, "POST", "/units", map[string]interface{}{"cultivar_name": "OG", "weight": "2.5"})
	require.Equal(t, fiber.StatusCreated, code)
	data, _ := out["data"].(map[string]interface{})
	assert.Equal(t, 2.5, data["weight"])
}

func TestCreate_NoOrganizationBeforeBodyChecks(t *testing.T) {
	db := testdb.New(t)
	app := newApp(db, nil)

	req := httptest.NewRequest("POST", "/units", bytes.NewReader([]byte(`{"weight":`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestCreate_NoOrganization(t *testing.T) {
	db := testdb.New(t)
	app := newApp(db, nil)

	code, out := send(t, app, "POST", "/units", map[string]interface{}{"cultivar_name": "Blue Dream", "weight": 2})
	assert.Equal(t, fiber.StatusForbidden, code)
	assert.Equal(t, "error", out["status"])
}

func TestList_FiltersAndValidation(t *testing.T) {
	db := testdb.New(t)
	green := testdb.Org(t, db, "GreenFarm", "LIC-1")
	testdb.Unit(t, db, green, "Active", nil)
	archived := testdb.Unit(t, db, green, "Archived", nil)
	require.NoError(t, db.Model(archived).Update("status", domain.UnitStatusArchived).Error)
	app := newApp(db, green)

	code, out := send(t, app, "GET", "/units?status=ARCHIVED", nil)
	require.Equal(t, fiber.StatusOK, code)
	list, _ := out["data"].([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, "Archived", list[0].(map[string]interface{})["cultivar_name"])
	assert.Equal(t, float64(1), out["metadata"].(map[string]interface{})["count"])

	code, _ = send(t, app, "GET", "/units?status=LOST", nil)
	assert.Equal(t, fiber.StatusBadRequest, code)
}

func TestPutRequiresFields_PatchDoesNot(t *testing.T) {
	db := testdb.New(t)
	green := testdb.Org(t, db, "GreenFarm", "LIC-1")
	u := testdb.Unit(t, db, green, "Blue Dream", nil)
	app := newApp(db, green)

	code, out := send(t, app, "PUT", "/units/"+u.ID.String(), map[string]interface{}{"status": "TRANSIT"})
	require.Equal(t, fiber.StatusBadRequest, code)
	details := out["error"].(map[string]interface{})["details"].(map[string]interface{})
	assert.Contains(t, details, "cultivar_name")
	assert.Contains(t, details, "weight")

	code, out = send(t, app, "PATCH", "/units/"+u.ID.String(), map[string]interface{}{"status": "TRANSIT", "description": "on the truck"})
	require.Equal(t, fiber.StatusOK, code)
	data := out["data"].(map[string]interface{})
	assert.Equal(t, "TRANSIT", data["status"])
	assert.Equal(t, "on the truck", data["description"])
	assert.Equal(t, "Blue Dream", data["cultivar_name"])
}

func TestLineageAndChildren(t *testing.T) {
	db := testdb.New(t)
	green := testdb.Org(t, db, "GreenFarm", "LIC-1")
	root := testdb.Unit(t, db, green, "Harvest", nil)
	mid := testdb.Unit(t, db, green, "Trim", root)
	leaf := testdb.Unit(t, db, green, "Jar", mid)
	app := newApp(db, green)

	code, out := send(t, app, "GET", "/units/"+leaf.ID.String()+"/lineage", nil)
	require.Equal(t, fiber.StatusOK, code)
	chain := out["data"].([]interface{})
	require.Len(t, chain, 3)
	assert.Equal(t, root.ID.String(), chain[2].(map[string]interface{})["id"])

	code, out = send(t, app, "GET", "/units/"+root.ID.String()+"/children", nil)
	require.Equal(t, fiber.StatusOK, code)
	children := out["data"].([]interface{})
	require.Len(t, children, 1)
	assert.Equal(t, mid.ID.String(), children[0].(map[string]interface{})["id"])
}

func TestDelete_ForeignUnitIsNotFound(t *testing.T) {
	db := testdb.New(t)
	green := testdb.Org(t, db, "GreenFarm", "LIC-1")
	other := testdb.Org(t, db, "OtherFarm", "LIC-2")
	theirs := testdb.Unit(t, db, other, "Theirs", nil)
	app := newApp(db, green)

	code, _ := send(t, app, "DELETE", "/units/"+theirs.ID.String(), nil)
	assert.Equal(t, fiber.StatusNotFound, code)

	var n int64
	require.NoError(t, db.Model(&domain.Unit{}).Where("id = ?", theirs.ID).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}
