package user

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	usersvc "solv-backend/internal/application/user"
	"solv-backend/internal/domain"
	"solv-backend/internal/middleware"
	"solv-backend/internal/pkg/constants"
	"solv-backend/internal/pkg/testdb"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupUserHandlers(t *testing.T) (*Handlers, *gorm.DB) {
	db := testdb.New(t)
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return &Handlers{Service: &usersvc.Service{DB: db, Rdb: rdb}}, db
}

func asUser(p domain.Principal) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var org interface{}
		if p.OrgID != nil {
			org = p.OrgID.String()
		}
		c.Locals("user", map[string]interface{}{"user_id": p.UserID.String(), "role": p.Role, "org_id": org})
		return c.Next()
	}
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

func TestRegister(t *testing.T) {
	h, _ := setupUserHandlers(t)
	app := fiber.New()
	app.Post("/users/register", h.Register)

	code, out := send(t, app, "POST", "/users/register", map[string]string{
		"username": "grower", "email": "grower@example.com", "password": "Passw0rd!",
	})
	require.Equal(t, fiber.StatusCreated, code)
	user := out["data"].(map[string]interface{})["user"].(map[string]interface{})
	assert.Equal(t, "WORKER", user["role"])
	assert.NotContains(t, user, "password_hash")

	code, out = send(t, app, "POST", "/users/register", map[string]string{
		"username": "grower", "email": "other@example.com", "password": "Passw0rd!",
	})
	require.Equal(t, fiber.StatusBadRequest, code)
	details := out["error"].(map[string]interface{})["details"].(map[string]interface{})
	assert.Contains(t, details, "username")
}

func TestGet_OtherUserIsNotFound(t *testing.T) {
	h, db := setupUserHandlers(t)
	other := &domain.User{Username: "other", Email: "other@example.com", PasswordHash: "x", Role: constants.Worker}
	require.NoError(t, db.Create(other).Error)

	app := fiber.New()
	app.Use(asUser(domain.Principal{UserID: uuid.New(), Role: constants.Worker}))
	app.Get("/users/:id", middleware.RequireAuth(nil), h.Get)

	code, _ := send(t, app, "GET", "/users/"+other.ID.String(), nil)
	assert.Equal(t, fiber.StatusNotFound, code)
}

func TestAssignMembership(t *testing.T) {
	h, db := setupUserHandlers(t)
	green := testdb.Org(t, db, "GreenFarm", "LIC-1")
	target := &domain.User{Username: "grower", Email: "grower@example.com", PasswordHash: "x", Role: constants.Worker}
	require.NoError(t, db.Create(target).Error)

	app := fiber.New()
	app.Use(asUser(domain.Principal{UserID: uuid.New(), Role: constants.Admin, OrgID: &green.ID}))
	app.Patch("/users/:id/membership", middleware.RequireAuth(nil), h.AssignMembership)

	code, out := send(t, app, "PATCH", "/users/"+target.ID.String()+"/membership", map[string]string{"role": "admin"})
	require.Equal(t, fiber.StatusOK, code)
	user := out["data"].(map[string]interface{})["user"].(map[string]interface{})
	assert.Equal(t, "ADMIN", user["role"])
	assert.Equal(t, green.ID.String(), user["organization"])

	code, _ = send(t, app, "PATCH", "/users/"+uuid.New().String()+"/membership", nil)
	assert.Equal(t, fiber.StatusNotFound, code)
}
