package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	authsvc "solv-backend/internal/application/auth"
	"solv-backend/internal/domain"
	"solv-backend/internal/middleware"
	"solv-backend/internal/pkg/constants"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUserFinder for tests: returns configured user or error.
type fakeUserFinder struct {
	user *domain.User
}

func (f *fakeUserFinder) FindByCredentials(_ context.Context, in authsvc.LoginInput) (*domain.User, error) {
	if (in.Username == "" && in.Email == "") || in.Password == "" {
		return nil, authsvc.ErrCredentialsRequired
	}
	if f.user != nil && (in.Username == f.user.Username || in.Email == f.user.Email) && in.Password == "Passw0rd!" {
		return f.user, nil
	}
	return nil, authsvc.ErrInvalidCredentials
}

func setupAuthHandlers(t *testing.T, finder authsvc.UserFinder) (*Handlers, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	h := &Handlers{
		UserFinder: finder,
		Tokens:     &authsvc.TokenIssuer{Secret: []byte("test-secret"), TTL: time.Hour},
		Rdb:        rdb,
		Config:     middleware.SessionConfig{},
	}
	return h, rdb
}

func grower() *domain.User {
	org := uuid.New()
	return &domain.User{ID: uuid.New(), Username: "grower", Email: "grower@greenfarm.io", Role: constants.Worker, OrganizationID: &org}
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	b, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	_ = json.Unmarshal(raw, &out)
	return resp, out
}

func TestLogin_MissingCredentials(t *testing.T) {
	h, _ := setupAuthHandlers(t, &fakeUserFinder{})
	app := fiber.New()
	app.Post("/login", h.Login)

	resp, _ := postJSON(t, app, "/login", map[string]string{"email": "a@b.com"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	h, _ := setupAuthHandlers(t, &fakeUserFinder{user: grower()})
	app := fiber.New()
	app.Post("/login", h.Login)

	resp, _ := postJSON(t, app, "/login", map[string]string{"username": "grower", "password": "wrong"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestLogin_Success(t *testing.T) {
	u := grower()
	h, rdb := setupAuthHandlers(t, &fakeUserFinder{user: u})
	app := fiber.New()
	app.Use(middleware.Session(rdb))
	app.Post("/login", h.Login)

	resp, out := postJSON(t, app, "/login", map[string]string{"username": "grower", "password": "Passw0rd!"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Login successful", out["message"])
	data, _ := out["data"].(map[string]interface{})
	user, _ := data["user"].(map[string]interface{})
	require.NotNil(t, user)
	assert.Equal(t, u.OrganizationID.String(), user["org_id"])

	cookies := resp.Header.Values("Set-Cookie")
	require.NotEmpty(t, cookies)
	assert.Contains(t, cookies[0], middleware.SessionCookieName+"=")

	ids, err := rdb.SMembers(context.Background(), middleware.UserSessionsPrefix+u.ID.String()).Result()
	require.NoError(t, err)
	require.Len(t, ids, 1)
	n, err := rdb.Exists(context.Background(), middleware.SessionRedisPrefix+ids[0]).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestToken_IssuesVerifiableBearer(t *testing.T) {
	u := grower()
	h, _ := setupAuthHandlers(t, &fakeUserFinder{user: u})
	app := fiber.New()
	app.Post("/token", h.Token)
	app.Get("/me", middleware.RequireAuth(h.Tokens), h.Me)

	resp, out := postJSON(t, app, "/token", map[string]string{"email": "grower@greenfarm.io", "password": "Passw0rd!"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	data, _ := out["data"].(map[string]interface{})
	assert.Equal(t, "Bearer", data["token_type"])
	assert.Equal(t, float64(3600), data["expires_in"])
	access, _ := data["access"].(string)
	require.NotEmpty(t, access)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	meResp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, meResp.StatusCode)
	raw, _ := io.ReadAll(meResp.Body)
	var me map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &me))
	meUser := me["data"].(map[string]interface{})["user"].(map[string]interface{})
	assert.Equal(t, u.ID.String(), meUser["user_id"])
	assert.Equal(t, u.OrganizationID.String(), meUser["org_id"])
}

func TestToken_InvalidCredentials(t *testing.T) {
	h, _ := setupAuthHandlers(t, &fakeUserFinder{user: grower()})
	app := fiber.New()
	app.Post("/token", h.Token)

	resp, out := postJSON(t, app, "/token", map[string]string{"username": "grower", "password": "nope"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	errBody, _ := out["error"].(map[string]interface{})
	assert.Equal(t, authsvc.ErrInvalidCredentials.Error(), errBody["message"])
}

func TestMe_NoCredentials(t *testing.T) {
	h, _ := setupAuthHandlers(t, &fakeUserFinder{})
	app := fiber.New()
	app.Get("/me", middleware.RequireAuth(h.Tokens), h.Me)

	resp, err := app.Test(httptest.NewRequest("GET", "/me", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestLogout_RemovesSession(t *testing.T) {
	u := grower()
	h, rdb := setupAuthHandlers(t, &fakeUserFinder{user: u})
	app := fiber.New()
	app.Use(middleware.Session(rdb))
	app.Post("/login", h.Login)
	app.Delete("/logout", h.Logout)

	resp, _ := postJSON(t, app, "/login", map[string]string{"username": "grower", "password": "Passw0rd!"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	ids, err := rdb.SMembers(context.Background(), middleware.UserSessionsPrefix+u.ID.String()).Result()
	require.NoError(t, err)
	require.Len(t, ids, 1)

	req := httptest.NewRequest("DELETE", "/logout", nil)
	req.Header.Set("Cookie", middleware.SessionCookieName+"=s:"+ids[0])
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	n, err := rdb.Exists(context.Background(), middleware.SessionRedisPrefix+ids[0]).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	left, err := rdb.SMembers(context.Background(), middleware.UserSessionsPrefix+u.ID.String()).Result()
	require.NoError(t, err)
	assert.Empty(t, left)
}
