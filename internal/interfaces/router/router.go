package router

import (
	"context"
	"fmt"
	"net/http"

	authsvc "solv-backend/internal/application/auth"
	orgsvc "solv-backend/internal/application/org"
	unitsvc "solv-backend/internal/application/units"
	usersvc "solv-backend/internal/application/user"
	"solv-backend/internal/config"
	"solv-backend/internal/infrastructure/database"
	authhandler "solv-backend/internal/interfaces/handlers/auth"
	healthhandler "solv-backend/internal/interfaces/handlers/health"
	orghandler "solv-backend/internal/interfaces/handlers/org"
	unithandler "solv-backend/internal/interfaces/handlers/units"
	userhandler "solv-backend/internal/interfaces/handlers/user"
	"solv-backend/internal/middleware"
	"solv-backend/internal/pkg/constants"
	"solv-backend/internal/seed"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type gormDBPinger struct {
	db *gorm.DB
}

func (g *gormDBPinger) Ping(ctx context.Context) error {
	return database.Ping(ctx, g.db)
}

// CreateApp opens the database and Redis from cfg and builds the app.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil, nil, fmt.Errorf("no database URL configured for APP_ENV=%s", cfg.Env)
	}
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			return nil, nil, nil, fmt.Errorf("migrate: %w", err)
		}
	}
	if err := seed.Run(context.Background(), db, cfg.Bootstrap); err != nil {
		return nil, nil, nil, err
	}
	rdb, err := middleware.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("redis: %w", err)
	}
	return New(cfg, db, rdb), db, rdb, nil
}

// New registers global middleware and all routes on a fresh app.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())
	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))
	app.Use(middleware.Session(rdb))
	app.Use(middleware.HealthMarker(rdb))

	hh := &healthhandler.Handlers{
		Rdb:            rdb,
		DB:             &gormDBPinger{db: db},
		HealthAdminKey: cfg.HealthAdminKey,
	}
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)

	sessionCfg := middleware.SessionConfig{
		Secret:            cfg.SessionSecret,
		RedisURL:          cfg.RedisURL,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.IsProduction(),
	}
	tokens := &authsvc.TokenIssuer{Secret: []byte(cfg.JWTSecret), TTL: cfg.JWTTTL}
	requireAuth := middleware.RequireAuth(tokens)

	api := app.Group("/api/v1")
	api.Get("/health/json", hh.JSON)

	ah := &authhandler.Handlers{
		UserFinder: &authsvc.GormUserFinder{DB: db},
		Tokens:     tokens,
		Rdb:        rdb,
		Config:     sessionCfg,
	}
	ag := api.Group("/auth")
	ag.Post("/login", ah.Login)
	ag.Post("/token", ah.Token)
	ag.Get("/me", requireAuth, ah.Me)
	ag.Delete("/logout", ah.Logout)

	uh := &userhandler.Handlers{Service: &usersvc.Service{DB: db, Rdb: rdb}, Config: sessionCfg}
	api.Post("/users/register", uh.Register)
	ug := api.Group("/users", requireAuth)
	ug.Get("/:id", uh.Get)
	ug.Patch("/:id/membership", middleware.AuthorizePermission(constants.AssignMembership), uh.AssignMembership)

	oh := &orghandler.Handlers{Service: &orgsvc.Service{DB: db, Rdb: rdb}}
	og := api.Group("/organizations", requireAuth)
	og.Get("/", oh.List)
	og.Post("/", middleware.AuthorizePermission(constants.CreateOrganization), oh.Create)
	og.Get("/:id", oh.Get)
	og.Put("/:id", middleware.AuthorizePermission(constants.ManageOrganization), oh.Replace)
	og.Patch("/:id", middleware.AuthorizePermission(constants.ManageOrganization), oh.Patch)
	og.Delete("/:id", middleware.AuthorizePermission(constants.ManageOrganization), oh.Delete)

	unh := &unithandler.Handlers{Service: &unitsvc.Service{DB: db}}
	ung := api.Group("/units", requireAuth)
	ung.Get("/", unh.List)
	ung.Post("/", unh.Create)
	ung.Get("/:id", unh.Get)
	ung.Put("/:id", unh.Replace)
	ung.Patch("/:id", unh.Patch)
	ung.Delete("/:id", unh.Delete)
	ung.Get("/:id/lineage", unh.Lineage)
	ung.Get("/:id/children", unh.Children)

	return app
}

// Handler adapts the app to net/http (serverless entry points).
func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}
