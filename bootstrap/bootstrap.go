package bootstrap

import (
	"net/http"

	"solv-backend/internal/config"
	"solv-backend/internal/interfaces/router"
	"solv-backend/internal/pkg/logger"

	"github.com/rs/zerolog/log"
)

// NewHandler builds the app for serverless deployments and adapts it to
// net/http. The api handler imports this package, not internal.
func NewHandler() (http.Handler, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log.Logger = logger.Setup(cfg.Env, cfg.LogLevel)
	app, _, _, err := router.CreateApp(cfg)
	if err != nil {
		return nil, err
	}
	return router.Handler(app), nil
}
