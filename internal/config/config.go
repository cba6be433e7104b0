package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	LogLevel            string
	DatabaseURL         string // postgres:// URL, or sqlite:<path> / file path for local runs
	AutoMigrate         bool
	RedisURL            string
	SessionSecret       string
	JWTSecret           string
	JWTTTL              time.Duration
	FrontendURLEndsWith string
	DevPassword         string
	AllowCrossSiteDev   bool
	HealthAdminKey      string
	Bootstrap           Bootstrap
}

// Bootstrap describes the first organization and admin ensured at startup.
// Empty AdminEmail disables it.
type Bootstrap struct {
	OrgName       string
	OrgLicence    string
	AdminEmail    string
	AdminPassword string
}

func (b Bootstrap) Enabled() bool {
	return b.AdminEmail != ""
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8000")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("JWT_TTL", "1h")
	viper.SetDefault("AUTO_MIGRATE", "true")
	viper.SetDefault("BOOTSTRAP_ORG_NAME", "Default Organization")
	viper.SetDefault("BOOTSTRAP_ORG_LICENCE", "N/A")

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	dbURL := viper.GetString("DATABASE_URL_DEV")
	if env == "production" {
		dbURL = viper.GetString("DATABASE_URL_PROD")
	} else if env == "test" {
		dbURL = viper.GetString("DATABASE_URL_TEST")
	}
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}

	ttl := viper.GetDuration("JWT_TTL")
	if ttl <= 0 {
		ttl = time.Hour
	}

	jwtSecret := viper.GetString("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = viper.GetString("SESSION_SECRET")
	}

	return &Config{
		Env:                 env,
		Port:                viper.GetString("PORT"),
		LogLevel:            viper.GetString("LOG_LEVEL"),
		DatabaseURL:         dbURL,
		AutoMigrate:         viper.GetBool("AUTO_MIGRATE"),
		RedisURL:            viper.GetString("REDIS_URL"),
		SessionSecret:       viper.GetString("SESSION_SECRET"),
		JWTSecret:           jwtSecret,
		JWTTTL:              ttl,
		FrontendURLEndsWith: viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         viper.GetString("DEV_PASSWORD"),
		AllowCrossSiteDev:   strings.EqualFold(viper.GetString("ALLOW_CROSS_SITE_DEV"), "true"),
		HealthAdminKey:      viper.GetString("HEALTH_ADMIN_KEY"),
		Bootstrap: Bootstrap{
			OrgName:       strings.TrimSpace(viper.GetString("BOOTSTRAP_ORG_NAME")),
			OrgLicence:    strings.TrimSpace(viper.GetString("BOOTSTRAP_ORG_LICENCE")),
			AdminEmail:    strings.TrimSpace(viper.GetString("BOOTSTRAP_ADMIN_EMAIL")),
			AdminPassword: viper.GetString("BOOTSTRAP_ADMIN_PASSWORD"),
		},
	}, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
