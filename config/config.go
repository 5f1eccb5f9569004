// Package config loads server configuration from the environment,
// with an optional .env file for development.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all server settings.
type Config struct {
	Port   int
	DBPath string

	// CORSOrigins are the allowed browser origins for the SPA front end.
	CORSOrigins []string

	// AutoClose enables the background loop that closes past workdays
	// still holding pending visits.
	AutoClose         bool
	AutoCloseInterval time.Duration
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first when present.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("[cfg] no .env file loaded: %v", err)
	}

	get := func(k, def string) string {
		if v := os.Getenv(k); v != "" {
			return v
		}
		return def
	}

	port, err := strconv.Atoi(get("PORT", "8080"))
	if err != nil {
		log.Printf("[cfg] invalid PORT, using 8080: %v", err)
		port = 8080
	}

	interval, err := time.ParseDuration(get("AUTO_CLOSE_INTERVAL", "1h"))
	if err != nil {
		log.Printf("[cfg] invalid AUTO_CLOSE_INTERVAL, using 1h: %v", err)
		interval = time.Hour
	}

	cfg := Config{
		Port:              port,
		DBPath:            get("DB_PATH", "visits.db"),
		CORSOrigins:       []string{get("CORS_ORIGIN", "http://localhost:5173")},
		AutoClose:         get("AUTO_CLOSE", "false") == "true",
		AutoCloseInterval: interval,
	}
	log.Printf("[cfg] port=%d db=%s auto_close=%v", cfg.Port, cfg.DBPath, cfg.AutoClose)
	return cfg
}
