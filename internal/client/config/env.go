package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config with values from environment variables, loading a
// .env file from the working directory first when one exists. Variables that
// are unset or fail to parse leave the current value untouched.
//
// Recognized variables:
//
//	KOPECK_SERVER_ADDR            base URL of the backend REST API
//	KOPECK_REALTIME_ADDR          websocket URL of the realtime endpoint
//	KOPECK_API_KEY                project API key
//	KOPECK_DB_PATH                local replica database file
//	KOPECK_LOG_FILE               rotating log file
//	KOPECK_REQUEST_TIMEOUT        duration, e.g. "10s"
//	KOPECK_ONLINE_CHECK_INTERVAL  duration, e.g. "3s"
//	KOPECK_SYNC_INTERVAL          duration, e.g. "30s"
//	KOPECK_WATCH_REPLICA          bool, e.g. "true"
func parseEnv(cfg *Config) {
	godotenv.Load()

	envString("KOPECK_SERVER_ADDR", &cfg.ServerEndpointAddr)
	envString("KOPECK_REALTIME_ADDR", &cfg.RealtimeEndpointAddr)
	envString("KOPECK_API_KEY", &cfg.APIKey)
	envString("KOPECK_DB_PATH", &cfg.DatabasePath)
	envString("KOPECK_LOG_FILE", &cfg.LogFile)
	envDuration("KOPECK_REQUEST_TIMEOUT", &cfg.RequestTimeout)
	envDuration("KOPECK_ONLINE_CHECK_INTERVAL", &cfg.OnlineCheckInterval)
	envDuration("KOPECK_SYNC_INTERVAL", &cfg.SyncInterval)
	envBool("KOPECK_WATCH_REPLICA", &cfg.WatchReplica)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envDuration(key string, dst *time.Duration) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
	}
}

func envBool(key string, dst *bool) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if b, err := strconv.ParseBool(v); err == nil {
		*dst = b
	}
}
