package config

import "time"

// Config holds runtime settings for the Kopeck CLI.
//
// Fields:
//   - ServerEndpointAddr: base URL of the backend REST API.
//   - RealtimeEndpointAddr: websocket URL of the realtime endpoint.
//   - APIKey: project API key sent with every request.
//   - DatabasePath: path of the local replica database file.
//   - LogFile: path of the rotating log file.
//   - RequestTimeout: per-request HTTP timeout.
//   - OnlineCheckInterval: how often the client probes server reachability.
//   - SyncInterval: how often a background sync cycle runs.
//   - WatchReplica: react to replica writes made by other processes.
type Config struct {
	ServerEndpointAddr   string
	RealtimeEndpointAddr string
	APIKey               string
	DatabasePath         string
	LogFile              string
	RequestTimeout       time.Duration
	OnlineCheckInterval  time.Duration
	SyncInterval         time.Duration
	WatchReplica         bool
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "http://127.0.0.1:8000"
	c.RealtimeEndpointAddr = "ws://127.0.0.1:8000/realtime/v1"
	c.APIKey = ""
	c.DatabasePath = "kopeck.db"
	c.LogFile = "kopeck.log"
	c.RequestTimeout = 10 * time.Second
	c.OnlineCheckInterval = 3 * time.Second
	c.SyncInterval = 30 * time.Second
	c.WatchReplica = false
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), environment variables and command-line flags. Later
// sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
