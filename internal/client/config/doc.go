// Package config loads runtime configuration for the Kopeck CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Environment variables, optionally loaded from a .env file (see parseEnv).
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the backend REST API
//	-r string   websocket URL of the realtime endpoint
//	-k string   project API key
//	-f string   local replica database file
//	-l string   rotating log file
//	-t int      request timeout (seconds)
//	-i int      online status check interval (seconds)
//	-s int      sync interval (seconds)
//	-w          watch the replica database for external writes
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "30s" or integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "https://api.example.com",
//	  "realtime_endpoint_addr": "wss://api.example.com/realtime/v1",
//	  "api_key": "anon-key",
//	  "database_path": "kopeck.db",
//	  "log_file": "kopeck.log",
//	  "request_timeout": "10s",
//	  "online_check_interval": "3s",
//	  "sync_interval": "30s",
//	  "watch_replica": true
//	}
//
// Primary API
//
//   - type Config                     — all runtime settings of the CLI
//   - func LoadConfig() *Config       — builds Config by applying defaults, JSON, env, then flags
//   - func (*Config) LoadDefaults()   — sets sensible defaults
package config
