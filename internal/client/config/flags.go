package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/kopeck/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the backend REST API
//	-r string   websocket URL of the realtime endpoint
//	-k string   project API key
//	-f string   local replica database file
//	-l string   rotating log file
//	-t int      request timeout in seconds
//	-i int      online check interval in seconds
//	-s int      sync interval in seconds
//	-w          watch the replica for writes by other processes
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	// Filter args to include only those handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-r", "-k", "-f", "-l", "-t", "-i", "-s", "-w"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "base URL of the backend REST API")
	fs.StringVar(&cfg.RealtimeEndpointAddr, "r", cfg.RealtimeEndpointAddr, "websocket URL of the realtime endpoint")
	fs.StringVar(&cfg.APIKey, "k", cfg.APIKey, "project API key")
	fs.StringVar(&cfg.DatabasePath, "f", cfg.DatabasePath, "local replica database file")
	fs.StringVar(&cfg.LogFile, "l", cfg.LogFile, "rotating log file")
	requestTimeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	syncInterval := fs.Int("s", int(cfg.SyncInterval.Seconds()), "sync interval (in seconds)")
	fs.BoolVar(&cfg.WatchReplica, "w", cfg.WatchReplica, "watch the replica database for external writes")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*requestTimeout) * time.Second
	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	cfg.SyncInterval = time.Duration(*syncInterval) * time.Second
}
