package cli

import (
	"bufio"
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dmitrijs2005/kopeck/internal/client/autosync"
	"github.com/dmitrijs2005/kopeck/internal/client/client"
	"github.com/dmitrijs2005/kopeck/internal/client/config"
	"github.com/dmitrijs2005/kopeck/internal/client/models"
	"github.com/dmitrijs2005/kopeck/internal/client/realtime"
	"github.com/dmitrijs2005/kopeck/internal/client/services"
	"github.com/dmitrijs2005/kopeck/internal/logging"

	_ "modernc.org/sqlite"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config *config.Config
	logger logging.Logger
	repos  *client.Repositories

	authService      services.AuthService
	ledgerService    services.LedgerService
	syncService      services.SyncService
	recurringService services.RecurringService

	channel *realtime.Channel
	watcher *autosync.Watcher

	Mode   Mode
	reader *bufio.Reader
}

// newLogger builds the file logger of the CLI. The terminal belongs to the
// REPL, so structured output goes to a rotating file instead.
func newLogger(logFile string) logging.Logger {
	writer := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
	}
	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{Level: slog.LevelInfo})
	return logging.NewSlogLogger(slog.New(handler))
}

func NewApp(c *config.Config) (*App, error) {

	ctx := context.Background()

	logger := newLogger(c.LogFile)

	repos, err := client.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		log.Printf("error initializing database: %s", err.Error())
		return nil, err
	}

	apiClient := client.NewHTTPClient(c.ServerEndpointAddr, c.APIKey, c.RequestTimeout)

	as := services.NewAuthService(apiClient, repos.DB)
	apiClient.SetTokenSource(as)

	ls := services.NewLedgerService(repos.DB)
	ss := services.NewSyncService(apiClient, as, repos.DB, logger)
	rs := services.NewRecurringService(repos.DB, logger)

	app := &App{
		config:           c,
		logger:           logger,
		repos:            repos,
		authService:      as,
		ledgerService:    ls,
		syncService:      ss,
		recurringService: rs,
		Mode:             ModeOffline,
		reader:           bufio.NewReader(os.Stdin),
	}

	channel := realtime.NewChannel(realtime.Config{
		URL:   c.RealtimeEndpointAddr,
		Topic: "changes",
	}, as, logger)
	channel.OnEvent = app.onRealtimeEvent
	channel.OnStatus = func(status realtime.Status) {
		logger.Info(ctx, "realtime status", "status", string(status))
	}
	app.channel = channel

	if c.WatchReplica {
		app.watcher = autosync.NewWatcher(c.DatabasePath, 0, func() {
			app.syncService.Sync(context.Background())
		}, logger)
	}

	return app, nil
}

// onRealtimeEvent routes one pushed row change into the sync engine.
func (a *App) onRealtimeEvent(ctx context.Context, event *realtime.Event) {
	var err error
	switch event.Type {
	case realtime.EventDelete:
		// Deletions carry the row in old; some backends send only new.
		row := event.Old
		if len(row) == 0 {
			row = event.New
		}
		err = a.syncService.ApplyRemoteDelete(ctx, event.Table, row)
	case realtime.EventInsert, realtime.EventUpdate:
		err = a.syncService.ApplyRemoteChange(ctx, event.Table, event.New)
	default:
		a.logger.Warn(ctx, "unknown realtime event type", "type", string(event.Type))
		return
	}
	if err != nil {
		a.logger.Warn(ctx, "realtime event rejected",
			"table", string(event.Table), "type", string(event.Type), "error", err)
	}
}

func (a *App) setMode(mode Mode) {
	if a.Mode != mode {
		a.Mode = mode
		log.Printf("Switched to %s mode\n", mode)
	}
}

func (a *App) Run(ctx context.Context) {
	defer func() {
		if a.watcher != nil {
			a.watcher.Stop()
		}
		a.channel.Close()
		a.authService.Close(ctx)
		a.repos.DB.Close()
	}()
	a.Root(ctx)
}

func (a *App) isLoggedIn() bool {
	return a.authService.CurrentUserID() != ""
}

// startSession brings up the live parts after a successful login or restore:
// the realtime subscription and an immediate catch-up sync.
func (a *App) startSession(ctx context.Context) {
	if a.channel != nil {
		a.channel.Subscribe(ctx)
	}
	go a.runSyncCycle(ctx)
}

func (a *App) stopSession() {
	if a.channel != nil {
		a.channel.Unsubscribe()
	}
}

// runSyncCycle materializes due recurring transactions, then runs one
// push/pull cycle.
func (a *App) runSyncCycle(ctx context.Context) {
	if _, err := a.recurringService.GenerateDue(ctx); err != nil {
		a.logger.Warn(ctx, "recurring generation failed", "error", err)
	}
	a.syncService.Sync(ctx)
}

// StartOnlineStatusWatcher probes the backend on the given interval and
// drives the connectivity mode. Transitions flip the realtime channel and a
// recovered connection triggers an immediate sync.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err := a.authService.Ping(pingCtx)
			cancel()

			if err != nil {
				if a.Mode == ModeOnline {
					a.setMode(ModeOffline)
					a.channel.SetOnline(ctx, false)
				}
			} else {
				if a.Mode != ModeOnline {
					a.setMode(ModeOnline)
					a.channel.SetOnline(ctx, true)
					if a.isLoggedIn() {
						go a.runSyncCycle(ctx)
					}
				}
			}

		case <-ctx.Done():
			return
		}
	}
}

// StartSyncTicker runs a background sync cycle on the given interval while a
// user is signed in.
func (a *App) StartSyncTicker(ctx context.Context, interval time.Duration) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if a.isLoggedIn() {
				a.runSyncCycle(ctx)
			}
		case <-ctx.Done():
			return
		}
	}
}

// currentYearMonth is the default month for list and summary commands.
func currentYearMonth() string {
	return models.YearMonth(time.Now().Format("2006-01-02"))
}
