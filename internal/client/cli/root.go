package cli

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
)

func (a *App) getStatus() string {
	s := ""
	if email := a.authService.CurrentEmail(); email != "" {
		s = email + " "
	}
	if a.Mode != "" {
		s = s + string(a.Mode)
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

// Root restores a persisted session, starts the background loops and hands
// control to the REPL. It blocks until the user exits.
func (a *App) Root(ctx context.Context) {

	log.Println("Welcome to Kopeck CLI (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)

	if err := a.authService.Restore(ctx); err != nil {
		log.Printf("error restoring session: %v", err)
	}
	if a.isLoggedIn() {
		log.Printf("Welcome back, %s", a.authService.CurrentEmail())
		a.startSession(ctx)
	}

	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)
	go a.StartSyncTicker(ctx, a.config.SyncInterval)

	if a.watcher != nil {
		if err := a.watcher.Start(ctx); err != nil {
			log.Printf("error starting replica watcher: %v", err)
		}
	}

	runREPL(ctx, a, a.getStatus, scanner)
}
