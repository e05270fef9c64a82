package cli

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/dmitrijs2005/kopeck/internal/client/client"
	"github.com/dmitrijs2005/kopeck/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login prompts the user for credentials and authenticates against the
// backend. A successful login persists the session, subscribes the realtime
// channel and kicks off a catch-up sync.
//
// The password is wiped before returning. Logging in requires the server;
// an unreachable backend leaves the previous session (if any) in place.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.authService.Login(ctx, email, string(password)); err != nil {
		if errors.Is(err, client.ErrUnavailable) {
			log.Printf("Server unavailable, try again once the connection is back")
		} else {
			log.Printf("Login unsuccessful: %s", err.Error())
		}
		return err
	}

	log.Printf("Login successful")
	a.setMode(ModeOnline)
	a.startSession(ctx)
	return nil
}

// Logout drops the local session and stops the realtime subscription.
// Replica data stays on disk for the next login.
func (a *App) Logout(ctx context.Context) error {
	if err := a.authService.Logout(ctx); err != nil {
		log.Printf("Logout error: %s", err.Error())
		return err
	}
	a.stopSession()
	return nil
}
