package cli

import (
	"context"
	"fmt"
)

func (a *App) getStatus() string {
	if a.account == nil {
		return ""
	}
	s := a.account.Username
	if a.account.IsGuest {
		s += " guest"
	}
	return fmt.Sprintf("(%s) ", s)
}

// Root runs the REPL until the user exits or input ends.
func (a *App) Root(ctx context.Context) {
	a.println("Welcome to gophmaster CLI (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader)
}
