package cli

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/gophmaster/internal/client/client"
	"github.com/dmitrijs2005/gophmaster/internal/common"
	"github.com/dmitrijs2005/gophmaster/internal/packet"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Guest signs in with a freshly created guest account.
func (a *App) Guest(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	info, err := a.api.SignInAsGuest(ctx)
	if err != nil {
		return a.report("Guest sign-in", err)
	}
	a.signedIn(ctx, info)
	return nil
}

// Login prompts for a username and password. Answering yes to "remember"
// keeps the issued token for the token command.
func (a *App) Login(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	answer, err := getSimpleText(a.reader, "Remember this device? (y/n)", a.out)
	if err != nil {
		return err
	}
	remember := strings.HasPrefix(strings.ToLower(answer), "y")

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	info, err := a.api.SignInWithPassword(ctx, username, string(password), remember)
	if err != nil {
		return a.report("Login", err)
	}
	a.signedIn(ctx, info)
	return nil
}

// TokenLogin resumes a remembered session. It uses the token from this run,
// then the one saved for this server, and otherwise asks the user to paste
// one. A token the server no longer accepts is forgotten.
func (a *App) TokenLogin(ctx context.Context) error {
	token := a.token
	if token == "" {
		if r := a.savedToken(ctx); r != nil {
			token = r.Token
			a.println("Using saved token for " + r.Username)
		}
	}
	if token == "" {
		var err error
		if token, err = getSimpleText(a.reader, "Paste token", a.out); err != nil {
			return err
		}
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	info, err := a.api.SignInWithToken(ctx, token)
	if err != nil {
		if st, ok := client.StatusOf(err); ok && st == packet.StatusTokenExpired {
			a.forget(ctx)
		}
		return a.report("Token login", err)
	}
	a.signedIn(ctx, info)
	return nil
}

// EmailLogin asks the server to mail a new password for an address.
func (a *App) EmailLogin(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.api.SignInWithEmail(ctx, email); err != nil {
		return a.report("Email login", err)
	}
	a.println("A password was sent to " + email + ", use it with login")
	return nil
}

// Register creates a full account, or upgrades the current guest account.
func (a *App) Register(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	info, err := a.api.SignUp(ctx, username, email, string(password))
	if err != nil {
		return a.report("Registration", err)
	}

	if a.account != nil && a.account.IsGuest {
		a.account = info
		a.println("Guest account upgraded to " + info.Username)
		return nil
	}
	a.println("Success! Use login to sign in as " + info.Username)
	return nil
}

// Logout ends the session but keeps the connection and any saved token.
func (a *App) Logout(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.api.SignOut(ctx); err != nil {
		return a.report("Logout", err)
	}
	a.account = nil
	a.println("Signed out")
	return nil
}
