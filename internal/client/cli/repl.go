package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Guest(ctx context.Context) error
	Login(ctx context.Context) error
	TokenLogin(ctx context.Context) error
	EmailLogin(ctx context.Context) error
	Register(ctx context.Context) error
	ResetPassword(ctx context.Context) error
	ConfirmEmail(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	WhoIs(ctx context.Context, args []string) error
	SetProperties(ctx context.Context) error
	Logout(ctx context.Context) error
}

// runREPL starts a simple read–eval–print loop for the gophmaster CLI.
//
// It reads a line from reader, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on EOF or when the user types
// "exit" or "quit".
//
// Prompt & Commands
//
//	Signed out:
//	  - guest          play as a new guest account
//	  - login          username and password
//	  - token          resume a remembered session
//	  - emaillogin     get a password by email
//	  - register       create an account
//	  - reset          reset a forgotten password
//	  - whois NAME     show another account
//
//	Signed in:
//	  - whoami         show the current account
//	  - whois NAME     show another account
//	  - register       upgrade a guest account
//	  - confirm        confirm the account email
//	  - props          set extra properties
//	  - reset          change the password by email code
//	  - logout         end the session
//
// Prompts issued by the handlers read from the same reader, so commands
// and their answers may be piped in together.
//
// Errors returned by command handlers are ignored here; handlers report
// them to the user themselves.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("gm %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: whoami, whois, register, confirm, props, reset, logout, exit")
			} else {
				printlnFn("Available commands: guest, login, token, emaillogin, register, reset, whois, exit")
			}

		case "guest":
			_ = a.Guest(ctx)

		case "login":
			_ = a.Login(ctx)

		case "token":
			_ = a.TokenLogin(ctx)

		case "emaillogin":
			_ = a.EmailLogin(ctx)

		case "register":
			_ = a.Register(ctx)

		case "reset":
			_ = a.ResetPassword(ctx)

		case "confirm":
			_ = a.ConfirmEmail(ctx)

		case "whoami":
			_ = a.WhoAmI(ctx)

		case "whois":
			_ = a.WhoIs(ctx, args)

		case "props":
			_ = a.SetProperties(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
