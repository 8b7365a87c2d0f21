package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for REPL output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Me(ctx context.Context) error
	Verify(ctx context.Context, args []string) error
	Resend(ctx context.Context) error
	ChangeEmail(ctx context.Context, args []string) error
	ChangePassword(ctx context.Context) error
	Forgot(ctx context.Context) error
	Reset(ctx context.Context, args []string) error
	TwoFactor(ctx context.Context, args []string) error
	Status(ctx context.Context) error
	Logout(ctx context.Context) error
}

// runREPL reads one command per line from reader and dispatches it to a.
//
// Prompt & Commands
//
// The prompt shows the current status (from statusFn) and accepts commands:
//
//	Always:
//	  - help                  show available commands
//	  - status                show the session and route decisions
//	  - verify <token>        confirm an email address
//	  - forgot                request a password reset link
//	  - reset <token>         set a new password from a reset link
//	  - exit | quit           leave the program
//
//	Not logged in:
//	  - register              create an account
//	  - login                 sign in
//
//	Logged in:
//	  - me                    show the account
//	  - resend                send a new verification link
//	  - email <new address>   change the email address
//	  - passwd                change the password
//	  - 2fa setup|email|disable
//	  - logout                sign out
//
// Errors returned by command handlers are printed and the loop goes on.
// The loop exits on EOF or when the user types "exit" or "quit".
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("cryptofolio %s > ", statusFn()))
		line, err := readLine(reader)
		if err != nil {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: me, status, resend, verify, email, passwd, 2fa, logout, exit")
			} else {
				printlnFn("Available commands: register, login, verify, forgot, reset, status, exit")
			}

		case "register":
			cmdErr = a.Register(ctx)
		case "login":
			cmdErr = a.Login(ctx)
		case "me":
			cmdErr = a.Me(ctx)
		case "verify":
			cmdErr = a.Verify(ctx, args)
		case "resend":
			cmdErr = a.Resend(ctx)
		case "email":
			cmdErr = a.ChangeEmail(ctx, args)
		case "passwd":
			cmdErr = a.ChangePassword(ctx)
		case "forgot":
			cmdErr = a.Forgot(ctx)
		case "reset":
			cmdErr = a.Reset(ctx, args)
		case "2fa":
			cmdErr = a.TwoFactor(ctx, args)
		case "status":
			cmdErr = a.Status(ctx)
		case "logout":
			cmdErr = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("Error:", describeError(cmdErr))
		}
	}
}
