package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/common"
	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	loggedIn bool

	calls []string
	args  [][]string
	fail  map[string]error
}

func (f *fakeExec) record(name string, args []string) error {
	f.calls = append(f.calls, name)
	f.args = append(f.args, args)
	return f.fail[name]
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }

func (f *fakeExec) Register(ctx context.Context) error { return f.record("register", nil) }
func (f *fakeExec) Me(ctx context.Context) error       { return f.record("me", nil) }
func (f *fakeExec) Resend(ctx context.Context) error   { return f.record("resend", nil) }
func (f *fakeExec) Forgot(ctx context.Context) error   { return f.record("forgot", nil) }
func (f *fakeExec) Status(ctx context.Context) error   { return f.record("status", nil) }

func (f *fakeExec) ChangePassword(ctx context.Context) error {
	return f.record("passwd", nil)
}
func (f *fakeExec) Verify(ctx context.Context, args []string) error {
	return f.record("verify", args)
}
func (f *fakeExec) ChangeEmail(ctx context.Context, args []string) error {
	return f.record("email", args)
}
func (f *fakeExec) Reset(ctx context.Context, args []string) error {
	return f.record("reset", args)
}
func (f *fakeExec) TwoFactor(ctx context.Context, args []string) error {
	return f.record("2fa", args)
}
func (f *fakeExec) Login(ctx context.Context) error {
	f.loggedIn = true
	return f.record("login", nil)
}
func (f *fakeExec) Logout(ctx context.Context) error {
	f.loggedIn = false
	return f.record("logout", nil)
}

func capturePrintln(t *testing.T) *[]string {
	t.Helper()
	var printed []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		printed = append(printed, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &printed
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	capturePrintln(t)

	input := strings.Join([]string{
		"help",
		"register",
		"login",
		"",
		"me",
		"verify abc",
		"resend",
		"email new@example.com",
		"passwd",
		"2fa setup",
		"status",
		"forgot",
		"reset def",
		"logout",
		"exit",
		"me",
	}, "\n")

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "s" }, bufio.NewReader(strings.NewReader(input)))

	assert.Equal(t, []string{
		"register", "login", "me", "verify", "resend", "email", "passwd",
		"2fa", "status", "forgot", "reset", "logout",
	}, exec.calls)
	assert.Equal(t, []string{"abc"}, exec.args[3])
	assert.Equal(t, []string{"new@example.com"}, exec.args[5])
	assert.Equal(t, []string{"setup"}, exec.args[7])
	assert.Equal(t, []string{"def"}, exec.args[10])
}

func TestRunREPL_PrintsErrorsAndContinues(t *testing.T) {
	printed := capturePrintln(t)

	exec := &fakeExec{fail: map[string]error{"login": common.ErrInvalidCredentials}}
	runREPL(context.Background(), exec, func() string { return "s" }, bufio.NewReader(strings.NewReader("login\nbogus\nstatus\nquit\n")))

	assert.Equal(t, []string{"login", "status"}, exec.calls)
	assert.Contains(t, *printed, "Error: Wrong email or password.")
	assert.Contains(t, *printed, "Unknown command: bogus")
	assert.Equal(t, "Bye!", (*printed)[len(*printed)-1])
}

func TestRunREPL_HelpDependsOnSession(t *testing.T) {
	printed := capturePrintln(t)

	exec := &fakeExec{loggedIn: true}
	runREPL(context.Background(), exec, func() string { return "s" }, bufio.NewReader(strings.NewReader("help\n")))

	assert.Contains(t, strings.Join(*printed, "\n"), "logout")
	assert.NotContains(t, strings.Join(*printed, "\n"), "register")
}

func TestRunREPL_StopsOnEOF(t *testing.T) {
	capturePrintln(t)

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "s" }, bufio.NewReader(strings.NewReader("")))

	assert.Empty(t, exec.calls)
}
