package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/client/client"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/client/config"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/client/repositories/tokens"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/client/session"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/common"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/logging"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
)

type App struct {
	config *config.Config
	api    client.Client
	ctl    *session.Controller
	db     *sql.DB
	logger logging.Logger
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewText(os.Stderr, c.LogLevel)

	db, err := tokens.OpenDatabase(ctx, c.TokenDBPath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	api := client.NewHTTPClient(c.ServerURL, c.RequestTimeout, nil)
	ctl := session.NewController(api, tokens.NewSQLiteStore(db), session.Options{
		Logger:          logger,
		RefreshFraction: c.RefreshFraction,
	})

	app := newApp(c, api, ctl, os.Stdin, os.Stdout)
	app.db = db
	app.logger = logger
	return app, nil
}

func newApp(c *config.Config, api client.Client, ctl *session.Controller, in io.Reader, out io.Writer) *App {
	return &App{
		config: c,
		api:    api,
		ctl:    ctl,
		logger: logging.Nop{},
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run restores the previous session and serves commands until exit.
func (a *App) Run(ctx context.Context) {
	defer a.close()

	unsubscribe := a.ctl.State().Subscribe(a.onStateChange)
	defer unsubscribe()

	if err := a.ctl.Restore(ctx); err != nil && !errors.Is(err, common.ErrSessionExpired) {
		a.printf("Could not restore the previous session: %s\n", describeError(err))
	}

	a.printf("Welcome to Cryptofolio (type 'help' for commands)\n")
	runREPL(ctx, a, a.prompt, a.reader)
}

func (a *App) close() {
	a.ctl.Close()
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error(context.Background(), "database close failed", "error", err)
		}
	}
}

// onStateChange tells the user when the session ends without them asking.
func (a *App) onStateChange(st session.State) {
	if st.Status == session.StatusAnonymous && errors.Is(st.Err, common.ErrSessionExpired) {
		a.printf("Your session has ended. Please log in again.\n")
	}
}

func (a *App) isLoggedIn() bool {
	return a.ctl.State().Snapshot().Status == session.StatusAuthenticated
}

func (a *App) prompt() string {
	st := a.ctl.State().Snapshot()
	if st.Status == session.StatusAuthenticated && st.User != nil && st.User.Email != "" {
		return fmt.Sprintf("(%s)", st.User.Email)
	}
	return fmt.Sprintf("(%s)", st.Status)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
