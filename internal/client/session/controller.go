package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/client/client"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/client/models"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/client/repositories/tokens"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/common"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/logging"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/timex"
	"golang.org/x/sync/singleflight"
)

var (
	ErrNotAuthenticated = errors.New("not signed in")
	ErrNoPendingLogin   = errors.New("no sign-in is waiting for a second factor")
)

const DefaultRefreshFraction = 0.93

type Options struct {
	Logger logging.Logger

	// RefreshFraction of the remaining access TTL elapses before the
	// proactive refresh fires.
	RefreshFraction float64

	// ExtraStores are cleared together with the primary store and receive
	// every saved pair.
	ExtraStores []tokens.Store

	Now func() time.Time
}

type Controller struct {
	api      client.Client
	stores   []tokens.Store
	state    *StateStore
	logger   logging.Logger
	fraction float64
	now      func() time.Time

	refreshes singleflight.Group

	mu      sync.Mutex
	pair    *models.TokenPair
	pending *models.PendingTwoFactor
	timer   *time.Timer
	closed  bool
}

func NewController(api client.Client, store tokens.Store, opts Options) *Controller {
	c := &Controller{
		api:      api,
		stores:   append([]tokens.Store{store}, opts.ExtraStores...),
		state:    NewStateStore(),
		logger:   opts.Logger,
		fraction: opts.RefreshFraction,
		now:      opts.Now,
	}
	if c.logger == nil {
		c.logger = logging.Nop{}
	}
	c.logger = c.logger.With("module", "session")
	if c.fraction <= 0 || c.fraction >= 1 {
		c.fraction = DefaultRefreshFraction
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

func (c *Controller) State() *StateStore {
	return c.state
}

// Restore picks up a pair saved by an earlier run and loads the account.
// Transport failures leave the stored pair in place for the next attempt.
func (c *Controller) Restore(ctx context.Context) error {
	pair, err := c.stores[0].Load(ctx)
	if err != nil {
		c.state.set(State{Status: StatusAnonymous, Err: err})
		return fmt.Errorf("load tokens: %w", err)
	}
	if pair.Empty() {
		c.state.set(State{Status: StatusAnonymous})
		return nil
	}

	c.mu.Lock()
	c.pair = pair
	c.scheduleLocked()
	c.mu.Unlock()

	user, err := c.fetchUser(ctx)
	if err != nil {
		if !errors.Is(err, common.ErrSessionExpired) {
			c.forget()
			c.state.set(State{Status: StatusAnonymous, Err: err})
		}
		return err
	}

	c.state.set(State{Status: StatusAuthenticated, User: user})
	return nil
}

// Login signs in with a password. A pending second factor is reported in the
// response and kept for Complete2FA.
func (c *Controller) Login(ctx context.Context, email, password string) (*client.LoginResponse, error) {
	c.state.set(State{Status: StatusAuthenticating})

	res, err := c.api.Login(ctx, email, password)
	if err != nil {
		c.state.set(State{Status: StatusAnonymous, Err: err})
		return nil, err
	}

	if res.Pending != nil {
		c.mu.Lock()
		c.pending = res.Pending
		c.mu.Unlock()
		c.state.set(State{Status: StatusPendingTwoFactor, Pending: res.Pending})
		return res, nil
	}

	c.establish(ctx, res.Tokens, res.User)
	return res, nil
}

// Complete2FA finishes a pending sign-in. A wrong code keeps the sign-in
// pending; an expired ticket sends the client back to the password step.
func (c *Controller) Complete2FA(ctx context.Context, code string) (*client.LoginResponse, error) {
	c.mu.Lock()
	pending := c.pending
	c.mu.Unlock()
	if pending == nil {
		return nil, ErrNoPendingLogin
	}

	res, err := c.api.Complete2FA(ctx, pending.TempToken, code)
	if err != nil {
		if errors.Is(err, common.ErrTicketExpired) {
			c.mu.Lock()
			c.pending = nil
			c.mu.Unlock()
			c.state.set(State{Status: StatusAnonymous, Err: err})
		} else {
			c.state.update(func(st *State) { st.Err = err })
		}
		return nil, err
	}

	c.mu.Lock()
	c.pending = nil
	c.mu.Unlock()

	c.establish(ctx, res.Tokens, res.User)
	return res, nil
}

// CancelTwoFactor abandons a pending sign-in.
func (c *Controller) CancelTwoFactor() {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	if pending != nil {
		c.state.set(State{Status: StatusAnonymous})
	}
}

// establish keeps a new pair in memory and in every store. Store failures
// are logged; the session still works for this process.
func (c *Controller) establish(ctx context.Context, pair *models.TokenPair, user *models.User) {
	c.mu.Lock()
	c.pair = pair
	c.scheduleLocked()
	c.mu.Unlock()

	c.persist(ctx, pair)
	c.touch(ctx)
	c.state.set(State{Status: StatusAuthenticated, User: user})
}

func (c *Controller) persist(ctx context.Context, pair *models.TokenPair) {
	for _, s := range c.stores {
		if err := s.Save(ctx, pair); err != nil {
			c.logger.Error(ctx, "token store save failed", "error", err)
		}
	}
}

func (c *Controller) touch(ctx context.Context) {
	now := c.now()
	for _, s := range c.stores {
		if err := s.Touch(ctx, now); err != nil {
			c.logger.Warn(ctx, "last activity not recorded", "error", err)
		}
	}
}

// Logout revokes the session on the server and always clears it locally.
// The returned error reports a server that could not be told.
func (c *Controller) Logout(ctx context.Context) error {
	c.mu.Lock()
	pair := c.pair
	c.mu.Unlock()

	var remoteErr error
	if !pair.Empty() {
		if err := c.api.Logout(ctx, pair.RefreshToken); err != nil {
			c.logger.Warn(ctx, "server logout failed", "error", err)
			remoteErr = err
		}
	}

	clearErr := c.ClearTokens(ctx)
	c.state.set(State{Status: StatusAnonymous})
	return errors.Join(remoteErr, clearErr)
}

// ClearTokens drops the pair from memory and from every store, and stops
// the refresh timer.
func (c *Controller) ClearTokens(ctx context.Context) error {
	c.forget()

	var errs []error
	for _, s := range c.stores {
		if err := s.Clear(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Controller) forget() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pair = nil
	c.pending = nil
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Close stops background work. The stored pair is kept.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) accessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pair == nil {
		return ""
	}
	return c.pair.AccessToken
}

// AuthenticatedRequest calls the API with the current access token. On 401
// it refreshes (sharing any refresh already in flight) and retries once; a
// second 401 ends the session with common.ErrSessionExpired.
func (c *Controller) AuthenticatedRequest(ctx context.Context, method, path string, in, out any) error {
	access := c.accessToken()
	if access == "" {
		return ErrNotAuthenticated
	}

	err := c.api.Do(ctx, method, path, access, in, out)
	if !isUnauthorized(err) {
		if err == nil {
			c.touch(ctx)
		}
		return err
	}

	if err := c.refreshAfter(ctx, access); err != nil {
		return err
	}

	err = c.api.Do(ctx, method, path, c.accessToken(), in, out)
	if isUnauthorized(err) {
		c.expire(ctx, err)
		return fmt.Errorf("%w: %w", common.ErrSessionExpired, err)
	}
	if err == nil {
		c.touch(ctx)
	}
	return err
}

func isUnauthorized(err error) bool {
	var apiErr *client.APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// refreshAfter refreshes unless a sibling request already replaced the
// access token that failed.
func (c *Controller) refreshAfter(ctx context.Context, failed string) error {
	current := c.accessToken()
	if current == "" {
		return ErrNotAuthenticated
	}
	if current != failed {
		return nil
	}
	return c.Refresh(ctx)
}

// Refresh rotates the pair. Concurrent callers share one rotation; a caller
// whose ctx ends stops waiting without cancelling it for the others.
func (c *Controller) Refresh(ctx context.Context) error {
	ch := c.refreshes.DoChan("refresh", func() (any, error) {
		return nil, c.rotate(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) rotate(ctx context.Context) error {
	c.mu.Lock()
	pair := c.pair
	c.mu.Unlock()
	if pair.Empty() {
		return ErrNotAuthenticated
	}

	next, err := c.api.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		if !sessionOver(err) {
			c.logger.Warn(ctx, "token refresh failed", "error", err)
			return err
		}
		c.logger.Info(ctx, "session ended by refresh", "error", err)
		c.expire(ctx, err)
		if errors.Is(err, common.ErrSessionExpired) {
			return err
		}
		return fmt.Errorf("%w: %w", common.ErrSessionExpired, err)
	}

	c.mu.Lock()
	if c.pair != pair {
		// logged out while the call was in flight
		c.mu.Unlock()
		return ErrNotAuthenticated
	}
	c.pair = next
	c.scheduleLocked()
	c.mu.Unlock()

	c.persist(ctx, next)
	c.logger.Debug(ctx, "tokens refreshed")
	return nil
}

// sessionOver reports refresh failures no retry can fix.
func sessionOver(err error) bool {
	return errors.Is(err, common.ErrTokenReused) ||
		errors.Is(err, common.ErrTokenExpired) ||
		errors.Is(err, common.ErrTokenInvalid) ||
		errors.Is(err, common.ErrSessionExpired)
}

func (c *Controller) expire(ctx context.Context, cause error) {
	if err := c.ClearTokens(ctx); err != nil {
		c.logger.Error(ctx, "token store clear failed", "error", err)
	}
	c.state.set(State{Status: StatusAnonymous, Err: fmt.Errorf("%w: %w", common.ErrSessionExpired, cause)})
}

// scheduleLocked arms the proactive refresh for the current pair.
func (c *Controller) scheduleLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.closed || c.pair == nil || c.pair.AccessExpiresAt.IsZero() {
		return
	}

	delay := timex.Fraction(c.pair.AccessExpiresAt.Sub(c.now()), c.fraction)
	if delay < 0 {
		delay = 0
	}
	c.timer = time.AfterFunc(delay, c.backgroundRefresh)
}

// backgroundRefresh rotates the pair and reloads the account, so a role
// changed on the server reaches the route guard. A failed reload keeps the
// published user.
func (c *Controller) backgroundRefresh() {
	ctx := context.Background()
	if err := c.Refresh(ctx); err != nil {
		if !errors.Is(err, ErrNotAuthenticated) {
			c.logger.Warn(ctx, "background refresh failed", "error", err)
		}
		return
	}
	if _, err := c.Me(ctx); err != nil && !errors.Is(err, ErrNotAuthenticated) {
		c.logger.Warn(ctx, "account reload after refresh failed", "error", err)
	}
}
