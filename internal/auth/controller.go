package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/desertthunder/neurotune/internal/models"
	"github.com/desertthunder/neurotune/internal/shared"
)

const (
	// DefaultTokenTTL applies when the token endpoint omits expires_in.
	DefaultTokenTTL = time.Hour
	refreshTimeout  = 30 * time.Second
)

// Authorizer obtains an authorization code for authURL, e.g. by sending the user
// through a browser and waiting for the redirect. state must be echoed back by the
// provider and checked by the implementation.
type Authorizer interface {
	Authorize(ctx context.Context, authURL, state string) (code string, err error)
}

// AuthorizerFunc adapts a function to [Authorizer].
type AuthorizerFunc func(ctx context.Context, authURL, state string) (string, error)

func (f AuthorizerFunc) Authorize(ctx context.Context, authURL, state string) (string, error) {
	return f(ctx, authURL, state)
}

// Options configures a [Controller]. Config and Store are required.
type Options struct {
	Config     *oauth2.Config
	Store      TokenStore
	Authorizer Authorizer
	HTTPClient *http.Client
	Now        func() time.Time
	Logger     *log.Logger
}

// Controller owns login, token refresh and logout.
type Controller struct {
	config     *oauth2.Config
	store      TokenStore
	authorizer Authorizer
	client     *http.Client
	now        func() time.Time
	logger     *log.Logger
	flight     singleflight.Group
}

// NewController creates a [Controller] from opts.
func NewController(opts Options) *Controller {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Controller{
		config:     opts.Config,
		store:      opts.Store,
		authorizer: opts.Authorizer,
		client:     opts.HTTPClient,
		now:        now,
		logger:     shared.WithLogger(logger, "component", "auth"),
	}
}

// NewOAuthConfig builds the [oauth2.Config] for the Spotify accounts service.
//
// Without a client secret the client id is sent in the request body (public PKCE client).
func NewOAuthConfig(creds shared.SpotifyConfig, provider shared.ProviderConfig) *oauth2.Config {
	style := oauth2.AuthStyleAutoDetect
	if creds.ClientSecret == "" {
		style = oauth2.AuthStyleInParams
	}
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  creds.RedirectURI,
		Scopes:       creds.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   provider.AuthURL,
			TokenURL:  provider.TokenURL,
			AuthStyle: style,
		},
	}
}

// SetAuthorizer replaces the [Authorizer] used by [Controller.Login].
func (c *Controller) SetAuthorizer(a Authorizer) {
	c.authorizer = a
}

func (c *Controller) oauthContext(ctx context.Context) context.Context {
	if c.client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, c.client)
}

// Login runs the PKCE authorization-code flow, stores the new credential and returns it.
//
// Cancellation, a failed exchange or a response without an access token fail with a [shared.KindAuth] error.
func (c *Controller) Login(ctx context.Context) (*models.Credential, error) {
	if c.authorizer == nil {
		return nil, shared.NewError(shared.KindAuth, "login", fmt.Errorf("no authorizer configured"))
	}

	state, err := shared.GenerateState()
	if err != nil {
		return nil, shared.NewError(shared.KindAuth, "login", err)
	}
	verifier := oauth2.GenerateVerifier()
	authURL := c.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))

	c.logger.Debug("starting authorization", "redirect_uri", c.config.RedirectURL)
	code, err := c.authorizer.Authorize(ctx, authURL, state)
	if err != nil {
		c.logger.Warn("authorization failed", "error", err)
		return nil, shared.NewError(shared.KindAuth, "authorize", err)
	}
	if code == "" {
		return nil, shared.NewError(shared.KindAuth, "authorize", fmt.Errorf("empty authorization code"))
	}

	tok, err := c.config.Exchange(c.oauthContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		c.logger.Warn("code exchange failed", "error", err)
		return nil, shared.NewError(shared.KindAuth, "exchange", err)
	}
	if tok.AccessToken == "" {
		return nil, shared.NewError(shared.KindAuth, "exchange", fmt.Errorf("response missing access token"))
	}

	cred := models.CredentialFromToken(tok, c.now(), DefaultTokenTTL)
	if err := c.store.Set(ctx, cred); err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}

	c.logger.Info("logged in", "expires_at", cred.ExpiresAt.Format(time.RFC3339))
	return cred, nil
}

// ValidToken returns an access token that is not expired, refreshing the stored credential if needed.
//
// An empty token with a nil error means not authenticated: no credential exists or the refresh failed.
// Only storage failures are returned as errors.
func (c *Controller) ValidToken(ctx context.Context) (string, error) {
	cred, err := c.store.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load credential: %w", err)
	}
	if cred == nil {
		return "", nil
	}
	if !cred.Expired(c.now()) {
		return cred.AccessToken, nil
	}

	v, err, joined := c.flight.Do("refresh", func() (any, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	if joined {
		c.logger.Debug("joined in-flight refresh")
	}
	return v.(string), nil
}

// refresh exchanges the stored refresh token for a new access token.
//
// The store is re-read first so a caller arriving just after another refresh finished reuses its result.
func (c *Controller) refresh(ctx context.Context) (string, error) {
	// The refresh outlives the caller that started it; other callers are waiting on it.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
	defer cancel()

	cred, err := c.store.Get(rctx)
	if err != nil {
		return "", fmt.Errorf("failed to load credential: %w", err)
	}
	if cred == nil {
		return "", nil
	}
	if !cred.Expired(c.now()) {
		return cred.AccessToken, nil
	}

	if cred.RefreshToken == "" {
		c.logger.Warn("credential expired without refresh token, logging out")
		return "", c.clear(rctx)
	}

	src := c.config.TokenSource(c.oauthContext(rctx), &oauth2.Token{RefreshToken: cred.RefreshToken})
	tok, err := src.Token()
	if err != nil || tok.AccessToken == "" {
		c.logger.Warn("token refresh failed, logging out", "error", err)
		return "", c.clear(rctx)
	}

	next := models.CredentialFromToken(tok, c.now(), DefaultTokenTTL)
	if next.RefreshToken == "" {
		next.RefreshToken = cred.RefreshToken
	}
	if err := c.store.Set(rctx, next); err != nil {
		return "", fmt.Errorf("failed to store refreshed credential: %w", err)
	}

	c.logger.Info("token refreshed", "expires_at", next.ExpiresAt.Format(time.RFC3339))
	return next.AccessToken, nil
}

func (c *Controller) clear(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}

// Logout clears the stored credential. Calling it while logged out is a no-op.
func (c *Controller) Logout(ctx context.Context) error {
	if err := c.clear(ctx); err != nil {
		return err
	}
	c.logger.Info("logged out")
	return nil
}

// IsAuthenticated reports whether a usable access token can be produced.
func (c *Controller) IsAuthenticated(ctx context.Context) bool {
	tok, err := c.ValidToken(ctx)
	return err == nil && tok != ""
}

// Credential returns the stored credential without refreshing it, or nil.
func (c *Controller) Credential(ctx context.Context) (*models.Credential, error) {
	return c.store.Get(ctx)
}
