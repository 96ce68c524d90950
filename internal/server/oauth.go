package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/neurotune/internal/shared"
)

// DefaultAuthorizeTimeout bounds how long the loopback flow waits for the browser callback.
const DefaultAuthorizeTimeout = 2 * time.Minute

// CallbackResult is the outcome of the OAuth redirect.
type CallbackResult struct {
	Code string
	err  error
}

func (c *CallbackResult) Error() error {
	return c.err
}

// OAuthHandler captures the authorization code from the provider redirect.
// Implements the Handler interface for registration with a Router.
//
// The code is only captured; exchanging it (with the PKCE verifier) is left to the caller.
type OAuthHandler struct {
	path        string
	state       string
	resultChan  chan CallbackResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewOAuthHandler creates a handler serving path that accepts a single callback carrying state.
func NewOAuthHandler(path, state string) *OAuthHandler {
	if path == "" {
		path = "/callback"
	}
	return &OAuthHandler{
		path:       path,
		state:      state,
		resultChan: make(chan CallbackResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{h.path}
}

// ServeHTTP validates the state parameter and sends the code through the result channel.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	q := r.URL.Query()
	if q.Get("state") != h.state {
		h.Send(CallbackResult{err: fmt.Errorf("invalid state parameter")})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := q.Get("code")
	if code == "" {
		err := fmt.Errorf("authorization denied: %s %s", q.Get("error"), q.Get("error_description"))
		h.Send(CallbackResult{err: err})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	h.Send(CallbackResult{Code: code})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, successPage)
}

// Send sends the callback result through the channel (only once).
func (h *OAuthHandler) Send(result CallbackResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel. It receives exactly one result and is then closed.
func (h *OAuthHandler) Result() <-chan CallbackResult {
	return h.resultChan
}

const successPage = `<!DOCTYPE html>
<html>
<head>
    <title>NeuroTune connected</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #121212; }
        .container { text-align: center; background: #1e1e1e; padding: 2rem; border-radius: 8px; }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #b3b3b3; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Spotify connected</h1>
        <p>You can close this window and return to NeuroTune.</p>
    </div>
</body>
</html>
`

// LoopbackAuthorizer runs a temporary HTTP server on the redirect URI, opens the browser on the
// authorization URL and waits for the callback.
type LoopbackAuthorizer struct {
	Addr    string
	Path    string
	Timeout time.Duration
	// Open launches the browser; defaults to [shared.OpenBrowser].
	Open func(url string) error
	// Prompt receives the URL when the browser cannot be opened.
	Prompt io.Writer
	Logger *log.Logger
}

// NewLoopbackAuthorizer derives the listen address and callback path from redirectURI.
func NewLoopbackAuthorizer(redirectURI string, prompt io.Writer, logger *log.Logger) (*LoopbackAuthorizer, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("%w: redirect uri: %v", shared.ErrInvalidConfig, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: redirect uri %q has no host", shared.ErrInvalidConfig, redirectURI)
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &LoopbackAuthorizer{
		Addr:    u.Host,
		Path:    u.Path,
		Timeout: DefaultAuthorizeTimeout,
		Open:    shared.OpenBrowser,
		Prompt:  prompt,
		Logger:  shared.WithLogger(logger, "component", "oauth"),
	}, nil
}

// Authorize serves the callback until it arrives, ctx is done or the timeout elapses.
func (a *LoopbackAuthorizer) Authorize(ctx context.Context, authURL, state string) (string, error) {
	handler := NewOAuthHandler(a.Path, state)
	router := NewBasicRouter()
	router.Handler(handler)

	ln, err := net.Listen("tcp", a.Addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", a.Addr, err)
	}
	httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		a.Logger.Info("starting OAuth callback server", "addr", ln.Addr().String())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			a.Logger.Warn("error shutting down callback server", "error", err)
		}
	}()

	open := a.Open
	if open == nil {
		open = shared.OpenBrowser
	}
	if err := open(authURL); err != nil {
		a.Logger.Warn("failed to open browser automatically", "error", err)
		if a.Prompt != nil {
			fmt.Fprintf(a.Prompt, "Open this URL in your browser:\n%s\n\n", authURL)
		}
	}

	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultAuthorizeTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-handler.Result():
		if result.Error() != nil {
			return "", result.Error()
		}
		return result.Code, nil
	case err := <-serverErrors:
		return "", fmt.Errorf("callback server error: %w", err)
	case <-timer.C:
		return "", fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
