package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	sheetsapi "google.golang.org/api/sheets/v4"
)

var ErrAuthorizationDenied = errors.New("authorization was not granted")

// Authorizer produces HTTP clients authorized to read spreadsheets. The
// token is cached in TokenFile; when it is missing the installed-app flow
// runs against the client secrets in CredentialsFile.
type Authorizer struct {
	TokenFile       string
	CredentialsFile string
	// Prompt receives the authorization URL during the browser flow
	Prompt io.Writer
	Logger *zap.Logger
}

// Client returns an HTTP client carrying the cached or newly granted token.
func (a *Authorizer) Client(ctx context.Context) (*http.Client, error) {
	logger := a.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	config, err := a.config()
	if err != nil {
		return nil, err
	}

	tok, err := LoadToken(a.TokenFile)
	if err != nil {
		logger.Info("No usable cached token, starting browser authorization",
			zap.String("token_file", a.TokenFile), zap.Error(err))

		tok, err = a.authorize(ctx, config, logger)
		if err != nil {
			return nil, err
		}
		if err := SaveToken(a.TokenFile, tok); err != nil {
			return nil, err
		}
		logger.Info("Saved token", zap.String("token_file", a.TokenFile))
	}

	ts := &savingTokenSource{
		base:   config.TokenSource(ctx, tok),
		path:   a.TokenFile,
		last:   tok,
		logger: logger,
	}
	return oauth2.NewClient(ctx, ts), nil
}

func (a *Authorizer) config() (*oauth2.Config, error) {
	data, err := os.ReadFile(a.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	config, err := google.ConfigFromJSON(data, sheetsapi.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	return config, nil
}

// authorize runs the installed-app flow with a loopback redirect on a
// random port.
func (a *Authorizer) authorize(ctx context.Context, config *oauth2.Config, logger *zap.Logger) (*oauth2.Token, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to start authorization listener: %w", err)
	}

	cfg := *config
	cfg.RedirectURL = fmt.Sprintf("http://%s/", listener.Addr().String())
	state := uuid.NewString()

	results := make(chan callbackResult, 1)
	server := &http.Server{
		Handler:           callbackHandler(state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go server.Serve(listener)
	defer server.Close()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
	prompt := a.Prompt
	if prompt == nil {
		prompt = os.Stderr
	}
	fmt.Fprintf(prompt, "Open the following URL in your browser to authorize access:\n\n%s\n\n", authURL)
	logger.Debug("Waiting for authorization callback", zap.String("redirect", cfg.RedirectURL))

	var res callbackResult
	select {
	case res = <-results:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.err != nil {
		return nil, res.err
	}

	tok, err := cfg.Exchange(ctx, res.code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return tok, nil
}

type callbackResult struct {
	code string
	err  error
}

// callbackHandler accepts the first redirect carrying the expected state.
func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	var once sync.Once
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}

		var res callbackResult
		if msg := q.Get("error"); msg != "" {
			res.err = fmt.Errorf("%w: %s", ErrAuthorizationDenied, msg)
		} else if code := q.Get("code"); code == "" {
			res.err = fmt.Errorf("%w: no code in callback", ErrAuthorizationDenied)
		} else {
			res.code = code
		}

		once.Do(func() { results <- res })

		if res.err != nil {
			http.Error(w, res.err.Error(), http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Authorization complete. You can close this window.")
	})
}

// LoadToken reads a cached token
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("token file %s holds no token", path)
	}
	return &tok, nil
}

// SaveToken writes tok to path, readable by the owner only
func SaveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// savingTokenSource writes refreshed tokens back to the token file.
type savingTokenSource struct {
	base   oauth2.TokenSource
	path   string
	logger *zap.Logger

	mu   sync.Mutex
	last *oauth2.Token
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil || tok.AccessToken != s.last.AccessToken {
		if err := SaveToken(s.path, tok); err != nil {
			// The request can still proceed with the fresh token
			s.logger.Warn("Failed to save refreshed token", zap.String("token_file", s.path), zap.Error(err))
		} else {
			s.logger.Debug("Saved refreshed token", zap.String("token_file", s.path))
		}
		s.last = tok
	}
	return tok, nil
}
