package gmail

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"

	"invoicemail/internal/config"
)

// TokenSource prefers an explicit refresh token from the environment and
// falls back to an installed-app credentials file plus a token saved by
// Authorize. Refreshed tokens are written back to the token file.
func TokenSource(ctx context.Context, cfg config.Config) (oauth2.TokenSource, error) {
	if strings.TrimSpace(cfg.GmailRefreshToken) != "" {
		if err := cfg.Require("GMAIL_CLIENT_ID", cfg.GmailClientID); err != nil {
			return nil, err
		}
		if err := cfg.Require("GMAIL_CLIENT_SECRET", cfg.GmailClientSecret); err != nil {
			return nil, err
		}
		oauthCfg := &oauth2.Config{
			ClientID:     cfg.GmailClientID,
			ClientSecret: cfg.GmailClientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  cfg.GmailRedirectURI,
			Scopes:       []string{gmail.GmailReadonlyScope},
		}
		return oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GmailRefreshToken}), nil
	}

	oauthCfg, err := loadOAuthConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("no GMAIL_REFRESH_TOKEN and %w", err)
	}
	tok, err := loadToken(cfg.GmailTokenPath)
	if err != nil {
		return nil, fmt.Errorf("load gmail token (run auth:gmail first): %w", err)
	}
	return &persistingTokenSource{
		base: oauthCfg.TokenSource(ctx, tok),
		path: cfg.GmailTokenPath,
		last: tok.AccessToken,
	}, nil
}

// Authorize runs the interactive consent flow: it prints the consent URL to
// out, reads the code pasted on in, and saves the resulting token.
func Authorize(ctx context.Context, cfg config.Config, in io.Reader, out io.Writer) (*oauth2.Token, error) {
	oauthCfg, err := loadOAuthConfig(cfg)
	if err != nil {
		return nil, err
	}

	authURL := oauthCfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Fprintf(out, "Authorize this app by visiting this URL:\n%s\n", authURL)
	fmt.Fprint(out, "Enter the code from that page here: ")

	code, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errors.New("empty authorization code")
	}

	tok, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	if err := saveToken(cfg.GmailTokenPath, tok); err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "Token stored to %s\n", cfg.GmailTokenPath)
	return tok, nil
}

func loadOAuthConfig(cfg config.Config) (*oauth2.Config, error) {
	blob, err := os.ReadFile(cfg.GmailCredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read gmail credentials: %w", err)
	}
	oauthCfg, err := google.ConfigFromJSON(blob, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse gmail credentials: %w", err)
	}
	return oauthCfg, nil
}

func loadToken(path string) (*oauth2.Token, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(blob, tok); err != nil {
		return nil, err
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	blob, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return os.WriteFile(path, blob, 0o600)
}

type persistingTokenSource struct {
	base oauth2.TokenSource
	path string

	mu   sync.Mutex
	last string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		if err := saveToken(s.path, tok); err != nil {
			return nil, fmt.Errorf("persist refreshed token: %w", err)
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}
