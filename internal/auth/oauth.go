// Package auth implements the GitHub OAuth flow on the server side and the
// persisted session on the client side.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	ghclient "github.com/amishk599/skillpiler/internal/github"
	"github.com/amishk599/skillpiler/internal/model"
)

const (
	stateTTL   = 10 * time.Minute
	sessionTTL = 24 * time.Hour
)

var (
	ErrNotConfigured = errors.New("GitHub OAuth is not configured")
	ErrInvalidState  = errors.New("invalid or expired OAuth state")
)

// UserResolver looks up the GitHub account behind an access token.
type UserResolver interface {
	AuthenticatedUser(ctx context.Context, token string) (ghclient.User, error)
}

// Config holds the OAuth app credentials. Endpoint defaults to GitHub's.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	JWTSecret    string
	Scopes       []string
	Endpoint     oauth2.Endpoint
}

// OAuth issues login URLs, completes callbacks and validates session tokens.
// GitHub tokens obtained at callback are kept in memory per login.
type OAuth struct {
	oauth  *oauth2.Config
	users  UserResolver
	secret []byte
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	states map[string]time.Time
	tokens map[string]string
}

func NewOAuth(cfg Config, users UserResolver, logger *slog.Logger) *OAuth {
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = github.Endpoint
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"public_repo"}
	}
	return &OAuth{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		users:  users,
		secret: []byte(cfg.JWTSecret),
		logger: logger,
		now:    time.Now,
		states: make(map[string]time.Time),
		tokens: make(map[string]string),
	}
}

// Configured reports whether client credentials and a signing secret are set.
func (o *OAuth) Configured() bool {
	return o.oauth.ClientID != "" && o.oauth.ClientSecret != "" && len(o.secret) > 0
}

// LoginURL returns the GitHub authorization URL carrying a fresh state.
func (o *OAuth) LoginURL() (string, error) {
	if !o.Configured() {
		return "", ErrNotConfigured
	}
	state := uuid.NewString()

	o.mu.Lock()
	now := o.now()
	for s, exp := range o.states {
		if now.After(exp) {
			delete(o.states, s)
		}
	}
	o.states[state] = now.Add(stateTTL)
	o.mu.Unlock()

	return o.oauth.AuthCodeURL(state), nil
}

// Callback consumes state, exchanges code for a GitHub token and issues a
// session token for the GitHub account.
func (o *OAuth) Callback(ctx context.Context, code, state string) (model.Token, error) {
	if !o.Configured() {
		return model.Token{}, ErrNotConfigured
	}
	if !o.consumeState(state) {
		return model.Token{}, ErrInvalidState
	}

	tok, err := o.oauth.Exchange(ctx, code)
	if err != nil {
		return model.Token{}, fmt.Errorf("github token exchange: %w", err)
	}
	user, err := o.users.AuthenticatedUser(ctx, tok.AccessToken)
	if err != nil {
		return model.Token{}, fmt.Errorf("validate github token: %w", err)
	}

	scopes := grantedScopes(tok, o.oauth.Scopes)
	session, err := o.sign(user.Login, scopes)
	if err != nil {
		return model.Token{}, err
	}

	o.mu.Lock()
	o.tokens[strings.ToLower(user.Login)] = tok.AccessToken
	o.mu.Unlock()

	o.logger.Info("github login completed", "username", user.Login, "scopes", scopes)
	return model.Token{AccessToken: session, TokenType: "bearer", Scope: strings.Join(scopes, ",")}, nil
}

func (o *OAuth) consumeState(state string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	exp, ok := o.states[state]
	if !ok {
		return false
	}
	delete(o.states, state)
	return !o.now().After(exp)
}

// grantedScopes prefers the scope GitHub reports on the token response.
func grantedScopes(tok *oauth2.Token, requested []string) []string {
	raw, _ := tok.Extra("scope").(string)
	if raw == "" {
		return requested
	}
	var scopes []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	return scopes
}

func (o *OAuth) sign(login string, scopes []string) (string, error) {
	now := o.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":    login,
		"scopes": scopes,
		"iat":    now.Unix(),
		"exp":    now.Add(sessionTTL).Unix(),
	})
	signed, err := token.SignedString(o.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Authenticate validates a session token and returns its account and scopes.
func (o *OAuth) Authenticate(sessionToken string) (string, []string, error) {
	if sessionToken == "" || len(o.secret) == 0 {
		return "", nil, model.ErrUnauthorized
	}
	token, err := jwt.Parse(sessionToken, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return o.secret, nil
	}, jwt.WithTimeFunc(o.now))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", model.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", nil, model.ErrUnauthorized
	}
	login, _ := claims["sub"].(string)
	if login == "" {
		return "", nil, model.ErrUnauthorized
	}
	var scopes []string
	if raw, ok := claims["scopes"].([]any); ok {
		for _, s := range raw {
			if str, ok := s.(string); ok {
				scopes = append(scopes, str)
			}
		}
	}
	return login, scopes, nil
}

// Status describes the session behind sessionToken. Invalid or expired
// tokens report an unauthenticated status.
func (o *OAuth) Status(sessionToken string) model.AuthStatus {
	login, scopes, err := o.Authenticate(sessionToken)
	if err != nil {
		return model.AuthStatus{}
	}
	return model.AuthStatus{IsAuthenticated: true, Username: login, Scopes: scopes}
}

// GitHubToken returns the GitHub token stored for login at callback.
func (o *OAuth) GitHubToken(login string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	tok, ok := o.tokens[strings.ToLower(login)]
	return tok, ok
}
