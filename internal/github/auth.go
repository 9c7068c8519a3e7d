package github

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	gh "github.com/google/go-github/v76/github"
	"golang.org/x/oauth2"

	"github.com/toolhub/ghapp-mcp/internal/telemetry"
)

const (
	// GitHub rejects app JWTs that live longer than 10 minutes.
	appJWTLifetime = 10 * time.Minute
	// Backdate iat to tolerate clock drift between us and GitHub.
	appJWTBackdate = 60 * time.Second

	defaultRefreshMargin = time.Minute
)

// AppIdentity is the App's immutable identity material.
type AppIdentity struct {
	AppID          int64
	InstallationID int64
	PrivateKey     []byte // PEM, PKCS#1 or PKCS#8
}

// AccessToken is an installation token. Values are never mutated after
// creation; a refresh stores a new one.
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
}

func (t AccessToken) asOAuth2() *oauth2.Token {
	return &oauth2.Token{AccessToken: t.Value, TokenType: "Bearer", Expiry: t.ExpiresAt}
}

type BrokerOptions struct {
	// APIURL is the REST base URL. Empty means api.github.com.
	APIURL string
	// HTTPClient supplies the base transport and timeout.
	HTTPClient *http.Client
	// RefreshMargin re-mints a token this long before it expires.
	RefreshMargin time.Duration
	Logger        *slog.Logger
	Now           func() time.Time
}

// Broker owns the App private key and the single cached installation token.
type Broker struct {
	appID          int64
	installationID int64
	privateKey     *rsa.PrivateKey
	margin         time.Duration
	logger         *slog.Logger
	now            func() time.Time

	// apps talks to the /app endpoints with an app JWT.
	apps *gh.Client
	base *http.Client

	mu      sync.Mutex // serializes exchanges
	current atomic.Pointer[AccessToken]
}

func NewBroker(id AppIdentity, opts BrokerOptions) (*Broker, error) {
	if id.AppID <= 0 {
		return nil, errors.New("app id is required")
	}
	if id.InstallationID <= 0 {
		return nil, errors.New("installation id is required")
	}

	block, _ := pem.Decode(id.PrivateKey)
	if block == nil {
		return nil, errors.New("no PEM block found in private key")
	}
	key, err := parseRSAPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	b := &Broker{
		appID:          id.AppID,
		installationID: id.InstallationID,
		privateKey:     key,
		margin:         opts.RefreshMargin,
		logger:         opts.Logger,
		now:            opts.Now,
		base:           opts.HTTPClient,
	}
	if b.margin == 0 {
		b.margin = defaultRefreshMargin
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.base == nil {
		b.base = &http.Client{Timeout: 30 * time.Second}
	}

	jwtClient := &http.Client{
		Timeout:   b.base.Timeout,
		Transport: &oauth2.Transport{Source: b.AppTokenSource(), Base: b.base.Transport},
	}
	b.apps, err = newRESTClient(jwtClient, opts.APIURL)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func parseRSAPrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}

	pkcs8Key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := pkcs8Key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return rsaKey, nil
}

// AppJWT signs a fresh RS256 app assertion.
func (b *Broker) AppJWT() (string, error) {
	now := b.now()
	claims := jwt.RegisteredClaims{
		Issuer:    strconv.FormatInt(b.appID, 10),
		IssuedAt:  jwt.NewNumericDate(now.Add(-appJWTBackdate)),
		ExpiresAt: jwt.NewNumericDate(now.Add(appJWTLifetime)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(b.privateKey)
}

// Token returns the current installation token, exchanging a new app JWT
// for one when the cache is empty or inside the refresh margin. A failed
// exchange leaves the cache as it was and returns *AuthError.
func (b *Broker) Token(ctx context.Context) (AccessToken, error) {
	if tok := b.current.Load(); tok != nil && b.fresh(tok) {
		return *tok, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Another caller may have refreshed while we waited.
	if tok := b.current.Load(); tok != nil && b.fresh(tok) {
		return *tok, nil
	}

	tok, err := b.exchange(ctx)
	if err != nil {
		telemetry.IncTokenRefresh("failure")
		b.logger.Warn("installation token exchange failed", "installation_id", b.installationID, "err", err)
		return AccessToken{}, &AuthError{Err: err}
	}
	b.current.Store(tok)
	telemetry.IncTokenRefresh("success")
	b.logger.Info("installation token refreshed", "installation_id", b.installationID, "expires_at", tok.ExpiresAt)
	return *tok, nil
}

func (b *Broker) fresh(tok *AccessToken) bool {
	return b.now().Before(tok.ExpiresAt.Add(-b.margin))
}

func (b *Broker) exchange(ctx context.Context) (*AccessToken, error) {
	it, _, err := b.apps.Apps.CreateInstallationToken(ctx, b.installationID, nil)
	if err != nil {
		return nil, wrapREST("create installation token", err)
	}
	if it.GetToken() == "" {
		return nil, errors.New("installation token response carried no token")
	}
	exp := it.GetExpiresAt().Time
	if exp.IsZero() {
		exp = b.now().Add(time.Hour)
	}
	return &AccessToken{Value: it.GetToken(), ExpiresAt: exp}, nil
}

// Invalidate drops the cached token if it still holds value, so a token
// refreshed by someone else in the meantime survives.
func (b *Broker) Invalidate(value string) {
	cur := b.current.Load()
	if cur == nil || cur.Value != value {
		return
	}
	if b.current.CompareAndSwap(cur, nil) {
		b.logger.Info("installation token invalidated", "installation_id", b.installationID)
	}
}

// GetApp fetches the authenticated App (GET /app) with an app JWT.
func (b *Broker) GetApp(ctx context.Context) (*gh.App, error) {
	app, _, err := b.apps.Apps.Get(ctx, "")
	if err != nil {
		return nil, wrapREST("get app", err)
	}
	return app, nil
}

// AppTokenSource mints a new app JWT on every Token call.
func (b *Broker) AppTokenSource() oauth2.TokenSource {
	return appTokenSource{b: b}
}

type appTokenSource struct{ b *Broker }

func (s appTokenSource) Token() (*oauth2.Token, error) {
	signed, err := s.b.AppJWT()
	if err != nil {
		return nil, fmt.Errorf("sign app JWT: %w", err)
	}
	return &oauth2.Token{AccessToken: signed, TokenType: "Bearer", Expiry: s.b.now().Add(appJWTLifetime)}, nil
}

// HTTPClient returns a client that authenticates every request with the
// current installation token.
func (b *Broker) HTTPClient() *http.Client {
	return &http.Client{
		Timeout:   b.base.Timeout,
		Transport: &tokenTransport{broker: b, base: b.base.Transport},
	}
}
