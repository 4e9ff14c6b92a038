package authenticator

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/bytedance/sonic"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	"wishdoc/internal/config"
	"wishdoc/internal/perrors"
	"wishdoc/internal/services/user"
)

const tokenTTL = 25 * time.Hour

// Claims is the session token payload: the resolved identity plus the
// registered claims.
type Claims struct {
	jwt.RegisteredClaims
	UserID     string    `json:"user_id"`
	ScreenName string    `json:"screen_name,omitempty"`
	Role       user.Role `json:"role"`
}

// Authenticator turns session credentials into verified identities and
// runs the OAuth login handshake. Locally issued tokens are HS256
// signed with the app secret; when an OIDC issuer is configured,
// externally issued RS256 tokens are accepted as well.
type Authenticator struct {
	secret []byte

	oauth       *oauth2.Config
	userinfoURL string

	provider     *oidc.Provider
	jwksProvider *jwks.CachingProvider
	issuer       string
	audience     string

	revoked *redis.Client
	// fallback denylist when Redis is not configured
	mu    sync.Mutex
	local map[string]time.Time
}

func New(conf *config.Config) (*Authenticator, error) {
	a := &Authenticator{
		secret:   []byte(conf.SUPER_SECRET),
		audience: conf.OIDC_AUDIENCE,
		local:    map[string]time.Time{},
	}

	if conf.OAUTH_CLIENT_ID != "" {
		a.oauth = &oauth2.Config{
			ClientID:     conf.OAUTH_CLIENT_ID,
			ClientSecret: conf.OAUTH_CLIENT_SECRET,
			RedirectURL:  conf.OAUTH_CALLBACK_URL,
			Endpoint: oauth2.Endpoint{
				AuthURL:  conf.OAUTH_AUTH_URL,
				TokenURL: conf.OAUTH_TOKEN_URL,
			},
		}
		a.userinfoURL = conf.OAUTH_USERINFO_URL
	}

	if conf.OIDC_ISSUER != "" {
		provider, err := oidc.NewProvider(context.Background(), conf.OIDC_ISSUER)
		if err != nil {
			return nil, err
		}
		issuerURL, err := url.Parse(conf.OIDC_ISSUER)
		if err != nil {
			return nil, err
		}
		a.provider = provider
		a.issuer = conf.OIDC_ISSUER
		a.jwksProvider = jwks.NewCachingProvider(issuerURL, 5*time.Minute)

		if a.oauth != nil {
			a.oauth.Endpoint = provider.Endpoint()
			a.oauth.Scopes = []string{oidc.ScopeOpenID, "profile"}
		}
	}

	if conf.REDIS_ADDR != "" {
		a.revoked = redis.NewClient(&redis.Options{
			Addr:     conf.REDIS_ADDR,
			Password: conf.REDIS_PASSWORD,
		})
	}

	return a, nil
}

// OAuthEnabled reports whether an OAuth login provider is configured.
func (a *Authenticator) OAuthEnabled() bool {
	return a.oauth != nil
}

// IssueToken signs a session token for u.
func (a *Authenticator) IssueToken(u user.Resolved) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
		UserID:     u.ID,
		ScreenName: u.ScreenName,
		Role:       u.Role,
	})
	return token.SignedString(a.secret)
}

// Verify resolves a session credential into a verified identity. Local
// HS256 tokens are tried first; with an OIDC issuer configured,
// provider-issued RS256 tokens are accepted too.
func (a *Authenticator) Verify(ctx context.Context, credential string) (user.Resolved, error) {
	if credential == "" {
		return user.Resolved{}, perrors.NewErrInvalidCredential("no token provided", nil)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err == nil && token.Valid {
		if a.isRevoked(ctx, claims.ID) {
			return user.Resolved{}, perrors.NewErrInvalidCredential("token has been revoked", nil)
		}
		return user.Resolved{ID: claims.UserID, ScreenName: claims.ScreenName, Role: claims.Role}, nil
	}

	if a.jwksProvider != nil {
		if resolved, verr := a.verifyProviderToken(ctx, credential); verr == nil {
			return resolved, nil
		}
	}

	return user.Resolved{}, perrors.NewErrInvalidCredential("invalid token", err)
}

func (a *Authenticator) verifyProviderToken(ctx context.Context, credential string) (user.Resolved, error) {
	jwtValidator, err := validator.New(a.jwksProvider.KeyFunc, validator.RS256, a.issuer, []string{a.audience})
	if err != nil {
		return user.Resolved{}, err
	}

	payload, err := jwtValidator.ValidateToken(ctx, credential)
	if err != nil {
		return user.Resolved{}, err
	}

	validated, ok := payload.(*validator.ValidatedClaims)
	if !ok || validated.RegisteredClaims.Subject == "" {
		return user.Resolved{}, errors.New("token missing subject")
	}
	return user.Resolved{ID: validated.RegisteredClaims.Subject, Role: user.RoleMember}, nil
}

// Revoke invalidates a session token until its natural expiry.
func (a *Authenticator) Revoke(ctx context.Context, credential string) error {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(credential, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil || claims.ID == "" {
		return perrors.NewErrInvalidCredential("invalid token", err)
	}

	ttl := tokenTTL
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl <= 0 {
		return nil
	}

	if a.revoked != nil {
		return a.revoked.Set(ctx, "revoked:"+claims.ID, "1", ttl).Err()
	}

	a.mu.Lock()
	a.local[claims.ID] = time.Now().Add(ttl)
	a.mu.Unlock()
	return nil
}

func (a *Authenticator) isRevoked(ctx context.Context, jti string) bool {
	if jti == "" {
		return false
	}
	if a.revoked != nil {
		n, err := a.revoked.Exists(ctx, "revoked:"+jti).Result()
		return err == nil && n > 0
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	until, ok := a.local[jti]
	if ok && time.Now().After(until) {
		delete(a.local, jti)
		return false
	}
	return ok
}

// OAuthState is the HMAC-signed state round-tripped through the OAuth
// handshake.
type OAuthState struct {
	CSRF      string `json:"csrf"`
	Redirect  string `json:"redirect"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// LoginURL returns the provider authorization URL with a signed state.
func (a *Authenticator) LoginURL(redirect string) (string, error) {
	if a.oauth == nil {
		return "", errors.New("oauth login is not configured")
	}

	now := time.Now()
	state, err := a.signState(OAuthState{
		CSRF:      uuid.NewString(),
		Redirect:  redirect,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(10 * time.Minute).Unix(),
	})
	if err != nil {
		return "", err
	}
	return a.oauth.AuthCodeURL(state), nil
}

func (a *Authenticator) signState(state OAuthState) (string, error) {
	payload, err := sonic.Marshal(state)
	if err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, a.secret)
	mac.Write(payload)
	sig := mac.Sum(nil)

	combined := append(payload, sig...)
	return base64.URLEncoding.EncodeToString(combined), nil
}

// VerifyState checks the signature and expiry of a returned state.
func (a *Authenticator) VerifyState(encoded string) (*OAuthState, error) {
	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.New("invalid base64")
	}
	if len(raw) < sha256.Size {
		return nil, errors.New("state too short")
	}

	payload := raw[:len(raw)-sha256.Size]
	sig := raw[len(raw)-sha256.Size:]

	mac := hmac.New(sha256.New, a.secret)
	mac.Write(payload)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return nil, errors.New("invalid state signature")
	}

	var state OAuthState
	if err := sonic.Unmarshal(payload, &state); err != nil {
		return nil, errors.New("invalid state payload")
	}
	if time.Now().Unix() > state.ExpiresAt {
		return nil, errors.New("state expired")
	}
	return &state, nil
}

// Exchange trades the authorization code for a provider identity. With
// an OIDC provider the id_token supplies it; otherwise the configured
// userinfo endpoint is asked.
func (a *Authenticator) Exchange(ctx context.Context, code string) (user.Resolved, error) {
	if a.oauth == nil {
		return user.Resolved{}, errors.New("oauth login is not configured")
	}

	token, err := a.oauth.Exchange(ctx, code)
	if err != nil {
		return user.Resolved{}, perrors.NewErrInvalidCredential("oauth code exchange failed", err)
	}

	if a.provider != nil {
		return a.identityFromIDToken(ctx, token)
	}
	return a.identityFromUserinfo(ctx, token)
}

func (a *Authenticator) identityFromIDToken(ctx context.Context, token *oauth2.Token) (user.Resolved, error) {
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return user.Resolved{}, errors.New("no id_token field in oauth2 token")
	}

	idToken, err := a.provider.Verifier(&oidc.Config{ClientID: a.oauth.ClientID}).Verify(ctx, rawIDToken)
	if err != nil {
		return user.Resolved{}, perrors.NewErrInvalidCredential("invalid id_token", err)
	}

	var profile struct {
		Sub               string `json:"sub"`
		PreferredUsername string `json:"preferred_username"`
	}
	if err := idToken.Claims(&profile); err != nil {
		return user.Resolved{}, err
	}
	return user.Resolved{ID: profile.Sub, ScreenName: profile.PreferredUsername, Role: user.RoleMember}, nil
}

func (a *Authenticator) identityFromUserinfo(ctx context.Context, token *oauth2.Token) (user.Resolved, error) {
	if a.userinfoURL == "" {
		return user.Resolved{}, errors.New("no userinfo endpoint configured")
	}

	resp, err := a.oauth.Client(ctx, token).Get(a.userinfoURL)
	if err != nil {
		return user.Resolved{}, perrors.NewErrInvalidCredential("failed to fetch user profile", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return user.Resolved{}, err
	}

	var profile struct {
		ID         string `json:"id"`
		ScreenName string `json:"screen_name"`
		Username   string `json:"username"`
	}
	if err := sonic.Unmarshal(body, &profile); err != nil {
		return user.Resolved{}, perrors.NewErrInvalidCredential("invalid user profile payload", err)
	}
	if profile.ScreenName == "" {
		profile.ScreenName = profile.Username
	}
	if profile.ID == "" {
		return user.Resolved{}, perrors.NewErrInvalidCredential("user profile has no id", nil)
	}
	return user.Resolved{ID: profile.ID, ScreenName: profile.ScreenName, Role: user.RoleMember}, nil
}
