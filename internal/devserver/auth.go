package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/abelbrown/stationreviews/internal/review"
)

const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"
)

// Claims is the JWT payload for access and refresh tokens.
type Claims struct {
	Username string `json:"username"`
	Staff    bool   `json:"is_staff"`
	Type     string `json:"token_type"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewIssuer returns an issuer for secret. Non-positive TTLs take defaults.
func NewIssuer(secret []byte, accessTTL time.Duration, now func() time.Time) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("devserver: empty signing secret")
	}
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &Issuer{secret: secret, accessTTL: accessTTL, refreshTTL: 24 * time.Hour, now: now}, nil
}

func (i *Issuer) sign(who review.Identity, kind string, ttl time.Duration) (string, error) {
	now := i.now()
	claims := Claims{
		Username: who.Username,
		Staff:    who.Privileged,
		Type:     kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   who.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Issue returns an access and a refresh token for who.
func (i *Issuer) Issue(who review.Identity) (access, refresh string, err error) {
	if access, err = i.sign(who, tokenAccess, i.accessTTL); err != nil {
		return "", "", err
	}
	if refresh, err = i.sign(who, tokenRefresh, i.refreshTTL); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// Parse validates an access token and returns the identity it carries.
func (i *Issuer) Parse(token string) (review.Identity, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return review.Identity{}, err
	}
	if !parsed.Valid {
		return review.Identity{}, errors.New("invalid token")
	}
	if claims.Type != tokenAccess {
		return review.Identity{}, errors.New("not an access token")
	}
	if claims.Username == "" {
		return review.Identity{}, errors.New("token has no username")
	}
	return review.Identity{Username: claims.Username, Privileged: claims.Staff}, nil
}

type contextKey string

const contextKeyIdentity contextKey = "devserver.identity"

func withIdentity(ctx context.Context, who review.Identity) context.Context {
	return context.WithValue(ctx, contextKeyIdentity, who)
}

// IdentityFromContext returns the authenticated caller, or anonymous.
func IdentityFromContext(ctx context.Context) review.Identity {
	if who, ok := ctx.Value(contextKeyIdentity).(review.Identity); ok {
		return who
	}
	return review.Identity{}
}

// authenticate resolves a bearer token into the request identity. Requests
// without one proceed anonymously; a bad token is rejected.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Authorization header must be a Bearer token.")
			return
		}
		who, err := s.tokens.Parse(strings.TrimSpace(token))
		if err != nil {
			s.log.Debug("rejected token", "err", err)
			writeDetail(w, http.StatusUnauthorized, "Given token not valid for any token type")
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), who)))
	})
}

// requireUser rejects anonymous callers.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IdentityFromContext(r.Context()).Anonymous() {
			writeDetail(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
