package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"typing-premium-payments/internal/infra/logging"
	"typing-premium-payments/internal/usecase"

	"github.com/golang-jwt/jwt/v5"
)

// ===== Bearer JWT principal =====

var (
	errMissingToken = errors.New("missing token")
	errInvalidToken = errors.New("invalid token")
)

// Claims are issued by the typing app's account service; Subject is the user id.
type Claims struct {
	Admin bool `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

type AuthManager struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewAuthManager(secret, issuer string) *AuthManager {
	return &AuthManager{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Mint signs a token for userID. Used by tooling and tests; the API itself
// only verifies.
func (a *AuthManager) Mint(userID string, admin bool, ttl time.Duration) (string, error) {
	now := a.now()
	claims := Claims{
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *AuthManager) ParseFromRequest(r *http.Request) (*Claims, error) {
	hdr := r.Header.Get("Authorization")
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return nil, errMissingToken
	}
	return a.parse(strings.TrimSpace(hdr[7:]))
}

func (a *AuthManager) parse(tok string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return nil, errInvalidToken
	}
	return claims, nil
}

type callerKey struct{}

// Authenticate rejects requests without a valid bearer token and stores the
// caller in the request context.
func (a *AuthManager) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.ParseFromRequest(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error(), Kind: kindForbidden})
			return
		}
		caller := usecase.Caller{UserID: claims.Subject, IsAdmin: claims.Admin}
		ctx := context.WithValue(r.Context(), callerKey{}, caller)
		ctx = logging.WithUserID(ctx, caller.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin must run after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, ok := CallerFrom(r.Context()); !ok || !c.IsAdmin {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "admin only", Kind: kindForbidden})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func CallerFrom(ctx context.Context) (usecase.Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(usecase.Caller)
	return c, ok
}
