package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"listing-assistant/internal/config"
	"listing-assistant/internal/domain"
	"listing-assistant/internal/domain/ports/adapter"
	"listing-assistant/internal/infra/logging"
	"listing-assistant/internal/infra/metrics"
	red "listing-assistant/internal/infra/redis"
)

// ===== Session/JWT primitives =====

var _ adapter.IdentityProvider = (*SessionAuth)(nil)

// DevUserHeader names the header that stands in for a session when dev
// sessions are enabled.
const DevUserHeader = "X-Dev-User"

// SessionAuth verifies HS256 session tokens issued by the identity provider.
// The token's subject is the user id. It is read from a bearer header first,
// then from the session cookie.
type SessionAuth struct {
	secret     []byte
	cookieName string
	issuer     string
	devHeader  bool
}

func NewSessionAuth(cfg config.AuthConfig, allowDevHeader bool) *SessionAuth {
	name := cfg.CookieName
	if name == "" {
		name = "__session"
	}
	return &SessionAuth{
		secret:     []byte(cfg.HMACSecret),
		cookieName: name,
		issuer:     cfg.Issuer,
		devHeader:  allowDevHeader,
	}
}

type sessionClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Mint issues a session token; used by the seed command and tests.
func (a *SessionAuth) Mint(userID, email string, ttl time.Duration) (string, error) {
	if userID == "" || len(a.secret) == 0 {
		return "", domain.ErrInvalidArgument
	}
	now := time.Now()
	claims := sessionClaims{
		Email: email,
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

func (a *SessionAuth) Authenticate(ctx context.Context, r *http.Request) (*adapter.Identity, error) {
	if a.devHeader {
		if uid := strings.TrimSpace(r.Header.Get(DevUserHeader)); uid != "" {
			return &adapter.Identity{UserID: uid}, nil
		}
	}
	tok := ""
	if hdr := r.Header.Get("Authorization"); len(hdr) > 7 && strings.EqualFold(hdr[:7], "bearer ") {
		tok = strings.TrimSpace(hdr[7:])
	} else if c, err := r.Cookie(a.cookieName); err == nil {
		tok = c.Value
	}
	if tok == "" || len(a.secret) == 0 {
		return nil, domain.ErrUnauthenticated
	}
	return a.parse(tok)
}

func (a *SessionAuth) parse(tok string) (*adapter.Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	claims := &sessionClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return nil, domain.ErrUnauthenticated
	}
	return &adapter.Identity{UserID: claims.Subject, Email: claims.Email}, nil
}

type ctxKey struct{}

func withIdentity(ctx context.Context, id *adapter.Identity) context.Context {
	ctx = context.WithValue(ctx, ctxKey{}, id)
	return logging.WithUserID(ctx, id.UserID)
}

// userID returns the signed-in user's id, or "".
func userID(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(*adapter.Identity); ok && id != nil {
		return id.UserID
	}
	return ""
}

// session attaches the identity when one is present. With required set,
// requests without a valid session are rejected with 401.
func (s *Server) session(required bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := s.identity.Authenticate(r.Context(), r)
			if err != nil || id == nil {
				if required {
					s.writeError(w, r, domain.ErrUnauthenticated)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
		})
	}
}

// adminOnly provides simple Bearer token authentication for the admin API.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminKey == "" {
			s.log.Error().Msg("Admin API key is not configured")
			writeJSON(w, http.StatusForbidden, errorBody{Error: "Forbidden"})
			return
		}
		hdr := r.Header.Get("Authorization")
		if len(hdr) <= 7 || !strings.EqualFold(hdr[:7], "bearer ") {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthorized"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(hdr[7:])), []byte(s.adminKey)) != 1 {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "Forbidden"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimited counts one hit per user and action; limiter faults let the
// request through.
func (s *Server) rateLimited(action string) Middleware {
	return func(next http.Handler) http.Handler {
		if s.limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid := userID(r.Context())
			if uid == "" {
				next.ServeHTTP(w, r)
				return
			}
			ok, err := s.limiter.Allow(r.Context(), red.UserActionKey(uid, action))
			if err != nil {
				logging.With(r.Context(), s.log).Warn().Err(err).Msg("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				metrics.IncRateLimited(action)
				s.writeError(w, r, domain.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
