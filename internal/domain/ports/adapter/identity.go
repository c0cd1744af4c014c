package adapter

import (
	"context"
	"net/http"
)

// Identity is the session as supplied by the identity provider.
type Identity struct {
	UserID string
	Email  string
}

// IdentityProvider verifies a request's session. It returns
// domain.ErrUnauthenticated when no valid session is present.
type IdentityProvider interface {
	Authenticate(ctx context.Context, r *http.Request) (*Identity, error)
}
