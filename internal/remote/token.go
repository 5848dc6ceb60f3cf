package remote

import (
	"context"

	"github.com/kimhsiao/gosauna/backend/internal/kv"
)

// TokenKeys are the storage keys searched for an access token, in order.
var TokenKeys = []string{"base44_access_token", "token"}

// TokenSource supplies the bearer token. An empty token means none is available.
type TokenSource interface {
	Token(ctx context.Context) string
}

// StaticToken is a fixed token.
type StaticToken string

func (t StaticToken) Token(context.Context) string { return string(t) }

// KVTokenSource reads the token from the key/value store, falling back to a
// static token when no key holds one.
type KVTokenSource struct {
	Store    kv.Store
	Fallback string
}

func (s KVTokenSource) Token(ctx context.Context) string {
	if s.Store != nil {
		for _, key := range TokenKeys {
			v, ok, err := s.Store.Get(ctx, key)
			if err == nil && ok && v != "" {
				return v
			}
		}
	}
	return s.Fallback
}
