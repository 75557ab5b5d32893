package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/store"
)

// RevocationList remembers logged out token ids until the tokens would have
// expired anyway.
type RevocationList struct {
	store *Store
}

func NewRevocationList(s *Store) *RevocationList {
	return &RevocationList{store: s}
}

func revokedKey(jti string) string {
	return "revoked:" + jti
}

func (r *RevocationList) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	if err := r.store.Set(ctx, revokedKey(jti), []byte("1"), store.WithExpiration(ttl)); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked treats lookup failures as not revoked; the token signature and
// expiry have already been verified at that point.
func (r *RevocationList) IsRevoked(ctx context.Context, jti string) bool {
	if jti == "" {
		return false
	}
	_, err := r.store.Get(ctx, revokedKey(jti))
	return err == nil
}
