// Package session is the persistent key-value store the client keeps its
// credentials in.
package session

import "context"

// Keys written by the login flow and cleared on session expiry.
const (
	KeyToken    = "token"
	KeyUserInfo = "userInfo"
)

// Store is a small string key-value store. Get returns domain.ErrNotFound for
// a missing or expired key.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
