package vitrine

import "context"

// LocalStore persists opaque values by key next to the process. The
// connection log keeps its ring buffer under the key "db_connection_logs".
// Implementations must be safe for concurrent use.
type LocalStore interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// Limiter decides whether a request identified by key may proceed.
// Returning an error fails open. Implementations must be safe for
// concurrent use.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Close() error
}
