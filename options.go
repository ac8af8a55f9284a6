package vitrine

import "log/slog"

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported; callers use the With* functions.
type resolvedOptions struct {
	port        int
	databaseURL string
	logger      *slog.Logger
	version     string
	localStore  LocalStore
	limiter     Limiter
}

// WithPort overrides the TCP port from config (VITRINE_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithDatabaseURL overrides the direct Postgres connection string from
// config (DATABASE_URL env var).
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithLocalStore replaces the SQLite file behind the connection log
// (VITRINE_LOCAL_STORE). The App does not close a store passed here.
func WithLocalStore(s LocalStore) Option {
	return func(o *resolvedOptions) { o.localStore = s }
}

// WithLimiter replaces the in-memory rate limiter guarding public writes,
// e.g. with a shared one for multi-instance deployments. The App closes it
// on shutdown.
func WithLimiter(l Limiter) Option {
	return func(o *resolvedOptions) { o.limiter = l }
}
