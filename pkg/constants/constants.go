package constants

type contextKey string

const (
	// PoolKey carries the shared *pgxpool.Pool.
	PoolKey contextKey = "pool"
	// TxKey carries the transaction opened for the current unit of work.
	TxKey contextKey = "tx"
	// KayttajaKey carries the authenticated principal.
	KayttajaKey contextKey = "kayttaja"
	// GroupsKey carries the principal's resolved group set.
	GroupsKey contextKey = "groups"
	// RequestIDKey carries the per-request correlation id.
	RequestIDKey contextKey = "request_id"
	// LoggerKey carries the request-scoped logrus entry.
	LoggerKey contextKey = "logger"
)
