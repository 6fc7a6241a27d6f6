// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They are app-level settings;
// WAFFLE's CoreConfig carries ports, TLS, logging and CORS.
type AppConfig struct {
	// Which store holds groups: "mongo", "remote" or "memory".
	Backend string

	// MongoDB connection configuration (Backend == "mongo")
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Remote course service (Backend == "remote")
	RemoteBaseURL  string // e.g. https://courses.example.edu/api
	RemoteAPIToken string // bearer token; blank sends no Authorization header
	RemotePageSize int
	RemoteTimeout  time.Duration // per-call HTTP client timeout
	RemoteCheckIDs bool          // false accepts non-GUID user ids (dev servers)

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: projecthub-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Cookie lifetime

	// Store access
	StoreTimeout   time.Duration // per-call timeout for backend calls
	RetryAttempts  int           // attempts for idempotent reads
	RetryBaseDelay time.Duration // first backoff delay; doubles per attempt

	// Group defaults
	DefaultMaxMembers int

	// RepairSweepInterval is how often every active course is reconciled.
	// Zero disables the sweep.
	RepairSweepInterval time.Duration

	// MutationRateLimit caps group POSTs per user per minute. Zero disables.
	MutationRateLimit int

	// Audit logging destination for group events: all, db, log or off.
	AuditLogGroups string
}
