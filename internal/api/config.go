package api

import (
	"github.com/FocuswithJustin/JuniperScore/core/score"
)

// DefaultMaxBodyBytes caps a POST body when Config.MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 32 << 20

// Config holds server configuration.
type Config struct {
	Addr              string      // Listen address, e.g. ":8080"
	DataDir           string      // Holds blobs/ and runs.db
	Scope             score.Scope // Scope recorded on new apparatus groups
	MaxBodyBytes      int64       // POST body limit (0 = DefaultMaxBodyBytes)
	RateLimitRequests int         // Requests per minute (0 = disabled)
	RateLimitBurst    int         // Burst size
	Auth              AuthConfig  // Authentication configuration
	TLS               TLSConfig   // TLS configuration
	AllowedOrigins    []string    // CORS and WebSocket origins (empty = allow all)
}

// TLSConfig holds TLS/HTTPS configuration.
type TLSConfig struct {
	Enabled  bool   // Enable HTTPS
	CertFile string // Path to TLS certificate file
	KeyFile  string // Path to TLS private key file
}

// DefaultConfig returns the configuration used by "juniperscore serve"
// when no flags or config file override it.
func DefaultConfig() Config {
	return Config{
		Addr:         ":8080",
		DataDir:      "data",
		Scope:        score.ScopeNote,
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

func (c Config) maxBody() int64 {
	if c.MaxBodyBytes > 0 {
		return c.MaxBodyBytes
	}
	return DefaultMaxBodyBytes
}
