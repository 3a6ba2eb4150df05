// Package auth provides API-key authentication middleware for the
// explanation service.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Config holds API-key middleware configuration.
type Config struct {
	Enabled          bool
	Keys             []string // accepted API keys
	Header           string   // default: "Authorization" (Bearer) or "X-API-Key"
	BypassForHealth  bool     // allow /health without a key
	BypassForMetrics bool     // /metrics has its own basic-auth gate
}

// DefaultConfig returns production defaults. The middleware stays
// disabled until at least one key is configured.
func DefaultConfig(keys []string) *Config {
	return &Config{
		Enabled:          len(keys) > 0,
		Keys:             keys,
		Header:           "X-API-Key",
		BypassForHealth:  true,
		BypassForMetrics: true,
	}
}

// Middleware rejects requests that do not carry a configured API key.
// Keys are accepted either in the configured header or as a Bearer token.
func Middleware(config *Config) func(http.Handler) http.Handler {
	if config == nil {
		config = DefaultConfig(nil)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !config.Enabled {
				next.ServeHTTP(w, r)
				return
			}
			if config.BypassForHealth && r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}
			if config.BypassForMetrics && r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(config.Header)
			if key == "" {
				if bearer := r.Header.Get("Authorization"); strings.HasPrefix(bearer, "Bearer ") {
					key = strings.TrimPrefix(bearer, "Bearer ")
				}
			}
			if key == "" || !config.accepts(key) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"missing or invalid API key"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (c *Config) accepts(key string) bool {
	for _, k := range c.Keys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			return true
		}
	}
	return false
}
