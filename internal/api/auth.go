package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"fieldbook/internal/config"
)

const apiKeyHeaderDefault = "x-api-key"

type clientCtxKey struct{}

// ClientFromContext returns the authenticated client identity attached by
// HTTPAuth. The second return is false for unauthenticated requests.
func ClientFromContext(ctx context.Context) (config.APIClientKey, bool) {
	client, ok := ctx.Value(clientCtxKey{}).(config.APIClientKey)
	return client, ok
}

// HTTPAuth resolves the API key header to a client identity and enforces
// per-key rate limits. The booking core only ever sees the resulting
// {user_id, privileged} pair.
type HTTPAuth struct {
	cfg     config.APIConfig
	clients []config.APIClientKey
	limiter *rateLimiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	return &HTTPAuth{
		cfg:     cfg,
		clients: cfg.Auth.Keys,
		limiter: newRateLimiter(cfg.RateLimit),
	}
}

func (a *HTTPAuth) headerName() string {
	if h := strings.TrimSpace(a.cfg.Auth.HeaderAPIKey); h != "" {
		return h
	}
	return apiKeyHeaderDefault
}

func (a *HTTPAuth) lookup(apiKey string) (config.APIClientKey, bool) {
	// сравниваем со всеми ключами, чтобы время ответа не зависело от совпадения
	var found config.APIClientKey
	ok := false
	for _, c := range a.clients {
		if subtle.ConstantTimeCompare([]byte(c.Key), []byte(apiKey)) == 1 {
			found = c
			ok = true
		}
	}
	return found, ok
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		client := config.APIClientKey{Name: "anonymous", Privileged: true}
		if a.cfg.Auth.Enabled {
			apiKey := strings.TrimSpace(r.Header.Get(a.headerName()))
			if apiKey == "" {
				writeError(w, http.StatusUnauthorized, "missing api key")
				return
			}
			found, ok := a.lookup(apiKey)
			if !ok {
				writeError(w, http.StatusUnauthorized, "invalid api key")
				return
			}
			client = found
		}

		if a.cfg.RateLimit.RPS > 0 {
			if !a.limiter.allow(client.Key) {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}

		ctx := context.WithValue(r.Context(), clientCtxKey{}, client)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
