package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"restocrm/internal/config"
	"restocrm/internal/metrics"
	"restocrm/internal/tenant"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	apiKeyHeaderDefault  = "x-api-key"
	sessionHeaderDefault = "x-session-id"
	requestIDHeader      = "x-request-id"
	permAdminRestaurants = "admin:restaurants"
	clientKeyUnknown     = "unknown"

	ctxScope     = "tenantScope"
	ctxSessionID = "sessionID"
	ctxAPIClient = "apiClient"
)

var (
	errMissingAPIKey     = errors.New("missing api key header")
	errInvalidAPIKey     = errors.New("invalid api key")
	errPermissionDenied  = errors.New("permission denied")
	errRateLimitExceeded = errors.New("rate limit exceeded")
)

// AdminAuth guards the admin panel routes with API keys and a per-key
// rate limit.
type AdminAuth struct {
	cfg     config.APIAuthConfig
	clients map[string]config.APIClientKey
	limiter *rateLimiter
}

func NewAdminAuth(cfg config.APIConfig) *AdminAuth {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}
	return &AdminAuth{
		cfg:     cfg.Auth,
		clients: m,
		limiter: newRateLimiter(cfg.RateLimit),
	}
}

func (a *AdminAuth) headerName() string {
	h := strings.ToLower(strings.TrimSpace(a.cfg.HeaderAPIKey))
	if h == "" {
		return apiKeyHeaderDefault
	}
	return h
}

func (a *AdminAuth) Middleware(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.cfg.Enabled {
			client, err := a.checkAuth(c.Request, permission)
			if err != nil {
				status := http.StatusUnauthorized
				if errors.Is(err, errPermissionDenied) {
					status = http.StatusForbidden
				}
				abortWithError(c, status, err.Error())
				return
			}
			c.Set(ctxAPIClient, client.Name)
		}

		if !a.limiter.allow(a.clientKey(c)) {
			abortWithError(c, http.StatusTooManyRequests, errRateLimitExceeded.Error())
			return
		}
		c.Next()
	}
}

func (a *AdminAuth) checkAuth(r *http.Request, permission string) (config.APIClientKey, error) {
	apiKey := strings.TrimSpace(r.Header.Get(a.headerName()))
	if apiKey == "" {
		return config.APIClientKey{}, errMissingAPIKey
	}

	var client config.APIClientKey
	found := false
	for key, k := range a.clients {
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1 {
			client, found = k, true
		}
	}
	if !found {
		return config.APIClientKey{}, errInvalidAPIKey
	}

	// пустой список прав означает полный доступ
	if permission == "" || len(client.Permissions) == 0 {
		return client, nil
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == permission {
			return client, nil
		}
	}
	return config.APIClientKey{}, errPermissionDenied
}

func (a *AdminAuth) clientKey(c *gin.Context) string {
	if apiKey := strings.TrimSpace(c.GetHeader(a.headerName())); apiKey != "" {
		return apiKey
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return clientKeyUnknown
}

// SessionAuth resolves the request's session to its tenant. Requests
// without a usable tenant stop here, before any store access.
func SessionAuth(resolver *tenant.Resolver, header string) gin.HandlerFunc {
	header = strings.TrimSpace(header)
	if header == "" {
		header = sessionHeaderDefault
	}
	return func(c *gin.Context) {
		sessionID := strings.TrimSpace(c.GetHeader(header))
		scope, err := resolver.CurrentTenant(c.Request.Context(), sessionID)
		if err != nil {
			abortWithErr(c, err)
			return
		}
		c.Set(ctxSessionID, sessionID)
		c.Set(ctxScope, scope)
		c.Next()
	}
}

func scopeFrom(c *gin.Context) tenant.Scope {
	if v, ok := c.Get(ctxScope); ok {
		if scope, ok := v.(tenant.Scope); ok {
			return scope
		}
	}
	return tenant.Scope{}
}

func sessionFrom(c *gin.Context) string {
	return c.GetString(ctxSessionID)
}

// RequestLogger logs one line per request and counts it in metrics.
func RequestLogger(logger *zerolog.Logger) gin.HandlerFunc {
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "http").Logger()
	}

	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		start := time.Now()
		c.Next()
		dur := time.Since(start)

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		code := c.Writer.Status()
		metrics.IncHTTP(c.Request.Method+" "+endpoint, strconv.Itoa(code))

		ev := base.Info()
		if code >= http.StatusInternalServerError {
			ev = base.Error()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("error", c.Errors.String())
		}
		ev.Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("remote", c.ClientIP()).
			Int("status", code).
			Dur("duration", dur).
			Msg("http request")
	}
}
