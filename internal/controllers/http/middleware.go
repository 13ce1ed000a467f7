package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"furniture-order-service/internal/domain"
	"furniture-order-service/internal/infra/cache"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

var errInvalidToken = errors.New("invalid or expired token")

// Principal is the caller identified by a bearer token.
type Principal struct {
	UserID string
	Role   domain.Role
}

// Authenticator verifies HMAC-signed tokens issued by the identity service.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

func (a *Authenticator) Parse(raw string) (*Principal, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}

	userID := claimString(claims, "sub")
	if userID == "" {
		userID = claimString(claims, "user_id")
	}
	if userID == "" {
		return nil, errInvalidToken
	}
	role, ok := domain.ParseRole(claimString(claims, "role"))
	if !ok {
		return nil, errInvalidToken
	}
	return &Principal{UserID: userID, Role: role}, nil
}

func claimString(claims jwt.MapClaims, key string) string {
	switch v := claims[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	// websocket clients cannot set headers
	return c.Query("access_token")
}

func (h *Handler) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "authorization token is missing", Code: "unauthorized"})
			return
		}
		p, err := h.auth.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error(), Code: "unauthorized"})
			return
		}
		c.Set(ctxUserID, p.UserID)
		c.Set(ctxRole, p.Role)
		c.Next()
	}
}

func (h *Handler) require(capability domain.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get(ctxRole)
		r, ok := role.(domain.Role)
		if !ok || !r.Can(capability) {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "insufficient permissions", Code: "forbidden"})
			return
		}
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

// IdempotencyStore remembers the first response for a client-supplied key.
type IdempotencyStore interface {
	Lookup(ctx context.Context, key string) (*cache.StoredResponse, bool, error)
	Save(ctx context.Context, key string, resp cache.StoredResponse) error
}

type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// idempotent replays the stored response when an Idempotency-Key repeats.
// Server errors are not stored so the client can retry them.
func (h *Handler) idempotent() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		if key == "" || h.idem == nil {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		storeKey := cache.IdempotencyKey(userID(c), c.Request.Method+" "+c.Request.URL.Path, key)

		stored, ok, err := h.idem.Lookup(ctx, storeKey)
		if err != nil {
			log.Warn().Err(err).Str("key", storeKey).Msg("idempotency lookup failed")
		}
		if ok {
			c.Header("Idempotent-Replayed", "true")
			c.Data(stored.Status, "application/json; charset=utf-8", stored.Body)
			c.Abort()
			return
		}

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		status := w.Status()
		if status >= http.StatusInternalServerError || w.body.Len() == 0 {
			return
		}
		resp := cache.StoredResponse{Status: status, Body: append([]byte(nil), w.body.Bytes()...)}
		if err := h.idem.Save(ctx, storeKey, resp); err != nil {
			log.Warn().Err(err).Str("key", storeKey).Msg("idempotency save failed")
		}
	}
}

// clientLimiter hands out one token bucket per client IP.
type clientLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*visitor
	swept   time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const visitorIdle = 3 * time.Minute

func newClientLimiter(perSecond float64, burst int) *clientLimiter {
	return &clientLimiter{limit: rate.Limit(perSecond), burst: burst, clients: map[string]*visitor{}}
}

func (l *clientLimiter) allow(client string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.swept) > time.Minute {
		for k, v := range l.clients {
			if now.Sub(v.lastSeen) > visitorIdle {
				delete(l.clients, k)
			}
		}
		l.swept = now
	}
	v, ok := l.clients[client]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[client] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (h *Handler) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.limiter != nil && !h.limiter.allow(c.ClientIP(), time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limit exceeded", Code: "rate_limited"})
			return
		}
		c.Next()
	}
}

// observe logs every request and records its latency.
func (h *Handler) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		ms := float64(time.Since(start).Microseconds()) / 1000
		h.metrics.ObserveRequest(route, strconv.Itoa(status), ms)

		ev := log.Info()
		if status >= http.StatusInternalServerError {
			ev = log.Error()
		}
		ev.Str("method", c.Request.Method).Str("path", c.Request.URL.Path).
			Int("status", status).Float64("latency_ms", ms).Str("client_ip", c.ClientIP()).Msg("request")
	}
}
