package httpserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	sessionHeader = "X-Session-ID"
	sessionCookie = "sid"
	sessionCtxKey = "session"

	sessionCookieMaxAge = 60 * 60 * 24 * 30
)

// sessionMiddleware resolves the browser session from the header or cookie
// and issues a fresh one when neither carries a valid id.
func sessionMiddleware(secureCookie bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(sessionHeader)
		if id == "" {
			id, _ = c.Cookie(sessionCookie)
		}
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(sessionCookie, id, sessionCookieMaxAge, "/", "", secureCookie, true)
		}
		c.Header(sessionHeader, id)
		c.Set(sessionCtxKey, id)
		c.Next()
	}
}

func sessionID(c *gin.Context) string {
	return c.GetString(sessionCtxKey)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("session", sessionID(c)),
		}
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.IsValid() {
			fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("request", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}

func recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic", zap.Any("recovered", recovered), zap.String("path", c.Request.URL.Path))
		fail(c, http.StatusInternalServerError, "internal error")
	})
}

// sessionLimiter throttles an operation per session. Idle limiters are
// swept once they have not been used for idleTTL.
type sessionLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	visitors map[string]*visitor
	swept    time.Time
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newSessionLimiter(perMinute int) *sessionLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	return &sessionLimiter{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		idleTTL:  10 * time.Minute,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

func (l *sessionLimiter) allow(session string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.swept) > l.idleTTL {
		for id, v := range l.visitors {
			if now.Sub(v.lastSeen) > l.idleTTL {
				delete(l.visitors, id)
			}
		}
		l.swept = now
	}
	v, ok := l.visitors[session]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[session] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}
