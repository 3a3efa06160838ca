package handler

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rl1809/storefront/internal/auth"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/logger"
	"github.com/rl1809/storefront/internal/port"
)

const SessionCookie = "cart_session"

// IdentityMiddleware resolves who the request acts for: a bearer token user or an
// anonymous cookie session. A request carrying both is a fresh login, so the session
// cart is handed to the login subscriber and the cookie is expired.
type IdentityMiddleware struct {
	tokens     *auth.TokenManager
	login      port.LoginSubscriber
	sessionTTL time.Duration
	secure     bool
	log        *zap.Logger
}

func NewIdentityMiddleware(tokens *auth.TokenManager, login port.LoginSubscriber, sessionTTL time.Duration, secure bool, log *zap.Logger) *IdentityMiddleware {
	return &IdentityMiddleware{
		tokens:     tokens,
		login:      login,
		sessionTTL: sessionTTL,
		secure:     secure,
		log:        log,
	}
}

func (m *IdentityMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := ""
		if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
			sessionID = c.Value
		}

		if raw, ok := bearerToken(r); ok {
			claims, err := m.tokens.Parse(raw)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid_token", Message: "invalid or expired token"})
				return
			}
			userID, _ := claims.UserID()

			if sessionID != "" {
				m.handleLogin(r, w, userID, sessionID)
			}

			id := auth.Identity{Owner: domain.UserOwner(userID), Role: claims.Role, SessionID: sessionID}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
			return
		}

		if sessionID == "" {
			sessionID = uuid.NewString()
			http.SetCookie(w, m.cookie(sessionID, int(m.sessionTTL/time.Second)))
		}

		id := auth.Identity{Owner: domain.SessionOwner(sessionID), SessionID: sessionID}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

func (m *IdentityMiddleware) handleLogin(r *http.Request, w http.ResponseWriter, userID int64, sessionID string) {
	event := domain.LoginEvent{UserID: userID, SessionID: sessionID, At: time.Now().UTC()}
	if err := m.login.HandleLogin(r.Context(), event); err != nil {
		// cookie kept so the merge runs again on the next request
		logger.For(r.Context(), m.log).Error("merge session cart failed",
			zap.Int64("user_id", userID), zap.Error(err))
		return
	}
	http.SetCookie(w, m.cookie("", -1))
}

func (m *IdentityMiddleware) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !identity(r).Owner.IsAuthenticated() {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthenticated", Message: "sign in required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := identity(r)
		if !id.Owner.IsAuthenticated() {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthenticated", Message: "sign in required"})
			return
		}
		if !id.IsAdmin() {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden", Message: "admin access required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestLogger logs one line per request and puts chi's request id into the context logger.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := middleware.GetReqID(r.Context())
			if reqID != "" {
				w.Header().Set(middleware.RequestIDHeader, reqID)
				r = r.WithContext(logger.WithRequestID(r.Context(), reqID))
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			log.Info("http request",
				zap.String("request_id", logger.RequestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
			)
		})
	}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per shopper. Idle buckets are swept lazily.
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*limiterEntry
	rate      rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
}

func NewRateLimiter(r rate.Limit, burst int) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*limiterEntry),
		rate:    r,
		burst:   burst,
		idle:    10 * time.Minute,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastSweep) > rl.idle {
		for k, e := range rl.clients {
			if now.Sub(e.lastSeen) > rl.idle {
				delete(rl.clients, k)
			}
		}
		rl.lastSweep = now
	}

	e, ok := rl.clients[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.clients[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.getLimiter(clientKey(r)).Allow() {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate_limited", Message: "too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	if id, ok := auth.FromContext(r.Context()); ok && id.Owner.Valid() {
		return id.Owner.Key()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
