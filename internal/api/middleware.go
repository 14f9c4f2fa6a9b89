package api

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type ctxKey int

const userIDKey ctxKey = iota

// UserID returns the caller identity set by IdentityMiddleware
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-Id")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func JSONMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func LoggingMiddleware(log *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			entry := log.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start).String(),
			})
			if rec.status >= http.StatusInternalServerError {
				entry.Warn("request failed")
				return
			}
			entry.Debug("request served")
		})
	}
}

// IdentityMiddleware resolves the caller. With a secret configured every
// request needs a bearer token whose sub claim is the user id; X-User-Id is
// only honoured when no secret is set.
func IdentityMiddleware(secret string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
				return
			}

			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: true, Message: "missing bearer token"})
				return
			}
			tok, err := jwt.Parse(strings.TrimPrefix(auth, "Bearer "), func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: true, Message: "invalid token"})
				return
			}
			sub, err := tok.Claims.GetSubject()
			if err != nil || sub == "" {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: true, Message: "token has no subject"})
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, sub)))
		})
	}
}

// tokenBucket refills `refill` tokens every interval up to capacity and takes
// one per request. Returns {allowed, remaining, retry_after_ms}.
var tokenBucket = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local interval_ms = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	local state = redis.call('HMGET', key, 'tokens', 'last_ms')
	local tokens = tonumber(state[1])
	local last = tonumber(state[2])
	if tokens == nil or last == nil then
		tokens = capacity
		last = now_ms
	end

	local intervals = math.floor(math.max(0, now_ms - last) / interval_ms)
	if intervals > 0 then
		tokens = math.min(capacity, tokens + intervals)
		last = last + intervals * interval_ms
	end

	local allowed = 0
	local retry = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		retry = math.max(0, interval_ms - (now_ms - last))
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_ms', last)
	redis.call('EXPIRE', key, ttl)
	return {allowed, tokens, retry}
`)

// RateLimitMiddleware throttles per caller and route. A nil client or a
// Redis failure lets the request through.
func RateLimitMiddleware(rdb *redis.Client, capacity int, refill time.Duration, log *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if rdb == nil || capacity <= 0 || refill <= 0 {
			return next
		}
		ttl := int64(math.Ceil(refill.Seconds() * float64(capacity) * 2))

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ratelimit:" + callerKey(r) + ":" + r.Method + " " + routeTemplate(r)
			vals, err := tokenBucket.Run(r.Context(), rdb, []string{key},
				time.Now().UnixMilli(), capacity, refill.Milliseconds(), ttl).Int64Slice()
			if err != nil || len(vals) != 3 {
				log.WithError(err).WithField("key", key).Warn("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(capacity))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(vals[1], 10))
			if vals[0] != 1 {
				secs := int(math.Ceil(float64(vals[2]) / 1000))
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: true, Message: "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func callerKey(r *http.Request) string {
	if id := UserID(r.Context()); id != "" {
		return "user:" + id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}
