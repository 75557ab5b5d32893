package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"notes-api/pkg/response"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	goerrors "github.com/go-errors/errors"
)

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Info("request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"ip", c.ClientIP(),
		)
	}
}

// CORS allows the browser client at clientURL to send the session cookie.
func CORS(clientURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", clientURL)
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
		c.Header("Vary", "Origin")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// ErrorHandler renders the last error attached with c.Error and recovers
// panics. Outside production the stack trace of server errors is included
// in the body.
func ErrorHandler(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				err := goerrors.Wrap(rec, 2)
				respondWithError(c, err, production)
				c.Abort()
			}
		}()

		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		respondWithError(c, c.Errors.Last().Err, production)
	}
}

func respondWithError(c *gin.Context, err error, production bool) {
	f := response.Translate(err, production)

	if f.Status >= http.StatusInternalServerError {
		log.Error("request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", f.Status,
			"error", err,
			"stack", f.Stack,
		)
	} else {
		log.Debug("request rejected", "path", c.Request.URL.Path, "status", f.Status, "message", f.Message)
	}

	var extra gin.H
	if !production && f.Stack != "" {
		extra = gin.H{"stack": f.Stack}
	}
	response.Error(c, f.Status, f.Message, extra)
}

// RateLimiter is a sliding window limiter keyed by client IP.
type RateLimiter struct {
	visitors map[string]*Visitor
	mutex    sync.RWMutex
	rate     int           // requests per window
	window   time.Duration // time window
	cleanup  time.Duration // cleanup interval
}

// Visitor represents a visitor with their request history
type Visitor struct {
	requests []time.Time
	lastSeen time.Time
	mutex    sync.Mutex
}

// NewRateLimiter starts a limiter whose cleanup loop stops with ctx.
func NewRateLimiter(ctx context.Context, rate int, window, cleanup time.Duration) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*Visitor),
		rate:     rate,
		window:   window,
		cleanup:  cleanup,
	}

	go rl.cleanupVisitors(ctx)

	return rl
}

// cleanupVisitors forgets visitors not seen for a full cleanup interval
func (rl *RateLimiter) cleanupVisitors(ctx context.Context) {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.removeIdle(time.Now().Add(-rl.cleanup))
		}
	}
}

func (rl *RateLimiter) removeIdle(cutoff time.Time) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	for ip, visitor := range rl.visitors {
		visitor.mutex.Lock()
		lastSeen := visitor.lastSeen
		visitor.mutex.Unlock()

		if lastSeen.Before(cutoff) {
			delete(rl.visitors, ip)
		}
	}
}

func (rl *RateLimiter) visitor(ip string) *Visitor {
	rl.mutex.RLock()
	v, exists := rl.visitors[ip]
	rl.mutex.RUnlock()
	if exists {
		return v
	}

	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	if v, exists = rl.visitors[ip]; !exists {
		v = &Visitor{lastSeen: time.Now()}
		rl.visitors[ip] = v
	}
	return v
}

// isAllowed records a request from ip and reports whether it fits the window,
// how many requests remain and when the oldest one leaves the window.
func (rl *RateLimiter) isAllowed(ip string) (bool, int, time.Duration) {
	visitor := rl.visitor(ip)

	visitor.mutex.Lock()
	defer visitor.mutex.Unlock()

	now := time.Now()
	visitor.lastSeen = now

	cutoff := now.Add(-rl.window)
	validRequests := visitor.requests[:0]
	for _, reqTime := range visitor.requests {
		if reqTime.After(cutoff) {
			validRequests = append(validRequests, reqTime)
		}
	}
	visitor.requests = validRequests

	if len(visitor.requests) >= rl.rate {
		resetDuration := time.Until(visitor.requests[0].Add(rl.window))
		return false, 0, resetDuration
	}

	visitor.requests = append(visitor.requests, now)
	return true, rl.rate - len(visitor.requests), 0
}

func RateLimitMiddleware(rateLimiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, remaining, resetDuration := rateLimiter.isAllowed(c.ClientIP())

		c.Header("X-RateLimit-Limit", strconv.Itoa(rateLimiter.rate))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if resetDuration > 0 {
			c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(resetDuration).Unix(), 10))
			c.Header("Retry-After", strconv.Itoa(int(resetDuration.Seconds())))
		}

		if !allowed {
			response.Error(c, http.StatusTooManyRequests,
				fmt.Sprintf("Too many requests. Try again in %v", resetDuration.Round(time.Second)),
				gin.H{"retryAfter": int(resetDuration.Seconds())})
			c.Abort()
			return
		}

		c.Next()
	}
}
