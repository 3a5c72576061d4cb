package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/securechat/securechat/internal/metrics"
	"github.com/securechat/securechat/internal/models"
)

type contextKey int

const userContextKey contextKey = iota

// sessionCookie carries the session token between requests.
const sessionCookie = "securechat_session"

// userFromContext returns the authenticated user set by requireSession.
func userFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey).(*models.User)
	return user
}

// sessionToken extracts the token from the cookie or an Authorization
// bearer header.
func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}

// requireSession is the login guard: it resolves the session token to
// a user and places it in the request context before the handler runs.
func (s *Server) requireSession(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.accounts.UserForSession(r.Context(), sessionToken(r))
		if err != nil {
			writeError(w, models.ErrNotAuthenticated)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next(w, r.WithContext(ctx))
	})
}

// rateLimited throttles unauthenticated credential endpoints per IP.
func (s *Server) rateLimited(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientIP(r), time.Now()) {
			writeError(w, &models.RequestError{
				Code:       models.ErrCodeRateLimit,
				Message:    "too many attempts, slow down",
				StatusCode: http.StatusTooManyRequests,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack hands the connection to the handler. WebSocket upgrades need
// this; the embedded interface alone would hide it.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.WithFields(map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Debug("Request handled")
	})
}

func (s *Server) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if pattern := r.Pattern; pattern != "" {
			route = pattern
		}
		metrics.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeError maps domain errors to HTTP responses.
func writeError(w http.ResponseWriter, err error) {
	var reqErr *models.RequestError
	if errors.As(err, &reqErr) {
		status := reqErr.StatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, errorBody{Error: reqErr.Message, Code: reqErr.Code})
		return
	}

	status := http.StatusInternalServerError
	code := ""
	msg := "internal error"

	switch {
	case errors.Is(err, models.ErrNotAuthenticated):
		status, code, msg = http.StatusUnauthorized, models.ErrCodeAuth, err.Error()
	case errors.Is(err, models.ErrInvalidLogin):
		status, code, msg = http.StatusUnauthorized, models.ErrCodeAuth, err.Error()
	case errors.Is(err, models.ErrEmailTaken):
		status, code, msg = http.StatusConflict, models.ErrCodeConflict, err.Error()
	case errors.Is(err, models.ErrUserNotFound),
		errors.Is(err, models.ErrMessageNotFound):
		status, code, msg = http.StatusNotFound, models.ErrCodeNotFound, err.Error()
	case errors.Is(err, models.ErrNotParticipant):
		status, code, msg = http.StatusForbidden, models.ErrCodeAuth, err.Error()
	case errors.Is(err, models.ErrVerifyNotFound),
		errors.Is(err, models.ErrVerifyExpired),
		errors.Is(err, models.ErrVerifyUsed):
		status, code, msg = http.StatusBadRequest, models.ErrCodeValidation, err.Error()
	}

	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &models.RequestError{
			Code:       models.ErrCodeValidation,
			Message:    fmt.Sprintf("invalid request body: %v", err),
			StatusCode: http.StatusBadRequest,
		}
	}
	return nil
}
