package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/mabar/mabar-backend/api/responses"
	pkgerrors "github.com/mabar/mabar-backend/pkg/errors"
	"github.com/mabar/mabar-backend/pkg/logger"
	"github.com/mabar/mabar-backend/pkg/metrics"
	"github.com/mabar/mabar-backend/pkg/ratelimit"
)

// maxKeyBody caps how much of a request body is buffered to find the email.
const maxKeyBody = 64 << 10

// KeyFunc derives the rate-limit key for a request. An empty key skips the check.
type KeyFunc func(r *http.Request) string

// ClientIPKey keys requests by the caller's address as resolved by ClientIP.
func ClientIPKey(r *http.Request) string {
	if ip := clientIP(r); ip != "" {
		return "ip:" + ip
	}
	return ""
}

// EmailKey keys requests by a hash of the "email" field in a JSON body. The
// body is restored for the next handler.
func EmailKey(r *http.Request) string {
	if r.Body == nil {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxKeyBody))
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), r.Body))
	if err != nil {
		return ""
	}
	email := normalizeEmail(extractEmail(body))
	if email == "" {
		return ""
	}
	return "email:" + hashValue(email)
}

// RateLimit rejects requests once limiter reports the key exhausted. Store
// failures fail closed.
func RateLimit(limiter ratelimit.Limiter, key KeyFunc, m *metrics.AuthMetrics, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		policy := limiter.Policy()

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}

			decision, err := limiter.Check(ctx, k)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			if !decision.Allowed {
				m.IncRateLimitRejection(policy.Name)
				if logg != nil {
					logg.Security(ctx, "rate_limit.blocked", map[string]any{
						"policy":         policy.Name,
						"key":            k,
						"attempts":       decision.Count,
						"limit":          decision.Limit,
						"window_seconds": int(policy.Window.Seconds()),
						"path":           r.URL.Path,
					})
				}
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func extractEmail(payload []byte) string {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	return body.Email
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
