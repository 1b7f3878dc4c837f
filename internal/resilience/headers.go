package resilience

import (
	"math"
	"net/http"
	"strconv"
)

const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderWindow     = "X-RateLimit-Window"
	HeaderRetryAfter = "Retry-After"
)

// GenerateHeaders renders result as rate-limit response headers. Reset is a
// unix timestamp in seconds, Window is the period in seconds, and Retry-After
// is only present when the request was denied.
func (l *RateLimiter) GenerateHeaders(result RateLimitResult) http.Header {
	h := make(http.Header, 5)
	h.Set(HeaderLimit, strconv.Itoa(result.Limit))
	h.Set(HeaderRemaining, strconv.Itoa(result.Remaining))
	h.Set(HeaderReset, strconv.FormatInt(result.ResetTime.Unix(), 10))
	h.Set(HeaderWindow, strconv.FormatInt(int64(l.cfg.Period.Seconds()), 10))

	if !result.Allowed {
		secs := int64(math.Ceil(result.RetryAfter.Seconds()))
		h.Set(HeaderRetryAfter, strconv.FormatInt(max(secs, 1), 10))
	}
	return h
}
