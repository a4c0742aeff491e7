package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures the headers emitted by SecurityHeaders.
//
// EnableHSTS emits Strict-Transport-Security on HTTPS requests only; leave it
// off unless traffic is HTTPS end to end, including between the proxy and the
// app. HSTSMaxAge defaults to 180 days when unset. NoStore adds
// Cache-Control: no-store plus the legacy Pragma/Expires pair. EnablePolicy
// adds Permissions-Policy and X-Permitted-Cross-Domain-Policies; both only
// matter to browsers and are harmless for other clients.
type SecurityOptions struct {
	EnableHSTS   bool
	HSTSMaxAge   time.Duration
	NoStore      bool
	EnablePolicy bool
}

// diagnosticHeaders are response headers browser clients need to read across
// origins: the request correlation id and the idempotent-replay marker.
var diagnosticHeaders = []string{"X-Request-ID", "Idempotency-Replayed"}

// SecurityHeaders returns a Gin middleware that hardens JSON API responses.
// Every response gets X-Content-Type-Options: nosniff, X-Frame-Options: DENY,
// and Referrer-Policy: no-referrer; the optional groups are controlled by
// SecurityOptions. There is no CSP here since the API never serves HTML.
// When a request id is present, the diagnostic headers are appended to
// Access-Control-Expose-Headers without clobbering entries set by CORS.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour).Seconds())
	}
	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security",
				"max-age="+strconv.Itoa(maxAge)+"; includeSubDomains; preload")
		}

		if rid := h.Get("X-Request-ID"); rid != "" {
			const hdr = "Access-Control-Expose-Headers"
			for _, name := range diagnosticHeaders {
				cur := h.Get(hdr)
				if cur == "" {
					h.Set(hdr, name)
				} else if !strings.Contains(cur, name) {
					h.Set(hdr, cur+", "+name)
				}
			}
		}

		c.Next()
	}
}

// isHTTPS reports whether the request arrived over HTTPS, either directly or
// via a proxy that set X-Forwarded-Proto.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
