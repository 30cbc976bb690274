package audit

import (
	"net"
	"net/http"
	"strings"
)

// Proxy headers consulted before RemoteAddr, in priority order.
var clientIPHeaders = []string{"X-Forwarded-For", "X-Real-IP"}

// ClientIP extracts the client address from proxy headers or RemoteAddr.
// X-Forwarded-For carries the original client first.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	for _, header := range clientIPHeaders {
		value := r.Header.Get(header)
		if value == "" {
			continue
		}
		first, _, _ := strings.Cut(value, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
