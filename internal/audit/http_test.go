package audit

import (
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	cases := []struct {
		name       string
		forwarded  string
		realIP     string
		remoteAddr string
		want       string
	}{
		{name: "forwarded first entry", forwarded: "203.0.113.7, 10.0.0.1", remoteAddr: "10.0.0.1:443", want: "203.0.113.7"},
		{name: "forwarded single", forwarded: " 203.0.113.7 ", remoteAddr: "10.0.0.1:443", want: "203.0.113.7"},
		{name: "forwarded wins over real ip", forwarded: "203.0.113.7", realIP: "198.51.100.4", remoteAddr: "10.0.0.1:443", want: "203.0.113.7"},
		{name: "real ip", realIP: "198.51.100.4", remoteAddr: "10.0.0.1:443", want: "198.51.100.4"},
		{name: "remote addr host", remoteAddr: "192.0.2.9:51204", want: "192.0.2.9"},
		{name: "remote addr without port", remoteAddr: "192.0.2.9", want: "192.0.2.9"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tc.remoteAddr
			if tc.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if tc.realIP != "" {
				r.Header.Set("X-Real-IP", tc.realIP)
			}
			if got := ClientIP(r); got != tc.want {
				t.Fatalf("ClientIP = %q, want %q", got, tc.want)
			}
		})
	}

	if got := ClientIP(nil); got != "" {
		t.Fatalf("ClientIP(nil) = %q, want empty", got)
	}
}
