package middleware

import (
	"net"
	"net/http"
	"strings"
)

// UnknownIdentity buckets requests whose transport gives no usable
// address. The limiter and logger accept it as a valid, if coarse, key.
const UnknownIdentity = "unknown"

// ClientIdentity derives the rate-limit bucket key for a request:
// first X-Forwarded-For hop, then X-Real-IP, then the connection peer
// address.
func ClientIdentity(r *http.Request) string {
	forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	remote := strings.TrimSpace(r.RemoteAddr)
	if remote == "" {
		return UnknownIdentity
	}
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return remote
	}
	return host
}
