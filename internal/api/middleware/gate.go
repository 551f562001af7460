package middleware

import (
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/bcnelson/tareas-api/internal/domain"
	"github.com/bcnelson/tareas-api/internal/metrics"
)

// APIKeyHeader carries the shared secret.
const APIKeyHeader = "x-api-key"

// Peer is the network origin of a request.
type Peer struct {
	Addr string
	Port int // -1 when unknown
}

// PeerOf splits r.RemoteAddr. IPv6 brackets are removed.
func PeerOf(r *http.Request) Peer {
	host, port, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return Peer{Addr: r.RemoteAddr, Port: -1}
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		p = -1
	}
	return Peer{Addr: host, Port: p}
}

// OriginAllowed reports whether peer is one of the allowed address literals
// or connects from trustedPort.
func OriginAllowed(peer Peer, allowedAddrs []string, trustedPort int) bool {
	for _, addr := range allowedAddrs {
		if peer.Addr == addr {
			return true
		}
	}
	return peer.Port >= 0 && peer.Port == trustedPort
}

// CheckAPIKey returns the status a presented key earns: 0 when it matches,
// 401 when absent, 403 when wrong.
func CheckAPIKey(presented, secret string) int {
	if presented == "" {
		return http.StatusUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
		return http.StatusForbidden
	}
	return 0
}

// Origin rejects requests that neither come from an allowed address nor
// from the trusted remote port.
func Origin(allowedAddrs []string, trustedPort int, m *metrics.Metrics) func(http.Handler) http.Handler {
	message := fmt.Sprintf(domain.MsgOriginForbidden, trustedPort)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !OriginAllowed(PeerOf(r), allowedAddrs, trustedPort) {
				m.Rejected(metrics.GateOrigin)
				WriteError(w, http.StatusForbidden, message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// APIKey requires the x-api-key header to equal secret.
func APIKey(secret string, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch CheckAPIKey(r.Header.Get(APIKeyHeader), secret) {
			case http.StatusUnauthorized:
				m.Rejected(metrics.GateAPIKey)
				WriteError(w, http.StatusUnauthorized, domain.MsgMissingAPIKey)
				return
			case http.StatusForbidden:
				m.Rejected(metrics.GateAPIKey)
				WriteError(w, http.StatusForbidden, domain.MsgInvalidAPIKey)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
