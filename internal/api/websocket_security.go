package api

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/JuniperScore/internal/logging"
)

// WebSocketSecurityConfig holds WebSocket-specific security configuration.
type WebSocketSecurityConfig struct {
	// AllowedOrigins lists accepted Origin values. "*" accepts any origin
	// and "*.example.com" accepts subdomains. Empty accepts everything,
	// including clients that send no Origin.
	AllowedOrigins []string

	// MaxMessageRate is the number of client frames allowed per second.
	MaxMessageRate int

	// MaxMessageSize is the largest client frame in bytes.
	MaxMessageSize int64

	// Auth is checked before the upgrade when enabled.
	Auth AuthConfig
}

// DefaultWebSocketSecurityConfig returns the limits used by the server.
func DefaultWebSocketSecurityConfig() WebSocketSecurityConfig {
	return WebSocketSecurityConfig{
		MaxMessageRate: 10,
		MaxMessageSize: 4096,
	}
}

// WebSocketRateLimiter tracks client frame rates.
type WebSocketRateLimiter struct {
	mu      sync.RWMutex
	clients map[*Client]*tokenBucket
}

// NewWebSocketRateLimiter creates an empty limiter.
func NewWebSocketRateLimiter() *WebSocketRateLimiter {
	return &WebSocketRateLimiter{clients: make(map[*Client]*tokenBucket)}
}

// Register starts tracking client with a burst of twice the rate.
func (rl *WebSocketRateLimiter) Register(client *Client, perSecond int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.clients[client] = newTokenBucket(float64(perSecond)*2, float64(perSecond))
}

// Unregister stops tracking client.
func (rl *WebSocketRateLimiter) Unregister(client *Client) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.clients, client)
}

// Allow reports whether client may send another frame. Unknown clients
// are refused.
func (rl *WebSocketRateLimiter) Allow(client *Client) bool {
	rl.mu.RLock()
	b, ok := rl.clients[client]
	rl.mu.RUnlock()
	if !ok {
		return false
	}
	allowed, _, _ := b.take()
	return allowed
}

// isOriginAllowed matches origin against the allowed patterns.
func isOriginAllowed(origin string, allowedOrigins []string) bool {
	if len(allowedOrigins) == 0 {
		return true
	}
	if origin == "" {
		return false
	}
	for _, allowed := range allowedOrigins {
		switch {
		case allowed == "*", allowed == origin:
			return true
		case strings.HasPrefix(allowed, "*."):
			if strings.HasSuffix(origin, allowed[1:]) {
				return true
			}
		}
	}
	return false
}

// authorizeWebSocket returns a non-empty reason when the handshake lacks
// a valid key. The key may come from X-API-Key or the api_key query
// parameter.
func authorizeWebSocket(r *http.Request, auth AuthConfig) string {
	if !auth.Enabled {
		return ""
	}
	key := r.Header.Get("X-API-Key")
	if key == "" {
		key = r.URL.Query().Get("api_key")
	}
	if key == "" {
		return "missing API key"
	}
	if !constantTimeCompare(key, auth.APIKey) {
		return "invalid API key"
	}
	return ""
}

// WebSocketHandler upgrades /ws connections and attaches them to hub.
func WebSocketHandler(hub *Hub, config WebSocketSecurityConfig, limiter *WebSocketRateLimiter) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if !isOriginAllowed(origin, config.AllowedOrigins) {
				logging.SecurityEvent("websocket_origin_rejected", "websocket", "origin", origin)
				return false
			}
			return true
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if reason := authorizeWebSocket(r, config.Auth); reason != "" {
			logging.SecurityEvent("unauthorized_request", "websocket",
				"remote", getClientIP(r), "reason", reason)
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", reason)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the HTTP error.
			logging.Warn("websocket upgrade failed", "error", err)
			return
		}
		conn.SetReadLimit(config.MaxMessageSize)

		client := &Client{hub: hub, conn: conn, send: make(chan []byte, 256)}
		if !hub.attach(client) {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			conn.Close()
			return
		}
		limiter.Register(client, config.MaxMessageRate)

		go client.writePump()
		go client.readPump(limiter)
	}
}
