// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes sent during the handshake phase of /ws.
const (
	BadSubprotocolError   = 3000 // Client connected without the chess subprotocol.
	InvalidAuthTokenError = 3001 // Registered identity without a valid token, or a token for another player.
	InvalidUserIDError    = 3002 // Missing playerId query parameter.
)
