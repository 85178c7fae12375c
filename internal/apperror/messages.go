package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	// General validation
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidFormat:   "Invalid data format",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	// Configuration
	CodeConfigurationError: "Configuration error",

	// External service errors
	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	// System errors
	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	// WebSocket errors
	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketReconnecting:    "WebSocket reconnecting",
	CodeWebSocketClosed:          "WebSocket connection closed",
	CodeWebSocketSendError:       "Failed to send WebSocket message",
	CodeSubscriptionFailed:       "Failed to send channel subscription",

	// Normalization errors
	CodeParseFailure:   "Failed to parse exchange message",
	CodeUnknownMessage: "Unrecognized message channel",
	CodeMissingField:   "Message is missing a required field",

	// Book / engine errors
	CodeDeltaBeforeSnapshot: "Book delta received before snapshot",
	CodeSequenceGap:         "Book update sequence gap detected",
	CodeCrossedBook:         "Best bid crossed best ask",
	CodeInvalidOrderbook:    "Invalid orderbook data",

	// IPC transport errors
	CodeIPCBindFailed:    "Failed to bind IPC socket",
	CodeIPCAcceptFailed:  "Failed to accept IPC connection",
	CodeIPCConnectFailed: "Failed to connect to IPC socket",
	CodeIPCSendFailed:    "Failed to send IPC frame",
	CodeIPCClosed:        "IPC connection closed",

	// Circuit breaker errors
	CodeCircuitOpen:     "Circuit breaker is open",
	CodeCircuitHalfOpen: "Circuit breaker is half-open",
}
