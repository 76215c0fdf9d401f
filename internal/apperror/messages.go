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

	// Blockchain/Ethereum errors
	CodeEthereumConnectionFailed: "Failed to connect to Ethereum node",
	CodeEthereumSubscribeFailed:  "Failed to subscribe to Ethereum events",
	CodeEthereumRPCError:         "Ethereum RPC call failed",
	CodeBlockNotFound:            "Block not found",
	CodeContractCallFailed:       "Smart contract call failed",

	// WebSocket errors
	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketReconnecting:    "WebSocket reconnecting",
	CodeWebSocketClosed:          "WebSocket connection closed",
	CodeWebSocketSendError:       "Failed to send WebSocket message",

	// Relayer errors
	CodeRelayerConnectionFailed: "Failed to connect to order relayer",
	CodeRelayerAPIError:         "Order relayer API error",
	CodeRelayerRateLimited:      "Order relayer rate limit exceeded",
	CodeOrderbookFetchFailed:    "Failed to fetch orderbook",
	CodeInvalidOrder:            "Invalid order data",

	// Liquidity computation errors
	CodeInvalidAmount:         "Invalid amount: must be a non-negative integer",
	CodeAssetNotSupported:     "Asset is not supported for trading",
	CodeTokenLookupFailed:     "Failed to look up token on chain",
	CodeLiquidityQueryFailed:  "Liquidity query failed",
	CodeInsufficientLiquidity: "Insufficient liquidity available",

	// Cache errors
	CodeCacheMiss:    "Cache miss",
	CodeCacheExpired: "Cache entry expired",

	// Circuit breaker errors
	CodeCircuitOpen:     "Circuit breaker is open",
	CodeCircuitHalfOpen: "Circuit breaker is half-open",
}
