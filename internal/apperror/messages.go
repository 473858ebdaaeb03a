package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeInvalidInput:  "Invalid input provided",
	CodeInvalidState:  "Invalid state for this operation",
	CodeNotFound:      "Resource not found",
	CodeInternalError: "Internal error",
	CodeUnknownError:  "An unknown error occurred",

	CodeConfigurationError: "Configuration error",
	CodeServiceTimeout:     "Ledger node request timed out",
	CodeRateLimitExceeded:  "Ledger node rate limit exceeded",
	CodeCircuitOpen:        "Circuit breaker is open",

	CodeEthereumConnectionFailed: "No live connection to the ledger node",
	CodeNoProvider:               "No streaming provider configured",
	CodeEthereumRPCError:         "Ledger node RPC call failed",
	CodeEthereumSubscribeFailed:  "Failed to subscribe to contract events",
	CodeBlockNumberFailed:        "Unable to obtain block number",

	CodeInvalidAddress:      "Address is not a valid 20-byte hex identifier",
	CodeContractNotFound:    "Contract does not exist",
	CodeContractNotBound:    "No token contract is bound",
	CodeBindingStale:        "Token binding was validated against a replaced connection",
	CodeContractCallFailed:  "Smart contract call failed",
	CodeBalanceQueryFailed:  "Unable to obtain token balance",
	CodeInvalidTransferData: "Malformed transfer notification",

	CodeSigningFailed:     "Message signing failed",
	CodeNoSigningAccount:  "No private key provided and no provider account found",
	CodeInvalidPrivateKey: "Invalid private key",
	CodeInvalidSignature:  "Malformed signature",
}
