package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeInvalidInput  Code = "INVALID_INPUT"
	CodeInvalidState  Code = "INVALID_STATE"
	CodeNotFound      Code = "NOT_FOUND"
	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"

	CodeConfigurationError Code = "CONFIGURATION_ERROR"
	CodeServiceTimeout     Code = "SERVICE_TIMEOUT"
	CodeRateLimitExceeded  Code = "RATE_LIMIT_EXCEEDED"
	CodeCircuitOpen        Code = "CIRCUIT_OPEN"
)

// Ledger connection errors
const (
	CodeEthereumConnectionFailed Code = "ETHEREUM_CONNECTION_FAILED"
	CodeNoProvider               Code = "NO_PROVIDER"
	CodeEthereumRPCError         Code = "ETHEREUM_RPC_ERROR"
	CodeEthereumSubscribeFailed  Code = "ETHEREUM_SUBSCRIBE_FAILED"
	CodeBlockNumberFailed        Code = "BLOCK_NUMBER_FAILED"
)

// Token contract errors
const (
	CodeInvalidAddress      Code = "INVALID_ADDRESS"
	CodeContractNotFound    Code = "CONTRACT_NOT_FOUND"
	CodeContractNotBound    Code = "CONTRACT_NOT_BOUND"
	CodeBindingStale        Code = "BINDING_STALE"
	CodeContractCallFailed  Code = "CONTRACT_CALL_FAILED"
	CodeBalanceQueryFailed  Code = "BALANCE_QUERY_FAILED"
	CodeInvalidTransferData Code = "INVALID_TRANSFER_DATA"
)

// Signing errors
const (
	CodeSigningFailed     Code = "SIGNING_FAILED"
	CodeNoSigningAccount  Code = "NO_SIGNING_ACCOUNT"
	CodeInvalidPrivateKey Code = "INVALID_PRIVATE_KEY"
	CodeInvalidSignature  Code = "INVALID_SIGNATURE"
)

// Class groups codes into the caller-facing failure taxonomy.
type Class string

const (
	ClassConnectivity      Class = "connectivity"
	ClassValidation        Class = "validation"
	ClassNotFound          Class = "not_found"
	ClassRemoteCallFailure Class = "remote_call_failure"
	ClassSigningFailure    Class = "signing_failure"
	ClassState             Class = "state"
	ClassInternal          Class = "internal"
)

var classes = map[Code]Class{
	CodeEthereumConnectionFailed: ClassConnectivity,
	CodeNoProvider:               ClassConnectivity,
	CodeCircuitOpen:              ClassConnectivity,
	CodeServiceTimeout:           ClassConnectivity,
	CodeRateLimitExceeded:        ClassConnectivity,

	CodeInvalidInput:      ClassValidation,
	CodeInvalidAddress:    ClassValidation,
	CodeInvalidPrivateKey: ClassValidation,
	CodeInvalidSignature:  ClassValidation,

	CodeNotFound:         ClassNotFound,
	CodeContractNotFound: ClassNotFound,
	CodeContractNotBound: ClassNotFound,

	CodeEthereumRPCError:        ClassRemoteCallFailure,
	CodeEthereumSubscribeFailed: ClassRemoteCallFailure,
	CodeBlockNumberFailed:       ClassRemoteCallFailure,
	CodeContractCallFailed:      ClassRemoteCallFailure,
	CodeBalanceQueryFailed:      ClassRemoteCallFailure,
	CodeInvalidTransferData:     ClassRemoteCallFailure,

	CodeSigningFailed:    ClassSigningFailure,
	CodeNoSigningAccount: ClassSigningFailure,

	CodeBindingStale: ClassState,
	CodeInvalidState: ClassState,
}

// ClassOf returns the taxonomy class of a code.
func ClassOf(code Code) Class {
	if c, ok := classes[code]; ok {
		return c
	}
	return ClassInternal
}
