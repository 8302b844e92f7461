package shared

import "errors"

// DomainError is one kind in the failure taxonomy shared by every sync
// component. Concrete errors wrap one of the kinds below so callers can
// branch with errors.Is without importing the producing package.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Failure kinds
var (
	// ErrNetwork: upstream unreachable or rejecting, after retries.
	ErrNetwork = NewDomainError("NETWORK_ERROR", "upstream unreachable or rejecting requests")
	// ErrParse: one malformed feed record. Skipped, never aborts the batch.
	ErrParse = NewDomainError("PARSE_ERROR", "malformed feed record")
	// ErrCacheCorruption: cache store unreadable. Degrades to cache misses.
	ErrCacheCorruption = NewDomainError("CACHE_CORRUPTION", "enrichment cache corrupted")
	// ErrConfiguration: missing or invalid settings. Fatal at startup.
	ErrConfiguration = NewDomainError("CONFIGURATION_ERROR", "invalid configuration")
	// ErrReconciliationAnomaly: duplicate SKU mapping or backward status. Logged and skipped.
	ErrReconciliationAnomaly = NewDomainError("RECONCILIATION_ANOMALY", "reconciliation anomaly")
)

var kinds = []*DomainError{
	ErrNetwork,
	ErrParse,
	ErrCacheCorruption,
	ErrConfiguration,
	ErrReconciliationAnomaly,
}

// KindOf returns the taxonomy code of err, or "UNKNOWN".
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k.Code
		}
	}
	return "UNKNOWN"
}
