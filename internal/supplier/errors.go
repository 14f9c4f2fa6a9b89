package supplier

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"

	"flight-aggregator/internal/models"
)

var (
	// ErrProvider is matched by every supplier transport or parse failure
	ErrProvider        = errors.New("issue fetching data from provider")
	ErrUnknownSupplier = errors.New("unknown supplier")
)

// ProviderError wraps a supplier-caused failure
type ProviderError struct {
	Supplier  string
	Operation string
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%v: %s %s: %v", ErrProvider, e.Supplier, e.Operation, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrProvider) match any ProviderError
func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

func NewProviderError(supplier, operation string, err error) *ProviderError {
	return &ProviderError{Supplier: supplier, Operation: operation, Err: err}
}

// NewErrorLog builds an error_logs row carrying the current stack and the
// supplier request/response pair
func NewErrorLog(source, supplierCode string, err error, request, response json.RawMessage) models.ErrorLog {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return models.ErrorLog{
		Source:   source,
		Supplier: supplierCode,
		Message:  msg,
		Stack:    string(debug.Stack()),
		Request:  request,
		Response: response,
	}
}
