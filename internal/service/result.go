package service

import "fmt"

// FinalizeKind tags the outcome of a finalize attempt
type FinalizeKind int

const (
	ResultFailed FinalizeKind = iota
	ResultPaid
	ResultAlreadyPaid
	ResultStockConflict
	ResultAmountMismatch
	ResultNotFound
	ResultInvalidStatus
)

func (k FinalizeKind) String() string {
	switch k {
	case ResultPaid:
		return "paid"
	case ResultAlreadyPaid:
		return "already_paid"
	case ResultStockConflict:
		return "stock_conflict"
	case ResultAmountMismatch:
		return "amount_mismatch"
	case ResultNotFound:
		return "not_found"
	case ResultInvalidStatus:
		return "invalid_status"
	default:
		return "failed"
	}
}

// FinalizeResult is what callers of ProcessPayment branch on. Err carries the
// underlying cause for logging and is never shown to customers.
type FinalizeResult struct {
	Kind        FinalizeKind
	OrderID     string
	PaymentID   string
	ProductName string
	Err         error
}

// Success reports whether the order is paid after this call
func (r FinalizeResult) Success() bool {
	return r.Kind == ResultPaid || r.Kind == ResultAlreadyPaid
}

// Message is the customer-facing text for the outcome
func (r FinalizeResult) Message() string {
	switch r.Kind {
	case ResultPaid:
		return "Payment verified successfully"
	case ResultAlreadyPaid:
		return "Payment already verified"
	case ResultStockConflict:
		if r.ProductName != "" {
			return fmt.Sprintf("%s is no longer available", r.ProductName)
		}
		return "An item in your order is no longer available"
	case ResultAmountMismatch:
		return "Payment amount does not match the order total"
	case ResultNotFound:
		return "Order not found"
	case ResultInvalidStatus:
		return "Order can no longer be paid"
	default:
		return "Payment could not be confirmed. Please retry or contact support."
	}
}
