package models

import "github.com/shopspring/decimal"

// FinalizeStatus is the outcome tag returned by the finalize_order_payment
// database function.
type FinalizeStatus string

const (
	FinalizePaid           FinalizeStatus = "paid"
	FinalizeAlreadyPaid    FinalizeStatus = "already_paid"
	FinalizeStockConflict  FinalizeStatus = "stock_conflict"
	FinalizeAmountMismatch FinalizeStatus = "amount_mismatch"
	FinalizeNotFound       FinalizeStatus = "not_found"
	FinalizeInvalidStatus  FinalizeStatus = "invalid_status"
)

// FinalizeOutcome is one row of finalize_order_payment.
type FinalizeOutcome struct {
	Status      FinalizeStatus      `db:"outcome"`
	ProductName *string             `db:"product_name"`
	TotalAmount decimal.NullDecimal `db:"total_amount"`
}
