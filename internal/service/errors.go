package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidOrderID is returned for ids that are not UUIDs
	ErrInvalidOrderID = errors.New("invalid order id")
	// ErrOrderNotFound is returned when the order does not exist
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderNotPending is returned when a payment is requested for an order
	// that already left the pending state
	ErrOrderNotPending = errors.New("order is not awaiting payment")
	// ErrNotConfigured is returned when gateway credentials are missing
	ErrNotConfigured = errors.New("payment configuration error")
)

// RateLimitError is returned when an order exceeded its payment intent budget
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many payment attempts, retry in %s", e.RetryAfter.Round(time.Second))
}

// ProductUnavailableError names an order item that can no longer be sold
type ProductUnavailableError struct {
	ProductName string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("%s is no longer available", e.ProductName)
}
