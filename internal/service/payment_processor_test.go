package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"payment-service/internal/gateway"
	"payment-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeySecret = "rzp_secret"

func newTestProcessor(s *memStore, gw *fakeGateway) *PaymentProcessor {
	return NewPaymentProcessor(s, gw, NewEventBus(s), NewSystemLogger(s), testKeySecret)
}

func TestProcessPaymentMarksPaid(t *testing.T) {
	s := newMemStore()
	seedOrder(s, orderA, time.Now())
	s.setStock("prod-shirt", "M", "Black", 2)
	p := newTestProcessor(s, newFakeGateway())

	res := p.ProcessPayment(context.Background(), orderA, "pay_1", 49900)

	assert.Equal(t, ResultPaid, res.Kind)
	assert.True(t, res.Success())
	assert.Equal(t, 1, s.stockOf("prod-shirt", "M", "Black"))

	order := s.order(orderA)
	assert.Equal(t, models.OrderStatusPaid, order.Status)
	require.NotNil(t, order.PaymentID)
	assert.Equal(t, "pay_1", *order.PaymentID)
	assert.NotNil(t, order.PaidAt)

	events := s.eventsOfType(models.EventTypeOrderPaid)
	require.Len(t, events, 1)
	var payload models.OrderPaidEvent
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, models.OrderPaidEvent{OrderID: orderA, PaymentID: "pay_1", Amount: 49900}, payload)
}

func TestProcessPaymentIsIdempotent(t *testing.T) {
	s := newMemStore()
	seedOrder(s, orderA, time.Now())
	s.setStock("prod-shirt", "M", "Black", 5)
	p := newTestProcessor(s, newFakeGateway())

	first := p.ProcessPayment(context.Background(), orderA, "pay_1", 49900)
	second := p.ProcessPayment(context.Background(), orderA, "pay_1", 49900)

	assert.Equal(t, ResultPaid, first.Kind)
	assert.Equal(t, ResultAlreadyPaid, second.Kind)
	assert.True(t, second.Success())
	assert.Equal(t, 4, s.stockOf("prod-shirt", "M", "Black"))
	assert.Len(t, s.eventsOfType(models.EventTypeOrderPaid), 1)
	assert.Equal(t, 1, s.finalizeCalls, "already paid orders short-circuit before the transaction")
}

func TestProcessPaymentStockConflictLeavesOrderUntouched(t *testing.T) {
	s := newMemStore()
	s.addOrder(models.Order{ID: orderA, TotalAmount: decimal.RequireFromString("1298.00")},
		models.OrderItem{ProductID: "prod-shirt", ProductName: "Linen Shirt", Quantity: 1, Size: "M", Color: "Black"},
		models.OrderItem{ProductID: "prod-dress", ProductName: "Silk Dress", Quantity: 1, Size: "S", Color: "Red"},
	)
	s.setStock("prod-shirt", "M", "Black", 3)
	s.setStock("prod-dress", "S", "Red", 0)
	p := newTestProcessor(s, newFakeGateway())

	res := p.ProcessPayment(context.Background(), orderA, "pay_1", 129800)

	assert.Equal(t, ResultStockConflict, res.Kind)
	assert.Equal(t, "Silk Dress", res.ProductName)
	assert.Equal(t, "Silk Dress is no longer available", res.Message())
	assert.Equal(t, 3, s.stockOf("prod-shirt", "M", "Black"))
	assert.Equal(t, models.OrderStatusPending, s.order(orderA).Status)
	assert.Empty(t, s.eventsOfType(models.EventTypeOrderPaid))
	assert.NotEmpty(t, s.logsAt(models.LogLevelWarn))
}

func TestProcessPaymentAmountMismatch(t *testing.T) {
	s := newMemStore()
	seedOrder(s, orderA, time.Now())
	s.setStock("prod-shirt", "M", "Black", 1)
	p := newTestProcessor(s, newFakeGateway())

	res := p.ProcessPayment(context.Background(), orderA, "pay_1", 100)

	assert.Equal(t, ResultAmountMismatch, res.Kind)
	assert.False(t, res.Success())
	assert.Equal(t, models.OrderStatusPending, s.order(orderA).Status)
	assert.Equal(t, 1, s.stockOf("prod-shirt", "M", "Black"))
}

func TestProcessPaymentNotFound(t *testing.T) {
	p := newTestProcessor(newMemStore(), newFakeGateway())

	res := p.ProcessPayment(context.Background(), orderA, "pay_1", 49900)

	assert.Equal(t, ResultNotFound, res.Kind)
}

func TestProcessPaymentForeignOrderReference(t *testing.T) {
	s := newMemStore()
	s.getOrderErr = errors.New(`pq: invalid input syntax for type uuid: "rcpt_42"`)
	p := newTestProcessor(s, newFakeGateway())

	result := p.ProcessPayment(context.Background(), "rcpt_42", "pay_1", 49900)

	assert.Equal(t, ResultNotFound, result.Kind)
	assert.False(t, result.Success())
	assert.Equal(t, 0, s.finalizeCalls)
}

func TestProcessPaymentInvalidStatus(t *testing.T) {
	s := newMemStore()
	s.addOrder(models.Order{ID: orderA, Status: models.OrderStatusCancelled, TotalAmount: decimal.NewFromInt(10)})
	p := newTestProcessor(s, newFakeGateway())

	res := p.ProcessPayment(context.Background(), orderA, "pay_1", 1000)

	assert.Equal(t, ResultInvalidStatus, res.Kind)
}

func TestProcessPaymentStoreFailure(t *testing.T) {
	s := newMemStore()
	seedOrder(s, orderA, time.Now())
	s.finalizeErr = errDBDown
	p := newTestProcessor(s, newFakeGateway())

	res := p.ProcessPayment(context.Background(), orderA, "pay_1", 49900)

	assert.Equal(t, ResultFailed, res.Kind)
	assert.True(t, errors.Is(res.Err, errDBDown))
	assert.Equal(t, "Payment could not be confirmed. Please retry or contact support.", res.Message())
	assert.NotContains(t, res.Message(), "connection refused")

	logs := s.logsAt(models.LogLevelError)
	require.NotEmpty(t, logs)
	assert.Contains(t, string(logs[0].Metadata), orderA)
	assert.Contains(t, string(logs[0].Metadata), "connection refused")
}

func TestProcessPaymentPublishFailureStillSucceeds(t *testing.T) {
	s := newMemStore()
	seedOrder(s, orderA, time.Now())
	s.setStock("prod-shirt", "M", "Black", 1)
	s.insertEventErr = errors.New("app_events unavailable")
	p := newTestProcessor(s, newFakeGateway())

	res := p.ProcessPayment(context.Background(), orderA, "pay_1", 49900)

	assert.Equal(t, ResultPaid, res.Kind)
	assert.Equal(t, models.OrderStatusPaid, s.order(orderA).Status)
	assert.Empty(t, s.eventsOfType(models.EventTypeOrderPaid))
}

func TestProcessPaymentConcurrentCallsFinalizeOnce(t *testing.T) {
	s := newMemStore()
	seedOrder(s, orderA, time.Now())
	s.setStock("prod-shirt", "M", "Black", 10)
	p := newTestProcessor(s, newFakeGateway())

	const callers = 8
	results := make([]FinalizeResult, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = p.ProcessPayment(context.Background(), orderA, "pay_1", 49900)
		}(i)
	}
	wg.Wait()

	paid := 0
	for _, r := range results {
		require.True(t, r.Success(), "unexpected outcome %s", r.Kind)
		if r.Kind == ResultPaid {
			paid++
		}
	}
	assert.Equal(t, 1, paid)
	assert.Equal(t, 9, s.stockOf("prod-shirt", "M", "Black"))
	assert.Len(t, s.eventsOfType(models.EventTypeOrderPaid), 1)
}

func TestVerifyPaymentSignature(t *testing.T) {
	p := newTestProcessor(newMemStore(), newFakeGateway())
	sig := gateway.Sign([]byte("order_G1|pay_1"), testKeySecret)

	assert.True(t, p.VerifyPaymentSignature("order_G1", "pay_1", sig))
	assert.False(t, p.VerifyPaymentSignature("order_G1", "pay_2", sig))

	unconfigured := NewPaymentProcessor(newMemStore(), newFakeGateway(), nil, nil, "")
	assert.False(t, unconfigured.Configured())
	assert.False(t, unconfigured.VerifyPaymentSignature("order_G1", "pay_1", sig))
}

func TestFindGatewayOrderByReceipt(t *testing.T) {
	gw := newFakeGateway()
	gw.addOrder(gateway.Order{ID: "order_G1", Receipt: orderA, Status: gateway.OrderStatusPaid})
	p := newTestProcessor(newMemStore(), gw)

	found, err := p.FindGatewayOrderByReceipt(context.Background(), orderA)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "order_G1", found.ID)

	missing, err := p.FindGatewayOrderByReceipt(context.Background(), orderB)
	require.NoError(t, err)
	assert.Nil(t, missing)

	gw.findErr = gateway.ErrTimeout
	_, err = p.FindGatewayOrderByReceipt(context.Background(), orderA)
	assert.True(t, errors.Is(err, gateway.ErrTimeout))
}

func TestGetPaymentsForOrderEmpty(t *testing.T) {
	p := newTestProcessor(newMemStore(), newFakeGateway())

	payments, err := p.GetPaymentsForOrder(context.Background(), "order_none")
	require.NoError(t, err)
	assert.NotNil(t, payments)
	assert.Empty(t, payments)
}
