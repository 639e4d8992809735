package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"payment-service/internal/gateway"
	"payment-service/internal/models"
	"payment-service/internal/store"

	"github.com/shopspring/decimal"
)

type stockKey struct {
	productID, size, color string
}

// memStore mimics the finalize_order_payment function: the whole finalize
// runs under one lock, like the row locks taken in Postgres.
type memStore struct {
	mu       sync.Mutex
	orders   map[string]*models.Order
	items    map[string][]models.OrderItem
	products map[string]models.Product
	stock    map[stockKey]int
	events   []models.AppEvent
	logs     []models.SystemLog
	claimed  map[int64]bool

	getOrderErr    error
	finalizeErr    error
	insertEventErr error
	listErr        error
	finalizeCalls  int
}

func newMemStore() *memStore {
	return &memStore{
		orders:   make(map[string]*models.Order),
		items:    make(map[string][]models.OrderItem),
		products: make(map[string]models.Product),
		stock:    make(map[stockKey]int),
		claimed:  make(map[int64]bool),
	}
}

func (s *memStore) addOrder(o models.Order, items ...models.OrderItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.Status == "" {
		o.Status = models.OrderStatusPending
	}
	s.orders[o.ID] = &o
	s.items[o.ID] = items
}

func (s *memStore) setStock(productID, size, color string, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[stockKey{productID, size, color}] = qty
}

func (s *memStore) stockOf(productID, size, color string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stock[stockKey{productID, size, color}]
}

func (s *memStore) order(id string) models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.orders[id]
}

func (s *memStore) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getOrderErr != nil {
		return nil, s.getOrderErr
	}
	o, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *memStore) GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.OrderItem(nil), s.items[orderID]...), nil
}

func (s *memStore) GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Product
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memStore) SetGatewayOrderID(ctx context.Context, orderID, gatewayOrderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return store.ErrNotFound
	}
	o.GatewayOrderID = &gatewayOrderID
	return nil
}

func (s *memStore) ListStuckOrders(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.Order
	for _, o := range s.orders {
		if o.Status == models.OrderStatusPending && o.CreatedAt.Before(createdBefore) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) FinalizeOrderPayment(ctx context.Context, orderID, paymentID string, amountMinor int64) (*models.FinalizeOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalizeCalls++
	if s.finalizeErr != nil {
		return nil, s.finalizeErr
	}

	o, ok := s.orders[orderID]
	if !ok {
		return &models.FinalizeOutcome{Status: models.FinalizeNotFound}, nil
	}
	total := decimal.NullDecimal{Decimal: o.TotalAmount, Valid: true}
	switch {
	case o.Status == models.OrderStatusPaid:
		return &models.FinalizeOutcome{Status: models.FinalizeAlreadyPaid, TotalAmount: total}, nil
	case o.Status != models.OrderStatusPending:
		return &models.FinalizeOutcome{Status: models.FinalizeInvalidStatus, TotalAmount: total}, nil
	case o.AmountMinor() != amountMinor:
		return &models.FinalizeOutcome{Status: models.FinalizeAmountMismatch, TotalAmount: total}, nil
	}

	for _, item := range s.items[orderID] {
		if s.stock[stockKey{item.ProductID, item.Size, item.Color}] < item.Quantity {
			name := item.ProductName
			return &models.FinalizeOutcome{Status: models.FinalizeStockConflict, ProductName: &name, TotalAmount: total}, nil
		}
	}
	for _, item := range s.items[orderID] {
		s.stock[stockKey{item.ProductID, item.Size, item.Color}] -= item.Quantity
	}

	now := time.Now()
	o.Status = models.OrderStatusPaid
	o.PaymentID = &paymentID
	o.PaidAt = &now
	return &models.FinalizeOutcome{Status: models.FinalizePaid, TotalAmount: total}, nil
}

func (s *memStore) InsertEvent(ctx context.Context, eventType string, payload []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertEventErr != nil {
		return 0, s.insertEventErr
	}
	id := int64(len(s.events) + 1)
	s.events = append(s.events, models.AppEvent{
		ID:        id,
		Type:      eventType,
		Payload:   payload,
		Status:    models.EventStatusPending,
		CreatedAt: time.Now(),
	})
	return id, nil
}

func (s *memStore) FetchPendingEvents(ctx context.Context, limit int) ([]models.AppEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AppEvent
	for _, e := range s.events {
		if e.Status == models.EventStatusPending && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) ClaimEvent(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &s.events[id-1]
	if e.Status != models.EventStatusPending || s.claimed[id] {
		return false, nil
	}
	e.Status = models.EventStatusProcessing
	return true, nil
}

func (s *memStore) CompleteEvent(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[id-1].Status = models.EventStatusCompleted
	return nil
}

func (s *memStore) FailEvent(ctx context.Context, id int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[id-1].Status = models.EventStatusFailed
	s.events[id-1].Error = &reason
	return nil
}

func (s *memStore) InsertSystemLog(ctx context.Context, entry *models.SystemLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, *entry)
	return nil
}

func (s *memStore) eventsOfType(eventType string) []models.AppEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AppEvent
	for _, e := range s.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (s *memStore) logsAt(level string) []models.SystemLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SystemLog
	for _, l := range s.logs {
		if l.Level == level {
			out = append(out, l)
		}
	}
	return out
}

type fakeGateway struct {
	mu        sync.Mutex
	orders    map[string]*gateway.Order
	payments  map[string][]gateway.Payment
	created   []gateway.CreateOrderRequest
	findErr   error
	createErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		orders:   make(map[string]*gateway.Order),
		payments: make(map[string][]gateway.Payment),
	}
}

func (g *fakeGateway) addOrder(o gateway.Order, payments ...gateway.Payment) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders[o.ID] = &o
	g.payments[o.ID] = payments
}

func (g *fakeGateway) CreateOrder(ctx context.Context, req gateway.CreateOrderRequest) (*gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.created = append(g.created, req)
	o := &gateway.Order{
		ID:       "order_gw_" + req.Receipt,
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   gateway.OrderStatusCreated,
		Notes:    req.Notes,
	}
	g.orders[o.ID] = o
	return o, nil
}

func (g *fakeGateway) FetchOrder(ctx context.Context, id string) (*gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[id]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (g *fakeGateway) FindOrderByReceipt(ctx context.Context, receipt string) (*gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.findErr != nil {
		return nil, g.findErr
	}
	for _, o := range g.orders {
		if o.Receipt == receipt {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (g *fakeGateway) ListOrderPayments(ctx context.Context, gatewayOrderID string) ([]gateway.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]gateway.Payment{}, g.payments[gatewayOrderID]...), nil
}

var errDBDown = errors.New("connection refused")

const (
	orderA = "8a4c5a52-1d8e-4b8e-9a51-5c0d5e1f0a01"
	orderB = "8a4c5a52-1d8e-4b8e-9a51-5c0d5e1f0a02"
	orderC = "8a4c5a52-1d8e-4b8e-9a51-5c0d5e1f0a03"
	orderD = "8a4c5a52-1d8e-4b8e-9a51-5c0d5e1f0a04"
)

// seedOrder adds a pending order of 499.00 with one shirt (M/Black)
func seedOrder(s *memStore, id string, createdAt time.Time) {
	s.addOrder(models.Order{
		ID:            id,
		TotalAmount:   decimal.RequireFromString("499.00"),
		ShippingName:  "Asha",
		ShippingEmail: "asha@example.com",
		CreatedAt:     createdAt,
	}, models.OrderItem{
		OrderID:     id,
		ProductID:   "prod-shirt",
		ProductName: "Linen Shirt",
		UnitPrice:   decimal.RequireFromString("499.00"),
		Quantity:    1,
		Size:        "M",
		Color:       "Black",
	})
}
