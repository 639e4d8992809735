package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, KeyID: "rzp_test", KeySecret: "secret", Timeout: time.Second})
}

func TestCreateOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test", user)
		assert.Equal(t, "secret", pass)

		var req CreateOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(49900), req.Amount)
		assert.Equal(t, "INR", req.Currency)
		assert.Equal(t, "order-1", req.Receipt)

		w.Write([]byte(`{"id":"order_G1","entity":"order","amount":49900,"currency":"INR","receipt":"order-1","status":"created","notes":[]}`))
	})

	order, err := c.CreateOrder(context.Background(), CreateOrderRequest{Amount: 49900, Currency: "INR", Receipt: "order-1"})
	require.NoError(t, err)
	assert.Equal(t, "order_G1", order.ID)
	assert.Equal(t, OrderStatusCreated, order.Status)
	assert.NotNil(t, order.Notes)
}

func TestFindOrderByReceipt(t *testing.T) {
	t.Run("returns latest match", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "order-1", r.URL.Query().Get("receipt"))
			w.Write([]byte(`{"entity":"collection","count":2,"items":[
				{"id":"order_old","receipt":"order-1","status":"attempted","created_at":100},
				{"id":"order_new","receipt":"order-1","status":"paid","created_at":200,"notes":{"order_id":"order-1"}}]}`))
		})

		order, err := c.FindOrderByReceipt(context.Background(), "order-1")
		require.NoError(t, err)
		require.NotNil(t, order)
		assert.Equal(t, "order_new", order.ID)
		assert.Equal(t, "order-1", order.Notes["order_id"])
	})

	t.Run("paid order wins over newer unpaid one", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"entity":"collection","count":3,"items":[
				{"id":"order_NEW","receipt":"order-1","status":"created","created_at":300},
				{"id":"order_OLD","receipt":"order-1","status":"paid","created_at":100},
				{"id":"order_MID","receipt":"order-1","status":"attempted","created_at":200}]}`))
		})

		order, err := c.FindOrderByReceipt(context.Background(), "order-1")
		require.NoError(t, err)
		require.NotNil(t, order)
		assert.Equal(t, "order_OLD", order.ID)
	})

	t.Run("newest returned when none paid", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"entity":"collection","count":2,"items":[
				{"id":"order_A","receipt":"order-1","status":"created","created_at":100},
				{"id":"order_B","receipt":"order-1","status":"attempted","created_at":200},
				{"id":"order_X","receipt":"order-2","status":"paid","created_at":300}]}`))
		})

		order, err := c.FindOrderByReceipt(context.Background(), "order-1")
		require.NoError(t, err)
		require.NotNil(t, order)
		assert.Equal(t, "order_B", order.ID)
	})

	t.Run("nil when gateway has no record", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"entity":"collection","count":0,"items":[]}`))
		})

		order, err := c.FindOrderByReceipt(context.Background(), "order-1")
		require.NoError(t, err)
		assert.Nil(t, order)
	})

	t.Run("auth failure propagates", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"Authentication failed"}}`))
		})

		_, err := c.FindOrderByReceipt(context.Background(), "order-1")
		require.Error(t, err)
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		assert.Equal(t, "Authentication failed", apiErr.Description)
		assert.False(t, IsTransient(err))
	})
}

func TestFetchOrderNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.FetchOrder(context.Background(), "order_missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListOrderPayments(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/order_G1/payments", r.URL.Path)
		w.Write([]byte(`{"entity":"collection","count":2,"items":[
			{"id":"pay_F","amount":49900,"status":"failed","order_id":"order_G1"},
			{"id":"pay_C","amount":49900,"status":"captured","captured":true,"order_id":"order_G1"}]}`))
	})

	payments, err := c.ListOrderPayments(context.Background(), "order_G1")
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.False(t, payments[0].IsCaptured())
	assert.True(t, payments[1].IsCaptured())
}

func TestTimeoutIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := c.FetchOrder(context.Background(), "order_G1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.True(t, IsTransient(err))
}

func TestServerErrorIsTransient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.ListOrderPayments(context.Background(), "order_G1")
	assert.True(t, IsTransient(err))
}
