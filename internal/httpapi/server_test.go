package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/safar/marketplace-orders/internal/models"
	"github.com/safar/marketplace-orders/internal/orders"
	"github.com/safar/marketplace-orders/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeOrders struct {
	createReq orders.CreateOrderRequest
	updateReq orders.UpdateStatusRequest
	err       error
	order     *models.Order
}

func (f *fakeOrders) Create(_ context.Context, req orders.CreateOrderRequest) (*models.Order, error) {
	f.createReq = req
	return f.order, f.err
}

func (f *fakeOrders) Cancel(context.Context, int64, string) (*models.Order, error) {
	return f.order, f.err
}

func (f *fakeOrders) UpdateSubOrderStatus(_ context.Context, req orders.UpdateStatusRequest) (*models.Order, error) {
	f.updateReq = req
	return f.order, f.err
}

func (f *fakeOrders) Get(context.Context, int64, string) (*models.Order, error) {
	return f.order, f.err
}

func (f *fakeOrders) ListForCustomer(context.Context, string, string, int) (*store.CursorPage, error) {
	return &store.CursorPage{Items: []models.Order{}}, f.err
}

func (f *fakeOrders) ListForSeller(context.Context, string, string, int) (*store.CursorPage, error) {
	return &store.CursorPage{Items: []models.Order{}}, f.err
}

type fakeCarts struct {
	owner string
	err   error
}

func (f *fakeCarts) AddItem(_ context.Context, ownerID string, productID int64, quantity int) (*models.CartItem, error) {
	f.owner = ownerID
	return &models.CartItem{ProductID: productID, Quantity: quantity}, f.err
}

func (f *fakeCarts) SetQuantity(_ context.Context, ownerID string, productID int64, quantity int) (*models.CartItem, error) {
	f.owner = ownerID
	if quantity <= 0 {
		return nil, f.err
	}
	return &models.CartItem{ProductID: productID, Quantity: quantity}, f.err
}

func (f *fakeCarts) RemoveItem(_ context.Context, ownerID string, _ int64) error {
	f.owner = ownerID
	return f.err
}

func (f *fakeCarts) Clear(_ context.Context, ownerID string) error {
	f.owner = ownerID
	return f.err
}

func (f *fakeCarts) Get(_ context.Context, ownerID string) (*models.Cart, error) {
	f.owner = ownerID
	return &models.Cart{OwnerID: ownerID}, f.err
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func newTestServer(o *fakeOrders, c *fakeCarts) http.Handler {
	return NewServer(Services{Orders: o, Carts: c, DB: fakePinger{}}, zap.NewNop()).Routes()
}

func do(t *testing.T, h http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestMissingIdentityIsUnauthorized(t *testing.T) {
	h := newTestServer(&fakeOrders{}, &fakeCarts{})

	rec := do(t, h, http.MethodGet, "/cart", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", decodeError(t, rec).Code)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", models.NewValidationError("cart", "is empty"), http.StatusBadRequest, "validation_failed"},
		{"forbidden", models.NewAuthorizationError("order", 1, "u2"), http.StatusForbidden, "forbidden"},
		{"not found", models.NewNotFoundError("order", 1), http.StatusNotFound, "not_found"},
		{"transition", &models.InvalidTransitionError{From: models.StatusDelivered, To: models.StatusCancelled}, http.StatusConflict, "invalid_transition"},
		{"conflict", &models.ConflictError{Resource: "order", ID: "1", Err: errors.New("stale")}, http.StatusConflict, "conflict"},
		{"stock", &models.InsufficientStockError{ProductID: 2, Available: 0, Requested: 1}, http.StatusConflict, "insufficient_stock"},
		{"internal", errors.New("connection refused"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(&fakeOrders{err: tt.err}, &fakeCarts{})

			rec := do(t, h, http.MethodPut, "/orders/1/cancel", "u1", "")
			assert.Equal(t, tt.status, rec.Code)

			resp := decodeError(t, rec)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotContains(t, resp.Error, "connection refused")
		})
	}
}

func TestInsufficientStockDetails(t *testing.T) {
	h := newTestServer(&fakeOrders{err: &models.InsufficientStockError{ProductID: 2, Available: 0, Requested: 1}}, &fakeCarts{})

	rec := do(t, h, http.MethodPost, "/orders", "u1", `{"shipping_address":"a","payment_method":"card"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp struct {
		Details models.InsufficientStockError `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.InsufficientStockError{ProductID: 2, Available: 0, Requested: 1}, resp.Details)
}

func TestCheckoutUsesCallerAsCustomer(t *testing.T) {
	o := &fakeOrders{order: &models.Order{ID: 9, CustomerID: "u1"}}
	h := newTestServer(o, &fakeCarts{})

	rec := do(t, h, http.MethodPost, "/orders", "u1",
		`{"shipping_address":"1 Main St","payment_method":"card","shipping":"4.50","tax":1,"discount":"0"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, "u1", o.createReq.CustomerID)
	assert.True(t, o.createReq.Shipping.Equal(decimal.RequireFromString("4.5")))
	assert.True(t, o.createReq.Tax.Equal(decimal.NewFromInt(1)))
}

func TestCheckoutRejectsUnknownFields(t *testing.T) {
	h := newTestServer(&fakeOrders{}, &fakeCarts{})

	rec := do(t, h, http.MethodPost, "/orders", "u1", `{"customer_id":"someone-else"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateSubOrderPassesPathIDs(t *testing.T) {
	o := &fakeOrders{order: &models.Order{ID: 4, SubOrders: []models.SubOrder{{ID: 8, SellerID: "s1"}, {ID: 9, SellerID: "s2"}}}}
	h := newTestServer(o, &fakeCarts{})

	rec := do(t, h, http.MethodPut, "/orders/4/subOrders/8", "s1", `{"status":"shipped","tracking_number":"TRK"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, int64(4), o.updateReq.OrderID)
	assert.Equal(t, int64(8), o.updateReq.SubOrderID)
	assert.Equal(t, "s1", o.updateReq.RequesterID)
	assert.Equal(t, models.StatusShipped, o.updateReq.Status)
	require.NotNil(t, o.updateReq.TrackingNumber)

	var order models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	require.Len(t, order.SubOrders, 1)
	assert.Equal(t, "s1", order.SubOrders[0].SellerID)
}

func TestBadPathID(t *testing.T) {
	h := newTestServer(&fakeOrders{}, &fakeCarts{})

	rec := do(t, h, http.MethodGet, "/orders/abc", "u1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartRoutes(t *testing.T) {
	c := &fakeCarts{}
	h := newTestServer(&fakeOrders{}, c)

	rec := do(t, h, http.MethodPost, "/cart/items", "u1", `{"product_id":3,"quantity":2}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "u1", c.owner)

	rec = do(t, h, http.MethodPut, "/cart/items/3", "u1", `{"quantity":0}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/cart", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"owner_id":"u1","items":[],"total":"0","item_count":0}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	h := NewServer(Services{DB: fakePinger{err: errors.New("down")}}, zap.NewNop()).Routes()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health/live", "", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/health/ready", "", "").Code)
}
