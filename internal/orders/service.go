package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/safar/marketplace-orders/internal/database"
	"github.com/safar/marketplace-orders/internal/events"
	"github.com/safar/marketplace-orders/internal/inventory"
	"github.com/safar/marketplace-orders/internal/logging"
	"github.com/safar/marketplace-orders/internal/models"
	"github.com/safar/marketplace-orders/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const orderNumberAttempts = 3

type Options struct {
	MaxRetries      int
	DefaultPageSize int
	MaxPageSize     int
}

func DefaultOptions() Options {
	return Options{
		MaxRetries:      3,
		DefaultPageSize: 20,
		MaxPageSize:     100,
	}
}

type Service struct {
	db        *sql.DB
	gate      *inventory.Gate
	publisher events.Publisher
	opts      Options
	now       func() time.Time
}

func NewService(db *sql.DB, gate *inventory.Gate, publisher events.Publisher, opts Options) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		db:        db,
		gate:      gate,
		publisher: publisher,
		opts:      opts,
		now:       time.Now,
	}
}

// CreateOrderRequest carries the checkout inputs. Shipping, tax and
// discount are computed upstream and accepted as-is.
type CreateOrderRequest struct {
	CustomerID      string
	ShippingAddress string
	PaymentMethod   string
	Shipping        decimal.Decimal
	Tax             decimal.Decimal
	Discount        decimal.Decimal
}

func (r CreateOrderRequest) validate() error {
	switch {
	case strings.TrimSpace(r.CustomerID) == "":
		return models.NewValidationError("customer_id", "is required")
	case strings.TrimSpace(r.ShippingAddress) == "":
		return models.NewValidationError("shipping_address", "is required")
	case strings.TrimSpace(r.PaymentMethod) == "":
		return models.NewValidationError("payment_method", "is required")
	case r.Shipping.IsNegative():
		return models.NewValidationError("shipping", "must not be negative")
	case r.Tax.IsNegative():
		return models.NewValidationError("tax", "must not be negative")
	case r.Discount.IsNegative():
		return models.NewValidationError("discount", "must not be negative")
	case !isCents(r.Shipping):
		return models.NewValidationError("shipping", "must have at most 2 decimal places")
	case !isCents(r.Tax):
		return models.NewValidationError("tax", "must have at most 2 decimal places")
	case !isCents(r.Discount):
		return models.NewValidationError("discount", "must have at most 2 decimal places")
	}
	return nil
}

// isCents reports whether d fits a NUMERIC(12,2) column without rounding.
func isCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// Create checks out the customer's cart. Stock for every cart item is
// reserved first; the order and the cart clearing are then committed
// together. When that commit fails the reservation is released again
// before the error is returned, so a failed checkout never keeps stock.
func (s *Service) Create(ctx context.Context, req CreateOrderRequest) (*models.Order, error) {
	l := logging.FromContext(ctx).With(zap.String("customer_id", req.CustomerID))

	if err := req.validate(); err != nil {
		return nil, err
	}

	cart, err := store.GetCart(ctx, s.db, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, models.NewValidationError("cart", "is empty")
	}

	total := cart.Total().Add(req.Shipping).Add(req.Tax).Sub(req.Discount)
	if total.IsNegative() {
		return nil, models.NewValidationError("discount", "exceeds order amount")
	}

	lines := make([]inventory.Line, len(cart.Items))
	for i, item := range cart.Items {
		lines[i] = inventory.Line{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	reserved, err := s.gate.ReserveAndDecrement(ctx, lines)
	if err != nil {
		return nil, err
	}

	order := buildOrder(req, cart, reserved)

	if err := s.persist(ctx, order, cart); err != nil {
		l.Error("order persistence failed, releasing stock", zap.Error(err))
		if relErr := s.gate.Release(ctx, lines); relErr != nil {
			return nil, fmt.Errorf("persist order: %w (stock release failed: %v)", err, relErr)
		}
		return nil, fmt.Errorf("persist order: %w", err)
	}

	l.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int("sub_orders", len(order.SubOrders)),
		zap.String("total", order.Total.String()))

	s.publish(ctx, events.OrderCreated(order))
	return order, nil
}

func buildOrder(req CreateOrderRequest, cart *models.Cart, reserved []inventory.Reserved) *models.Order {
	sellers := make(map[int64]string, len(reserved))
	for _, r := range reserved {
		sellers[r.ProductID] = r.SellerID
	}

	items := make([]models.OrderLineItem, len(cart.Items))
	for i, item := range cart.Items {
		items[i] = models.NewOrderLineItem(item.ProductID, sellers[item.ProductID], item.Quantity, item.UnitPrice)
	}

	order := &models.Order{
		CustomerID:      req.CustomerID,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Subtotal:        decimal.Zero,
		Shipping:        req.Shipping,
		Tax:             req.Tax,
		Discount:        req.Discount,
	}

	for _, group := range Partition(items) {
		order.SubOrders = append(order.SubOrders, models.SubOrder{
			SellerID: group.SellerID,
			Items:    group.Items,
			Subtotal: group.Subtotal,
			Status:   models.StatusPending,
		})
		order.Subtotal = order.Subtotal.Add(group.Subtotal)
	}

	order.Total = order.Subtotal.Add(order.Shipping).Add(order.Tax).Sub(order.Discount)
	order.OverallStatus = Rollup(order.SubOrderStatuses())
	return order
}

// persist commits the order and removes the checked-out items from the cart
// in one transaction. The cart row is locked first; if any item changed
// since the cart was read the checkout is a conflict.
func (s *Service) persist(ctx context.Context, order *models.Order, cart *models.Cart) error {
	var err error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		order.OrderNumber = NewOrderNumber(s.now())
		err = database.WithTransaction(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
			if err := store.LockCart(ctx, tx, order.CustomerID); err != nil {
				return err
			}
			if err := store.InsertOrder(ctx, tx, order); err != nil {
				return err
			}
			deleted, err := store.DeleteCartItems(ctx, tx, order.CustomerID, cart.Items)
			if err != nil {
				return err
			}
			if deleted != int64(len(cart.Items)) {
				return &models.ConflictError{
					Resource: "cart",
					ID:       order.CustomerID,
					Err:      fmt.Errorf("cart changed during checkout: %d of %d items matched", deleted, len(cart.Items)),
				}
			}
			return nil
		})
		if !database.IsUniqueViolation(err) {
			return err
		}
	}
	return err
}

// Cancel cancels every sub-order that has not shipped yet and returns its
// stock. Only the ordering customer may cancel, and only while the order is
// pending or processing.
func (s *Service) Cancel(ctx context.Context, orderID int64, requesterID string) (*models.Order, error) {
	var order *models.Order
	var cancelled []int64

	err := s.withOrderLock(ctx, orderID, func(tx *sql.Tx, locked *models.Order) error {
		if locked.CustomerID != requesterID {
			return models.NewAuthorizationError("order", orderID, requesterID)
		}
		if !Cancellable(locked.OverallStatus) {
			return &models.InvalidTransitionError{From: locked.OverallStatus, To: models.StatusCancelled}
		}

		cancelled = cancelled[:0]
		var lines []inventory.Line
		for i := range locked.SubOrders {
			so := &locked.SubOrders[i]
			if !Cancellable(so.Status) {
				continue
			}
			if err := store.UpdateSubOrderStatus(ctx, tx, so.ID, models.StatusCancelled, nil); err != nil {
				return err
			}
			so.Status = models.StatusCancelled
			cancelled = append(cancelled, so.ID)
			lines = append(lines, linesOf(so)...)
		}
		if len(cancelled) == 0 {
			return &models.InvalidTransitionError{From: locked.OverallStatus, To: models.StatusCancelled}
		}

		if err := s.gate.ReleaseTx(ctx, tx, lines); err != nil {
			return err
		}

		if err := s.applyRollup(ctx, tx, locked); err != nil {
			return err
		}
		order = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("order cancelled",
		zap.Int64("order_id", order.ID),
		zap.Int64s("sub_orders", cancelled),
		zap.String("overall_status", string(order.OverallStatus)))

	s.publish(ctx, events.OrderCancelled(order, cancelled))
	return order, nil
}

type UpdateStatusRequest struct {
	OrderID        int64
	SubOrderID     int64
	RequesterID    string
	Status         models.Status
	TrackingNumber *string
}

// UpdateSubOrderStatus moves one sub-order forward on behalf of its seller
// and recomputes the overall status. Sending the current status together
// with a tracking number only records the tracking number.
func (s *Service) UpdateSubOrderStatus(ctx context.Context, req UpdateStatusRequest) (*models.Order, error) {
	if !req.Status.Valid() {
		return nil, models.NewValidationError("status", "unknown status "+string(req.Status))
	}
	if req.TrackingNumber != nil && strings.TrimSpace(*req.TrackingNumber) == "" {
		req.TrackingNumber = nil
	}

	var order *models.Order
	var from models.Status

	err := s.withOrderLock(ctx, req.OrderID, func(tx *sql.Tx, locked *models.Order) error {
		so := locked.SubOrder(req.SubOrderID)
		if so == nil {
			return models.NewNotFoundError("sub-order", req.SubOrderID)
		}
		if so.SellerID != req.RequesterID {
			return models.NewAuthorizationError("sub-order", req.SubOrderID, req.RequesterID)
		}

		from = so.Status
		if req.Status == so.Status {
			if req.TrackingNumber == nil || so.Status.Terminal() {
				return &models.InvalidTransitionError{From: so.Status, To: req.Status}
			}
		} else if err := ValidateTransition(so.Status, req.Status); err != nil {
			return err
		}

		if err := store.UpdateSubOrderStatus(ctx, tx, so.ID, req.Status, req.TrackingNumber); err != nil {
			return err
		}
		so.Status = req.Status
		if req.TrackingNumber != nil {
			tracking := *req.TrackingNumber
			so.TrackingNumber = &tracking
		}

		if req.Status == models.StatusCancelled {
			if err := s.gate.ReleaseTx(ctx, tx, linesOf(so)); err != nil {
				return err
			}
		}

		if err := s.applyRollup(ctx, tx, locked); err != nil {
			return err
		}
		order = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	so := order.SubOrder(req.SubOrderID)
	logging.FromContext(ctx).Info("sub-order status updated",
		zap.Int64("order_id", order.ID),
		zap.Int64("sub_order_id", so.ID),
		zap.String("from", string(from)),
		zap.String("to", string(so.Status)),
		zap.String("overall_status", string(order.OverallStatus)))

	s.publish(ctx, events.SubOrderStatusChanged(order, so, from))
	return order, nil
}

// Get returns the full order to its customer and the seller-scoped view to
// a seller with a sub-order in it.
func (s *Service) Get(ctx context.Context, orderID int64, requesterID string) (*models.Order, error) {
	order, err := store.GetOrder(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}

	switch {
	case order.CustomerID == requesterID:
		return order, nil
	case order.HasSeller(requesterID):
		view := order.ForSeller(requesterID)
		return &view, nil
	default:
		return nil, models.NewAuthorizationError("order", orderID, requesterID)
	}
}

func (s *Service) ListForCustomer(ctx context.Context, customerID, cursor string, limit int) (*store.CursorPage, error) {
	return store.ListOrdersByCustomer(ctx, s.db, customerID, cursor, s.pageSize(limit))
}

func (s *Service) ListForSeller(ctx context.Context, sellerID, cursor string, limit int) (*store.CursorPage, error) {
	return store.ListOrdersBySeller(ctx, s.db, sellerID, cursor, s.pageSize(limit))
}

func (s *Service) pageSize(limit int) int {
	if limit < 1 {
		return s.opts.DefaultPageSize
	}
	if limit > s.opts.MaxPageSize {
		return s.opts.MaxPageSize
	}
	return limit
}

// withOrderLock runs fn in a transaction holding the order's row lock, so
// a cancellation and a seller update on the same order cannot interleave.
func (s *Service) withOrderLock(ctx context.Context, orderID int64, fn func(tx *sql.Tx, order *models.Order) error) error {
	err := database.WithRetry(ctx, s.db, database.TxOptions{
		IsolationLevel: sql.LevelReadCommitted,
		MaxRetries:     s.opts.MaxRetries,
	}, func(tx *sql.Tx) error {
		order, err := store.LockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		return fn(tx, order)
	})
	if errors.Is(err, database.ErrRetriesExhausted) {
		return &models.ConflictError{Resource: "order", ID: strconv.FormatInt(orderID, 10), Err: err}
	}
	return err
}

func (s *Service) applyRollup(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	status := Rollup(order.SubOrderStatuses())
	if err := store.UpdateOrderStatus(ctx, tx, order.ID, status, order.Version); err != nil {
		return err
	}
	order.OverallStatus = status
	order.Version++
	return nil
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		logging.FromContext(ctx).Warn("event publish failed",
			zap.String("event_type", ev.Type),
			zap.Int64("order_id", ev.OrderID),
			zap.Error(err))
	}
}

func linesOf(so *models.SubOrder) []inventory.Line {
	lines := make([]inventory.Line, len(so.Items))
	for i, item := range so.Items {
		lines[i] = inventory.Line{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return lines
}
