// Package httpapi exposes the cart, checkout, fulfillment and rating
// operations over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/safar/marketplace-orders/internal/logging"
	"github.com/safar/marketplace-orders/internal/models"
	"github.com/safar/marketplace-orders/internal/orders"
	"github.com/safar/marketplace-orders/internal/ratings"
	"github.com/safar/marketplace-orders/internal/store"
	"go.uber.org/zap"
)

type CartService interface {
	AddItem(ctx context.Context, ownerID string, productID int64, quantity int) (*models.CartItem, error)
	SetQuantity(ctx context.Context, ownerID string, productID int64, quantity int) (*models.CartItem, error)
	RemoveItem(ctx context.Context, ownerID string, productID int64) error
	Clear(ctx context.Context, ownerID string) error
	Get(ctx context.Context, ownerID string) (*models.Cart, error)
}

type OrderService interface {
	Create(ctx context.Context, req orders.CreateOrderRequest) (*models.Order, error)
	Cancel(ctx context.Context, orderID int64, requesterID string) (*models.Order, error)
	UpdateSubOrderStatus(ctx context.Context, req orders.UpdateStatusRequest) (*models.Order, error)
	Get(ctx context.Context, orderID int64, requesterID string) (*models.Order, error)
	ListForCustomer(ctx context.Context, customerID, cursor string, limit int) (*store.CursorPage, error)
	ListForSeller(ctx context.Context, sellerID, cursor string, limit int) (*store.CursorPage, error)
}

type RatingService interface {
	Submit(ctx context.Context, req ratings.SubmitRequest) (*models.Rating, *models.RatingSummary, error)
	List(ctx context.Context, productID int64, page, pageSize int) (*store.OffsetPage, error)
}

type CatalogService interface {
	Create(ctx context.Context, params store.CreateProductParams) (*models.Product, error)
	Get(ctx context.Context, id int64) (*models.Product, error)
	List(ctx context.Context, page, pageSize int) (*store.OffsetPage, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Services struct {
	Carts   CartService
	Orders  OrderService
	Ratings RatingService
	Catalog CatalogService
	DB      Pinger
}

type Server struct {
	svc    Services
	logger *zap.Logger
}

func NewServer(svc Services, logger *zap.Logger) *Server {
	return &Server{svc: svc, logger: logger}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health/live", s.handleLive)
	r.Get("/health/ready", s.handleReady)

	r.Route("/products", func(r chi.Router) {
		r.Get("/", s.handleListProducts)
		r.Get("/{productID}", s.handleGetProduct)
		r.Get("/{productID}/ratings", s.handleListRatings)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			r.Post("/", s.handleCreateProduct)
			r.Post("/{productID}/ratings", s.handleSubmitRating)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(requireUser)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", s.handleGetCart)
			r.Delete("/", s.handleClearCart)
			r.Post("/items", s.handleAddCartItem)
			r.Put("/items/{productID}", s.handleSetCartItem)
			r.Delete("/items/{productID}", s.handleRemoveCartItem)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", s.handleCheckout)
			r.Get("/mine", s.handleListMine)
			r.Get("/forSeller", s.handleListForSeller)
			r.Get("/{orderID}", s.handleGetOrder)
			r.Put("/{orderID}/cancel", s.handleCancelOrder)
			r.Put("/{orderID}/subOrders/{subOrderID}", s.handleUpdateSubOrder)
		})
	})

	return r
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.svc.DB.PingContext(ctx); err != nil {
		logging.FromContext(r.Context()).Warn("readiness check failed", zap.Error(err))
		respondError(w, r, http.StatusServiceUnavailable, "unavailable", "database unreachable")
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}
