package httpapi

import (
	"net/http"

	"github.com/safar/marketplace-orders/internal/models"
	"github.com/safar/marketplace-orders/internal/orders"
	"github.com/shopspring/decimal"
)

type checkoutRequest struct {
	ShippingAddress string          `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
	Shipping        decimal.Decimal `json:"shipping"`
	Tax             decimal.Decimal `json:"tax"`
	Discount        decimal.Decimal `json:"discount"`
}

type updateSubOrderRequest struct {
	Status         models.Status `json:"status"`
	TrackingNumber *string       `json:"tracking_number"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, r, err)
		return
	}

	order, err := s.svc.Orders.Create(r.Context(), orders.CreateOrderRequest{
		CustomerID:      userID(r),
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Shipping:        req.Shipping,
		Tax:             req.Tax,
		Discount:        req.Discount,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, order)
}

func (s *Server) handleListMine(w http.ResponseWriter, r *http.Request) {
	page, err := s.svc.Orders.ListForCustomer(r.Context(), userID(r),
		r.URL.Query().Get("cursor"), queryInt(r, "limit"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, page)
}

func (s *Server) handleListForSeller(w http.ResponseWriter, r *http.Request) {
	page, err := s.svc.Orders.ListForSeller(r.Context(), userID(r),
		r.URL.Query().Get("cursor"), queryInt(r, "limit"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, page)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "orderID")
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	order, err := s.svc.Orders.Get(r.Context(), orderID, userID(r))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, order)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "orderID")
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	order, err := s.svc.Orders.Cancel(r.Context(), orderID, userID(r))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, order)
}

func (s *Server) handleUpdateSubOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "orderID")
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	subOrderID, err := pathID(r, "subOrderID")
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	var req updateSubOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, r, err)
		return
	}

	order, err := s.svc.Orders.UpdateSubOrderStatus(r.Context(), orders.UpdateStatusRequest{
		OrderID:        orderID,
		SubOrderID:     subOrderID,
		RequesterID:    userID(r),
		Status:         req.Status,
		TrackingNumber: req.TrackingNumber,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, order.ForSeller(userID(r)))
}
