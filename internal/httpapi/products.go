package httpapi

import (
	"net/http"

	"github.com/safar/marketplace-orders/internal/ratings"
	"github.com/safar/marketplace-orders/internal/store"
	"github.com/shopspring/decimal"
)

type createProductRequest struct {
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

type submitRatingRequest struct {
	Score      int     `json:"score"`
	ReviewText *string `json:"review_text"`
}

// The caller of POST /products becomes the product's seller.
func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, r, err)
		return
	}

	product, err := s.svc.Catalog.Create(r.Context(), store.CreateProductParams{
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		SellerID:    userID(r),
		Price:       req.Price,
		Stock:       req.Stock,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, product)
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	page, err := s.svc.Catalog.List(r.Context(), queryInt(r, "page"), queryInt(r, "page_size"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, page)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "productID")
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	product, err := s.svc.Catalog.Get(r.Context(), productID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, product)
}

func (s *Server) handleSubmitRating(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "productID")
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	var req submitRatingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, r, err)
		return
	}

	rating, summary, err := s.svc.Ratings.Submit(r.Context(), ratings.SubmitRequest{
		ProductID:  productID,
		UserID:     userID(r),
		Score:      req.Score,
		ReviewText: req.ReviewText,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, map[string]any{
		"rating":  rating,
		"summary": summary,
	})
}

func (s *Server) handleListRatings(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "productID")
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	page, err := s.svc.Ratings.List(r.Context(), productID, queryInt(r, "page"), queryInt(r, "page_size"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, page)
}
