package httpapi

import "net/http"

type addCartItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type setCartItemRequest struct {
	Quantity int `json:"quantity"`
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := s.svc.Carts.Get(r.Context(), userID(r))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, cart)
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Carts.Clear(r.Context(), userID(r)); err != nil {
		respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, r, err)
		return
	}

	item, err := s.svc.Carts.AddItem(r.Context(), userID(r), req.ProductID, req.Quantity)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, item)
}

func (s *Server) handleSetCartItem(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "productID")
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	var req setCartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, r, err)
		return
	}

	item, err := s.svc.Carts.SetQuantity(r.Context(), userID(r), productID, req.Quantity)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if item == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, r, http.StatusOK, item)
}

func (s *Server) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "productID")
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	if err := s.svc.Carts.RemoveItem(r.Context(), userID(r), productID); err != nil {
		respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
