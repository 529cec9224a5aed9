package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/BearBump/StreetEats/internal/models"
)

type cartResponse struct {
	Cart   *models.Cart      `json:"cart"`
	Totals models.CartTotals `json:"totals"`
}

func (s *Server) writeCart(w http.ResponseWriter, cart *models.Cart) {
	writeJSON(w, http.StatusOK, cartResponse{Cart: cart, Totals: s.cart.Totals(cart, 0)})
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	cart, err := s.cart.Get(r.Context(), id.UserID)
	if err != nil {
		s.writeDomainError(r.Context(), w, err)
		return
	}
	s.writeCart(w, cart)
}

type addLineRequest struct {
	Truck     models.TruckRef `json:"truck"`
	Line      models.CartLine `json:"line"`
	Confirmed bool            `json:"confirmed"`
}

func (s *Server) addCartLine(w http.ResponseWriter, r *http.Request) {
	var req addLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	if req.Truck.ID == "" || req.Line.ItemID == "" {
		writeError(w, http.StatusBadRequest, "truck.id and line.itemId are required")
		return
	}
	if req.Line.Quantity < 1 {
		req.Line.Quantity = 1
	}
	if req.Line.UnitPriceCents < 0 {
		writeError(w, http.StatusBadRequest, "line.unitPriceCents must be non-negative")
		return
	}

	id := identityFrom(r.Context())
	cart, err := s.cart.AddLine(r.Context(), id.UserID, req.Truck, req.Line, req.Confirmed)
	if err != nil {
		s.writeDomainError(r.Context(), w, err)
		return
	}
	s.writeCart(w, cart)
}

func (s *Server) incrementCartLine(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	cart, err := s.cart.IncrementLine(r.Context(), id.UserID, chi.URLParam(r, "itemID"))
	if err != nil {
		s.writeDomainError(r.Context(), w, err)
		return
	}
	s.writeCart(w, cart)
}

func (s *Server) decrementCartLine(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	cart, err := s.cart.DecrementLine(r.Context(), id.UserID, chi.URLParam(r, "itemID"))
	if err != nil {
		s.writeDomainError(r.Context(), w, err)
		return
	}
	s.writeCart(w, cart)
}

func (s *Server) removeCartLine(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	cart, err := s.cart.RemoveLine(r.Context(), id.UserID, chi.URLParam(r, "itemID"))
	if err != nil {
		s.writeDomainError(r.Context(), w, err)
		return
	}
	s.writeCart(w, cart)
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	if err := s.cart.Clear(r.Context(), id.UserID); err != nil {
		s.writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

// cartTotals считает цену корзины с чаевыми из query без записи чего-либо:
// фронт дёргает его при изменении поля tip.
func (s *Server) cartTotals(w http.ResponseWriter, r *http.Request) {
	tip, ok := parseCents(r.URL.Query().Get("tipCents"))
	if !ok {
		writeError(w, http.StatusBadRequest, "tipCents must be a non-negative integer")
		return
	}
	id := identityFrom(r.Context())
	cart, err := s.cart.Get(r.Context(), id.UserID)
	if err != nil {
		s.writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.cart.Totals(cart, tip))
}

// parseCents читает денежный query-параметр; пустая строка - ноль.
func parseCents(raw string) (int64, bool) {
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
