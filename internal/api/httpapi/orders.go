package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/BearBump/StreetEats/internal/models"
)

type submitOrderRequest struct {
	TipCents int64  `json:"tipCents"`
	Notes    string `json:"notes"`
}

// submitOrder превращает корзину в заказ. Корзина очищается внутри сервиса
// и только после успешного создания.
func (s *Server) submitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed body")
			return
		}
	}
	if req.TipCents < 0 {
		writeError(w, http.StatusBadRequest, "tipCents must be non-negative")
		return
	}

	id := identityFrom(r.Context())
	order, err := s.cart.Submit(r.Context(), id.UserID, req.TipCents, req.Notes)
	if err != nil {
		s.writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	order, err := s.orders.GetByID(r.Context(), orderID)
	if err != nil {
		s.writeDomainError(r.Context(), w, err)
		return
	}
	if !canSeeOrder(identityFrom(r.Context()), order) {
		writeError(w, http.StatusForbidden, "not your order")
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// listOrders: покупатель видит только свои заказы; владелец фильтрует по
// траку; админ - по любому из фильтров.
func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	limit, offset := parsePage(r)
	q := r.URL.Query()

	var (
		orders []*models.Order
		err    error
	)
	switch {
	case id.Role == RoleAdmin && q.Get("status") != "":
		orders, err = s.orders.ListByStatus(r.Context(), q.Get("status"), limit, offset)
	case id.Role == RoleAdmin && q.Get("customer") != "":
		orders, err = s.orders.ListByCustomer(r.Context(), q.Get("customer"), limit, offset)
	case (id.Role == RoleOwner || id.Role == RoleAdmin) && q.Get("truck") != "":
		orders, err = s.orders.ListByTruck(r.Context(), q.Get("truck"), limit, offset)
	default:
		orders, err = s.orders.ListByCustomer(r.Context(), id.UserID, limit, offset)
	}
	if err != nil {
		s.writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (s *Server) listTransitions(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	order, err := s.orders.GetByID(r.Context(), orderID)
	if err != nil {
		s.writeDomainError(r.Context(), w, err)
		return
	}
	if !canSeeOrder(identityFrom(r.Context()), order) {
		writeError(w, http.StatusForbidden, "not your order")
		return
	}
	transitions, err := s.orders.ListTransitions(r.Context(), orderID)
	if err != nil {
		s.writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transitions": transitions})
}

type changeStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

// changeOrderStatus двигает машину состояний со стороны трака. Отмена
// покупателем идёт отдельным маршрутом со своей проверкой владения.
func (s *Server) changeOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	if id.Role != RoleOwner && id.Role != RoleAdmin {
		writeError(w, http.StatusForbidden, "owner or admin role required")
		return
	}

	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	var req changeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	order, err := s.orders.Transition(r.Context(), orderID, req.Status, id.UserID, req.Note)
	if err != nil {
		s.writeTransitionError(r.Context(), w, orderID, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	id := identityFrom(r.Context())

	order, err := s.orders.GetByID(r.Context(), orderID)
	if err != nil {
		s.writeDomainError(r.Context(), w, err)
		return
	}
	if id.Role != RoleAdmin && order.CustomerID != id.UserID {
		writeError(w, http.StatusForbidden, "only the customer or an admin can cancel")
		return
	}

	order, err = s.orders.Cancel(r.Context(), orderID, id.UserID)
	if err != nil {
		s.writeTransitionError(r.Context(), w, orderID, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func parseOrderID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "orderID must be a positive integer")
		return 0, false
	}
	return id, true
}

func parsePage(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// canSeeOrder: покупатель видит свой заказ, owner и admin - любой
// (принадлежность трака owner'у проверяет gateway по truck-scoped токену).
func canSeeOrder(id Identity, order *models.Order) bool {
	switch id.Role {
	case RoleOwner, RoleAdmin:
		return true
	}
	return order.CustomerID == id.UserID
}
