package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/BearBump/StreetEats/internal/cache/rediscache"
	"github.com/BearBump/StreetEats/internal/models"
	"github.com/BearBump/StreetEats/internal/realtime"
	cartsvc "github.com/BearBump/StreetEats/internal/services/cart"
	"github.com/BearBump/StreetEats/internal/services/notifier"
)

type CartService interface {
	Get(ctx context.Context, customerID string) (*models.Cart, error)
	AddLine(ctx context.Context, customerID string, truck models.TruckRef, line models.CartLine, confirmed bool) (*models.Cart, error)
	IncrementLine(ctx context.Context, customerID, itemID string) (*models.Cart, error)
	DecrementLine(ctx context.Context, customerID, itemID string) (*models.Cart, error)
	RemoveLine(ctx context.Context, customerID, itemID string) (*models.Cart, error)
	Clear(ctx context.Context, customerID string) error
	Totals(cart *models.Cart, tipCents int64) models.CartTotals
	Submit(ctx context.Context, customerID string, tipCents int64, notes string) (*models.Order, error)
}

type OrderService interface {
	GetByID(ctx context.Context, orderID uint64) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]*models.Order, error)
	ListByTruck(ctx context.Context, truckID string, limit, offset int) ([]*models.Order, error)
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]*models.Order, error)
	ListTransitions(ctx context.Context, orderID uint64) ([]*models.OrderTransition, error)
	Transition(ctx context.Context, orderID uint64, toStatus, actor, note string) (*models.Order, error)
	Cancel(ctx context.Context, orderID uint64, actor string) (*models.Order, error)
}

type NotificationService interface {
	List(ctx context.Context, recipientID string, limit, offset int) ([]*models.Notification, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
	MarkRead(ctx context.Context, id uint64) error
	MarkAllRead(ctx context.Context, recipientID string) error
	Delete(ctx context.Context, id uint64) error
	ClearAll(ctx context.Context, recipientID string) error
	Dispatch(ctx context.Context, ev notifier.Event) error
}

type Quota interface {
	CheckRemaining(ctx context.Context, id rediscache.QuotaIdentity) (int, error)
	RecordUse(ctx context.Context, id rediscache.QuotaIdentity) error
}

// Directory - справочник траков и админов, живёт в pgorder.
type Directory interface {
	UpsertTruck(ctx context.Context, truck models.TruckRef) error
	RandomTruck(ctx context.Context) (*models.TruckRef, error)
}

type Subscriber interface {
	Subscribe(ctx context.Context, key string) (*realtime.Subscription, error)
}

type Server struct {
	cart    CartService
	orders  OrderService
	inbox   NotificationService
	quota   Quota
	dir     Directory
	streams Subscriber
}

func NewServer(cart CartService, orders OrderService, inbox NotificationService, quota Quota, dir Directory, streams Subscriber) *Server {
	return &Server{cart: cart, orders: orders, inbox: inbox, quota: quota, dir: dir, streams: streams}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(withIdentity)

		// Квота доступна и гостям, поэтому без requireUser.
		r.Post("/surprise", s.surprise)
		r.Get("/surprise/remaining", s.surpriseRemaining)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", s.getCart)
				r.Get("/totals", s.cartTotals)
				r.Delete("/", s.clearCart)
				r.Post("/lines", s.addCartLine)
				r.Post("/lines/{itemID}/increment", s.incrementCartLine)
				r.Post("/lines/{itemID}/decrement", s.decrementCartLine)
				r.Delete("/lines/{itemID}", s.removeCartLine)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", s.submitOrder)
				r.Get("/", s.listOrders)
				r.Get("/{orderID}", s.getOrder)
				r.Get("/{orderID}/transitions", s.listTransitions)
				r.Post("/{orderID}/status", s.changeOrderStatus)
				r.Post("/{orderID}/cancel", s.cancelOrder)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", s.listNotifications)
				r.Get("/unread-count", s.unreadCount)
				r.Post("/read-all", s.markAllRead)
				r.Post("/{id}/read", s.markRead)
				r.Delete("/{id}", s.deleteNotification)
				r.Delete("/", s.clearNotifications)
			})

			r.Post("/trucks", s.registerTruck)
			r.Post("/reviews", s.submitReview)
			r.Post("/signup", s.userSignedUp)

			r.Route("/stream", func(r chi.Router) {
				r.Get("/orders/{orderID}", s.streamOrder)
				r.Get("/my-orders", s.streamMyOrders)
				r.Get("/inbox", s.streamInbox)
			})
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError переводит доменные ошибки в HTTP-коды. Конфликты (409)
// несут состояние, из-за которого операция не прошла, чтобы клиент мог
// показать осмысленный диалог вместо "что-то пошло не так".
func (s *Server) writeDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	var conflict *cartsvc.TruckConflictError
	switch {
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": "cart is bound to another truck",
			"conflict": map[string]string{
				"truckId":   conflict.BoundTruckID,
				"truckName": conflict.BoundTruckName,
			},
		})
	case errors.Is(err, models.ErrEmptyCart),
		errors.Is(err, models.ErrNoTruckBound):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrLineNotFound),
		errors.Is(err, models.ErrOrderNotFound),
		errors.Is(err, models.ErrNotificationNotFound),
		errors.Is(err, models.ErrTruckNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrStaleStatus):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": "order changed concurrently, re-read and retry",
			"retry": true,
		})
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// writeTransitionError - как writeDomainError, но ответ на запрещённый
// переход дополняется актуальным статусом заказа.
func (s *Server) writeTransitionError(ctx context.Context, w http.ResponseWriter, orderID uint64, err error) {
	if !errors.Is(err, models.ErrInvalidTransition) {
		s.writeDomainError(ctx, w, err)
		return
	}
	body := map[string]any{"error": "transition not allowed"}
	if order, readErr := s.orders.GetByID(ctx, orderID); readErr == nil {
		body["currentStatus"] = order.Status
	}
	writeJSON(w, http.StatusConflict, body)
}
