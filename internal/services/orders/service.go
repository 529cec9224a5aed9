package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/StreetEats/internal/broker/messages"
	"github.com/BearBump/StreetEats/internal/cache"
	"github.com/BearBump/StreetEats/internal/models"
	"github.com/BearBump/StreetEats/internal/realtime"
	"github.com/pkg/errors"
)

type Repository interface {
	CreateOrder(ctx context.Context, in models.OrderCreateInput) (*models.Order, error)
	GetOrderByID(ctx context.Context, id uint64) (*models.Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID string, limit, offset int) ([]*models.Order, error)
	ListOrdersByTruck(ctx context.Context, truckID string, limit, offset int) ([]*models.Order, error)
	ListOrdersByStatus(ctx context.Context, status string, limit, offset int) ([]*models.Order, error)
	ListOrderTransitions(ctx context.Context, orderID uint64) ([]*models.OrderTransition, error)
	TransitionOrder(ctx context.Context, orderID uint64, from, to, actor, note string) (*models.Order, error)
	UpdatePaymentStatus(ctx context.Context, orderID uint64, paymentStatus string) (*models.Order, error)
}

type Publisher interface {
	Publish(ctx context.Context, key string, ev realtime.Event) error
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Service - единственный владелец статуса заказа. Переходы сериализуются
// оптимистичной проверкой статуса в репозитории; все побочные эффекты
// (кэш, realtime, kafka) идут строго после коммита и никогда не откатывают
// состоявшуюся мутацию.
type Service struct {
	repo     Repository
	cache    cache.BytesCache
	hub      Publisher
	producer Producer
	topic    string

	snapshotTTL time.Duration
}

func New(repo Repository, c cache.BytesCache, hub Publisher, producer Producer, topic string, snapshotTTL time.Duration) *Service {
	return &Service{
		repo:        repo,
		cache:       c,
		hub:         hub,
		producer:    producer,
		topic:       topic,
		snapshotTTL: snapshotTTL,
	}
}

func (s *Service) Create(ctx context.Context, in models.OrderCreateInput) (*models.Order, error) {
	if in.CustomerID == "" {
		return nil, errors.New("customerId is required")
	}
	if in.TruckID == "" {
		return nil, errors.New("truckId is required")
	}
	if len(in.Lines) == 0 {
		return nil, errors.Wrap(models.ErrEmptyCart, "create order")
	}
	for _, l := range in.Lines {
		if l.Quantity < 1 {
			return nil, errors.Errorf("line %s: quantity must be >= 1", l.ItemID)
		}
	}

	order, err := s.repo.CreateOrder(ctx, in)
	if err != nil {
		return nil, err
	}

	s.afterMutation(ctx, order, "", "")
	return order, nil
}

// Transition переводит заказ в toStatus. Недопустимый по таблице переход
// возвращает ErrInvalidTransition и ничего не меняет; если прочитанный
// статус устарел к моменту записи, репозиторий вернёт ErrStaleStatus -
// вызывающий перечитывает заказ и решает, актуален ли переход.
func (s *Service) Transition(ctx context.Context, orderID uint64, toStatus, actor, note string) (*models.Order, error) {
	if !KnownStatus(toStatus) {
		return nil, errors.Wrapf(models.ErrInvalidTransition, "unknown status %q", toStatus)
	}

	current, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(current.Status, toStatus) {
		return nil, errors.Wrapf(models.ErrInvalidTransition, "%s -> %s", current.Status, toStatus)
	}

	order, err := s.repo.TransitionOrder(ctx, orderID, current.Status, toStatus, actor, note)
	if err != nil {
		return nil, err
	}

	s.afterMutation(ctx, order, current.Status, note)
	return order, nil
}

func (s *Service) Cancel(ctx context.Context, orderID uint64, actor string) (*models.Order, error) {
	return s.Transition(ctx, orderID, models.OrderStatusCancelled, actor, "")
}

func (s *Service) GetByID(ctx context.Context, orderID uint64) (*models.Order, error) {
	if s.cache != nil && s.snapshotTTL > 0 {
		b, ok, err := s.cache.Get(ctx, snapshotKey(orderID))
		if err == nil && ok {
			var o models.Order
			if json.Unmarshal(b, &o) == nil {
				return &o, nil
			}
		}
	}

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.fillCache(ctx, order)
	return order, nil
}

func (s *Service) ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]*models.Order, error) {
	if customerID == "" {
		return nil, errors.New("customerId is required")
	}
	return s.repo.ListOrdersByCustomer(ctx, customerID, limit, offset)
}

func (s *Service) ListByTruck(ctx context.Context, truckID string, limit, offset int) ([]*models.Order, error) {
	if truckID == "" {
		return nil, errors.New("truckId is required")
	}
	return s.repo.ListOrdersByTruck(ctx, truckID, limit, offset)
}

func (s *Service) ListByStatus(ctx context.Context, status string, limit, offset int) ([]*models.Order, error) {
	if !KnownStatus(status) {
		return nil, errors.Errorf("unknown status %q", status)
	}
	return s.repo.ListOrdersByStatus(ctx, status, limit, offset)
}

func (s *Service) ListTransitions(ctx context.Context, orderID uint64) ([]*models.OrderTransition, error) {
	return s.repo.ListOrderTransitions(ctx, orderID)
}

// ApplyPaymentUpdate применяет событие платёжного webhook. Оплата - отдельное
// поле заказа, машина статусов не участвует.
func (s *Service) ApplyPaymentUpdate(ctx context.Context, msg messages.PaymentUpdated) error {
	if msg.OrderID == 0 {
		return errors.New("order_id is required")
	}
	switch msg.PaymentStatus {
	case models.PaymentStatusSucceeded, models.PaymentStatusFailed, models.PaymentStatusRefunded:
	default:
		return errors.Errorf("unknown payment status %q", msg.PaymentStatus)
	}

	order, err := s.repo.UpdatePaymentStatus(ctx, msg.OrderID, msg.PaymentStatus)
	if err != nil {
		return err
	}

	s.fillCache(ctx, order)
	s.publishRealtime(ctx, order)
	return nil
}

// afterMutation - побочные эффекты состоявшейся мутации. Ошибки здесь только
// логируются: потерянное уведомление или событие не повод откатывать заказ.
func (s *Service) afterMutation(ctx context.Context, order *models.Order, fromStatus, note string) {
	s.fillCache(ctx, order)
	s.publishRealtime(ctx, order)

	if s.producer == nil || s.topic == "" {
		return
	}
	msg := messages.OrderUpdated{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		TruckID:     order.TruckID,
		FromStatus:  fromStatus,
		Status:      order.Status,
		Note:        note,
		TotalCents:  order.TotalCents,
		OccurredAt:  order.UpdatedAt,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal order.updated", "order_id", order.ID, "error", err.Error())
		return
	}
	if err := s.producer.Publish(ctx, s.topic, []byte(fmt.Sprintf("%d", order.ID)), b); err != nil {
		slog.Error("publish order.updated", "order_id", order.ID, "error", err.Error())
	}
}

func (s *Service) publishRealtime(ctx context.Context, order *models.Order) {
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(order)
	if err != nil {
		slog.Error("marshal order snapshot", "order_id", order.ID, "error", err.Error())
		return
	}
	ev := realtime.Event{Kind: realtime.KindOrder, Payload: payload, OccurredAt: order.UpdatedAt}
	for _, key := range []string{realtime.OrderKey(order.ID), realtime.CustomerKey(order.CustomerID)} {
		if err := s.hub.Publish(ctx, key, ev); err != nil {
			slog.Error("publish realtime order", "key", key, "error", err.Error())
		}
	}
}

func (s *Service) fillCache(ctx context.Context, order *models.Order) {
	if s.cache == nil || s.snapshotTTL <= 0 {
		return
	}
	b, err := json.Marshal(order)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, snapshotKey(order.ID), b, s.snapshotTTL)
}

func snapshotKey(orderID uint64) string {
	return fmt.Sprintf("order:%d:current", orderID)
}
