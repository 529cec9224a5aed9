package cart

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/StreetEats/internal/models"
	"github.com/pkg/errors"
)

type Store interface {
	Load(ctx context.Context, customerID string) (*models.Cart, bool, error)
	Save(ctx context.Context, cart *models.Cart) error
	Delete(ctx context.Context, customerID string) error
}

type OrderCreator interface {
	Create(ctx context.Context, in models.OrderCreateInput) (*models.Order, error)
}

// TruckConflictError: корзина уже привязана к другому траку. Несёт имя
// конфликтующего трака, чтобы отказ объяснялся состоянием, а не "ошибкой".
type TruckConflictError struct {
	BoundTruckID   string
	BoundTruckName string
}

func (e *TruckConflictError) Error() string {
	return fmt.Sprintf("cart already holds items from %q (%s)", e.BoundTruckName, e.BoundTruckID)
}

func (e *TruckConflictError) Unwrap() error {
	return models.ErrTruckConflict
}

// Service - корзина одного покупателя: один трак на корзину, цены считаются
// заново при каждом чтении, сабмит и создание заказа - одна логическая
// операция (корзина очищается только после успешного создания).
type Service struct {
	store      Store
	orders     OrderCreator
	taxRateBps int64
}

func New(store Store, orders OrderCreator, taxRateBps int64) *Service {
	if taxRateBps <= 0 {
		taxRateBps = 800
	}
	return &Service{store: store, orders: orders, taxRateBps: taxRateBps}
}

func (s *Service) Get(ctx context.Context, customerID string) (*models.Cart, error) {
	cart, ok, err := s.store.Load(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &models.Cart{CustomerID: customerID, Lines: []models.CartLine{}}, nil
	}
	return cart, nil
}

// AddLine добавляет позицию. Непустая корзина, привязанная к другому траку,
// не перезаписывается молча: без confirmed возвращается TruckConflictError,
// с confirmed корзина заменяется позициями нового трака.
func (s *Service) AddLine(ctx context.Context, customerID string, truck models.TruckRef, line models.CartLine, confirmed bool) (*models.Cart, error) {
	if truck.ID == "" {
		return nil, errors.New("truck id is required")
	}
	if line.ItemID == "" {
		return nil, errors.New("item id is required")
	}
	if line.UnitPriceCents < 0 {
		return nil, errors.New("unit price must be >= 0")
	}
	if line.Quantity < 1 {
		line.Quantity = 1
	}

	cart, err := s.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if !cart.IsEmpty() && cart.TruckID != truck.ID {
		if !confirmed {
			return nil, &TruckConflictError{BoundTruckID: cart.TruckID, BoundTruckName: cart.TruckName}
		}
		cart = &models.Cart{CustomerID: customerID, Lines: []models.CartLine{}}
	}

	cart.TruckID = truck.ID
	cart.TruckName = truck.Name

	if i := cart.FindLine(line.ItemID); i >= 0 {
		cart.Lines[i].Quantity += line.Quantity
	} else {
		cart.Lines = append(cart.Lines, line)
	}

	return s.save(ctx, cart)
}

func (s *Service) IncrementLine(ctx context.Context, customerID, itemID string) (*models.Cart, error) {
	cart, err := s.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	i := cart.FindLine(itemID)
	if i < 0 {
		return nil, errors.Wrapf(models.ErrLineNotFound, "item %s", itemID)
	}
	cart.Lines[i].Quantity++
	return s.save(ctx, cart)
}

// DecrementLine уменьшает количество; позиция с количеством 1 удаляется.
// Удаление последней позиции НЕ сбрасывает привязку к траку: контекст трака
// не теряется на мгновенно пустой корзине.
func (s *Service) DecrementLine(ctx context.Context, customerID, itemID string) (*models.Cart, error) {
	cart, err := s.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	i := cart.FindLine(itemID)
	if i < 0 {
		return nil, errors.Wrapf(models.ErrLineNotFound, "item %s", itemID)
	}
	if cart.Lines[i].Quantity <= 1 {
		cart.Lines = append(cart.Lines[:i], cart.Lines[i+1:]...)
	} else {
		cart.Lines[i].Quantity--
	}
	return s.save(ctx, cart)
}

func (s *Service) RemoveLine(ctx context.Context, customerID, itemID string) (*models.Cart, error) {
	cart, err := s.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	i := cart.FindLine(itemID)
	if i < 0 {
		return nil, errors.Wrapf(models.ErrLineNotFound, "item %s", itemID)
	}
	cart.Lines = append(cart.Lines[:i], cart.Lines[i+1:]...)
	return s.save(ctx, cart)
}

func (s *Service) Clear(ctx context.Context, customerID string) error {
	return s.store.Delete(ctx, customerID)
}

// Totals - чистая функция: пересчитывается при каждом вызове, на корзине
// ничего не кэшируется. Налог округляется до цента (half up).
func (s *Service) Totals(cart *models.Cart, tipCents int64) models.CartTotals {
	var subtotal int64
	for _, l := range cart.Lines {
		subtotal += l.UnitPriceCents * int64(l.Quantity)
	}
	tax := (subtotal*s.taxRateBps + 5000) / 10000
	return models.CartTotals{
		SubtotalCents: subtotal,
		TaxCents:      tax,
		TipCents:      tipCents,
		TotalCents:    subtotal + tax + tipCents,
	}
}

// Submit создаёт заказ из неизменяемого снапшота корзины. Если создание
// заказа не удалось, корзина остаётся нетронутой.
func (s *Service) Submit(ctx context.Context, customerID string, tipCents int64, notes string) (*models.Order, error) {
	if tipCents < 0 {
		return nil, errors.New("tip must be >= 0")
	}

	cart, err := s.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, errors.Wrap(models.ErrEmptyCart, "submit")
	}
	if cart.TruckID == "" {
		return nil, errors.Wrap(models.ErrNoTruckBound, "submit")
	}

	lines := make([]models.OrderLine, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		lines = append(lines, models.OrderLine{
			ItemID:         l.ItemID,
			Name:           l.Name,
			UnitPriceCents: l.UnitPriceCents,
			Quantity:       l.Quantity,
		})
	}
	totals := s.Totals(cart, tipCents)

	order, err := s.orders.Create(ctx, models.OrderCreateInput{
		CustomerID:    customerID,
		TruckID:       cart.TruckID,
		Lines:         lines,
		SubtotalCents: totals.SubtotalCents,
		TaxCents:      totals.TaxCents,
		TipCents:      totals.TipCents,
		TotalCents:    totals.TotalCents,
		Notes:         notes,
	})
	if err != nil {
		return nil, err
	}

	// Заказ уже создан: неудачная очистка корзины не должна его прятать.
	if err := s.store.Delete(ctx, customerID); err != nil {
		slog.Warn("clear cart after submit", "customer_id", customerID, "error", err.Error())
	}
	return order, nil
}

func (s *Service) save(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	cart.UpdatedAt = time.Now().UTC()
	if err := s.store.Save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}
