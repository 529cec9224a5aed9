package models

import "github.com/pkg/errors"

// Доменная таксономия ошибок. Сравнивать через errors.Is: storage и services
// оборачивают их контекстом, но цепочка сохраняется.
var (
	ErrEmptyCart     = errors.New("cart is empty")
	ErrNoTruckBound  = errors.New("cart is not bound to a truck")
	ErrLineNotFound  = errors.New("cart line not found")
	ErrTruckConflict = errors.New("cart is bound to another truck")

	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("transition not allowed from current status")
	// ErrStaleStatus: переход посчитан от уже неактуального статуса.
	// Вызывающий перечитывает заказ и решает, имеет ли переход ещё смысл.
	ErrStaleStatus = errors.New("order status changed concurrently")

	ErrNotificationNotFound = errors.New("notification not found")
	ErrTruckNotFound        = errors.New("truck not found")
)
