package messages

import "time"

// PaymentUpdated приходит из webhook-шлюза платёжного провайдера.
// Обновляет только поле оплаты заказа и не участвует в машине статусов.
type PaymentUpdated struct {
	OrderID       uint64    `json:"order_id"`
	PaymentStatus string    `json:"payment_status"` // succeeded | failed | refunded
	Provider      string    `json:"provider,omitempty"`
	Reference     string    `json:"reference,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
