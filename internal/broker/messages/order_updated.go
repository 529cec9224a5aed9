package messages

import "time"

// OrderUpdated публикуется после каждой зафиксированной мутации заказа
// (создание или переход). Несёт полный снапшот, чтобы потребители могли
// применять его идемпотентно, заменяя локальное состояние целиком.
type OrderUpdated struct {
	OrderID     uint64 `json:"order_id"`
	OrderNumber string `json:"order_number"`
	CustomerID  string `json:"customer_id"`
	TruckID     string `json:"truck_id"`

	FromStatus string `json:"from_status,omitempty"`
	Status     string `json:"status"`
	Note       string `json:"note,omitempty"`

	TotalCents int64     `json:"total_cents"`
	OccurredAt time.Time `json:"occurred_at"`
}
