package models

import "time"

// Статусы заказа. Жизненный цикл линейный с двумя ранними выходами,
// допустимые переходы описаны в services/orders.
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusPreparing = "preparing"
	OrderStatusReady     = "ready"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
	OrderStatusRejected  = "rejected"
)

// Статус оплаты живёт отдельно от машины состояний заказа:
// его двигает webhook платёжного провайдера, а не участники заказа.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

func IsTerminalStatus(status string) bool {
	switch status {
	case OrderStatusCompleted, OrderStatusCancelled, OrderStatusRejected:
		return true
	}
	return false
}

type OrderLine struct {
	ItemID         string `json:"itemId"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	Quantity       int32  `json:"quantity"`
}

type Order struct {
	ID          uint64      `json:"id"`
	OrderNumber string      `json:"orderNumber"`
	CustomerID  string      `json:"customerId"`
	TruckID     string      `json:"truckId"`
	Lines       []OrderLine `json:"lines"`

	SubtotalCents int64 `json:"subtotalCents"`
	TaxCents      int64 `json:"taxCents"`
	TipCents      int64 `json:"tipCents"`
	TotalCents    int64 `json:"totalCents"`

	Status         string  `json:"status"`
	Notes          string  `json:"notes,omitempty"`
	RejectedReason *string `json:"rejectedReason,omitempty"`
	PaymentStatus  string  `json:"paymentStatus"`

	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// OrderTransition - append-only запись в журнале переходов.
type OrderTransition struct {
	ID         uint64    `json:"id"`
	OrderID    uint64    `json:"orderId"`
	FromStatus string    `json:"fromStatus"`
	ToStatus   string    `json:"toStatus"`
	Actor      string    `json:"actor"`
	Note       string    `json:"note,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

type OrderCreateInput struct {
	CustomerID    string
	TruckID       string
	Lines         []OrderLine
	SubtotalCents int64
	TaxCents      int64
	TipCents      int64
	TotalCents    int64
	Notes         string
}
