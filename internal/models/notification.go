package models

import "time"

// NotificationType - закрытый набор типов. Маршрутизация по типу делается
// исчерпывающим switch в services/notifier, новый тип - это изменение кода,
// а не строка в данных.
type NotificationType string

const (
	NotificationNewOrder          NotificationType = "new_order"
	NotificationOrderStatusUpdate NotificationType = "order_status_update"
	NotificationNewReview         NotificationType = "new_review"
	NotificationNewUserSignup     NotificationType = "new_user_signup"
	NotificationNewTruck          NotificationType = "new_truck_registered"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationNewOrder, NotificationOrderStatusUpdate,
		NotificationNewReview, NotificationNewUserSignup, NotificationNewTruck:
		return true
	}
	return false
}

type Notification struct {
	ID          uint64           `json:"id"`
	RecipientID string           `json:"recipientId"`
	Type        NotificationType `json:"type"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	DataJSON    *string          `json:"data,omitempty"`

	// DedupKey делает создание идемпотентным: повторная доставка того же
	// события не плодит дубликаты (unique index в pgorder).
	DedupKey string `json:"-"`

	IsRead    bool       `json:"isRead"`
	CreatedAt time.Time  `json:"createdAt"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
}
