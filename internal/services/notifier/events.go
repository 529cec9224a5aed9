package notifier

import "github.com/BearBump/StreetEats/internal/broker/messages"

// Закрытый набор триггеров фан-аута. Маршрутизация делается исчерпывающим
// type switch в Dispatch: новый вид события не скомпилируется, пока для него
// не определены получатели.
type Event interface {
	isEvent()
}

type OrderCreated struct {
	OrderID     uint64
	OrderNumber string
	CustomerID  string
	TruckID     string
	TotalCents  int64
}

type OrderStatusChanged struct {
	OrderID     uint64
	OrderNumber string
	CustomerID  string
	TruckID     string
	FromStatus  string
	Status      string
	Note        string
}

type ReviewSubmitted struct {
	TruckID      string
	ReviewerName string
	Rating       int
}

type UserSignedUp struct {
	UserID string
	Name   string
}

type TruckRegistered struct {
	TruckID string
	Name    string
}

func (OrderCreated) isEvent()       {}
func (OrderStatusChanged) isEvent() {}
func (ReviewSubmitted) isEvent()    {}
func (UserSignedUp) isEvent()       {}
func (TruckRegistered) isEvent()    {}

// EventFromOrderUpdate переводит kafka-сообщение в доменное событие.
// Пустой from_status означает создание заказа.
func EventFromOrderUpdate(msg messages.OrderUpdated) Event {
	if msg.FromStatus == "" {
		return OrderCreated{
			OrderID:     msg.OrderID,
			OrderNumber: msg.OrderNumber,
			CustomerID:  msg.CustomerID,
			TruckID:     msg.TruckID,
			TotalCents:  msg.TotalCents,
		}
	}
	return OrderStatusChanged{
		OrderID:     msg.OrderID,
		OrderNumber: msg.OrderNumber,
		CustomerID:  msg.CustomerID,
		TruckID:     msg.TruckID,
		FromStatus:  msg.FromStatus,
		Status:      msg.Status,
		Note:        msg.Note,
	}
}
