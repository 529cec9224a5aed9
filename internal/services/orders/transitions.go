package orders

import "github.com/BearBump/StreetEats/internal/models"

// Таблица допустимых переходов. Линейный happy path
// pending -> confirmed -> preparing -> ready -> completed
// с двумя ранними выходами: cancelled (покупатель) и rejected (владелец).
var transitionTable = map[string][]string{
	models.OrderStatusPending:   {models.OrderStatusConfirmed, models.OrderStatusCancelled, models.OrderStatusRejected},
	models.OrderStatusConfirmed: {models.OrderStatusPreparing, models.OrderStatusRejected},
	models.OrderStatusPreparing: {models.OrderStatusReady},
	models.OrderStatusReady:     {models.OrderStatusCompleted},
	models.OrderStatusCompleted: {},
	models.OrderStatusCancelled: {},
	models.OrderStatusRejected:  {},
}

func CanTransition(from, to string) bool {
	for _, allowed := range transitionTable[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func AllowedFrom(from string) []string {
	return transitionTable[from]
}

func KnownStatus(status string) bool {
	_, ok := transitionTable[status]
	return ok
}
