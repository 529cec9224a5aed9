package models

import "time"

type CartLine struct {
	ItemID         string `json:"itemId"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	Quantity       int32  `json:"quantity"`
}

// Cart - черновик заказа одного покупателя. Все строки принадлежат одному
// траку; пустая корзина может сохранять привязку к траку до явной очистки.
type Cart struct {
	CustomerID string     `json:"customerId"`
	TruckID    string     `json:"truckId,omitempty"`
	TruckName  string     `json:"truckName,omitempty"`
	Lines      []CartLine `json:"lines"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

func (c *Cart) FindLine(itemID string) int {
	for i := range c.Lines {
		if c.Lines[i].ItemID == itemID {
			return i
		}
	}
	return -1
}

type CartTotals struct {
	SubtotalCents int64 `json:"subtotalCents"`
	TaxCents      int64 `json:"taxCents"`
	TipCents      int64 `json:"tipCents"`
	TotalCents    int64 `json:"totalCents"`
}

type TruckRef struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OwnerID string `json:"ownerId,omitempty"`
}
