package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID          string          `json:"-"`
	UserID      string          `json:"-"`
	Number      string          `json:"order_number"`
	CreatedAt   time.Time       `json:"created_at"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      string          `json:"status"`
}

type OrderItem struct {
	ID       string          `json:"-"`
	OrderID  string          `json:"-"`
	SKU      string          `json:"sku"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// LineTotal is quantity * price.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity))).Round(MoneyScale)
}

// OrderDetails is an order together with its owner and current items.
type OrderDetails struct {
	Order
	Username string      `json:"user"`
	Items    []OrderItem `json:"items"`
}

func (o Order) MarshalJSON() ([]byte, error) {
	type Alias Order
	return json.Marshal(&struct {
		CreatedAt   string `json:"created_at"`
		TotalAmount string `json:"total_amount"`
		*Alias
	}{
		CreatedAt:   o.CreatedAt.Format(time.RFC3339),
		TotalAmount: o.TotalAmount.StringFixed(MoneyScale),
		Alias:       (*Alias)(&o),
	})
}

func (i OrderItem) MarshalJSON() ([]byte, error) {
	type Alias OrderItem
	return json.Marshal(&struct {
		Price     string `json:"price"`
		LineTotal string `json:"total_price"`
		*Alias
	}{
		Price:     i.Price.StringFixed(MoneyScale),
		LineTotal: i.LineTotal().StringFixed(MoneyScale),
		Alias:     (*Alias)(&i),
	})
}

func (d OrderDetails) MarshalJSON() ([]byte, error) {
	order, err := json.Marshal(d.Order)
	if err != nil {
		return nil, err
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(order, &out); err != nil {
		return nil, err
	}
	if out["user"], err = json.Marshal(d.Username); err != nil {
		return nil, err
	}
	items := d.Items
	if items == nil {
		items = []OrderItem{}
	}
	if out["items"], err = json.Marshal(items); err != nil {
		return nil, err
	}
	return json.Marshal(out)
}
