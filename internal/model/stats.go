package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// UserStats summarises every order owned by one user.
type UserStats struct {
	Username      string          `json:"user"`
	OrdersCount   int64           `json:"orders_count"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	AvgOrderValue decimal.Decimal `json:"avg_order_value"`
}

// DailyOrderStats is the write-once snapshot of all orders placed on Date.
type DailyOrderStats struct {
	ID            string          `json:"-"`
	Date          time.Time       `json:"date"`
	TotalUsers    int64           `json:"total_users"`
	TotalOrders   int64           `json:"total_orders"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	AvgOrderValue decimal.Decimal `json:"avg_order_value"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (s UserStats) MarshalJSON() ([]byte, error) {
	type Alias UserStats
	return json.Marshal(&struct {
		TotalRevenue  string `json:"total_revenue"`
		AvgOrderValue string `json:"avg_order_value"`
		*Alias
	}{
		TotalRevenue:  s.TotalRevenue.StringFixed(MoneyScale),
		AvgOrderValue: s.AvgOrderValue.StringFixed(MoneyScale),
		Alias:         (*Alias)(&s),
	})
}

func (s DailyOrderStats) MarshalJSON() ([]byte, error) {
	type Alias DailyOrderStats
	return json.Marshal(&struct {
		Date          string `json:"date"`
		TotalRevenue  string `json:"total_revenue"`
		AvgOrderValue string `json:"avg_order_value"`
		CreatedAt     string `json:"created_at"`
		*Alias
	}{
		Date:          s.Date.Format(time.DateOnly),
		TotalRevenue:  s.TotalRevenue.StringFixed(MoneyScale),
		AvgOrderValue: s.AvgOrderValue.StringFixed(MoneyScale),
		CreatedAt:     s.CreatedAt.Format(time.RFC3339),
		Alias:         (*Alias)(&s),
	})
}
