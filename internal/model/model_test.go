package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoneyIsRenderedWithTwoDecimals(t *testing.T) {
	stats := UserStats{
		Username:      "alice",
		OrdersCount:   1,
		TotalRevenue:  decimal.RequireFromString("100"),
		AvgOrderValue: decimal.RequireFromString("33.333"),
	}

	b, err := json.Marshal(stats)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user":"alice","orders_count":1,"total_revenue":"100.00","avg_order_value":"33.33"}`, string(b))
}

func TestDailyOrderStatsJSON(t *testing.T) {
	s := DailyOrderStats{
		ID:            "ignored",
		Date:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		TotalUsers:    2,
		TotalOrders:   3,
		TotalRevenue:  decimal.RequireFromString("30.5"),
		AvgOrderValue: decimal.RequireFromString("10.17"),
		CreatedAt:     time.Date(2024, 1, 2, 0, 5, 0, 0, time.UTC),
	}

	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"date":"2024-01-01",
		"total_users":2,
		"total_orders":3,
		"total_revenue":"30.50",
		"avg_order_value":"10.17",
		"created_at":"2024-01-02T00:05:00Z"
	}`, string(b))
}

func TestOrderDetailsJSON(t *testing.T) {
	d := OrderDetails{
		Order: Order{
			ID:          "o1",
			Number:      "O-1",
			CreatedAt:   time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
			TotalAmount: decimal.RequireFromString("45"),
			Status:      "paid",
		},
		Username: "alice",
		Items: []OrderItem{
			{SKU: "A1", Name: "Widget", Quantity: 5, Price: decimal.RequireFromString("9")},
		},
	}

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"order_number":"O-1",
		"created_at":"2024-01-01T10:00:00Z",
		"total_amount":"45.00",
		"status":"paid",
		"user":"alice",
		"items":[{"sku":"A1","name":"Widget","quantity":5,"price":"9.00","total_price":"45.00"}]
	}`, string(b))
}

func TestOrderDetailsWithoutItems(t *testing.T) {
	b, err := json.Marshal(OrderDetails{Order: Order{Number: "O-2"}, Username: "bob"})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, []any{}, out["items"])
}
