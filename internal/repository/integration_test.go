package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"orderstats/internal/model"
)

func uniqueName(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

func TestUserRepoGetOrCreate(t *testing.T) {
	db := openTestDB(t)
	tx := testTx(t, db)
	repo := NewUserRepo(db, zaptest.NewLogger(t))
	ctx := context.Background()
	name := uniqueName("alice")

	first, created, err := repo.GetOrCreate(ctx, tx, name)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, first.ID)

	second, created, err := repo.GetOrCreate(ctx, tx, name)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	got, err := repo.GetByUsername(ctx, tx, name)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	_, err = repo.GetByUsername(ctx, tx, uniqueName("nobody"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOrderRepoRoundTrip(t *testing.T) {
	db := openTestDB(t)
	tx := testTx(t, db)
	log := zaptest.NewLogger(t)
	users := NewUserRepo(db, log)
	orders := NewOrderRepo(db, log)
	ctx := context.Background()

	alice, _, err := users.GetOrCreate(ctx, tx, uniqueName("alice"))
	require.NoError(t, err)
	bob, _, err := users.GetOrCreate(ctx, tx, uniqueName("bob"))
	require.NoError(t, err)

	number := uniqueName("O")
	order := model.Order{
		ID:          uuid.NewString(),
		UserID:      alice.ID,
		Number:      number,
		CreatedAt:   time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		TotalAmount: decimal.RequireFromString("100.10"),
		Status:      "paid",
	}
	require.NoError(t, orders.CreateOrders(ctx, tx, []model.Order{order}))
	require.NoError(t, orders.CreateItems(ctx, tx, []model.OrderItem{
		{ID: uuid.NewString(), OrderID: order.ID, SKU: "A1", Name: "Widget", Quantity: 2, Price: decimal.RequireFromString("10.05")},
		{ID: uuid.NewString(), OrderID: order.ID, SKU: "B2", Name: "Bolt", Quantity: 0, Price: decimal.RequireFromString("0.01")},
	}))

	found, err := orders.FindByOrderNumbers(ctx, tx, []string{number, uniqueName("missing")})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "100.10", found[number].TotalAmount.StringFixed(2))
	assert.True(t, found[number].TotalAmount.Equal(decimal.RequireFromString("100.1")))

	order.UserID = bob.ID
	order.Status = "shipped"
	order.TotalAmount = decimal.RequireFromString("45.00")
	require.NoError(t, orders.UpdateOrders(ctx, tx, []model.Order{order}))

	deleted, err := orders.DeleteItemsForOrders(ctx, tx, []string{order.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	require.NoError(t, orders.CreateItems(ctx, tx, []model.OrderItem{
		{ID: uuid.NewString(), OrderID: order.ID, SKU: "A1", Name: "Widget", Quantity: 5, Price: decimal.RequireFromString("9.00")},
	}))

	details, err := orders.GetDetails(ctx, tx, number)
	require.NoError(t, err)
	assert.Equal(t, bob.Username, details.Username)
	assert.Equal(t, "shipped", details.Status)
	assert.Equal(t, "45.00", details.TotalAmount.StringFixed(2))
	require.Len(t, details.Items, 1)
	assert.Equal(t, 5, details.Items[0].Quantity)
	assert.Equal(t, "9.00", details.Items[0].Price.StringFixed(2))

	_, err = orders.GetDetails(ctx, tx, uniqueName("missing"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOrderRepoDuplicateNumberFails(t *testing.T) {
	db := openTestDB(t)
	tx := testTx(t, db)
	log := zaptest.NewLogger(t)
	ctx := context.Background()

	user, _, err := NewUserRepo(db, log).GetOrCreate(ctx, tx, uniqueName("carol"))
	require.NoError(t, err)

	orders := NewOrderRepo(db, log)
	o := model.Order{ID: uuid.NewString(), UserID: user.ID, Number: uniqueName("O"), CreatedAt: time.Now(), TotalAmount: decimal.Zero, Status: "new"}
	require.NoError(t, orders.CreateOrders(ctx, tx, []model.Order{o}))

	o.ID = uuid.NewString()
	assert.Error(t, orders.CreateOrders(ctx, tx, []model.Order{o}))
}

func TestStatsRepoDailyIsWriteOnce(t *testing.T) {
	db := openTestDB(t)
	tx := testTx(t, db)
	repo := NewStatsRepo(db, zaptest.NewLogger(t))
	ctx := context.Background()

	date := time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)

	exists, err := repo.DailyExists(ctx, tx, date)
	require.NoError(t, err)
	require.False(t, exists)

	stored, err := repo.InsertDaily(ctx, tx, model.DailyOrderStats{
		Date:          date,
		TotalUsers:    1,
		TotalOrders:   2,
		TotalRevenue:  decimal.RequireFromString("30.00"),
		AvgOrderValue: decimal.RequireFromString("15.00"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.False(t, stored.CreatedAt.IsZero())

	_, err = repo.InsertDaily(ctx, tx, model.DailyOrderStats{Date: date})
	assert.True(t, errors.Is(err, ErrDailyStatsExists))

	exists, err = repo.DailyExists(ctx, tx, date)
	require.NoError(t, err)
	assert.True(t, exists)

	list, err := repo.ListDaily(ctx, tx, 30)
	require.NoError(t, err)
	require.NotEmpty(t, list)
	for i := 1; i < len(list); i++ {
		assert.True(t, list[i-1].Date.After(list[i].Date))
	}
}

func TestStatsRepoAggregates(t *testing.T) {
	db := openTestDB(t)
	tx := testTx(t, db)
	log := zaptest.NewLogger(t)
	ctx := context.Background()

	users := NewUserRepo(db, log)
	orders := NewOrderRepo(db, log)
	stats := NewStatsRepo(db, log)

	alice, _, err := users.GetOrCreate(ctx, tx, uniqueName("alice"))
	require.NoError(t, err)
	bob, _, err := users.GetOrCreate(ctx, tx, uniqueName("bob"))
	require.NoError(t, err)

	empty, err := stats.UserTotals(ctx, tx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, empty.OrdersCount)
	assert.True(t, empty.TotalRevenue.IsZero())
	assert.True(t, empty.AvgOrderValue.IsZero())

	day := time.Date(1998, 6, 15, 0, 0, 0, 0, time.UTC)
	mk := func(user model.User, at time.Time, amount string) model.Order {
		return model.Order{ID: uuid.NewString(), UserID: user.ID, Number: uniqueName("O"), CreatedAt: at, TotalAmount: decimal.RequireFromString(amount), Status: "paid"}
	}
	require.NoError(t, orders.CreateOrders(ctx, tx, []model.Order{
		mk(alice, day.Add(time.Hour), "10.00"),
		mk(alice, day.Add(23*time.Hour+59*time.Minute), "20.00"),
		mk(bob, day, "0.01"),
		mk(bob, day.Add(24*time.Hour), "999.00"),
		mk(bob, day.Add(-time.Microsecond), "999.00"),
	}))

	totals, err := stats.UserTotals(ctx, tx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), totals.OrdersCount)
	assert.Equal(t, "30.00", totals.TotalRevenue.StringFixed(2))
	assert.Equal(t, "15.00", totals.AvgOrderValue.StringFixed(2))

	window, err := stats.AggregateWindow(ctx, tx, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(3), window.TotalOrders)
	assert.Equal(t, int64(2), window.TotalUsers)
	assert.Equal(t, "30.01", window.TotalRevenue.StringFixed(2))
	assert.Equal(t, "10.00", window.AvgOrderValue.StringFixed(2))
}

func TestTxRunnerRollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	runner := NewTxRunner(db)
	users := NewUserRepo(db, zaptest.NewLogger(t))
	ctx := context.Background()
	name := uniqueName("ghost")
	boom := errors.New("boom")

	err := runner.InTx(ctx, func(tx *sql.Tx) error {
		if _, _, err := users.GetOrCreate(ctx, tx, name); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = users.GetByUsername(ctx, nil, name)
	assert.ErrorIs(t, err, ErrNotFound)
}
