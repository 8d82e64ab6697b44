package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"orderstats/internal/model"
	"orderstats/internal/repository"
)

// memStore is an in-memory implementation of the user, order and stats repos.
type memStore struct {
	users  map[string]model.User
	orders map[string]model.Order
	items  map[string]model.OrderItem
	daily  map[string]model.DailyOrderStats

	failOn string
	now    func() time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users:  map[string]model.User{},
		orders: map[string]model.Order{},
		items:  map[string]model.OrderItem{},
		daily:  map[string]model.DailyOrderStats{},
		now:    time.Now,
	}
}

var errInjected = errors.New("injected failure")

func (m *memStore) fail(op string) error {
	if m.failOn == op {
		return errInjected
	}
	return nil
}

type memSnapshot struct {
	users  map[string]model.User
	orders map[string]model.Order
	items  map[string]model.OrderItem
}

func (m *memStore) snapshot() memSnapshot {
	s := memSnapshot{
		users:  make(map[string]model.User, len(m.users)),
		orders: make(map[string]model.Order, len(m.orders)),
		items:  make(map[string]model.OrderItem, len(m.items)),
	}
	for k, v := range m.users {
		s.users[k] = v
	}
	for k, v := range m.orders {
		s.orders[k] = v
	}
	for k, v := range m.items {
		s.items[k] = v
	}
	return s
}

func (m *memStore) restore(s memSnapshot) {
	m.users, m.orders, m.items = s.users, s.orders, s.items
}

// InTx runs fn against the store and restores the previous state when fn fails.
func (m *memStore) InTx(_ context.Context, fn func(tx *sql.Tx) error) error {
	snap := m.snapshot()
	if err := fn(nil); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memStore) GetOrCreate(_ context.Context, _ *sql.Tx, username string) (model.User, bool, error) {
	if err := m.fail("GetOrCreate"); err != nil {
		return model.User{}, false, err
	}
	if u, ok := m.users[username]; ok {
		return u, false, nil
	}
	u := model.User{ID: uuid.NewString(), Username: username}
	m.users[username] = u
	return u, true, nil
}

func (m *memStore) GetByUsername(_ context.Context, _ *sql.Tx, username string) (model.User, error) {
	if u, ok := m.users[username]; ok {
		return u, nil
	}
	return model.User{}, repository.ErrNotFound
}

func (m *memStore) FindByOrderNumbers(_ context.Context, _ *sql.Tx, numbers []string) (map[string]model.Order, error) {
	if err := m.fail("FindByOrderNumbers"); err != nil {
		return nil, err
	}
	found := make(map[string]model.Order)
	for _, n := range numbers {
		if o, ok := m.orders[n]; ok {
			found[n] = o
		}
	}
	return found, nil
}

func (m *memStore) CreateOrders(_ context.Context, _ *sql.Tx, orders []model.Order) error {
	if err := m.fail("CreateOrders"); err != nil {
		return err
	}
	for _, o := range orders {
		if _, ok := m.orders[o.Number]; ok {
			return errors.New("duplicate order number")
		}
		m.orders[o.Number] = o
	}
	return nil
}

func (m *memStore) UpdateOrders(_ context.Context, _ *sql.Tx, orders []model.Order) error {
	if err := m.fail("UpdateOrders"); err != nil {
		return err
	}
	for _, o := range orders {
		if _, ok := m.orders[o.Number]; !ok {
			return repository.ErrNotFound
		}
		m.orders[o.Number] = o
	}
	return nil
}

func (m *memStore) DeleteItemsForOrders(_ context.Context, _ *sql.Tx, orderIDs []string) (int64, error) {
	if err := m.fail("DeleteItemsForOrders"); err != nil {
		return 0, err
	}
	owners := make(map[string]struct{}, len(orderIDs))
	for _, id := range orderIDs {
		owners[id] = struct{}{}
	}
	var n int64
	for id, it := range m.items {
		if _, ok := owners[it.OrderID]; ok {
			delete(m.items, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) CreateItems(_ context.Context, _ *sql.Tx, items []model.OrderItem) error {
	if err := m.fail("CreateItems"); err != nil {
		return err
	}
	for _, it := range items {
		m.items[it.ID] = it
	}
	return nil
}

func (m *memStore) GetDetails(_ context.Context, _ *sql.Tx, number string) (model.OrderDetails, error) {
	o, ok := m.orders[number]
	if !ok {
		return model.OrderDetails{}, repository.ErrNotFound
	}
	details := model.OrderDetails{Order: o, Items: m.itemsOf(o.ID)}
	for _, u := range m.users {
		if u.ID == o.UserID {
			details.Username = u.Username
		}
	}
	return details, nil
}

func (m *memStore) itemsOf(orderID string) []model.OrderItem {
	var items []model.OrderItem
	for _, it := range m.items {
		if it.OrderID == orderID {
			items = append(items, it)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].SKU < items[j].SKU
	})
	return items
}

func (m *memStore) UserTotals(_ context.Context, _ *sql.Tx, userID string) (model.UserStats, error) {
	var stats model.UserStats
	for _, o := range m.orders {
		if o.UserID == userID {
			stats.OrdersCount++
			stats.TotalRevenue = stats.TotalRevenue.Add(o.TotalAmount)
		}
	}
	if stats.OrdersCount > 0 {
		stats.AvgOrderValue = stats.TotalRevenue.Div(decimal.NewFromInt(stats.OrdersCount)).Round(model.MoneyScale)
	}
	return stats, nil
}

func (m *memStore) DailyExists(_ context.Context, _ *sql.Tx, date time.Time) (bool, error) {
	_, ok := m.daily[date.Format(time.DateOnly)]
	return ok, nil
}

func (m *memStore) AggregateWindow(_ context.Context, _ *sql.Tx, from, to time.Time) (model.DailyOrderStats, error) {
	if err := m.fail("AggregateWindow"); err != nil {
		return model.DailyOrderStats{}, err
	}
	var stats model.DailyOrderStats
	users := map[string]struct{}{}
	for _, o := range m.orders {
		if o.CreatedAt.Before(from) || !o.CreatedAt.Before(to) {
			continue
		}
		stats.TotalOrders++
		stats.TotalRevenue = stats.TotalRevenue.Add(o.TotalAmount)
		users[o.UserID] = struct{}{}
	}
	stats.TotalUsers = int64(len(users))
	if stats.TotalOrders > 0 {
		stats.AvgOrderValue = stats.TotalRevenue.Div(decimal.NewFromInt(stats.TotalOrders)).Round(model.MoneyScale)
	}
	return stats, nil
}

func (m *memStore) InsertDaily(_ context.Context, _ *sql.Tx, stats model.DailyOrderStats) (model.DailyOrderStats, error) {
	key := stats.Date.Format(time.DateOnly)
	if _, ok := m.daily[key]; ok {
		return model.DailyOrderStats{}, repository.ErrDailyStatsExists
	}
	stats.ID = uuid.NewString()
	stats.CreatedAt = m.now()
	m.daily[key] = stats
	return stats, nil
}

func (m *memStore) ListDaily(_ context.Context, _ *sql.Tx, limit int) ([]model.DailyOrderStats, error) {
	list := make([]model.DailyOrderStats, 0, len(m.daily))
	for _, s := range m.daily {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Date.After(list[j].Date) })
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// racingStats reports no snapshot on the fast path but loses the insert race.
type racingStats struct {
	*memStore
}

func (r racingStats) DailyExists(context.Context, *sql.Tx, time.Time) (bool, error) {
	return false, nil
}

func (r racingStats) InsertDaily(context.Context, *sql.Tx, model.DailyOrderStats) (model.DailyOrderStats, error) {
	return model.DailyOrderStats{}, repository.ErrDailyStatsExists
}
