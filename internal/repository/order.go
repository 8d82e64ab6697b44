package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"orderstats/internal/model"
)

type OrderRepo interface {
	// FindByOrderNumbers returns the existing orders keyed by order number.
	FindByOrderNumbers(ctx context.Context, tx *sql.Tx, numbers []string) (map[string]model.Order, error)
	CreateOrders(ctx context.Context, tx *sql.Tx, orders []model.Order) error
	// UpdateOrders overwrites owner, created_at, total_amount and status by id.
	UpdateOrders(ctx context.Context, tx *sql.Tx, orders []model.Order) error
	DeleteItemsForOrders(ctx context.Context, tx *sql.Tx, orderIDs []string) (int64, error)
	CreateItems(ctx context.Context, tx *sql.Tx, items []model.OrderItem) error
	GetDetails(ctx context.Context, tx *sql.Tx, number string) (model.OrderDetails, error)
}

type orderRepo struct {
	db  *sql.DB
	log *zap.Logger
}

func NewOrderRepo(db *sql.DB, baseLog *zap.Logger) OrderRepo {
	return &orderRepo{db: db, log: baseLog.Named("order_repo")}
}

func (r *orderRepo) FindByOrderNumbers(ctx context.Context, tx *sql.Tx, numbers []string) (map[string]model.Order, error) {
	result := make(map[string]model.Order, len(numbers))
	if len(numbers) == 0 {
		return result, nil
	}
	q := conn(r.db, tx)

	for _, c := range chunks(len(numbers)) {
		part := numbers[c[0]:c[1]]
		rows, err := q.QueryContext(ctx, `
			SELECT id, user_id, order_number, created_at, total_amount, status
			FROM orders
			WHERE order_number IN (`+inList(len(part))+`)`,
			stringArgs(part)...,
		)
		if err != nil {
			return nil, fmt.Errorf("query orders by number: %w", err)
		}

		for rows.Next() {
			var o model.Order
			if err := rows.Scan(&o.ID, &o.UserID, &o.Number, &o.CreatedAt, &o.TotalAmount, &o.Status); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan order: %w", err)
			}
			result[o.Number] = o
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("rows iteration failed: %w", err)
		}
		rows.Close()
	}

	return result, nil
}

func (r *orderRepo) CreateOrders(ctx context.Context, tx *sql.Tx, orders []model.Order) error {
	q := conn(r.db, tx)
	for _, c := range chunks(len(orders)) {
		part := orders[c[0]:c[1]]
		args := make([]any, 0, len(part)*6)
		for _, o := range part {
			args = append(args, o.ID, o.UserID, o.Number, o.CreatedAt, o.TotalAmount, o.Status)
		}
		_, err := q.ExecContext(ctx,
			`INSERT INTO orders (id, user_id, order_number, created_at, total_amount, status) VALUES `+valuesList(len(part), 6),
			args...,
		)
		if err != nil {
			return fmt.Errorf("insert orders: %w", err)
		}
	}
	r.log.Debug("orders inserted", zap.Int("count", len(orders)))
	return nil
}

func (r *orderRepo) UpdateOrders(ctx context.Context, tx *sql.Tx, orders []model.Order) error {
	q := conn(r.db, tx)
	for _, c := range chunks(len(orders)) {
		part := orders[c[0]:c[1]]
		args := make([]any, 0, len(part)*5)
		for _, o := range part {
			args = append(args, o.ID, o.UserID, o.CreatedAt, o.TotalAmount, o.Status)
		}
		res, err := q.ExecContext(ctx, `
			UPDATE orders AS o
			SET user_id = v.user_id,
			    created_at = v.created_at,
			    total_amount = v.total_amount,
			    status = v.status
			FROM (VALUES `+valuesList(len(part), 5, "uuid", "uuid", "timestamptz", "numeric", "varchar")+`)
			     AS v(id, user_id, created_at, total_amount, status)
			WHERE o.id = v.id`,
			args...,
		)
		if err != nil {
			return fmt.Errorf("update orders: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n != int64(len(part)) {
			return fmt.Errorf("update orders: %d of %d rows matched", n, len(part))
		}
	}
	r.log.Debug("orders updated", zap.Int("count", len(orders)))
	return nil
}

func (r *orderRepo) DeleteItemsForOrders(ctx context.Context, tx *sql.Tx, orderIDs []string) (int64, error) {
	q := conn(r.db, tx)
	var deleted int64
	for _, c := range chunks(len(orderIDs)) {
		part := orderIDs[c[0]:c[1]]
		res, err := q.ExecContext(ctx,
			`DELETE FROM order_items WHERE order_id IN (`+inList(len(part))+`)`,
			stringArgs(part)...,
		)
		if err != nil {
			return deleted, fmt.Errorf("delete order items: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return deleted, fmt.Errorf("delete order items: %w", err)
		}
		deleted += n
	}
	return deleted, nil
}

func (r *orderRepo) CreateItems(ctx context.Context, tx *sql.Tx, items []model.OrderItem) error {
	q := conn(r.db, tx)
	for _, c := range chunks(len(items)) {
		part := items[c[0]:c[1]]
		args := make([]any, 0, len(part)*6)
		for _, it := range part {
			args = append(args, it.ID, it.OrderID, it.SKU, it.Name, it.Quantity, it.Price)
		}
		_, err := q.ExecContext(ctx,
			`INSERT INTO order_items (id, order_id, sku, name, quantity, price) VALUES `+valuesList(len(part), 6),
			args...,
		)
		if err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}
	}
	r.log.Debug("order items inserted", zap.Int("count", len(items)))
	return nil
}

func (r *orderRepo) GetDetails(ctx context.Context, tx *sql.Tx, number string) (model.OrderDetails, error) {
	q := conn(r.db, tx)

	var d model.OrderDetails
	err := q.QueryRowContext(ctx, `
		SELECT o.id, o.user_id, o.order_number, o.created_at, o.total_amount, o.status, u.username
		FROM orders o
		JOIN users u ON u.id = o.user_id
		WHERE o.order_number = $1`, number,
	).Scan(&d.ID, &d.UserID, &d.Number, &d.CreatedAt, &d.TotalAmount, &d.Status, &d.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.OrderDetails{}, ErrNotFound
		}
		return model.OrderDetails{}, fmt.Errorf("get order: %w", err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, sku, name, quantity, price
		FROM order_items
		WHERE order_id = $1
		ORDER BY name, sku`, d.ID,
	)
	if err != nil {
		return model.OrderDetails{}, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	d.Items = []model.OrderItem{}
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.SKU, &it.Name, &it.Quantity, &it.Price); err != nil {
			return model.OrderDetails{}, fmt.Errorf("scan order item: %w", err)
		}
		d.Items = append(d.Items, it)
	}
	if err = rows.Err(); err != nil {
		return model.OrderDetails{}, fmt.Errorf("rows iteration failed: %w", err)
	}

	return d, nil
}
