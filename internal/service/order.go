package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"orderstats/internal/logger"
	"orderstats/internal/metrics"
	"orderstats/internal/model"
	"orderstats/internal/repository"
)

type UploadResult struct {
	Username      string `json:"-"`
	UserCreated   bool   `json:"-"`
	CreatedOrders int    `json:"created_orders"`
	UpdatedOrders int    `json:"updated_orders"`
	CreatedItems  int    `json:"created_items"`
	DeletedItems  int64  `json:"-"`
}

type OrderService struct {
	tx     repository.TxRunner
	users  repository.UserRepo
	orders repository.OrderRepo
	loc    *time.Location
	log    *zap.Logger
}

func NewOrderService(tx repository.TxRunner, users repository.UserRepo, orders repository.OrderRepo, loc *time.Location, log *zap.Logger) *OrderService {
	if loc == nil {
		loc = time.UTC
	}
	return &OrderService{
		tx:     tx,
		users:  users,
		orders: orders,
		loc:    loc,
		log:    log.Named("orders"),
	}
}

// Upload validates req and applies it in one transaction: get-or-create the
// user, delete the items of orders being updated, insert new orders, update
// existing ones, insert every submitted item. Nothing is written when any
// step fails.
func (s *OrderService) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	log := logger.FromContext(ctx, s.log)

	batch, err := ValidateBatch(req, s.loc)
	if err != nil {
		metrics.UploadBatches.WithLabelValues("invalid").Inc()
		var verr *ValidationError
		if errors.As(err, &verr) {
			log.Warn("upload rejected", zap.Any("errors", verr.Fields))
		}
		return UploadResult{}, err
	}

	log.Info("processing orders", zap.String("user", batch.Username), zap.Int("orders", len(batch.Orders)))

	var result UploadResult
	err = s.tx.InTx(ctx, func(tx *sql.Tx) error {
		user, created, err := s.users.GetOrCreate(ctx, tx, batch.Username)
		if err != nil {
			return &PersistenceError{Op: "get or create user", Err: err}
		}
		if created {
			log.Info("user created", zap.String("user", user.Username))
		}

		existing, err := s.orders.FindByOrderNumbers(ctx, tx, batch.OrderNumbers())
		if err != nil {
			return &PersistenceError{Op: "find existing orders", Err: err}
		}
		log.Debug("existing orders found", zap.Int("count", len(existing)))

		plan := Reconcile(batch, user, existing)
		for _, o := range plan.Create {
			log.Debug("order planned", zap.String("order_number", o.Number), zap.String("action", "create"))
		}
		for _, o := range plan.Update {
			log.Debug("order planned", zap.String("order_number", o.Number), zap.String("action", "update"))
			if prev := existing[o.Number]; prev.UserID != o.UserID {
				log.Info("order reassigned", zap.String("order_number", o.Number), zap.String("user", user.Username))
			}
		}

		var deleted int64
		if len(plan.StaleItemOwners) > 0 {
			if deleted, err = s.orders.DeleteItemsForOrders(ctx, tx, plan.StaleItemOwners); err != nil {
				return &PersistenceError{Op: "delete stale items", Err: err}
			}
		}
		if len(plan.Create) > 0 {
			if err := s.orders.CreateOrders(ctx, tx, plan.Create); err != nil {
				return &PersistenceError{Op: "create orders", Err: err}
			}
		}
		if len(plan.Update) > 0 {
			if err := s.orders.UpdateOrders(ctx, tx, plan.Update); err != nil {
				return &PersistenceError{Op: "update orders", Err: err}
			}
		}
		if len(plan.Items) > 0 {
			if err := s.orders.CreateItems(ctx, tx, plan.Items); err != nil {
				return &PersistenceError{Op: "create items", Err: err}
			}
		}

		result = UploadResult{
			Username:      user.Username,
			UserCreated:   created,
			CreatedOrders: len(plan.Create),
			UpdatedOrders: len(plan.Update),
			CreatedItems:  len(plan.Items),
			DeletedItems:  deleted,
		}
		return nil
	})
	if err != nil {
		var perr *PersistenceError
		if !errors.As(err, &perr) {
			err = &PersistenceError{Op: "transaction", Err: err}
		}
		metrics.UploadBatches.WithLabelValues("failed").Inc()
		log.Error("failed to persist orders", zap.String("user", batch.Username), zap.Error(err))
		return UploadResult{}, err
	}

	metrics.UploadBatches.WithLabelValues("ok").Inc()
	metrics.OrdersUpserted.WithLabelValues("created").Add(float64(result.CreatedOrders))
	metrics.OrdersUpserted.WithLabelValues("updated").Add(float64(result.UpdatedOrders))
	metrics.ItemsCreated.Add(float64(result.CreatedItems))

	log.Info("orders processed",
		zap.String("user", result.Username),
		zap.Int("created_orders", result.CreatedOrders),
		zap.Int("updated_orders", result.UpdatedOrders),
		zap.Int("created_items", result.CreatedItems),
		zap.Int64("deleted_items", result.DeletedItems),
	)
	return result, nil
}

// GetOrder returns the order with its owner and current items.
func (s *OrderService) GetOrder(ctx context.Context, number string) (model.OrderDetails, error) {
	details, err := s.orders.GetDetails(ctx, nil, number)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.OrderDetails{}, ErrOrderNotFound
		}
		return model.OrderDetails{}, fmt.Errorf("get order %q: %w", number, err)
	}
	return details, nil
}
