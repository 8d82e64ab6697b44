package service

import (
	"github.com/google/uuid"

	"orderstats/internal/model"
)

// Plan is the set of writes that applies one batch.
type Plan struct {
	Create []model.Order
	Update []model.Order
	// Items replaces the full item list of every order in the batch.
	Items []model.OrderItem
	// StaleItemOwners are the ids of updated orders whose current items must be deleted
	// before Items are inserted. Created orders cannot own items yet.
	StaleItemOwners []string
}

// Reconcile classifies every batch order as a create or an update against
// existing (keyed by order number), in batch order. Updated orders take the
// batch values and are reassigned to user. New orders and all items get fresh
// ids so items are bound to their parent before anything is written.
func Reconcile(batch Batch, user model.User, existing map[string]model.Order) Plan {
	var plan Plan

	for _, bo := range batch.Orders {
		var order model.Order
		if current, ok := existing[bo.Number]; ok {
			order = current
			order.UserID = user.ID
			order.CreatedAt = bo.CreatedAt
			order.TotalAmount = bo.TotalAmount
			order.Status = bo.Status
			plan.Update = append(plan.Update, order)
			plan.StaleItemOwners = append(plan.StaleItemOwners, order.ID)
		} else {
			order = model.Order{
				ID:          uuid.NewString(),
				UserID:      user.ID,
				Number:      bo.Number,
				CreatedAt:   bo.CreatedAt,
				TotalAmount: bo.TotalAmount,
				Status:      bo.Status,
			}
			plan.Create = append(plan.Create, order)
		}

		for _, it := range bo.Items {
			plan.Items = append(plan.Items, model.OrderItem{
				ID:       uuid.NewString(),
				OrderID:  order.ID,
				SKU:      it.SKU,
				Name:     it.Name,
				Quantity: it.Quantity,
				Price:    it.Price,
			})
		}
	}

	return plan
}
