// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine

import (
	"fmt"
	"log/slog"

	"github.com/sablerun/sable/internal/store"
)

// Registry maps action names to business-logic functions invoked inside a
// step's atomic completion transaction. Actions are compiled in; they run
// inside the durability commit, so dynamic dispatch is deliberately not
// supported.
type Registry struct {
	actions map[string]store.ActionFunc
}

// NewRegistry creates an empty action registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]store.ActionFunc)}
}

// Register adds an action under the given name, replacing any existing one.
func (r *Registry) Register(name string, fn store.ActionFunc) {
	r.actions[name] = fn
}

// Lookup returns the action registered under name.
func (r *Registry) Lookup(name string) (store.ActionFunc, bool) {
	fn, ok := r.actions[name]
	return fn, ok
}

// DefaultRegistry returns a registry with the demo order-lifecycle actions:
// validate_order, charge_payment, ship_order, and send_notification.
func DefaultRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry()
	r.Register("validate_order", ValidateOrder)
	r.Register("charge_payment", ChargePayment)
	r.Register("ship_order", ShipOrder)
	r.Register("send_notification", func(tx store.Tx, orderID string) error {
		return sendNotification(tx, orderID, logger)
	})
	return r
}

// ValidateOrder transitions an order from pending to validated.
// Preconditions: the order exists and its amount is positive.
func ValidateOrder(tx store.Tx, orderID string) error {
	o, err := tx.GetOrder(orderID)
	if err != nil {
		return err
	}
	if o.Status != store.OrderStatusPending {
		return fmt.Errorf("cannot validate order in %q status (expected %q)", o.Status, store.OrderStatusPending)
	}
	if o.Amount <= 0 {
		return fmt.Errorf("order amount must be > 0, got %g", o.Amount)
	}
	return tx.UpdateOrderStatus(orderID, store.OrderStatusValidated)
}

// ChargePayment transitions an order from validated to charged.
func ChargePayment(tx store.Tx, orderID string) error {
	o, err := tx.GetOrder(orderID)
	if err != nil {
		return err
	}
	if o.Status != store.OrderStatusValidated {
		return fmt.Errorf("cannot charge order in %q status (expected %q)", o.Status, store.OrderStatusValidated)
	}
	return tx.UpdateOrderStatus(orderID, store.OrderStatusCharged)
}

// ShipOrder transitions an order from charged to shipped, the terminal
// state of the demo lifecycle.
func ShipOrder(tx store.Tx, orderID string) error {
	o, err := tx.GetOrder(orderID)
	if err != nil {
		return err
	}
	if o.Status != store.OrderStatusCharged {
		return fmt.Errorf("cannot ship order in %q status (expected %q)", o.Status, store.OrderStatusCharged)
	}
	return tx.UpdateOrderStatus(orderID, store.OrderStatusShipped)
}

// sendNotification logs a notification without transitioning the order.
// The order must still exist; a missing object aborts the transaction.
func sendNotification(tx store.Tx, orderID string, logger *slog.Logger) error {
	if _, err := tx.GetOrder(orderID); err != nil {
		return err
	}
	if logger != nil {
		logger.Info("notification sent", slog.String("order_id", orderID))
	}
	return nil
}
