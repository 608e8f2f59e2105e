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
	"log/slog"
	"testing"

	"github.com/sablerun/sable/internal/store"
	"github.com/sablerun/sable/pkg/errors"
)

// fakeTx is an in-memory store.Tx holding a single order.
type fakeTx struct {
	order *store.Order
}

func (f *fakeTx) GetOrder(id string) (*store.Order, error) {
	if f.order == nil || f.order.ID != id {
		return nil, &errors.NotFoundError{Resource: "order", ID: id}
	}
	o := *f.order
	return &o, nil
}

func (f *fakeTx) UpdateOrderStatus(id string, status store.OrderStatus) error {
	if f.order == nil || f.order.ID != id {
		return &errors.NotFoundError{Resource: "order", ID: id}
	}
	f.order.Status = status
	return nil
}

func orderTx(status store.OrderStatus, amount float64) *fakeTx {
	return &fakeTx{order: &store.Order{ID: "order-1", Status: status, Amount: amount}}
}

func TestOrderLifecycleActions(t *testing.T) {
	tests := []struct {
		name    string
		action  store.ActionFunc
		from    store.OrderStatus
		amount  float64
		want    store.OrderStatus
		wantErr bool
	}{
		{name: "validate pending", action: ValidateOrder, from: store.OrderStatusPending, amount: 10, want: store.OrderStatusValidated},
		{name: "validate rejects non-pending", action: ValidateOrder, from: store.OrderStatusCharged, amount: 10, wantErr: true},
		{name: "validate rejects zero amount", action: ValidateOrder, from: store.OrderStatusPending, amount: 0, wantErr: true},
		{name: "charge validated", action: ChargePayment, from: store.OrderStatusValidated, amount: 10, want: store.OrderStatusCharged},
		{name: "charge rejects pending", action: ChargePayment, from: store.OrderStatusPending, amount: 10, wantErr: true},
		{name: "charge rejects shipped", action: ChargePayment, from: store.OrderStatusShipped, amount: 10, wantErr: true},
		{name: "ship charged", action: ShipOrder, from: store.OrderStatusCharged, amount: 10, want: store.OrderStatusShipped},
		{name: "ship rejects validated", action: ShipOrder, from: store.OrderStatusValidated, amount: 10, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := orderTx(tt.from, tt.amount)
			err := tt.action(tx, "order-1")
			if tt.wantErr {
				if err == nil {
					t.Fatalf("action succeeded from %q, want error", tt.from)
				}
				if tx.order.Status != tt.from {
					t.Errorf("failed action mutated order: %q -> %q", tt.from, tx.order.Status)
				}
				return
			}
			if err != nil {
				t.Fatalf("action error = %v", err)
			}
			if tx.order.Status != tt.want {
				t.Errorf("order status = %q, want %q", tx.order.Status, tt.want)
			}
		})
	}
}

func TestActionsRequireExistingOrder(t *testing.T) {
	tx := &fakeTx{}
	for _, action := range []store.ActionFunc{ValidateOrder, ChargePayment, ShipOrder} {
		if err := action(tx, "missing"); err == nil {
			t.Error("action succeeded against missing order")
		}
	}
}

func TestSendNotificationLeavesStatusUntouched(t *testing.T) {
	tx := orderTx(store.OrderStatusShipped, 10)
	reg := DefaultRegistry(slog.Default())

	notify, ok := reg.Lookup("send_notification")
	if !ok {
		t.Fatal("send_notification not registered")
	}
	if err := notify(tx, "order-1"); err != nil {
		t.Fatalf("send_notification error = %v", err)
	}
	if tx.order.Status != store.OrderStatusShipped {
		t.Errorf("send_notification changed status to %q", tx.order.Status)
	}

	if err := notify(&fakeTx{}, "missing"); err == nil {
		t.Error("send_notification succeeded against missing order")
	}
}

func TestDefaultRegistryContents(t *testing.T) {
	reg := DefaultRegistry(slog.Default())
	for _, name := range []string{"validate_order", "charge_payment", "ship_order", "send_notification"} {
		if _, ok := reg.Lookup(name); !ok {
			t.Errorf("Lookup(%q) = false, want registered", name)
		}
	}
	if _, ok := reg.Lookup("refund_order"); ok {
		t.Error("Lookup returned an unregistered action")
	}
}
