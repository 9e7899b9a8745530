package order

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderledger/backend/internal/domain/shared"
)

// Test helpers

func testItem(name string, quantity, price float64) OrderItem {
	return OrderItem{
		ProductID:   uuid.New(),
		ProductName: name,
		Quantity:    decimal.NewFromFloat(quantity),
		UnitPrice:   decimal.NewFromFloat(price),
	}
}

func createTestOrder(t *testing.T) *Order {
	t.Helper()
	o, err := NewOrder(uuid.New(), "Test Customer", []OrderItem{testItem("Widget", 2, 10.00)})
	require.NoError(t, err)
	return o
}

func recorded(t *testing.T, o *Order) []RecordedEvent {
	t.Helper()
	events := o.UncommittedEvents()
	records := make([]RecordedEvent, len(events))
	for i, e := range events {
		records[i] = RecordedEvent{AggregateID: o.ID, Sequence: int64(i) + 1, Event: e}
	}
	return records
}

// ============================================
// NewOrder Tests
// ============================================

func TestNewOrder(t *testing.T) {
	t.Run("creates order with valid inputs", func(t *testing.T) {
		customerID := uuid.New()
		o, err := NewOrder(customerID, "C1", []OrderItem{testItem("P1", 2, 10.00)})
		require.NoError(t, err)
		require.NotNil(t, o)

		assert.NotEqual(t, uuid.Nil, o.ID)
		assert.Equal(t, customerID, o.CustomerID)
		assert.Equal(t, "C1", o.CustomerName)
		assert.Equal(t, OrderStatusCreated, o.Status)
		assert.Len(t, o.Items, 1)
		assert.True(t, o.TotalAmount.Equal(decimal.NewFromFloat(20.00)))
		assert.Equal(t, int64(1), o.Version)
		assert.Equal(t, int64(0), o.CommittedVersion())
	})

	t.Run("raises OrderCreated as first event", func(t *testing.T) {
		o := createTestOrder(t)
		events := o.UncommittedEvents()
		require.Len(t, events, 1)

		created, ok := events[0].(*OrderCreatedEvent)
		require.True(t, ok)
		assert.Equal(t, o.ID, created.AggregateID())
		assert.Equal(t, EventTypeOrderCreated, created.EventType())
		assert.True(t, created.TotalAmount.Equal(o.TotalAmount))
	})

	t.Run("rejects invalid inputs", func(t *testing.T) {
		customerID := uuid.New()
		tests := []struct {
			name         string
			customerID   uuid.UUID
			customerName string
			items        []OrderItem
		}{
			{"empty items", customerID, "C1", nil},
			{"nil customer", uuid.Nil, "C1", []OrderItem{testItem("P1", 1, 1)}},
			{"empty customer name", customerID, "", []OrderItem{testItem("P1", 1, 1)}},
			{"zero quantity", customerID, "C1", []OrderItem{testItem("P1", 0, 1)}},
			{"negative quantity", customerID, "C1", []OrderItem{testItem("P1", -2, 1)}},
			{"negative price", customerID, "C1", []OrderItem{testItem("P1", 1, -0.01)}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				o, err := NewOrder(tt.customerID, tt.customerName, tt.items)
				require.Error(t, err)
				assert.Nil(t, o)

				var domainErr *shared.DomainError
				require.ErrorAs(t, err, &domainErr)
				assert.Equal(t, shared.CodeValidation, domainErr.Code)
			})
		}
	})

	t.Run("total is the sum across items", func(t *testing.T) {
		o, err := NewOrder(uuid.New(), "C1", []OrderItem{
			testItem("P1", 2, 10.00),
			testItem("P2", 3, 2.50),
		})
		require.NoError(t, err)
		assert.True(t, o.TotalAmount.Equal(decimal.NewFromFloat(27.50)))
	})
}

// ============================================
// AddItem Tests
// ============================================

func TestOrder_AddItem(t *testing.T) {
	t.Run("adds item and recomputes total", func(t *testing.T) {
		o := createTestOrder(t)
		err := o.AddItem(testItem("Gadget", 1, 5.00))
		require.NoError(t, err)

		assert.Len(t, o.Items, 2)
		assert.True(t, o.TotalAmount.Equal(decimal.NewFromFloat(25.00)))
		assert.Equal(t, int64(2), o.Version)
		require.Len(t, o.UncommittedEvents(), 2)
		assert.Equal(t, EventTypeOrderItemAdded, o.UncommittedEvents()[1].EventType())
	})

	t.Run("fails after confirm", func(t *testing.T) {
		o := createTestOrder(t)
		require.NoError(t, o.Confirm())

		err := o.AddItem(testItem("Gadget", 1, 5.00))
		require.Error(t, err)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, shared.CodeInvariantViolation, domainErr.Code)
	})

	t.Run("fails after cancel", func(t *testing.T) {
		o := createTestOrder(t)
		require.NoError(t, o.Cancel("customer changed mind"))

		err := o.AddItem(testItem("Gadget", 1, 5.00))
		assert.ErrorIs(t, err, shared.NewInvariantViolation(""))
	})

	t.Run("rejects invalid item", func(t *testing.T) {
		o := createTestOrder(t)
		err := o.AddItem(testItem("Gadget", -1, 5.00))
		require.Error(t, err)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, shared.CodeValidation, domainErr.Code)
		assert.Len(t, o.UncommittedEvents(), 1)
	})
}

// ============================================
// Confirm / Cancel Tests
// ============================================

func TestOrder_Confirm(t *testing.T) {
	t.Run("confirms a created order", func(t *testing.T) {
		o := createTestOrder(t)
		require.NoError(t, o.Confirm())

		assert.Equal(t, OrderStatusConfirmed, o.Status)
		assert.True(t, o.IsConfirmed())
		assert.Equal(t, int64(2), o.Version)
		assert.Equal(t, EventTypeOrderConfirmed, o.UncommittedEvents()[1].EventType())
	})

	t.Run("confirm on confirmed order is a no-op", func(t *testing.T) {
		o := createTestOrder(t)
		require.NoError(t, o.Confirm())
		before := len(o.UncommittedEvents())

		require.NoError(t, o.Confirm())
		assert.Len(t, o.UncommittedEvents(), before)
		assert.Equal(t, int64(2), o.Version)
	})

	t.Run("fails on cancelled order", func(t *testing.T) {
		o := createTestOrder(t)
		require.NoError(t, o.Cancel("out of stock"))

		err := o.Confirm()
		require.Error(t, err)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, shared.CodeInvariantViolation, domainErr.Code)
	})
}

func TestOrder_Cancel(t *testing.T) {
	t.Run("cancels a created order", func(t *testing.T) {
		o := createTestOrder(t)
		require.NoError(t, o.Cancel("customer request"))

		assert.True(t, o.IsCancelled())
		assert.Equal(t, "customer request", o.CancelReason)

		cancelled, ok := o.UncommittedEvents()[1].(*OrderCancelledEvent)
		require.True(t, ok)
		assert.False(t, cancelled.WasConfirmed)
	})

	t.Run("cancel after confirm records prior confirmation", func(t *testing.T) {
		o := createTestOrder(t)
		require.NoError(t, o.Confirm())
		require.NoError(t, o.Cancel("payment failed"))

		cancelled, ok := o.UncommittedEvents()[2].(*OrderCancelledEvent)
		require.True(t, ok)
		assert.True(t, cancelled.WasConfirmed)
	})

	t.Run("requires a reason", func(t *testing.T) {
		o := createTestOrder(t)
		err := o.Cancel("")
		require.Error(t, err)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, shared.CodeValidation, domainErr.Code)
	})

	t.Run("cancel on cancelled order is a no-op", func(t *testing.T) {
		o := createTestOrder(t)
		require.NoError(t, o.Cancel("first"))
		require.NoError(t, o.Cancel("second"))

		assert.Equal(t, "first", o.CancelReason)
		assert.Len(t, o.UncommittedEvents(), 2)
	})
}

// ============================================
// Replay Tests
// ============================================

func TestReplay(t *testing.T) {
	t.Run("reconstructs created item-added confirmed stream", func(t *testing.T) {
		source := createTestOrder(t)
		require.NoError(t, source.AddItem(testItem("Gadget", 1, 5.00)))
		require.NoError(t, source.Confirm())
		records := recorded(t, source)
		require.Len(t, records, 3)

		o, err := Replay(records)
		require.NoError(t, err)

		assert.Equal(t, OrderStatusConfirmed, o.Status)
		assert.Equal(t, int64(3), o.Version)
		assert.Equal(t, int64(3), o.CommittedVersion())
		assert.Empty(t, o.UncommittedEvents())
		assert.True(t, o.TotalAmount.Equal(source.TotalAmount))
		assert.Equal(t, source.CustomerName, o.CustomerName)
	})

	t.Run("empty stream yields empty aggregate", func(t *testing.T) {
		o, err := Replay(nil)
		require.NoError(t, err)
		assert.Equal(t, int64(0), o.Version)
		assert.Equal(t, uuid.Nil, o.ID)
	})

	t.Run("is deterministic", func(t *testing.T) {
		source := createTestOrder(t)
		require.NoError(t, source.AddItem(testItem("Gadget", 3, 2.50)))
		require.NoError(t, source.Confirm())
		records := recorded(t, source)

		first, err := Replay(records)
		require.NoError(t, err)
		second, err := Replay(records)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, first.Status, second.Status)
		assert.Equal(t, first.Version, second.Version)
		assert.Equal(t, first.Items, second.Items)
		assert.True(t, first.TotalAmount.Equal(second.TotalAmount))
	})

	t.Run("detects a sequence gap", func(t *testing.T) {
		source := createTestOrder(t)
		require.NoError(t, source.Confirm())
		records := recorded(t, source)
		records[1].Sequence = 3

		_, err := Replay(records)
		assert.ErrorIs(t, err, shared.ErrCorruptStream)
	})

	t.Run("detects out-of-order events", func(t *testing.T) {
		source := createTestOrder(t)
		require.NoError(t, source.Confirm())
		records := recorded(t, source)
		records[0], records[1] = records[1], records[0]

		_, err := Replay(records)
		assert.ErrorIs(t, err, shared.ErrCorruptStream)
	})
}

func TestOrder_Apply_UnknownEvent(t *testing.T) {
	o := createTestOrder(t)
	err := o.Apply(&shared.BaseDomainEvent{Type: "SomethingElse"})
	assert.ErrorIs(t, err, shared.ErrCorruptStream)
}

func TestRecordedEvent_Validate(t *testing.T) {
	o := createTestOrder(t)
	event := o.UncommittedEvents()[0]

	tests := []struct {
		name    string
		rec     RecordedEvent
		wantErr bool
	}{
		{"valid", RecordedEvent{AggregateID: o.ID, Sequence: 1, Event: event}, false},
		{"zero sequence", RecordedEvent{AggregateID: o.ID, Sequence: 0, Event: event}, true},
		{"nil aggregate", RecordedEvent{AggregateID: uuid.Nil, Sequence: 1, Event: event}, true},
		{"nil event", RecordedEvent{AggregateID: o.ID, Sequence: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
