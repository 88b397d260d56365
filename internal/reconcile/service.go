package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-storefront/internal/kafka"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/payment/barion"
)

// OrderStore is the slice of the order aggregate reconciliation needs.
type OrderStore interface {
	FindByPaymentID(ctx context.Context, paymentID string) (*models.Order, error)
	ItemsByOrder(ctx context.Context, orderID string) ([]models.OrderItem, error)
	SetPaymentOutcome(ctx context.Context, orderID, paymentID, status string) (bool, error)
}

type Gateway interface {
	GetPaymentState(ctx context.Context, paymentID string) (*models.PaymentState, error)
}

type InventoryLedger interface {
	Decrement(ctx context.Context, ticketID string, amount int) error
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// Locker is an advisory per-payment lock. It only narrows the window in
// which the redirect and webhook channels do duplicate work; correctness
// comes from the store's conditional updates, so lock failures never stop
// processing.
type Locker interface {
	Acquire(ctx context.Context, paymentID string) (bool, error)
	Release(ctx context.Context, paymentID string) error
}

// Outcome reports what one reconciliation invocation observed and did.
// Applied is true only for the invocation that performed the status
// transition; replays and racing duplicates see Applied=false.
type Outcome struct {
	OrderID string               `json:"order_id"`
	Status  models.PaymentStatus `json:"status"`
	Applied bool                 `json:"applied"`
	Message string               `json:"message,omitempty"`
}

// Engine applies a gateway payment outcome to an order and its inventory
// exactly once, no matter how many times or on which channel the
// notification arrives.
type Engine struct {
	Orders    OrderStore
	Gateway   Gateway
	Inventory InventoryLedger
	Publisher Publisher
	Lock      Locker
	Logger    *logger.Logger
}

func NewEngine(orders OrderStore, gateway Gateway, inventory InventoryLedger, publisher Publisher, lock Locker, log *logger.Logger) *Engine {
	return &Engine{
		Orders:    orders,
		Gateway:   gateway,
		Inventory: inventory,
		Publisher: publisher,
		Lock:      lock,
		Logger:    log,
	}
}

// Process is the single reconciliation procedure shared by the redirect
// callback and the webhook, so behavior is channel-independent.
func (e *Engine) Process(ctx context.Context, paymentID string) (*Outcome, error) {
	if paymentID == "" {
		return nil, fmt.Errorf("payment id is required")
	}

	if e.Lock != nil {
		acquired, err := e.Lock.Acquire(ctx, paymentID)
		if err != nil {
			e.Logger.Warn("RECONCILE", fmt.Sprintf("payment lock unavailable for %s: %v", paymentID, err))
		} else if acquired {
			defer func() {
				if err := e.Lock.Release(context.Background(), paymentID); err != nil {
					e.Logger.Warn("RECONCILE", fmt.Sprintf("failed to release payment lock for %s: %v", paymentID, err))
				}
			}()
		}
	}

	order, err := e.Orders.FindByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	// The notification's own status field, if any, is never trusted; the
	// gateway is re-queried so a spoofed or stale payload cannot flip an
	// order.
	state, err := e.Gateway.GetPaymentState(ctx, paymentID)
	if err != nil {
		if barion.IsUnavailable(err) {
			e.Logger.Warn("RECONCILE", fmt.Sprintf("gateway unreachable for payment %s: %v", paymentID, err))
			return &Outcome{
				OrderID: order.ID,
				Status:  models.PaymentUnknown,
				Message: "payment status could not be verified, retry later",
			}, nil
		}
		e.Logger.Error("RECONCILE", fmt.Sprintf("gateway query failed for payment %s: %v", paymentID, err))
		return nil, err
	}

	switch state.Status {
	case models.PaymentSucceeded:
		return e.applySuccess(ctx, order, paymentID)
	case models.PaymentCanceled, models.PaymentFailed:
		return e.applyFailure(ctx, order, paymentID, state.Status)
	default:
		// Pending or Unknown: nothing to apply yet, the webhook channel
		// will redeliver.
		return &Outcome{OrderID: order.ID, Status: state.Status}, nil
	}
}

func (e *Engine) applySuccess(ctx context.Context, order *models.Order, paymentID string) (*Outcome, error) {
	applied, err := e.Orders.SetPaymentOutcome(ctx, order.ID, paymentID, models.OrderStatusPaid)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Another invocation already confirmed this payment; decrementing
		// again here is exactly the double-spend this check prevents.
		e.Logger.Info("RECONCILE", fmt.Sprintf("payment %s already applied to order %s", paymentID, order.ID))
		return &Outcome{OrderID: order.ID, Status: models.PaymentSucceeded}, nil
	}

	outcome := &Outcome{OrderID: order.ID, Status: models.PaymentSucceeded, Applied: true}

	items, err := e.Orders.ItemsByOrder(ctx, order.ID)
	if err != nil {
		// The order is paid; the money moved. Inventory bookkeeping gets
		// flagged for operators instead of failing the customer.
		e.Logger.LogOperator("INVENTORY", fmt.Sprintf("order %s paid but items could not be loaded: %v", order.ID, err))
		outcome.Message = "inventory update incomplete"
		return outcome, nil
	}

	for _, item := range items {
		if err := e.Inventory.Decrement(ctx, item.TicketID, item.Quantity); err != nil {
			e.Logger.LogOperator("INVENTORY", fmt.Sprintf("order %s paid but tier %s decrement of %d failed: %v", order.ID, item.TicketID, item.Quantity, err))
			e.publish(ctx, kafka.TopicInventoryOversold, order.ID, models.InventoryFault{
				OrderID:   order.ID,
				TicketID:  item.TicketID,
				Quantity:  item.Quantity,
				Reason:    err.Error(),
				Timestamp: time.Now(),
			})
			outcome.Message = "inventory update incomplete"
		}
	}

	e.publish(ctx, kafka.TopicPaymentSucceeded, order.ID, models.PaymentEvent{
		OrderID:   order.ID,
		PaymentID: paymentID,
		Status:    models.PaymentSucceeded,
		Timestamp: time.Now(),
	})

	e.Logger.LogOrder("RECONCILE", order.ID, fmt.Sprintf("payment %s confirmed, %d line items decremented", paymentID, len(items)))
	return outcome, nil
}

func (e *Engine) applyFailure(ctx context.Context, order *models.Order, paymentID string, status models.PaymentStatus) (*Outcome, error) {
	applied, err := e.Orders.SetPaymentOutcome(ctx, order.ID, paymentID, models.OrderStatusCancelled)
	if err != nil {
		return nil, err
	}
	if applied {
		e.publish(ctx, kafka.TopicPaymentFailed, order.ID, models.PaymentEvent{
			OrderID:   order.ID,
			PaymentID: paymentID,
			Status:    status,
			Timestamp: time.Now(),
		})
		e.Logger.LogOrder("RECONCILE", order.ID, fmt.Sprintf("payment %s %s, order cancelled", paymentID, status))
	}
	return &Outcome{OrderID: order.ID, Status: status, Applied: applied}, nil
}

func (e *Engine) publish(ctx context.Context, topic, key string, payload any) {
	if e.Publisher == nil {
		return
	}
	value, err := json.Marshal(payload)
	if err != nil {
		e.Logger.Error("KAFKA", fmt.Sprintf("failed to marshal event for %s: %v", topic, err))
		return
	}
	if err := e.Publisher.Publish(ctx, topic, key, value); err != nil {
		e.Logger.Error("KAFKA", fmt.Sprintf("failed to publish to %s: %v", topic, err))
	}
}
