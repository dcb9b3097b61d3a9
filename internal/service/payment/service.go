package payment

import (
	"context"
	"io"
	"log"
	"strings"
	"time"

	"commerce-backoffice/internal/domain"
	"commerce-backoffice/internal/events"
	"commerce-backoffice/internal/metrics"
	paymentrepo "commerce-backoffice/internal/repository/payment"
	"github.com/oklog/ulid/v2"
)

type txRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type orderRepo interface {
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Order, error)
	Update(ctx context.Context, o *domain.Order) error
	AppendHistory(ctx context.Context, change domain.StatusChange) error
}

type journal interface {
	Record(ctx context.Context, e paymentrepo.Event) (bool, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, eventType string, o *domain.Order, previous domain.OrderStatus) error
}

// Deps groups the collaborators of the payment Service.
type Deps struct {
	Tx      txRunner
	Orders  orderRepo
	Journal journal
	Events  eventPublisher
	Metrics *metrics.Metrics
	Logger  *log.Logger
}

// Service reconciles gateway and admin payment updates against orders.
type Service struct {
	tx      txRunner
	orders  orderRepo
	journal journal
	events  eventPublisher
	metrics *metrics.Metrics
	logger  *log.Logger
	now     func() time.Time
}

func New(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = log.New(io.Discard, "", 0)
	}
	if d.Events == nil {
		d.Events = events.Discard
	}
	return &Service{
		tx:      d.Tx,
		orders:  d.Orders,
		journal: d.Journal,
		events:  d.Events,
		metrics: d.Metrics,
		logger:  d.Logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// HandleWebhook applies a verified gateway payload. The order id travels in
// userDefinedField.
func (s *Service) HandleWebhook(ctx context.Context, payload domain.GatewayPayload) (*domain.Order, error) {
	orderID := strings.TrimSpace(payload.UserDefinedField)
	if orderID == "" {
		return nil, domain.Invalid("userDefinedField must carry the order id")
	}
	update, err := payload.ToUpdate()
	if err != nil {
		return nil, err
	}
	return s.UpdatePaymentStatus(ctx, orderID, update)
}

// UpdatePaymentStatus applies update to the order and journals it. Replaying
// an update that is already reflected on the order changes nothing. Once an
// order is paid, later pending or failed notices are ignored.
func (s *Service) UpdatePaymentStatus(ctx context.Context, orderID string, update domain.PaymentUpdate) (*domain.Order, error) {
	switch update.Status {
	case domain.PaymentPending, domain.PaymentPaid, domain.PaymentFailed:
	default:
		return nil, domain.Invalid("unknown payment status %q", update.Status)
	}
	if update.Source == "" {
		update.Source = "admin"
	}

	var (
		order   *domain.Order
		applied bool
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		applied = false
		o, err := s.orders.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		now := s.now()
		from := o.Status
		changed, err := reconcile(o, update, now)
		if err != nil {
			return err
		}

		if _, err := s.journal.Record(ctx, paymentrepo.Event{
			ID:      ulid.Make().String(),
			OrderID: o.ID,
			Update:  update,
			Applied: changed,
		}); err != nil {
			return err
		}
		if !changed {
			order = o
			return nil
		}

		if err := s.orders.Update(ctx, o); err != nil {
			return err
		}
		if o.Status != from {
			if err := s.orders.AppendHistory(ctx, domain.StatusChange{
				OrderID: o.ID,
				From:    from,
				To:      o.Status,
				Note:    "payment received",
				ActorID: "payment:" + update.Source,
				At:      now,
			}); err != nil {
				return err
			}
		}
		if err := s.events.Publish(ctx, events.OrderPaymentUpdated, o, from); err != nil {
			return err
		}
		order = o
		applied = true
		return nil
	})
	if err != nil {
		if domain.IsBusiness(err) {
			return nil, err
		}
		s.logger.Printf("payment service: update order=%s error=%v", orderID, err)
		return nil, &domain.ServerError{Op: "update payment status", Err: err}
	}

	if applied {
		s.metrics.PaymentOutcome(metrics.PaymentApplied, update.Source)
		s.logger.Printf("payment service: applied order=%s status=%s txn=%s source=%s", orderID, update.Status, update.TransactionID, update.Source)
	} else {
		s.metrics.PaymentOutcome(metrics.PaymentNoop, update.Source)
		s.logger.Printf("payment service: noop order=%s status=%s txn=%s source=%s", orderID, update.Status, update.TransactionID, update.Source)
	}
	return order, nil
}

// reconcile mutates o to reflect u and reports whether anything changed.
func reconcile(o *domain.Order, u domain.PaymentUpdate, now time.Time) (bool, error) {
	if o.PaymentStatus == domain.PaymentPaid {
		return false, nil
	}
	if o.PaymentStatus == u.Status {
		return false, nil
	}

	o.PaymentStatus = u.Status
	o.UpdatedAt = now
	if u.Status != domain.PaymentPaid {
		return true, nil
	}

	paid := u.PaidAmountCents
	if paid == 0 {
		paid = o.Pricing.TotalCents
	}
	o.PaymentResult = &domain.PaymentResult{
		TransactionID: u.TransactionID,
		InvoiceID:     u.InvoiceID,
		PaidCents:     paid,
		PaidAt:        now,
	}
	if o.Status == domain.OrderPending {
		if err := o.Transition(domain.OrderConfirmed, now); err != nil {
			return false, err
		}
	}
	return true, nil
}
