package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zenobundle/zenobundle-gobackend/internal/events"
	"github.com/zenobundle/zenobundle-gobackend/internal/legacy"
	"github.com/zenobundle/zenobundle-gobackend/internal/logging"
	"github.com/zenobundle/zenobundle-gobackend/internal/metrics"
	"github.com/zenobundle/zenobundle-gobackend/internal/models"
	"github.com/zenobundle/zenobundle-gobackend/internal/status"
	"github.com/zenobundle/zenobundle-gobackend/internal/zenopay"
)

// Event sources.
const (
	SourceWebhook = "webhook"
	SourcePoll    = "poll"
)

// Event is one status notification, from either the push (webhook) or pull
// (poll) channel. Empty optional fields mean "not reported by this source"
// and never overwrite stored values.
type Event struct {
	OrderID          string
	Status           status.Status
	RawStatus        string
	PaymentMethod    string
	Channel          string
	ConfirmationCode string
	TransactionRef   string
	Source           string
}

// Outcome reports what reconciling one event actually did.
type Outcome struct {
	OrderID string
	Status  status.Status
	// Applied is false for idempotent duplicates and for stale events
	// blocked by terminal-state stickiness; nothing was written.
	Applied bool
	// Completed is true only when this event caused the transition into
	// COMPLETED.
	Completed bool
	// Voucher is set when this event's completion claimed one.
	Voucher *models.Voucher
	// NoVoucher is true when completion found the pool empty.
	NoVoucher bool
}

// TransactionStore is the slice of the transaction adapter the controller
// needs.
type TransactionStore interface {
	FindByOrderID(ctx context.Context, orderID string) (*models.Transaction, error)
	MergeUpdate(ctx context.Context, orderID string, patch TxnPatch, guard []status.Status) (*models.Transaction, bool, error)
	SetVoucher(ctx context.Context, orderID, code string) error
	MarkNoVoucher(ctx context.Context, orderID string) error
}

// VoucherStore is the allocator's claim operation.
type VoucherStore interface {
	Claim(ctx context.Context, customerID, pkg, network string) (*models.Voucher, error)
}

// StatusPoller fetches a normalized snapshot from the gateway.
type StatusPoller interface {
	CheckOrderStatus(ctx context.Context, orderID string) (*zenopay.Snapshot, error)
}

// ReconcileService merges status events from both notification channels
// into the canonical transaction record and triggers voucher allocation on
// first observed completion. It holds no cross-request state; every race is
// settled by the store's conditional updates.
type ReconcileService struct {
	txns     TransactionStore
	vouchers VoucherStore
	poller   StatusPoller
	mirror   *legacy.Mirror
	events   *events.Publisher
}

func NewReconcileService(txns TransactionStore, vouchers VoucherStore, poller StatusPoller, mirror *legacy.Mirror, publisher *events.Publisher) *ReconcileService {
	return &ReconcileService{
		txns:     txns,
		vouchers: vouchers,
		poller:   poller,
		mirror:   mirror,
		events:   publisher,
	}
}

// statusGuard lists stored statuses that must block a write of the incoming
// status. Terminal states are sticky: COMPLETED is never overwritten, FAILED
// only by a late COMPLETED.
func statusGuard(incoming status.Status) []status.Status {
	switch incoming {
	case status.Completed:
		return []status.Status{status.Completed}
	case status.Failed:
		return []status.Status{status.Completed, status.Failed}
	default:
		return []status.Status{status.Completed, status.Failed}
	}
}

// Reconcile applies one event. See the Outcome fields for what happened;
// errors are limited to ErrBadEvent, ErrTransactionNotFound and
// ErrStoreUnavailable.
func (s *ReconcileService) Reconcile(ctx context.Context, ev Event) (*Outcome, error) {
	if ev.OrderID == "" {
		return nil, fmt.Errorf("%w: missing order_id", ErrBadEvent)
	}
	if ev.Status == "" {
		return nil, fmt.Errorf("%w: missing status", ErrBadEvent)
	}

	txn, err := s.txns.FindByOrderID(ctx, ev.OrderID)
	if err != nil {
		return nil, err
	}

	// Duplicate delivery of the same status is a no-op; this absorbs the
	// gateway's at-least-once webhook semantics without a second write and
	// without a second allocation attempt.
	if txn.Status == string(ev.Status) {
		logging.Logger.Infof("Order %s already %s, skipping duplicate %s event", ev.OrderID, txn.Status, ev.Source)
		metrics.EventsReconciled.WithLabelValues(ev.Source, "duplicate").Inc()
		return &Outcome{OrderID: ev.OrderID, Status: status.Parse(txn.Status), Applied: false}, nil
	}

	patch := TxnPatch{
		PaymentMethod:    ev.PaymentMethod,
		Channel:          ev.Channel,
		ConfirmationCode: ev.ConfirmationCode,
		TransactionRef:   ev.TransactionRef,
	}
	newStatus := ev.Status

	// Fidelity gap: some gateway configurations omit channel and transaction
	// details from webhook payloads that a direct status query supplies.
	// One backfill poll, push-sourced events only.
	if ev.Source != SourcePoll && s.poller != nil {
		channel := firstNonEmpty(ev.Channel, txn.Channel)
		ref := firstNonEmpty(ev.TransactionRef, txn.TransactionRef)
		if channel == "" || ref == "" {
			if snap, perr := s.poller.CheckOrderStatus(ctx, ev.OrderID); perr == nil && snap != nil {
				patch.Channel = firstNonEmpty(patch.Channel, snap.Channel)
				patch.TransactionRef = firstNonEmpty(patch.TransactionRef, snap.TransactionRef)
				patch.ConfirmationCode = firstNonEmpty(patch.ConfirmationCode, snap.ConfirmationCode)
				patch.PaymentMethod = firstNonEmpty(patch.PaymentMethod, snap.PaymentMethod)
				patch.CheckedAt = time.Now()
				if newStatus == status.Unknown && snap.Status != status.Unknown {
					newStatus = snap.Status
				}
			}
		}
	}

	// UNKNOWN is absence of information: merge whatever fields the event
	// carried, but never let it rewrite a known status.
	var guard []status.Status
	if newStatus != status.Unknown {
		patch.Status = newStatus
		guard = statusGuard(newStatus)
	}

	prev, applied, err := s.txns.MergeUpdate(ctx, ev.OrderID, patch, guard)
	if err != nil {
		return nil, err
	}
	if !applied {
		logging.Logger.Infof("Order %s: stale %s event %s blocked by terminal status", ev.OrderID, ev.Source, newStatus)
		metrics.EventsReconciled.WithLabelValues(ev.Source, "stale").Inc()
		return &Outcome{OrderID: ev.OrderID, Status: status.Parse(txn.Status), Applied: false}, nil
	}

	outcome := &Outcome{OrderID: ev.OrderID, Status: newStatus, Applied: true}
	if outcome.Status == status.Unknown {
		outcome.Status = status.Parse(prev.Status)
	}

	// Completion trigger. The guard made the store reject this write if the
	// status was already COMPLETED, so applied==true means this event won
	// the transition and allocation runs exactly once per order.
	if newStatus == status.Completed && prev.Status != string(status.Completed) {
		outcome.Completed = true
		s.allocate(ctx, prev, outcome)
	}

	metrics.EventsReconciled.WithLabelValues(ev.Source, "applied").Inc()
	merged := mergedTransaction(prev, patch, outcome)
	s.mirror.Write(merged)
	if outcome.Completed {
		s.events.PublishCompleted(ctx, merged)
	}

	logging.Logger.Infof("Order %s reconciled to %s (source=%s)", ev.OrderID, outcome.Status, ev.Source)
	return outcome, nil
}

func (s *ReconcileService) allocate(ctx context.Context, txn *models.Transaction, outcome *Outcome) {
	voucher, err := s.vouchers.Claim(ctx, txn.CustomerID, txn.Package, txn.Network)
	if err != nil {
		if errors.Is(err, ErrNoVoucherAvailable) {
			logging.Logger.Infof("No voucher available for order %s (%s/%s)", txn.OrderID, txn.Package, txn.Network)
			metrics.VoucherClaims.WithLabelValues("none_available").Inc()
			outcome.NoVoucher = true
			if werr := s.txns.MarkNoVoucher(ctx, txn.OrderID); werr != nil {
				logging.Logger.Errorf("Failed to record voucher shortfall for %s: %v", txn.OrderID, werr)
			}
			return
		}
		// The completion itself is already persisted; losing the claim to a
		// store fault is logged, not propagated, because a webhook retry
		// would be absorbed by the idempotence check anyway.
		logging.Logger.Errorf("Voucher claim errored for order %s: %v", txn.OrderID, err)
		metrics.VoucherClaims.WithLabelValues("error").Inc()
		return
	}

	metrics.VoucherClaims.WithLabelValues("assigned").Inc()
	outcome.Voucher = voucher
	if err := s.txns.SetVoucher(ctx, txn.OrderID, voucher.Code); err != nil {
		logging.Logger.Errorf("Failed to record voucher %s on order %s: %v", voucher.Code, txn.OrderID, err)
	}
}

// PollAndReconcile is the pull path: fetch a snapshot from the gateway and
// feed it through reconciliation. The snapshot always comes back, even when
// the gateway is unreachable; the outcome may be nil when the order is
// unknown to us.
func (s *ReconcileService) PollAndReconcile(ctx context.Context, orderID string) (*zenopay.Snapshot, *Outcome, error) {
	if orderID == "" {
		return nil, nil, fmt.Errorf("%w: missing order_id", ErrBadEvent)
	}

	snap, err := s.poller.CheckOrderStatus(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	outcome, err := s.Reconcile(ctx, Event{
		OrderID:          orderID,
		Status:           snap.Status,
		RawStatus:        snap.RawStatus,
		PaymentMethod:    snap.PaymentMethod,
		Channel:          snap.Channel,
		ConfirmationCode: snap.ConfirmationCode,
		TransactionRef:   snap.TransactionRef,
		Source:           SourcePoll,
	})
	if err != nil {
		return snap, nil, err
	}
	return snap, outcome, nil
}

func mergedTransaction(prev *models.Transaction, patch TxnPatch, outcome *Outcome) *models.Transaction {
	merged := *prev
	if patch.Status != "" {
		merged.Status = string(patch.Status)
	}
	merged.PaymentMethod = firstNonEmpty(patch.PaymentMethod, prev.PaymentMethod)
	merged.Channel = firstNonEmpty(patch.Channel, prev.Channel)
	merged.ConfirmationCode = firstNonEmpty(patch.ConfirmationCode, prev.ConfirmationCode)
	merged.TransactionRef = firstNonEmpty(patch.TransactionRef, prev.TransactionRef)
	if outcome.Voucher != nil {
		merged.AssignedVoucher = outcome.Voucher.Code
	}
	return &merged
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
