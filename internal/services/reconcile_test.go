package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/zenobundle/zenobundle-gobackend/internal/models"
	"github.com/zenobundle/zenobundle-gobackend/internal/status"
	"github.com/zenobundle/zenobundle-gobackend/internal/zenopay"
)

func pendingTxn(orderID string) *models.Transaction {
	return &models.Transaction{
		OrderID:    orderID,
		Phone:      "255700000001",
		CustomerID: "cust-1",
		Package:    "5GB",
		Network:    "Vodacom",
		Amount:     5000,
		Status:     string(status.Pending),
		Channel:    "MPESA-TZ",
	}
}

func TestReconcile_RejectsBadEvents(t *testing.T) {
	svc := NewReconcileService(newMockTxnStore(), newMockVoucherStore(), &mockPoller{}, nil, nil)

	_, err := svc.Reconcile(context.Background(), Event{Status: status.Completed, Source: SourceWebhook})
	if !errors.Is(err, ErrBadEvent) {
		t.Errorf("missing order_id: got %v, want ErrBadEvent", err)
	}

	_, err = svc.Reconcile(context.Background(), Event{OrderID: "ord-1", Source: SourceWebhook})
	if !errors.Is(err, ErrBadEvent) {
		t.Errorf("missing status: got %v, want ErrBadEvent", err)
	}

	_, err = svc.Reconcile(context.Background(), Event{OrderID: "missing", Status: status.Completed, Source: SourceWebhook})
	if !errors.Is(err, ErrTransactionNotFound) {
		t.Errorf("unknown order: got %v, want ErrTransactionNotFound", err)
	}
}

func TestReconcile_DuplicateStatusIsNoop(t *testing.T) {
	txn := pendingTxn("ord-1")
	txn.TransactionRef = "T1"
	txns := newMockTxnStore(txn)
	svc := NewReconcileService(txns, newMockVoucherStore(), &mockPoller{}, nil, nil)

	outcome, err := svc.Reconcile(context.Background(), Event{
		OrderID: "ord-1",
		Status:  status.Pending,
		Source:  SourceWebhook,
	})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if outcome.Applied {
		t.Error("duplicate status must not be applied")
	}
	if txns.mergeCalls != 0 {
		t.Errorf("duplicate status caused %d store writes, want 0", txns.mergeCalls)
	}
}

func TestReconcile_MergeKeepsLastKnownGood(t *testing.T) {
	txn := pendingTxn("ord-1") // stored channel MPESA-TZ, no transaction_ref
	txns := newMockTxnStore(txn)
	svc := NewReconcileService(txns, newMockVoucherStore(), &mockPoller{}, nil, nil)

	// Incoming event carries transid but no channel.
	_, err := svc.Reconcile(context.Background(), Event{
		OrderID:        "ord-1",
		Status:         status.Completed,
		TransactionRef: "T123",
		Source:         SourceWebhook,
	})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	got := txns.get("ord-1")
	if got.Channel != "MPESA-TZ" {
		t.Errorf("channel = %q, empty incoming field must not overwrite", got.Channel)
	}
	if got.TransactionRef != "T123" {
		t.Errorf("transaction_ref = %q, want T123", got.TransactionRef)
	}
}

func TestReconcile_FidelityGapBackfill(t *testing.T) {
	txn := pendingTxn("ord-1")
	txn.Channel = "" // neither stored nor incoming
	txns := newMockTxnStore(txn)
	poller := &mockPoller{snap: &zenopay.Snapshot{
		Status:           status.Completed,
		Channel:          "MPESA-TZ",
		TransactionRef:   "T777",
		ConfirmationCode: "CONF1",
	}}
	svc := NewReconcileService(txns, newMockVoucherStore(), poller, nil, nil)

	_, err := svc.Reconcile(context.Background(), Event{
		OrderID: "ord-1",
		Status:  status.Completed,
		Source:  SourceWebhook,
	})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if poller.calls != 1 {
		t.Errorf("poller called %d times, want 1", poller.calls)
	}

	got := txns.get("ord-1")
	if got.Channel != "MPESA-TZ" || got.TransactionRef != "T777" {
		t.Errorf("backfill missing: channel=%q ref=%q", got.Channel, got.TransactionRef)
	}
	if got.CheckedAt.IsZero() {
		t.Error("checked_at not stamped by backfill")
	}
}

func TestReconcile_PollEventsNeverBackfill(t *testing.T) {
	txn := pendingTxn("ord-1")
	txn.Channel = ""
	txns := newMockTxnStore(txn)
	poller := &mockPoller{}
	svc := NewReconcileService(txns, newMockVoucherStore(), poller, nil, nil)

	_, err := svc.Reconcile(context.Background(), Event{
		OrderID: "ord-1",
		Status:  status.Failed,
		Source:  SourcePoll,
	})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if poller.calls != 0 {
		t.Errorf("poll-sourced event triggered %d backfill polls, want 0", poller.calls)
	}
}

func TestReconcile_CompletionAllocatesExactlyOnce(t *testing.T) {
	txn := pendingTxn("ord-1")
	txn.TransactionRef = "T1"
	txns := newMockTxnStore(txn)
	vouchers := newMockVoucherStore(&models.Voucher{
		Code: "BNDL-001", Package: "5GB", Network: "Vodacom", Status: models.VoucherAvailable,
	})
	svc := NewReconcileService(txns, vouchers, &mockPoller{}, nil, nil)

	ev := Event{OrderID: "ord-1", Status: status.Completed, Source: SourceWebhook}

	outcome, err := svc.Reconcile(context.Background(), ev)
	if err != nil {
		t.Fatalf("first Reconcile failed: %v", err)
	}
	if !outcome.Completed || outcome.Voucher == nil || outcome.Voucher.Code != "BNDL-001" {
		t.Fatalf("first completion should allocate, got %+v", outcome)
	}
	if got := txns.get("ord-1"); got.AssignedVoucher != "BNDL-001" {
		t.Errorf("assigned_voucher = %q, want BNDL-001", got.AssignedVoucher)
	}

	// Duplicate delivery: no write, no second claim.
	outcome, err = svc.Reconcile(context.Background(), ev)
	if err != nil {
		t.Fatalf("second Reconcile failed: %v", err)
	}
	if outcome.Applied || outcome.Completed {
		t.Errorf("duplicate COMPLETED applied: %+v", outcome)
	}
	if vouchers.claims != 1 {
		t.Errorf("allocator invoked %d times, want 1", vouchers.claims)
	}
}

func TestReconcile_ConcurrentCompletionsClaimOneVoucher(t *testing.T) {
	const n = 8

	txns := make([]*models.Transaction, 0, n)
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := string(rune('a'+i)) + "-order"
		txn := pendingTxn(id)
		txn.CustomerID = "cust-" + id
		txn.TransactionRef = "T1"
		txns = append(txns, txn)
		ids = append(ids, id)
	}
	store := newMockTxnStore(txns...)
	vouchers := newMockVoucherStore(&models.Voucher{
		Code: "BNDL-001", Package: "5GB", Network: "Vodacom", Status: models.VoucherAvailable,
	})
	svc := NewReconcileService(store, vouchers, &mockPoller{}, nil, nil)

	outcomes := make([]*Outcome, n)
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			outcome, err := svc.Reconcile(context.Background(), Event{
				OrderID: id, Status: status.Completed, Source: SourceWebhook,
			})
			if err != nil {
				t.Errorf("Reconcile(%s) failed: %v", id, err)
				return
			}
			outcomes[i] = outcome
		}(i, id)
	}
	wg.Wait()

	winners, losers := 0, 0
	for _, o := range outcomes {
		if o == nil {
			continue
		}
		if o.Voucher != nil {
			winners++
		}
		if o.NoVoucher {
			losers++
		}
	}
	if winners != 1 {
		t.Errorf("%d orders received the single voucher, want exactly 1", winners)
	}
	if losers != n-1 {
		t.Errorf("%d orders recorded no-voucher, want %d", losers, n-1)
	}
}

func TestReconcile_PoolExhaustionIsRecordedNotFailed(t *testing.T) {
	txn := pendingTxn("ord-1")
	txn.TransactionRef = "T1"
	txns := newMockTxnStore(txn)
	svc := NewReconcileService(txns, newMockVoucherStore(), &mockPoller{}, nil, nil)

	outcome, err := svc.Reconcile(context.Background(), Event{
		OrderID: "ord-1", Status: status.Completed, Source: SourceWebhook,
	})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if !outcome.Completed || !outcome.NoVoucher {
		t.Errorf("want completed with no-voucher recorded, got %+v", outcome)
	}
	if got := txns.get("ord-1"); got.VoucherNote == "" {
		t.Error("voucher shortfall not recorded on the transaction")
	}
}

func TestReconcile_TerminalStatusesAreSticky(t *testing.T) {
	txn := pendingTxn("ord-1")
	txn.Status = string(status.Completed)
	txn.TransactionRef = "T1"
	txns := newMockTxnStore(txn)
	svc := NewReconcileService(txns, newMockVoucherStore(), &mockPoller{}, nil, nil)

	// A stale PENDING arriving after completion must not regress the record.
	outcome, err := svc.Reconcile(context.Background(), Event{
		OrderID: "ord-1", Status: status.Pending, Source: SourcePoll,
	})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if outcome.Applied {
		t.Error("stale PENDING overwrote a COMPLETED transaction")
	}
	if got := txns.get("ord-1"); got.Status != string(status.Completed) {
		t.Errorf("status regressed to %s", got.Status)
	}

	// A late COMPLETED over FAILED is the one allowed terminal rewrite.
	failed := pendingTxn("ord-2")
	failed.Status = string(status.Failed)
	failed.TransactionRef = "T2"
	txns2 := newMockTxnStore(failed)
	svc2 := NewReconcileService(txns2, newMockVoucherStore(), &mockPoller{}, nil, nil)
	outcome, err = svc2.Reconcile(context.Background(), Event{
		OrderID: "ord-2", Status: status.Completed, Source: SourceWebhook,
	})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if !outcome.Applied || !outcome.Completed {
		t.Errorf("late COMPLETED over FAILED must apply, got %+v", outcome)
	}
}

func TestReconcile_UnknownStatusMergesFieldsOnly(t *testing.T) {
	txn := pendingTxn("ord-1")
	txn.TransactionRef = "T1"
	txns := newMockTxnStore(txn)
	svc := NewReconcileService(txns, newMockVoucherStore(), &mockPoller{}, nil, nil)

	outcome, err := svc.Reconcile(context.Background(), Event{
		OrderID:          "ord-1",
		Status:           status.Unknown,
		ConfirmationCode: "CONF5",
		Source:           SourcePoll,
	})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if outcome.Status != status.Pending {
		t.Errorf("outcome status = %s, want the stored PENDING", outcome.Status)
	}

	got := txns.get("ord-1")
	if got.Status != string(status.Pending) {
		t.Errorf("UNKNOWN event rewrote status to %s", got.Status)
	}
	if got.ConfirmationCode != "CONF5" {
		t.Errorf("confirmation_code = %q, want CONF5", got.ConfirmationCode)
	}
}

func TestPollAndReconcile_FeedsSnapshotThroughController(t *testing.T) {
	txn := pendingTxn("ord-1")
	txns := newMockTxnStore(txn)
	vouchers := newMockVoucherStore(&models.Voucher{
		Code: "BNDL-001", Package: "5GB", Network: "Vodacom", Status: models.VoucherAvailable,
	})
	poller := &mockPoller{snap: &zenopay.Snapshot{
		Status:         status.Completed,
		RawStatus:      "COMPLETED",
		Channel:        "MPESA-TZ",
		TransactionRef: "T9",
	}}
	svc := NewReconcileService(txns, vouchers, poller, nil, nil)

	snap, outcome, err := svc.PollAndReconcile(context.Background(), "ord-1")
	if err != nil {
		t.Fatalf("PollAndReconcile failed: %v", err)
	}
	if snap.Status != status.Completed {
		t.Errorf("snapshot status = %s, want COMPLETED", snap.Status)
	}
	if outcome == nil || !outcome.Completed || outcome.Voucher == nil {
		t.Errorf("pull-path completion did not allocate: %+v", outcome)
	}
	if poller.calls != 1 {
		t.Errorf("poller called %d times, want exactly 1 (no backfill on pull)", poller.calls)
	}
}
