package services

import (
	"context"
	"sync"
	"time"

	"github.com/zenobundle/zenobundle-gobackend/internal/models"
	"github.com/zenobundle/zenobundle-gobackend/internal/status"
	"github.com/zenobundle/zenobundle-gobackend/internal/zenopay"
)

// mockTxnStore keeps transactions in memory and applies MergeUpdate with
// the same filter-and-write atomicity the Mongo adapter gets from
// FindOneAndUpdate.
type mockTxnStore struct {
	mu          sync.Mutex
	txns        map[string]*models.Transaction
	mergeCalls  int
	setVoucher  int
	noVoucherOn []string
}

func newMockTxnStore(txns ...*models.Transaction) *mockTxnStore {
	m := &mockTxnStore{txns: make(map[string]*models.Transaction)}
	for _, t := range txns {
		cp := *t
		m.txns[t.OrderID] = &cp
	}
	return m
}

func (m *mockTxnStore) FindByOrderID(_ context.Context, orderID string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, ok := m.txns[orderID]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	cp := *txn
	return &cp, nil
}

func (m *mockTxnStore) MergeUpdate(_ context.Context, orderID string, patch TxnPatch, guard []status.Status) (*models.Transaction, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mergeCalls++

	txn, ok := m.txns[orderID]
	if !ok {
		return nil, false, ErrTransactionNotFound
	}
	for _, g := range guard {
		if txn.Status == string(g) {
			return nil, false, nil
		}
	}

	prev := *txn
	if patch.Status != "" {
		txn.Status = string(patch.Status)
	}
	if patch.PaymentMethod != "" {
		txn.PaymentMethod = patch.PaymentMethod
	}
	if patch.Channel != "" {
		txn.Channel = patch.Channel
	}
	if patch.ConfirmationCode != "" {
		txn.ConfirmationCode = patch.ConfirmationCode
	}
	if patch.TransactionRef != "" {
		txn.TransactionRef = patch.TransactionRef
	}
	if !patch.CheckedAt.IsZero() {
		txn.CheckedAt = patch.CheckedAt
	}
	txn.UpdatedAt = time.Now()
	return &prev, true, nil
}

func (m *mockTxnStore) SetVoucher(_ context.Context, orderID, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setVoucher++
	if txn, ok := m.txns[orderID]; ok && txn.AssignedVoucher == "" {
		txn.AssignedVoucher = code
	}
	return nil
}

func (m *mockTxnStore) MarkNoVoucher(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.noVoucherOn = append(m.noVoucherOn, orderID)
	if txn, ok := m.txns[orderID]; ok {
		txn.VoucherNote = "no voucher available"
	}
	return nil
}

func (m *mockTxnStore) get(orderID string) *models.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.txns[orderID]
	return &cp
}

// mockVoucherStore claims with a mutex-guarded compare-and-set, mirroring
// the store-native conditional update.
type mockVoucherStore struct {
	mu       sync.Mutex
	vouchers []*models.Voucher
	claims   int
}

func newMockVoucherStore(vouchers ...*models.Voucher) *mockVoucherStore {
	return &mockVoucherStore{vouchers: vouchers}
}

func (m *mockVoucherStore) Claim(_ context.Context, customerID, pkg, network string) (*models.Voucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claims++
	for _, v := range m.vouchers {
		if v.Status == models.VoucherAvailable && v.Package == pkg && v.Network == network {
			v.Status = models.VoucherAssigned
			v.AssignedTo = customerID
			v.AssignedAt = time.Now()
			cp := *v
			return &cp, nil
		}
	}
	return nil, ErrNoVoucherAvailable
}

// mockPoller returns a canned snapshot and counts calls.
type mockPoller struct {
	mu    sync.Mutex
	snap  *zenopay.Snapshot
	calls int
}

func (m *mockPoller) CheckOrderStatus(_ context.Context, orderID string) (*zenopay.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.snap == nil {
		return &zenopay.Snapshot{OrderID: orderID, Status: status.Unknown, Error: "Timeout"}, nil
	}
	cp := *m.snap
	cp.OrderID = orderID
	return &cp, nil
}
