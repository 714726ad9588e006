package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zenobundle/zenobundle-gobackend/internal/logging"
	"github.com/zenobundle/zenobundle-gobackend/internal/models"
	"github.com/zenobundle/zenobundle-gobackend/internal/status"
)

// TxnPatch is one reconciliation merge: non-empty fields overwrite the
// stored document, empty fields leave it untouched. Status "" means "do not
// touch the status at all".
type TxnPatch struct {
	Status           status.Status
	PaymentMethod    string
	Channel          string
	ConfirmationCode string
	TransactionRef   string
	CheckedAt        time.Time
}

// TransactionService owns the transactions collection.
type TransactionService struct {
	collection *mongo.Collection
}

func NewTransactionService(db *mongo.Database) *TransactionService {
	return &TransactionService{collection: db.Collection("transactions")}
}

// EnsureIndexes creates the indexes the reconciliation queries rely on.
func (s *TransactionService) EnsureIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{Keys: bson.M{"order_id": 1}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
	}
	_, err := s.collection.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		logging.Logger.Errorf("Failed to create transaction indexes: %v", err)
		return fmt.Errorf("%w: creating indexes: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Create inserts a fresh INITIATED transaction.
func (s *TransactionService) Create(ctx context.Context, txn *models.Transaction) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now()
	txn.CreatedAt = now
	txn.UpdatedAt = now
	if txn.Status == "" {
		txn.Status = string(status.Initiated)
	}

	if _, err := s.collection.InsertOne(ctx, txn); err != nil {
		logging.Logger.Errorf("Failed to insert transaction %s: %v", txn.OrderID, err)
		return fmt.Errorf("%w: inserting transaction: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// FindByOrderID fetches one transaction.
func (s *TransactionService) FindByOrderID(ctx context.Context, orderID string) (*models.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var txn models.Transaction
	if err := s.collection.FindOne(ctx, bson.M{"order_id": orderID}).Decode(&txn); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrTransactionNotFound
		}
		logging.Logger.Errorf("Failed to fetch transaction %s: %v", orderID, err)
		return nil, fmt.Errorf("%w: fetching transaction: %v", ErrStoreUnavailable, err)
	}
	return &txn, nil
}

// MergeUpdate applies a patch as one conditional update. The guard lists
// stored statuses that block the write (terminal-state stickiness); the
// store evaluates it atomically with the write, so two racing reconcilers
// cannot both observe "not yet completed".
//
// Returns the document as it was before the update and whether the update
// matched. applied=false with a nil error means the guard blocked a stale
// event.
func (s *TransactionService) MergeUpdate(ctx context.Context, orderID string, patch TxnPatch, guard []status.Status) (*models.Transaction, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	set := bson.M{"updated_at": time.Now()}
	if patch.Status != "" {
		set["status"] = string(patch.Status)
	}
	if patch.PaymentMethod != "" {
		set["payment_method"] = patch.PaymentMethod
	}
	if patch.Channel != "" {
		set["channel"] = patch.Channel
	}
	if patch.ConfirmationCode != "" {
		set["confirmation_code"] = patch.ConfirmationCode
	}
	if patch.TransactionRef != "" {
		set["transaction_ref"] = patch.TransactionRef
	}
	if !patch.CheckedAt.IsZero() {
		set["checked_at"] = patch.CheckedAt
	}

	filter := bson.M{"order_id": orderID}
	if len(guard) > 0 {
		blocked := make([]string, 0, len(guard))
		for _, g := range guard {
			blocked = append(blocked, string(g))
		}
		filter["status"] = bson.M{"$nin": blocked}
	}

	var prev models.Transaction
	err := s.collection.FindOneAndUpdate(
		ctx,
		filter,
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&prev)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			// Either the transaction is gone or the guard blocked the
			// write; tell them apart for the caller.
			if _, ferr := s.FindByOrderID(ctx, orderID); ferr != nil {
				return nil, false, ferr
			}
			return nil, false, nil
		}
		logging.Logger.Errorf("Failed to merge transaction %s: %v", orderID, err)
		return nil, false, fmt.Errorf("%w: merging transaction: %v", ErrStoreUnavailable, err)
	}
	return &prev, true, nil
}

// SetVoucher records the allocated voucher code. The assigned_voucher field
// is written at most once; a second completion race loses on the $exists
// filter and is a no-op.
func (s *TransactionService) SetVoucher(ctx context.Context, orderID, code string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"order_id":         orderID,
		"assigned_voucher": bson.M{"$exists": false},
	}
	update := bson.M{"$set": bson.M{
		"assigned_voucher": code,
		"updated_at":       time.Now(),
	}}
	if _, err := s.collection.UpdateOne(ctx, filter, update); err != nil {
		logging.Logger.Errorf("Failed to record voucher for %s: %v", orderID, err)
		return fmt.Errorf("%w: recording voucher: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// MarkNoVoucher records that completion found the pool empty, so the
// shortfall is visible on the transaction itself.
func (s *TransactionService) MarkNoVoucher(ctx context.Context, orderID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"voucher_note": "no voucher available",
		"updated_at":   time.Now(),
	}}
	if _, err := s.collection.UpdateOne(ctx, bson.M{"order_id": orderID}, update); err != nil {
		logging.Logger.Errorf("Failed to mark voucher shortfall for %s: %v", orderID, err)
		return fmt.Errorf("%w: marking voucher shortfall: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// List returns transactions with optional canonical-status and created_at
// range filters, newest first.
func (s *TransactionService) List(ctx context.Context, statusFilter, startDate, endDate *string) ([]models.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := bson.M{}

	if statusFilter != nil && *statusFilter != "" {
		st := status.Parse(*statusFilter)
		if st == status.Unknown && !strings.EqualFold(*statusFilter, string(status.Unknown)) {
			return nil, fmt.Errorf("%w: invalid status filter %q", ErrBadEvent, *statusFilter)
		}
		query["status"] = string(st)
	}

	if startDate != nil && *startDate != "" && endDate != nil && *endDate != "" {
		start, err := time.Parse(time.RFC3339, *startDate)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid start_date: %v", ErrBadEvent, err)
		}
		end, err := time.Parse(time.RFC3339, *endDate)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid end_date: %v", ErrBadEvent, err)
		}
		query["created_at"] = bson.M{"$gte": start, "$lte": end}
	}

	cur, err := s.collection.Find(ctx, query, options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		logging.Logger.Errorf("Failed to fetch transactions: %v", err)
		return nil, fmt.Errorf("%w: fetching transactions: %v", ErrStoreUnavailable, err)
	}
	defer cur.Close(ctx)

	var txns []models.Transaction
	if err := cur.All(ctx, &txns); err != nil {
		logging.Logger.Errorf("Failed to decode transactions: %v", err)
		return nil, fmt.Errorf("%w: decoding transactions: %v", ErrStoreUnavailable, err)
	}
	return txns, nil
}
