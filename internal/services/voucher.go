package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zenobundle/zenobundle-gobackend/internal/logging"
	"github.com/zenobundle/zenobundle-gobackend/internal/models"
)

const claimAttempts = 3

// VoucherService owns the voucher pool.
type VoucherService struct {
	collection *mongo.Collection
}

func NewVoucherService(db *mongo.Database) *VoucherService {
	return &VoucherService{collection: db.Collection("vouchers")}
}

func (s *VoucherService) EnsureIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "package", Value: 1}, {Key: "network", Value: 1}}},
		{Keys: bson.M{"code": 1}, Options: options.Index().SetUnique(true)},
	}
	_, err := s.collection.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		logging.Logger.Errorf("Failed to create voucher indexes: %v", err)
		return fmt.Errorf("%w: creating indexes: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Claim atomically takes one available voucher matching package and network
// and assigns it to the customer. The selection and the state flip are a
// single FindOneAndUpdate, so two concurrent completions can never receive
// the same voucher; a separate query-then-update would.
//
// Transient write conflicts are retried a few times; an empty pool returns
// ErrNoVoucherAvailable.
func (s *VoucherService) Claim(ctx context.Context, customerID, pkg, network string) (*models.Voucher, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"status":  models.VoucherAvailable,
		"package": pkg,
		"network": network,
	}
	update := bson.M{"$set": bson.M{
		"status":      models.VoucherAssigned,
		"assigned_to": customerID,
		"assigned_at": time.Now(),
	}}

	var lastErr error
	for attempt := 1; attempt <= claimAttempts; attempt++ {
		var voucher models.Voucher
		err := s.collection.FindOneAndUpdate(
			ctx,
			filter,
			update,
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&voucher)
		if err == nil {
			logging.Logger.Infof("Voucher %s assigned to customer %s (%s/%s)", voucher.Code, customerID, pkg, network)
			return &voucher, nil
		}
		if err == mongo.ErrNoDocuments {
			return nil, ErrNoVoucherAvailable
		}
		lastErr = err
		logging.Logger.Errorf("Voucher claim failed for customer %s (attempt %d): %v", customerID, attempt, err)
	}
	return nil, fmt.Errorf("%w: claiming voucher: %v", ErrStoreUnavailable, lastErr)
}

// Load inserts a batch of vouchers as available stock.
func (s *VoucherService) Load(ctx context.Context, vouchers []models.Voucher) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	docs := make([]interface{}, 0, len(vouchers))
	now := time.Now()
	for _, v := range vouchers {
		v.ID = primitive.NewObjectID()
		v.Status = models.VoucherAvailable
		v.AssignedTo = ""
		v.CreatedAt = now
		docs = append(docs, v)
	}

	res, err := s.collection.InsertMany(ctx, docs)
	if err != nil {
		logging.Logger.Errorf("Failed to load vouchers: %v", err)
		return 0, fmt.Errorf("%w: loading vouchers: %v", ErrStoreUnavailable, err)
	}
	return len(res.InsertedIDs), nil
}

// List returns the voucher inventory, optionally filtered by status.
func (s *VoucherService) List(ctx context.Context, statusFilter string) ([]models.Voucher, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := bson.M{}
	if statusFilter != "" {
		if statusFilter != models.VoucherAvailable && statusFilter != models.VoucherAssigned {
			return nil, fmt.Errorf("%w: invalid status filter %q", ErrBadEvent, statusFilter)
		}
		query["status"] = statusFilter
	}

	cur, err := s.collection.Find(ctx, query, options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		logging.Logger.Errorf("Failed to fetch vouchers: %v", err)
		return nil, fmt.Errorf("%w: fetching vouchers: %v", ErrStoreUnavailable, err)
	}
	defer cur.Close(ctx)

	var vouchers []models.Voucher
	if err := cur.All(ctx, &vouchers); err != nil {
		logging.Logger.Errorf("Failed to decode vouchers: %v", err)
		return nil, fmt.Errorf("%w: decoding vouchers: %v", ErrStoreUnavailable, err)
	}
	return vouchers, nil
}
