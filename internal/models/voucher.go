package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Voucher statuses. A voucher moves available -> assigned at most once,
// ever; there is no release path.
const (
	VoucherAvailable = "available"
	VoucherAssigned  = "assigned"
)

// Voucher is one prepaid bundle code in the inventory pool.
type Voucher struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Code       string             `bson:"code" json:"code"`
	Package    string             `bson:"package" json:"package"`
	Network    string             `bson:"network" json:"network"`
	Status     string             `bson:"status" json:"status"`
	AssignedTo string             `bson:"assigned_to,omitempty" json:"assigned_to,omitempty"`
	AssignedAt time.Time          `bson:"assigned_at,omitempty" json:"assigned_at,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}
