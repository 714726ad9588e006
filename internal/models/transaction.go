package models

import "time"

// Transaction is one payment attempt, keyed by order_id. Records are never
// deleted; reconciliation only merges fields forward.
type Transaction struct {
	OrderID          string    `bson:"order_id" json:"order_id"`
	Phone            string    `bson:"phone" json:"phone"`
	BuyerName        string    `bson:"buyer_name" json:"buyer_name"`
	BuyerEmail       string    `bson:"buyer_email" json:"buyer_email"`
	CustomerID       string    `bson:"customer_id" json:"customer_id"`
	Package          string    `bson:"package" json:"package"`
	Network          string    `bson:"network" json:"network"`
	Channel          string    `bson:"channel,omitempty" json:"channel,omitempty"`
	PaymentMethod    string    `bson:"payment_method,omitempty" json:"payment_method,omitempty"`
	Amount           int64     `bson:"amount" json:"amount"` // minor units (TZS)
	Status           string    `bson:"status" json:"status"` // canonical, see internal/status
	ConfirmationCode string    `bson:"confirmation_code,omitempty" json:"confirmation_code,omitempty"`
	TransactionRef   string    `bson:"transaction_ref,omitempty" json:"transaction_ref,omitempty"`
	AssignedVoucher  string    `bson:"assigned_voucher,omitempty" json:"assigned_voucher,omitempty"`
	VoucherNote      string    `bson:"voucher_note,omitempty" json:"voucher_note,omitempty"`
	CreatedAt        time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at" json:"updated_at"`
	CheckedAt        time.Time `bson:"checked_at,omitempty" json:"checked_at,omitempty"`
}
