package models

import "gorm.io/gorm"

// Booking mirrors a transaction into the legacy relational reporting
// database. It is a best-effort write-through copy; the Mongo transaction
// record stays authoritative.
type Booking struct {
	gorm.Model

	Reference string `gorm:"column:reference;uniqueIndex:idx_booking_ref;size:50"`

	Phone string `gorm:"column:phone;size:15"`

	Amount int64 `gorm:"column:amount"`

	BookingStatus string `gorm:"column:status;size:20"`

	PaymentMethod string `gorm:"column:payment_method;size:50"`

	ConfirmationCode string `gorm:"column:confirmation_code;size:100"`
}

func (Booking) TableName() string {
	return "bookings"
}
