package legacy

import (
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/zenobundle/zenobundle-gobackend/internal/logging"
	"github.com/zenobundle/zenobundle-gobackend/internal/models"
)

// Mirror writes bookings through to the legacy MySQL reporting database.
// The mirror is a secondary sink: every write is best-effort and a failure
// never propagates into reconciliation.
type Mirror struct {
	db *gorm.DB
}

// Open connects to the legacy database and migrates the bookings table.
func Open(dsn string) (*Mirror, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.Booking{}); err != nil {
		return nil, err
	}

	logging.Logger.Info("Legacy booking mirror connected")
	return &Mirror{db: db}, nil
}

// Write upserts the booking row for a transaction. Safe on a nil Mirror.
func (m *Mirror) Write(txn *models.Transaction) {
	if m == nil {
		return
	}

	booking := models.Booking{
		Reference:        txn.OrderID,
		Phone:            txn.Phone,
		Amount:           txn.Amount,
		BookingStatus:    txn.Status,
		PaymentMethod:    txn.PaymentMethod,
		ConfirmationCode: txn.ConfirmationCode,
	}

	res := m.db.Where("reference = ?", txn.OrderID).
		Assign(map[string]interface{}{
			"phone":             booking.Phone,
			"amount":            booking.Amount,
			"status":            booking.BookingStatus,
			"payment_method":    booking.PaymentMethod,
			"confirmation_code": booking.ConfirmationCode,
		}).
		FirstOrCreate(&models.Booking{Reference: txn.OrderID})
	if res.Error != nil {
		logging.Logger.Errorf("Legacy mirror write failed for %s: %v", txn.OrderID, res.Error)
	}
}
