package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shortstay-server/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Listing{},
		&models.ListingBlock{},
		&models.Booking{},
		&models.Transaction{},
		&models.Notification{},
	))
	return db
}

func testConfig() Config {
	return Config{
		PlatformFeePercent: 7,
		AutoReleaseHours:   24,
		SweepInterval:      time.Minute,
		WatcherBatchSize:   10,
		ProviderTimeout:    time.Second,
	}
}

// stubProvider counts transfers and fails on demand.
type stubProvider struct {
	mu       sync.Mutex
	calls    int
	failWith error
	failFor  map[string]error // keyed by reference, overrides failWith
	ref      string
}

func (p *stubProvider) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if err, ok := p.failFor[req.Reference]; ok && err != nil {
		return nil, err
	}
	if p.failWith != nil {
		return nil, p.failWith
	}
	return &TransferResult{Reference: p.ref, Status: "success"}, nil
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func newTestStack(t *testing.T) (*gorm.DB, *BookingService, *PayoutEngine, *stubProvider) {
	t.Helper()
	db := newTestDB(t)
	provider := &stubProvider{ref: "prov-ref-1"}
	engine := NewPayoutEngine(db, provider, testConfig())
	bookings := NewBookingService(db, engine, testConfig())
	return db, bookings, engine, provider
}

var userSeq uint64

func createHost(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	host := models.User{
		FirstName:           "Aicha",
		LastName:            "Mint",
		Email:               fmt.Sprintf("host-%d@example.com", atomic.AddUint64(&userSeq, 1)),
		PayoutMethod:        models.PayoutMethodMobileMoney,
		MobileMoneyNumber:   "22233344",
		MobileMoneyProvider: "bankily",
	}
	require.NoError(t, db.Create(&host).Error)
	return &host
}

func createGuest(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	guest := models.User{
		FirstName: "Moussa",
		LastName:  "Ba",
		Email:     fmt.Sprintf("guest-%d@example.com", atomic.AddUint64(&userSeq, 1)),
	}
	require.NoError(t, db.Create(&guest).Error)
	return &guest
}

func createListing(t *testing.T, db *gorm.DB, hostID uint) *models.Listing {
	t.Helper()
	active := true
	listing := models.Listing{
		HostID:       hostID,
		Title:        "Seaside apartment",
		Capacity:     4,
		NightlyPrice: 500,
		CleaningFee:  10,
		ServiceFee:   100,
		TaxRate:      18,
		Currency:     "MRU",
		MinNights:    1,
		MaxNights:    30,
		IsActive:     &active,
	}
	require.NoError(t, db.Create(&listing).Error)
	return &listing
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// paidBooking creates a booking and walks it through payment confirmation.
func paidBooking(t *testing.T, bookings *BookingService, listingID, guestID uint, checkIn, checkOut time.Time) *models.Booking {
	t.Helper()
	booking, err := bookings.Create(context.Background(), CreateBookingInput{
		ListingID:     listingID,
		GuestID:       guestID,
		CheckIn:       checkIn,
		CheckOut:      checkOut,
		NumGuests:     2,
		PaymentMethod: "card",
	})
	require.NoError(t, err)

	booking, err = bookings.ConfirmPayment(booking.ID, "order-1", "txn-1")
	require.NoError(t, err)
	require.Equal(t, models.BookingStatusAwaitingArrival, booking.Status)
	return booking
}

// markArrivalConfirmed flips the arrival sub-record directly so payout tests
// can exercise the engine without going through the booking service.
func markArrivalConfirmed(t *testing.T, db *gorm.DB, bookingID uint) {
	t.Helper()
	require.NoError(t, db.Model(&models.Booking{}).Where("id = ?", bookingID).
		Updates(map[string]interface{}{
			"arrival_confirmed": true,
			"status":            models.BookingStatusInProgress,
			"payout_status":     models.PayoutStatusReady,
		}).Error)
}

func countTransactions(t *testing.T, db *gorm.DB, bookingID uint, txType string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Transaction{}).
		Where("booking_id = ? AND type = ?", bookingID, txType).Count(&n).Error)
	return n
}
