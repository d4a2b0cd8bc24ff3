package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"shortstay-server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSplitConservation(t *testing.T) {
	engine := &PayoutEngine{Config: testConfig()}

	cases := []struct {
		total       float64
		platformFee float64
		hostAmount  float64
	}{
		{1290, 90.30, 1199.70},
		{100, 7, 93},
		{0.01, 0, 0.01},
		{0, 0, 0},
		{999.99, 70, 929.99},
	}
	for _, c := range cases {
		fee, host := engine.ComputeSplit(c.total)
		assert.InDelta(t, c.platformFee, fee, 0.001, "platform fee for total %.2f", c.total)
		assert.InDelta(t, c.hostAmount, host, 0.001, "host amount for total %.2f", c.total)
		assert.InDelta(t, c.total, fee+host, 0.001, "split must conserve the total %.2f", c.total)
		assert.GreaterOrEqual(t, fee, 0.0)
		assert.GreaterOrEqual(t, host, 0.0)
	}
}

func TestDestinationForHost(t *testing.T) {
	t.Run("mobile money complete", func(t *testing.T) {
		dest, err := DestinationForHost(&models.User{
			PayoutMethod:        models.PayoutMethodMobileMoney,
			MobileMoneyNumber:   "22233344",
			MobileMoneyProvider: "bankily",
		})
		require.NoError(t, err)
		assert.Equal(t, models.PayoutMethodMobileMoney, dest.Method)
		assert.Equal(t, "22233344", dest.PhoneNumber)
		assert.Empty(t, dest.AccountNumber)
	})

	t.Run("bank account complete", func(t *testing.T) {
		dest, err := DestinationForHost(&models.User{
			PayoutMethod:      models.PayoutMethodBankAccount,
			BankAccountName:   "Aicha Mint",
			BankAccountNumber: "0001112223",
			BankName:          "BNM",
		})
		require.NoError(t, err)
		assert.Equal(t, models.PayoutMethodBankAccount, dest.Method)
		assert.Equal(t, "0001112223", dest.AccountNumber)
		assert.Empty(t, dest.PhoneNumber)
	})

	t.Run("incomplete profiles", func(t *testing.T) {
		hosts := []*models.User{
			{PayoutMethod: models.PayoutMethodBankAccount, BankAccountName: "Aicha Mint"},
			{PayoutMethod: models.PayoutMethodMobileMoney, MobileMoneyNumber: "22233344"},
			{PayoutMethod: ""},
			{PayoutMethod: "carrier_pigeon"},
		}
		for _, host := range hosts {
			dest, err := DestinationForHost(host)
			assert.Nil(t, dest)
			var cfgErr *PayoutConfigError
			assert.ErrorAs(t, err, &cfgErr, "method %q", host.PayoutMethod)
		}
	})
}

func TestReleaseSuccess(t *testing.T) {
	db, bookings, engine, provider := newTestStack(t)
	host := createHost(t, db)
	guest := createGuest(t, db)
	listing := createListing(t, db, host.ID)

	booking := paidBooking(t, bookings, listing.ID, guest.ID,
		date(2026, 9, 10), date(2026, 9, 12))
	markArrivalConfirmed(t, db, booking.ID)

	released, err := engine.Release(context.Background(), booking.ID, ReleaseReasonGuestConfirm)
	require.NoError(t, err)

	assert.Equal(t, models.PayoutStatusCompleted, released.PayoutStatus)
	assert.Equal(t, "prov-ref-1", released.PayoutRef)
	assert.NotNil(t, released.ReleasedAt)
	assert.Empty(t, released.PayoutFailureReason)
	assert.InDelta(t, released.Total, released.PlatformFee+released.HostAmount, 0.001)

	var dest models.PayoutDestinationSnapshot
	require.NoError(t, json.Unmarshal(released.PayoutDestination, &dest))
	assert.Equal(t, models.PayoutMethodMobileMoney, dest.Method)
	assert.Equal(t, host.MobileMoneyNumber, dest.PhoneNumber)

	assert.EqualValues(t, 1, countTransactions(t, db, booking.ID, models.TransactionTypePayout))
	assert.Equal(t, 1, provider.callCount())
}

func TestReleaseIsIdempotent(t *testing.T) {
	db, bookings, engine, provider := newTestStack(t)
	host := createHost(t, db)
	guest := createGuest(t, db)
	listing := createListing(t, db, host.ID)

	booking := paidBooking(t, bookings, listing.ID, guest.ID,
		date(2026, 9, 10), date(2026, 9, 12))
	markArrivalConfirmed(t, db, booking.ID)

	first, err := engine.Release(context.Background(), booking.ID, ReleaseReasonGuestConfirm)
	require.NoError(t, err)
	second, err := engine.Release(context.Background(), booking.ID, ReleaseReasonRetry)
	require.NoError(t, err)

	assert.Equal(t, first.PayoutRef, second.PayoutRef)
	assert.Equal(t, models.PayoutStatusCompleted, second.PayoutStatus)
	assert.Equal(t, 1, provider.callCount(), "a completed payout must not hit the provider again")
	assert.EqualValues(t, 1, countTransactions(t, db, booking.ID, models.TransactionTypePayout))
}

func TestReleaseProviderFailureIsRetryable(t *testing.T) {
	db, bookings, engine, provider := newTestStack(t)
	host := createHost(t, db)
	guest := createGuest(t, db)
	listing := createListing(t, db, host.ID)

	booking := paidBooking(t, bookings, listing.ID, guest.ID,
		date(2026, 9, 10), date(2026, 9, 12))
	markArrivalConfirmed(t, db, booking.ID)

	provider.failWith = errors.New("rail timeout")
	_, err := engine.Release(context.Background(), booking.ID, ReleaseReasonGuestConfirm)
	var provErr *PayoutProviderError
	require.ErrorAs(t, err, &provErr)

	var stored models.Booking
	require.NoError(t, db.First(&stored, booking.ID).Error)
	assert.Equal(t, models.PayoutStatusFailed, stored.PayoutStatus)
	assert.Contains(t, stored.PayoutFailureReason, "rail timeout")
	assert.EqualValues(t, 0, countTransactions(t, db, booking.ID, models.TransactionTypePayout))

	// Next attempt succeeds and clears the failure record.
	provider.failWith = nil
	released, err := engine.Release(context.Background(), booking.ID, ReleaseReasonRetry)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusCompleted, released.PayoutStatus)
	assert.Empty(t, released.PayoutFailureReason)
	assert.EqualValues(t, 1, countTransactions(t, db, booking.ID, models.TransactionTypePayout))
}

func TestReleaseRequiresCompletedPayment(t *testing.T) {
	db, bookings, engine, provider := newTestStack(t)
	host := createHost(t, db)
	guest := createGuest(t, db)
	listing := createListing(t, db, host.ID)

	booking, err := bookings.Create(context.Background(), CreateBookingInput{
		ListingID: listing.ID,
		GuestID:   guest.ID,
		CheckIn:   date(2026, 9, 10),
		CheckOut:  date(2026, 9, 12),
		NumGuests: 2,
	})
	require.NoError(t, err)

	_, err = engine.Release(context.Background(), booking.ID, ReleaseReasonGuestConfirm)
	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, 0, provider.callCount())
}

func TestReleaseIncompletePayoutProfile(t *testing.T) {
	db, bookings, engine, provider := newTestStack(t)
	host := createHost(t, db)
	guest := createGuest(t, db)
	listing := createListing(t, db, host.ID)

	booking := paidBooking(t, bookings, listing.ID, guest.ID,
		date(2026, 9, 10), date(2026, 9, 12))
	markArrivalConfirmed(t, db, booking.ID)

	// Host wipes their payout profile before release.
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", host.ID).
		Updates(map[string]interface{}{"mobile_money_number": "", "mobile_money_provider": ""}).Error)

	_, err := engine.Release(context.Background(), booking.ID, ReleaseReasonGuestConfirm)
	var cfgErr *PayoutConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, 0, provider.callCount(), "an invalid destination must fail before the provider call")

	var stored models.Booking
	require.NoError(t, db.First(&stored, booking.ID).Error)
	assert.NotEqual(t, models.PayoutStatusCompleted, stored.PayoutStatus)
	assert.EqualValues(t, 0, countTransactions(t, db, booking.ID, models.TransactionTypePayout))
}

func TestReleaseRequiresConfirmedArrival(t *testing.T) {
	db, bookings, engine, provider := newTestStack(t)
	host := createHost(t, db)
	guest := createGuest(t, db)
	listing := createListing(t, db, host.ID)

	// Paid but the guest has not confirmed arrival: funds stay in escrow
	// even when release is requested directly (e.g. an admin retry).
	booking := paidBooking(t, bookings, listing.ID, guest.ID,
		date(2026, 9, 10), date(2026, 9, 12))

	_, err := engine.Release(context.Background(), booking.ID, ReleaseReasonRetry)
	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, 0, provider.callCount())

	var stored models.Booking
	require.NoError(t, db.First(&stored, booking.ID).Error)
	assert.Equal(t, models.BookingStatusAwaitingArrival, stored.Status)
	assert.Equal(t, models.PayoutStatusPending, stored.PayoutStatus)
	assert.EqualValues(t, 0, countTransactions(t, db, booking.ID, models.TransactionTypePayout))
}

func TestReleaseCancelledPayout(t *testing.T) {
	db, bookings, engine, provider := newTestStack(t)
	host := createHost(t, db)
	guest := createGuest(t, db)
	listing := createListing(t, db, host.ID)

	booking := paidBooking(t, bookings, listing.ID, guest.ID,
		date(2026, 9, 10), date(2026, 9, 12))
	require.NoError(t, db.Model(&models.Booking{}).Where("id = ?", booking.ID).
		Update("payout_status", models.PayoutStatusCancelled).Error)

	_, err := engine.Release(context.Background(), booking.ID, ReleaseReasonRetry)
	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, 0, provider.callCount())
}

func TestPayoutReferenceIsDeterministic(t *testing.T) {
	assert.Equal(t, "payout-booking-42", PayoutReference(42))
	assert.Equal(t, PayoutReference(7), PayoutReference(7))
}
