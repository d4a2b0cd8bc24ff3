package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"shortstay-server/models"
	"shortstay-server/storage"

	"golang.org/x/exp/slices"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BookingService owns the booking lifecycle: creation with the availability
// check, host confirmation, payment confirmation, arrival confirmation and
// cancellation. State transitions for one booking are serialized through
// optimistic status checks on the row itself.
type BookingService struct {
	DB     *gorm.DB
	Engine *PayoutEngine
	Config Config
	Now    func() time.Time

	// Notify is fire-and-forget; a nil sender or a send failure never
	// affects booking state.
	Notify *NotificationService
}

func NewBookingService(db *gorm.DB, engine *PayoutEngine, cfg Config) *BookingService {
	return &BookingService{DB: db, Engine: engine, Config: cfg, Now: time.Now}
}

type CreateBookingInput struct {
	ListingID     uint
	GuestID       uint
	CheckIn       time.Time
	CheckOut      time.Time
	NumGuests     int
	PaymentMethod string
	Note          string
}

// Create validates the request, captures the pricing snapshot and inserts the
// booking in `pending`. The overlap check and the insert run as one unit:
// a per-listing lease plus a row lock on the listing keep two concurrent
// requests for overlapping dates from both succeeding.
func (s *BookingService) Create(ctx context.Context, input CreateBookingInput) (*models.Booking, error) {
	if !input.CheckIn.Before(input.CheckOut) {
		return nil, &ValidationError{Message: "checkIn must be before checkOut"}
	}
	if input.NumGuests < 1 {
		return nil, &ValidationError{Message: "at least one guest is required"}
	}

	release, err := storage.AcquireListingLease(ctx, input.ListingID)
	if err != nil {
		return nil, err
	}
	defer release()

	var booking models.Booking
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var listing models.Listing
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&listing, input.ListingID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return &NotFoundError{Resource: "listing", ID: input.ListingID}
			}
			return err
		}

		if listing.IsActive != nil && !*listing.IsActive {
			return &ValidationError{Message: "listing is not accepting bookings"}
		}
		if input.NumGuests > listing.Capacity {
			return &ConflictError{Message: fmt.Sprintf("guest count %d exceeds listing capacity %d", input.NumGuests, listing.Capacity)}
		}

		nights := int(input.CheckOut.Sub(input.CheckIn).Hours() / 24)
		if nights < 1 {
			nights = 1
		}
		if nights < listing.MinNights {
			return &ConflictError{Message: fmt.Sprintf("stay of %d nights is below the minimum of %d", nights, listing.MinNights)}
		}
		if listing.MaxNights > 0 && nights > listing.MaxNights {
			return &ConflictError{Message: fmt.Sprintf("stay of %d nights is above the maximum of %d", nights, listing.MaxNights)}
		}

		free, err := RangeAvailable(tx, listing.ID, input.CheckIn, input.CheckOut)
		if err != nil {
			return err
		}
		if !free {
			return &ConflictError{Message: "dates unavailable"}
		}

		// Pricing snapshot, immutable after this point.
		subtotal := round2(listing.NightlyPrice * float64(nights))
		taxes := round2(subtotal * listing.TaxRate / 100)
		total := round2(subtotal + listing.CleaningFee + listing.ServiceFee + taxes)
		platformFee, hostAmount := s.Engine.ComputeSplit(total)
		autoReleaseAt := input.CheckIn.Add(time.Duration(s.Config.AutoReleaseHours) * time.Hour)

		booking = models.Booking{
			ListingID:       listing.ID,
			GuestID:         input.GuestID,
			HostID:          listing.HostID,
			CheckIn:         input.CheckIn,
			CheckOut:        input.CheckOut,
			NumGuests:       input.NumGuests,
			Status:          models.BookingStatusPending,
			Note:            input.Note,
			NightlyRate:     listing.NightlyPrice,
			Nights:          nights,
			Subtotal:        subtotal,
			CleaningFee:     listing.CleaningFee,
			ServiceFee:      listing.ServiceFee,
			Taxes:           taxes,
			Total:           total,
			Currency:        listing.Currency,
			PaymentMethod:   input.PaymentMethod,
			PaymentStatus:   models.PaymentStatusPending,
			ArrivalRequired: true,
			PayoutStatus:    models.PayoutStatusPending,
			PlatformFee:     platformFee,
			HostAmount:      hostAmount,
			PayoutCurrency:  listing.Currency,
			AutoReleaseAt:   &autoReleaseAt,
		}
		return tx.Create(&booking).Error
	})
	if err != nil {
		return nil, err
	}

	if s.Notify != nil {
		go s.Notify.BookingRequested(&booking)
	}

	if err := s.DB.Preload("Listing").Preload("Guest").First(&booking, booking.ID).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

// Confirm is the host's pre-payment acknowledgment. Legal only from pending.
func (s *BookingService) Confirm(bookingID, hostID uint) (*models.Booking, error) {
	booking, err := s.load(bookingID)
	if err != nil {
		return nil, err
	}
	if booking.HostID != hostID {
		return nil, &NotFoundError{Resource: "booking", ID: bookingID}
	}
	if booking.Status != models.BookingStatusPending {
		return nil, &InvalidStateError{Message: "only a pending booking can be confirmed, current status is " + booking.Status}
	}

	res := s.DB.Model(&models.Booking{}).
		Where("id = ? AND status = ?", bookingID, models.BookingStatusPending).
		Update("status", models.BookingStatusConfirmed)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, &InvalidStateError{Message: "booking left the pending state while confirming"}
	}
	return s.load(bookingID)
}

// ConfirmPayment records a successful charge reported by the payment
// provider's webhook. It is idempotent: a replayed delivery for a booking
// already at awaiting_arrival_confirmation or later is treated as success
// without recomputing state.
func (s *BookingService) ConfirmPayment(bookingID uint, orderID, providerRef string) (*models.Booking, error) {
	booking, err := s.load(bookingID)
	if err != nil {
		return nil, err
	}

	switch booking.Status {
	case models.BookingStatusAwaitingArrival, models.BookingStatusInProgress, models.BookingStatusCompleted:
		return booking, nil // webhook re-delivery
	case models.BookingStatusPending, models.BookingStatusConfirmed:
		// legal transition below
	default:
		return nil, &InvalidStateError{Message: "payment cannot be confirmed for a booking in status " + booking.Status}
	}

	now := s.Now()
	// The split is recomputed from the stored snapshot total, never from the
	// live listing: pricing changes after creation must not alter the booking.
	platformFee, hostAmount := s.Engine.ComputeSplit(booking.Total)
	autoReleaseAt := booking.CheckIn.Add(time.Duration(s.Config.AutoReleaseHours) * time.Hour)

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Booking{}).
			Where("id = ? AND status IN ?", bookingID,
				[]string{models.BookingStatusPending, models.BookingStatusConfirmed}).
			Updates(map[string]interface{}{
				"status":           models.BookingStatusAwaitingArrival,
				"payment_status":   models.PaymentStatusCompleted,
				"paid_at":          now,
				"payment_order_id": orderID,
				"payment_ref":      providerRef,
				"platform_fee":     platformFee,
				"host_amount":      hostAmount,
				"auto_release_at":  autoReleaseAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil // a concurrent delivery already applied the transition
		}

		metadata, _ := json.Marshal(map[string]string{"orderId": orderID})
		entry := models.Transaction{
			BookingID:   bookingID,
			Type:        models.TransactionTypeBooking,
			Amount:      booking.Total,
			PlatformFee: platformFee,
			HostPayout:  hostAmount,
			Currency:    booking.Currency,
			Status:      models.TransactionStatusCompleted,
			ProviderRef: providerRef,
			Metadata:    metadata,
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return nil, err
	}

	booking, err = s.load(bookingID)
	if err != nil {
		return nil, err
	}
	if s.Notify != nil {
		go s.Notify.PaymentReceived(booking)
	}
	return booking, nil
}

// ArrivalResult is the partial-success shape for ConfirmArrival: arrival
// confirmation must never fail because the payout rail is down.
type ArrivalResult struct {
	Booking          *models.Booking `json:"booking"`
	ArrivalConfirmed bool            `json:"arrivalConfirmed"`
	PayoutReleased   bool            `json:"payoutReleased"`
	PayoutError      string          `json:"payoutError,omitempty"`
}

// ConfirmArrival marks the stay as started and asks the payout engine to
// release funds. confirmedBy is nil when the auto-release watcher forces the
// confirmation. Re-invocation on an already-confirmed booking is a no-op for
// the arrival record but still retries an unfinished payout.
func (s *BookingService) ConfirmArrival(ctx context.Context, bookingID uint, confirmedBy *uint, releaseReason string) (*ArrivalResult, error) {
	booking, err := s.load(bookingID)
	if err != nil {
		return nil, err
	}
	if booking.PaymentStatus != models.PaymentStatusCompleted {
		return nil, &InvalidStateError{Message: "arrival cannot be confirmed before payment completes"}
	}
	if booking.IsTerminal() {
		return nil, &InvalidStateError{Message: "booking is already " + booking.Status}
	}

	if !booking.ArrivalConfirmed {
		now := s.Now()
		updates := map[string]interface{}{
			"arrival_confirmed": true,
			"status":            models.BookingStatusInProgress,
		}
		if confirmedBy != nil {
			updates["arrival_confirmed_by"] = *confirmedBy
			updates["arrival_confirmed_at"] = now
		} else {
			updates["auto_confirmed_at"] = now
		}
		if slices.Contains([]string{models.PayoutStatusPending, models.PayoutStatusFailed}, booking.PayoutStatus) {
			updates["payout_status"] = models.PayoutStatusReady
		}

		// Optimistic check: only the first of two racing confirmations
		// (guest vs watcher) applies the transition.
		res := s.DB.Model(&models.Booking{}).
			Where("id = ? AND arrival_confirmed = ? AND status = ?",
				bookingID, false, models.BookingStatusAwaitingArrival).
			Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
	}

	result := &ArrivalResult{ArrivalConfirmed: true}
	released, err := s.Engine.Release(ctx, bookingID, releaseReason)
	switch err := err.(type) {
	case nil:
		result.Booking = released
		result.PayoutReleased = true
		if s.Notify != nil {
			go s.Notify.PayoutReleased(released)
		}
	case *PayoutProviderError, *PayoutConfigError:
		// Arrival stays confirmed; the payout failure is surfaced separately
		// and retried by the watcher or an explicit retry.
		result.PayoutError = err.Error()
		log.Printf("booking %d: arrival confirmed but payout not released: %v", bookingID, err)
		b, loadErr := s.load(bookingID)
		if loadErr != nil {
			return nil, loadErr
		}
		result.Booking = b
		if s.Notify != nil {
			go s.Notify.PayoutFailed(b)
		}
	default:
		return nil, err
	}
	return result, nil
}

// Cancel terminates a booking from any non-terminal state. If the payout has
// not completed it is marked cancelled and never attempted.
func (s *BookingService) Cancel(bookingID, cancelledBy uint, reason string) (*models.Booking, error) {
	booking, err := s.load(bookingID)
	if err != nil {
		return nil, err
	}
	if booking.IsTerminal() {
		return nil, &InvalidStateError{Message: "booking is already " + booking.Status}
	}

	status := models.BookingStatusCancelledByHost
	if cancelledBy == booking.GuestID {
		status = models.BookingStatusCancelledByGuest
	}

	now := s.Now()
	updates := map[string]interface{}{
		"status":        status,
		"cancelled_by":  cancelledBy,
		"cancelled_at":  now,
		"cancel_reason": reason,
	}
	if booking.PayoutStatus != models.PayoutStatusCompleted {
		updates["payout_status"] = models.PayoutStatusCancelled
	}

	res := s.DB.Model(&models.Booking{}).
		Where("id = ? AND status NOT IN ?", bookingID, []string{
			models.BookingStatusCompleted,
			models.BookingStatusCancelledByGuest,
			models.BookingStatusCancelledByHost,
			models.BookingStatusRefunded,
		}).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, &InvalidStateError{Message: "booking reached a terminal state while cancelling"}
	}

	booking, err = s.load(bookingID)
	if err != nil {
		return nil, err
	}
	if s.Notify != nil {
		go s.Notify.BookingCancelled(booking)
	}
	return booking, nil
}

// Refund records a refund for a post-payment booking: the booking moves to
// `refunded`, the payment sub-record flips, and a negative-amount refund
// entry is appended to the ledger. History is never rewritten.
func (s *BookingService) Refund(bookingID, initiatedBy uint, amount float64, reason string) (*models.Booking, error) {
	booking, err := s.load(bookingID)
	if err != nil {
		return nil, err
	}
	if booking.PaymentStatus != models.PaymentStatusCompleted {
		return nil, &InvalidStateError{Message: "only a paid booking can be refunded"}
	}
	if booking.Status == models.BookingStatusRefunded {
		return booking, nil
	}
	if booking.PayoutStatus == models.PayoutStatusCompleted {
		return nil, &InvalidStateError{Message: "funds were already released to the host; refund requires a manual reversal"}
	}
	if amount <= 0 || amount > booking.Total {
		return nil, &ValidationError{Message: "refund amount must be positive and at most the booking total"}
	}

	now := s.Now()
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Booking{}).
			Where("id = ? AND status <> ?", bookingID, models.BookingStatusRefunded).
			Updates(map[string]interface{}{
				"status":         models.BookingStatusRefunded,
				"payment_status": models.PaymentStatusRefunded,
				"payout_status":  models.PayoutStatusCancelled,
				"cancelled_by":   initiatedBy,
				"cancelled_at":   now,
				"cancel_reason":  reason,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		metadata, _ := json.Marshal(map[string]string{"reason": reason})
		entry := models.Transaction{
			BookingID: bookingID,
			Type:      models.TransactionTypeRefund,
			Amount:    -amount,
			Currency:  booking.Currency,
			Status:    models.TransactionStatusCompleted,
			Metadata:  metadata,
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return nil, err
	}
	return s.load(bookingID)
}

func (s *BookingService) load(bookingID uint) (*models.Booking, error) {
	var booking models.Booking
	if err := s.DB.Preload("Listing").First(&booking, bookingID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &NotFoundError{Resource: "booking", ID: bookingID}
		}
		return nil, err
	}
	return &booking, nil
}
