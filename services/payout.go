package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	"shortstay-server/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Release reasons recorded on payout ledger entries.
const (
	ReleaseReasonGuestConfirm = "guest_confirmation"
	ReleaseReasonAdminConfirm = "admin_confirmation"
	ReleaseReasonAutoRelease  = "auto_release"
	ReleaseReasonRetry        = "retry"
)

// PayoutEngine releases escrowed funds to hosts. For a booking with completed
// payment it produces exactly one successful payout or a retryable failed
// state; repeated invocations converge on the same terminal reference.
type PayoutEngine struct {
	DB       *gorm.DB
	Provider PayoutProvider
	Config   Config
	Now      func() time.Time
}

func NewPayoutEngine(db *gorm.DB, provider PayoutProvider, cfg Config) *PayoutEngine {
	return &PayoutEngine{DB: db, Provider: provider, Config: cfg, Now: time.Now}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ComputeSplit divides a booking total into the platform fee and the host
// payout. platformFee + hostAmount == total within rounding tolerance.
func (e *PayoutEngine) ComputeSplit(total float64) (platformFee, hostAmount float64) {
	platformFee = round2(total * e.Config.PlatformFeePercent / 100)
	if platformFee < 0 {
		platformFee = 0
	}
	if platformFee > total {
		platformFee = total
	}
	hostAmount = round2(total - platformFee)
	if hostAmount < 0 {
		hostAmount = 0
	}
	return platformFee, hostAmount
}

// DestinationForHost validates the host's payout profile and returns the
// snapshot to send to the provider. An incomplete profile fails fast and
// leaves the booking untouched.
func DestinationForHost(host *models.User) (*models.PayoutDestinationSnapshot, error) {
	switch host.PayoutMethod {
	case models.PayoutMethodBankAccount:
		if host.BankAccountName == "" || host.BankAccountNumber == "" || host.BankName == "" {
			return nil, &PayoutConfigError{Message: "bank account payout profile is incomplete: account name, account number and bank name are required"}
		}
		return &models.PayoutDestinationSnapshot{
			Method:        models.PayoutMethodBankAccount,
			AccountName:   host.BankAccountName,
			AccountNumber: host.BankAccountNumber,
			BankName:      host.BankName,
		}, nil
	case models.PayoutMethodMobileMoney:
		if host.MobileMoneyNumber == "" || host.MobileMoneyProvider == "" {
			return nil, &PayoutConfigError{Message: "mobile money payout profile is incomplete: phone number and provider are required"}
		}
		return &models.PayoutDestinationSnapshot{
			Method:      models.PayoutMethodMobileMoney,
			PhoneNumber: host.MobileMoneyNumber,
			Provider:    host.MobileMoneyProvider,
		}, nil
	case "":
		return nil, &PayoutConfigError{Message: "host has no payout method configured"}
	default:
		return nil, &PayoutConfigError{Message: "unknown payout method: " + host.PayoutMethod}
	}
}

// PayoutReference is the deterministic provider reference for a booking. It
// is derived from the booking id, never regenerated per attempt.
func PayoutReference(bookingID uint) string {
	return fmt.Sprintf("payout-booking-%d", bookingID)
}

// Release pays the host for a booking whose payment has completed and whose
// arrival has been confirmed; confirmation is what authorizes leaving escrow,
// so an unconfirmed booking is rejected no matter who asks. If the payout
// already completed it returns the booking unchanged without calling the
// provider. On provider failure the payout is marked failed with the reason
// recorded and the error is returned; the booking's lifecycle status is
// untouched so a later retry can succeed.
func (e *PayoutEngine) Release(ctx context.Context, bookingID uint, reason string) (*models.Booking, error) {
	var booking models.Booking
	if err := e.DB.Preload("Host").First(&booking, bookingID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &NotFoundError{Resource: "booking", ID: bookingID}
		}
		return nil, err
	}

	// Primary idempotency guard: a completed payout is never re-attempted.
	if booking.PayoutStatus == models.PayoutStatusCompleted {
		return &booking, nil
	}
	if booking.PayoutStatus == models.PayoutStatusCancelled {
		return nil, &InvalidStateError{Message: "payout was cancelled and cannot be released"}
	}
	if booking.PaymentStatus != models.PaymentStatusCompleted {
		return nil, &InvalidStateError{Message: "payout requires a completed payment"}
	}
	if !booking.ArrivalConfirmed {
		return nil, &InvalidStateError{Message: "payout requires a confirmed arrival"}
	}
	if booking.Host == nil {
		return nil, &NotFoundError{Resource: "host", ID: booking.HostID}
	}

	destination, err := DestinationForHost(booking.Host)
	if err != nil {
		return nil, err
	}

	platformFee, hostAmount := booking.PlatformFee, booking.HostAmount
	if platformFee == 0 && hostAmount == 0 {
		platformFee, hostAmount = e.ComputeSplit(booking.Total)
	}

	result, err := e.Provider.Transfer(ctx, TransferRequest{
		Amount:      hostAmount,
		Currency:    booking.Currency,
		Reference:   PayoutReference(booking.ID),
		Destination: *destination,
		Metadata: map[string]string{
			"bookingId":     fmt.Sprintf("%d", booking.ID),
			"hostId":        fmt.Sprintf("%d", booking.HostID),
			"releaseReason": reason,
		},
	})
	if err != nil {
		provErr := &PayoutProviderError{Reason: "transfer failed", Err: err}
		if updErr := e.DB.Model(&models.Booking{}).
			Where("id = ? AND payout_status <> ?", booking.ID, models.PayoutStatusCompleted).
			Updates(map[string]interface{}{
				"payout_status":         models.PayoutStatusFailed,
				"payout_failure_reason": err.Error(),
			}).Error; updErr != nil {
			log.Printf("payout: failed to record failure for booking %d: %v", booking.ID, updErr)
		}
		return nil, provErr
	}

	providerRef := result.Reference
	if providerRef == "" {
		providerRef = uuid.NewString()
	}

	destJSON, err := json.Marshal(destination)
	if err != nil {
		return nil, err
	}

	now := e.Now()
	txErr := e.DB.Transaction(func(tx *gorm.DB) error {
		// Compare-and-swap on payout status: if a concurrent release won the
		// race the update touches zero rows and we skip the ledger entry.
		res := tx.Model(&models.Booking{}).
			Where("id = ? AND payout_status <> ?", booking.ID, models.PayoutStatusCompleted).
			Updates(map[string]interface{}{
				"payout_status":         models.PayoutStatusCompleted,
				"platform_fee":          platformFee,
				"host_amount":           hostAmount,
				"payout_currency":       booking.Currency,
				"payout_destination":    destJSON,
				"released_at":           now,
				"payout_ref":            providerRef,
				"payout_failure_reason": "",
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil // already released by a concurrent caller
		}

		metadata, _ := json.Marshal(map[string]string{
			"releaseReason": reason,
			"reference":     PayoutReference(booking.ID),
		})
		entry := models.Transaction{
			BookingID:   booking.ID,
			Type:        models.TransactionTypePayout,
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
	if txErr != nil {
		return nil, txErr
	}

	if err := e.DB.Preload("Host").First(&booking, booking.ID).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}
