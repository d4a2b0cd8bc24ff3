package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Booking lifecycle statuses.
const (
	BookingStatusPending          = "pending"
	BookingStatusConfirmed        = "confirmed"
	BookingStatusAwaitingArrival  = "awaiting_arrival_confirmation"
	BookingStatusInProgress       = "in_progress"
	BookingStatusCompleted        = "completed"
	BookingStatusCancelledByGuest = "cancelled_by_guest"
	BookingStatusCancelledByHost  = "cancelled_by_host"
	BookingStatusRefunded         = "refunded"
)

// BlockingStatuses are the booking statuses that reserve the listing's
// calendar against new overlapping bookings.
var BlockingStatuses = []string{
	BookingStatusPending,
	BookingStatusConfirmed,
	BookingStatusAwaitingArrival,
	BookingStatusInProgress,
}

// Payment sub-record statuses.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusRefunded  = "refunded"
)

// Payout sub-record statuses.
const (
	PayoutStatusPending   = "pending"
	PayoutStatusReady     = "ready_for_release"
	PayoutStatusCompleted = "completed"
	PayoutStatusFailed    = "failed"
	PayoutStatusCancelled = "cancelled"
)

// Booking models a guest's stay at a listing together with its payment,
// arrival-confirmation and escrow payout sub-records. The pricing fields are
// a snapshot captured at creation and are never recomputed from the listing.
type Booking struct {
	gorm.Model
	ListingID uint      `json:"listingID" gorm:"index"`
	GuestID   uint      `json:"guestID" gorm:"index"`
	HostID    uint      `json:"hostID" gorm:"index"`
	CheckIn   time.Time `json:"checkIn"`
	CheckOut  time.Time `json:"checkOut"`
	NumGuests int       `json:"numGuests"`
	Status    string    `json:"status" gorm:"type:varchar(40);index"`
	Note      string    `json:"note"`

	// Pricing snapshot
	NightlyRate float64 `json:"nightlyRate"`
	Nights      int     `json:"nights"`
	Subtotal    float64 `json:"subtotal"`
	CleaningFee float64 `json:"cleaningFee"`
	ServiceFee  float64 `json:"serviceFee"`
	Taxes       float64 `json:"taxes"`
	Total       float64 `json:"total"`
	Currency    string  `json:"currency" gorm:"type:varchar(8)"`

	// Payment sub-record
	PaymentMethod  string     `json:"paymentMethod"`
	PaymentOrderID string     `json:"paymentOrderID"` // provider order id
	PaymentRef     string     `json:"paymentRef"`     // provider transaction reference
	PaymentStatus  string     `json:"paymentStatus" gorm:"type:varchar(20);default:'pending'"`
	PaidAt         *time.Time `json:"paidAt"`

	// Arrival sub-record
	ArrivalRequired    bool       `json:"arrivalRequired" gorm:"default:true"`
	ArrivalConfirmed   bool       `json:"arrivalConfirmed" gorm:"default:false"`
	ArrivalConfirmedBy *uint      `json:"arrivalConfirmedBy"`
	ArrivalConfirmedAt *time.Time `json:"arrivalConfirmedAt"`
	AutoConfirmedAt    *time.Time `json:"autoConfirmedAt"`

	// Payout sub-record
	PayoutStatus        string         `json:"payoutStatus" gorm:"type:varchar(30);default:'pending';index"`
	PlatformFee         float64        `json:"platformFee"`
	HostAmount          float64        `json:"hostAmount"`
	PayoutCurrency      string         `json:"payoutCurrency" gorm:"type:varchar(8)"`
	PayoutDestination   datatypes.JSON `json:"payoutDestination"` // snapshot captured at release time
	AutoReleaseAt       *time.Time     `json:"autoReleaseAt" gorm:"index"`
	ReleasedAt          *time.Time     `json:"releasedAt"`
	PayoutRef           string         `json:"payoutRef"`
	PayoutFailureReason string         `json:"payoutFailureReason"`

	// Cancellation sub-record
	CancelledBy  *uint      `json:"cancelledBy"`
	CancelledAt  *time.Time `json:"cancelledAt"`
	CancelReason string     `json:"cancelReason"`

	// Relationships
	Listing *Listing `json:"listing,omitempty" gorm:"foreignKey:ListingID"`
	Guest   *User    `json:"guest,omitempty" gorm:"foreignKey:GuestID"`
	Host    *User    `json:"host,omitempty" gorm:"foreignKey:HostID"`
}

// IsTerminal reports whether the booking can no longer change lifecycle state.
func (b *Booking) IsTerminal() bool {
	switch b.Status {
	case BookingStatusCompleted, BookingStatusCancelledByGuest,
		BookingStatusCancelledByHost, BookingStatusRefunded:
		return true
	}
	return false
}

// PayoutDestinationSnapshot is the tagged-union destination captured onto a
// booking when funds are released. Later edits to the host's payout profile
// never alter a completed payout record.
type PayoutDestinationSnapshot struct {
	Method string `json:"method"` // bank_account, mobile_money

	// bank_account variant
	AccountName   string `json:"accountName,omitempty"`
	AccountNumber string `json:"accountNumber,omitempty"`
	BankName      string `json:"bankName,omitempty"`

	// mobile_money variant
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Provider    string `json:"provider,omitempty"`
}
