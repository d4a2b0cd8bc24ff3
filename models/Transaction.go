package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Transaction types. One row per money movement.
const (
	TransactionTypeBooking         = "booking"
	TransactionTypeRefund          = "refund"
	TransactionTypePayout          = "payout"
	TransactionTypeCancellationFee = "cancellation_fee"
)

const (
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// Transaction is an append-only ledger entry recording a single money
// movement for a booking. Rows are never updated or deleted; corrections are
// made with new entries (e.g. a refund row with a negative amount).
type Transaction struct {
	gorm.Model
	BookingID   uint           `json:"bookingID" gorm:"not null;index"`
	Type        string         `json:"type" gorm:"type:varchar(30);not null;index"`
	Amount      float64        `json:"amount"`
	PlatformFee float64        `json:"platformFee"`
	HostPayout  float64        `json:"hostPayout"`
	Currency    string         `json:"currency" gorm:"type:varchar(8)"`
	Status      string         `json:"status" gorm:"type:varchar(20)"`
	ProviderRef string         `json:"providerRef"`
	Metadata    datatypes.JSON `json:"metadata"` // release reason, initiator, etc.
	Booking     *Booking       `json:"booking,omitempty" gorm:"foreignKey:BookingID"`
}
