package models

import (
	"time"

	"gorm.io/gorm"
)

type Listing struct {
	gorm.Model
	HostID       uint    `json:"hostID" gorm:"index"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	AddressLine1 string  `json:"addressLine1"`
	City         string  `json:"city"`
	Country      string  `json:"country"`
	Capacity     int     `json:"capacity"`
	NightlyPrice float64 `json:"nightlyPrice"`
	CleaningFee  float64 `json:"cleaningFee"`
	ServiceFee   float64 `json:"serviceFee"`
	TaxRate      float64 `json:"taxRate"` // percentage applied to the subtotal
	Currency     string  `json:"currency" gorm:"type:varchar(8);default:'MRU'"`
	MinNights    int     `json:"minNights" gorm:"default:1"`
	MaxNights    int     `json:"maxNights" gorm:"default:0"` // 0 = no upper bound
	IsActive     *bool   `json:"isActive"`
	Host         User    `json:"host" gorm:"foreignKey:HostID;references:ID"`

	Bookings []Booking      `json:"bookings,omitempty" gorm:"foreignKey:ListingID"`
	Blocks   []ListingBlock `json:"blocks,omitempty" gorm:"foreignKey:ListingID"`
}

// ListingBlock is a host-imposed hold on a listing's calendar over
// [StartDate, EndDate). Blocks never overlap each other or an active booking.
type ListingBlock struct {
	gorm.Model
	ListingID uint      `json:"listingID" gorm:"not null;index"`
	StartDate time.Time `json:"startDate" gorm:"not null"`
	EndDate   time.Time `json:"endDate" gorm:"not null"`
	Reason    string    `json:"reason"`
	CreatedBy uint      `json:"createdBy"`
	Listing   Listing   `json:"listing" gorm:"foreignKey:ListingID"`
}
