package services

import (
	"context"
	"time"

	"shortstay-server/models"
	"shortstay-server/storage"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DateRange is a half-open [Start, End) hold on a listing's calendar.
type DateRange struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Source string    `json:"source"` // booking, block
	Reason string    `json:"reason,omitempty"`
}

// Two half-open ranges [a1,a2) and [b1,b2) conflict iff a1 < b2 && b1 < a2.
// In SQL that is `check_in < ? AND check_out > ?` against the candidate range.

// CountBookingConflicts returns how many bookings in a blocking status
// overlap [start, end) on the listing.
func CountBookingConflicts(db *gorm.DB, listingID uint, start, end time.Time) (int64, error) {
	var n int64
	err := db.Model(&models.Booking{}).
		Where("listing_id = ? AND status IN ? AND check_in < ? AND check_out > ?",
			listingID, models.BlockingStatuses, end, start).
		Count(&n).Error
	return n, err
}

// CountBlockConflicts returns how many host-imposed blocks overlap
// [start, end) on the listing.
func CountBlockConflicts(db *gorm.DB, listingID uint, start, end time.Time) (int64, error) {
	var n int64
	err := db.Model(&models.ListingBlock{}).
		Where("listing_id = ? AND start_date < ? AND end_date > ?", listingID, end, start).
		Count(&n).Error
	return n, err
}

// RangeAvailable reports whether [start, end) is free of blocking bookings
// and host blocks. Callers creating a booking must re-run this inside the
// locked transaction; on its own the answer can go stale immediately.
func RangeAvailable(db *gorm.DB, listingID uint, start, end time.Time) (bool, error) {
	bookings, err := CountBookingConflicts(db, listingID, start, end)
	if err != nil {
		return false, err
	}
	if bookings > 0 {
		return false, nil
	}
	blocks, err := CountBlockConflicts(db, listingID, start, end)
	if err != nil {
		return false, err
	}
	return blocks == 0, nil
}

// BlockedRanges returns every hold on the listing's calendar: blocking
// bookings plus host-imposed blocks, ordered by start date.
func BlockedRanges(db *gorm.DB, listingID uint) ([]DateRange, error) {
	var bookings []models.Booking
	if err := db.Where("listing_id = ? AND status IN ?", listingID, models.BlockingStatuses).
		Order("check_in ASC").Find(&bookings).Error; err != nil {
		return nil, err
	}

	var blocks []models.ListingBlock
	if err := db.Where("listing_id = ?", listingID).
		Order("start_date ASC").Find(&blocks).Error; err != nil {
		return nil, err
	}

	ranges := make([]DateRange, 0, len(bookings)+len(blocks))
	for _, b := range bookings {
		ranges = append(ranges, DateRange{Start: b.CheckIn, End: b.CheckOut, Source: "booking"})
	}
	for _, bl := range blocks {
		ranges = append(ranges, DateRange{Start: bl.StartDate, End: bl.EndDate, Source: "block", Reason: bl.Reason})
	}
	return ranges, nil
}

// CreateBlock inserts a host-imposed block after verifying it overlaps
// neither an existing block nor an active booking. It runs under the same
// per-listing lease and listing row lock as booking creation, so a block and
// a booking racing for the same dates cannot both land.
func CreateBlock(ctx context.Context, db *gorm.DB, listingID, hostID uint, start, end time.Time, reason string) (*models.ListingBlock, error) {
	if !start.Before(end) {
		return nil, &ValidationError{Message: "block start date must be before end date"}
	}

	release, err := storage.AcquireListingLease(ctx, listingID)
	if err != nil {
		return nil, err
	}
	defer release()

	var block models.ListingBlock
	err = db.Transaction(func(tx *gorm.DB) error {
		var listing models.Listing
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&listing, listingID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return &NotFoundError{Resource: "listing", ID: listingID}
			}
			return err
		}

		free, err := RangeAvailable(tx, listingID, start, end)
		if err != nil {
			return err
		}
		if !free {
			return &ConflictError{Message: "dates overlap an existing booking or block"}
		}

		block = models.ListingBlock{
			ListingID: listingID,
			StartDate: start,
			EndDate:   end,
			Reason:    reason,
			CreatedBy: hostID,
		}
		return tx.Create(&block).Error
	})
	if err != nil {
		return nil, err
	}
	return &block, nil
}
