package routes

import (
	"time"

	"shortstay-server/models"
	"shortstay-server/services"
	"shortstay-server/storage"
	"shortstay-server/utils"

	"github.com/kataras/iris/v12"
)

// GetBlockedRanges returns every hold on a listing's calendar: blocking
// bookings and host-imposed blocks.
func GetBlockedRanges(ctx iris.Context) {
	listingID, err := ctx.Params().GetUint("listingID")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid listing ID", ctx)
		return
	}

	ranges, rangesErr := services.BlockedRanges(storage.DB, listingID)
	if rangesErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "data": ranges})
}

type BlockDatesInput struct {
	ListingID uint      `json:"listingID" validate:"required"`
	StartDate time.Time `json:"startDate" validate:"required"`
	EndDate   time.Time `json:"endDate" validate:"required"`
	Reason    string    `json:"reason"`
}

// BlockDates lets a host place a hold on their own listing's calendar. The
// block is rejected if it overlaps an existing blocking booking or block.
func BlockDates(ctx iris.Context) {
	hostID := ctx.Values().Get("userID").(uint)

	var input BlockDatesInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var listing models.Listing
	if err := storage.DB.Where("id = ? AND host_id = ?", input.ListingID, hostID).First(&listing).Error; err != nil {
		utils.CreateError(iris.StatusForbidden, "Forbidden", "Listing not found or access denied", ctx)
		return
	}

	block, err := services.CreateBlock(ctx.Request().Context(), storage.DB, input.ListingID, hostID, input.StartDate, input.EndDate, input.Reason)
	if err != nil {
		writeServiceError(err, ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "message": "Dates blocked successfully", "data": block})
}
