package routes

import (
	"shortstay-server/models"
	"shortstay-server/storage"
	"shortstay-server/utils"

	"github.com/kataras/iris/v12"
)

func AdminListBookings(ctx iris.Context) {
	page := ctx.URLParamIntDefault("page", 1)
	perPage := ctx.URLParamIntDefault("per_page", 20)
	status := ctx.URLParam("status")

	q := storage.DB.Model(&models.Booking{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	q.Count(&total)

	var bookings []models.Booking
	if err := q.Preload("Listing").Preload("Guest").
		Order("created_at DESC").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&bookings).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{
		"data": bookings,
		"meta": iris.Map{"page": page, "per_page": perPage, "total": total},
	})
}

type AdminCancelInput struct {
	Reason string `json:"reason"`
}

func AdminCancelBooking(ctx iris.Context) {
	adminID := ctx.Values().Get("userID").(uint)
	bookingID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid booking ID", ctx)
		return
	}

	var input AdminCancelInput
	if err := ctx.ReadJSON(&input); err != nil && ctx.GetContentLength() > 0 {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	booking, cancelErr := Bookings.Cancel(bookingID, adminID, input.Reason)
	if cancelErr != nil {
		writeServiceError(cancelErr, ctx)
		return
	}

	ctx.JSON(booking)
}

type AdminRefundInput struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
	Reason string  `json:"reason"`
}

func AdminRefundBooking(ctx iris.Context) {
	adminID := ctx.Values().Get("userID").(uint)
	bookingID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid booking ID", ctx)
		return
	}

	var input AdminRefundInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	booking, refundErr := Bookings.Refund(bookingID, adminID, input.Amount, input.Reason)
	if refundErr != nil {
		writeServiceError(refundErr, ctx)
		return
	}

	ctx.JSON(booking)
}
