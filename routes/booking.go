package routes

import (
	"time"

	"shortstay-server/models"
	"shortstay-server/services"
	"shortstay-server/storage"
	"shortstay-server/utils"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

type CreateBookingInput struct {
	ListingID     uint      `json:"listingID" validate:"required"`
	CheckIn       time.Time `json:"checkIn" validate:"required"`
	CheckOut      time.Time `json:"checkOut" validate:"required"`
	NumGuests     int       `json:"numGuests" validate:"required,gte=1,lte=16"`
	PaymentMethod string    `json:"paymentMethod"`
	Note          string    `json:"note"`
}

func CreateBooking(ctx iris.Context) {
	guestID := ctx.Values().Get("userID").(uint)

	var input CreateBookingInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	booking, err := Bookings.Create(ctx.Request().Context(), services.CreateBookingInput{
		ListingID:     input.ListingID,
		GuestID:       guestID,
		CheckIn:       input.CheckIn,
		CheckOut:      input.CheckOut,
		NumGuests:     input.NumGuests,
		PaymentMethod: input.PaymentMethod,
		Note:          input.Note,
	})
	if err != nil {
		writeServiceError(err, ctx)
		return
	}

	ctx.JSON(booking)
}

// ConfirmBooking is the host's pre-payment acknowledgment of a pending
// booking request.
func ConfirmBooking(ctx iris.Context) {
	hostID := ctx.Values().Get("userID").(uint)
	bookingID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid booking ID", ctx)
		return
	}

	booking, confirmErr := Bookings.Confirm(bookingID, hostID)
	if confirmErr != nil {
		writeServiceError(confirmErr, ctx)
		return
	}

	ctx.JSON(booking)
}

// ConfirmArrival is the guest's (or an admin's) confirmation that the stay
// has started, which triggers the escrow release. A payout failure does not
// fail the request: the response reports it separately.
func ConfirmArrival(ctx iris.Context) {
	callerID := ctx.Values().Get("userID").(uint)
	bookingID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid booking ID", ctx)
		return
	}

	var booking models.Booking
	if err := storage.DB.First(&booking, bookingID).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Booking not found", ctx)
		return
	}

	claims := jwt.Get(ctx).(*utils.AccessToken)
	isAdmin := claims.Role == "admin" || claims.Role == "super_admin"
	if booking.GuestID != callerID && !isAdmin {
		ctx.StatusCode(iris.StatusForbidden)
		ctx.JSON(iris.Map{"message": "Only the guest or an admin can confirm arrival"})
		return
	}

	reason := services.ReleaseReasonGuestConfirm
	if isAdmin {
		reason = services.ReleaseReasonAdminConfirm
	}

	result, arrErr := Bookings.ConfirmArrival(ctx.Request().Context(), bookingID, &callerID, reason)
	if arrErr != nil {
		writeServiceError(arrErr, ctx)
		return
	}

	ctx.JSON(iris.Map{
		"success":          true,
		"arrivalConfirmed": result.ArrivalConfirmed,
		"payoutReleased":   result.PayoutReleased,
		"payoutError":      result.PayoutError,
		"data":             result.Booking,
	})
}

type CancelBookingInput struct {
	Reason string `json:"reason"`
}

func CancelBooking(ctx iris.Context) {
	callerID := ctx.Values().Get("userID").(uint)
	bookingID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid booking ID", ctx)
		return
	}

	var input CancelBookingInput
	if err := ctx.ReadJSON(&input); err != nil && ctx.GetContentLength() > 0 {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var booking models.Booking
	if err := storage.DB.First(&booking, bookingID).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Booking not found", ctx)
		return
	}
	if booking.GuestID != callerID && booking.HostID != callerID {
		ctx.StatusCode(iris.StatusForbidden)
		ctx.JSON(iris.Map{"message": "Only the guest or the host can cancel this booking"})
		return
	}

	cancelled, cancelErr := Bookings.Cancel(bookingID, callerID, input.Reason)
	if cancelErr != nil {
		writeServiceError(cancelErr, ctx)
		return
	}

	ctx.JSON(cancelled)
}

// RetryPayout re-invokes the payout engine for a booking whose release
// failed. Safe to call repeatedly: a completed payout is never re-sent.
func RetryPayout(ctx iris.Context) {
	bookingID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid booking ID", ctx)
		return
	}

	booking, releaseErr := Engine.Release(ctx.Request().Context(), bookingID, services.ReleaseReasonRetry)
	if releaseErr != nil {
		writeServiceError(releaseErr, ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "data": booking})
}

func GetUserBookings(ctx iris.Context) {
	guestID := ctx.Values().Get("userID").(uint)

	var bookings []models.Booking
	res := storage.DB.Preload("Listing").Preload("Listing.Host").
		Where("guest_id = ?", guestID).Order("created_at DESC").Find(&bookings)
	if res.Error != nil {
		utils.CreateError(iris.StatusInternalServerError, "Error", res.Error.Error(), ctx)
		return
	}

	ctx.JSON(bookings)
}

// GetHostBookings returns bookings for all listings owned by the
// authenticated host.
func GetHostBookings(ctx iris.Context) {
	hostID := ctx.Values().Get("userID").(uint)

	var bookings []models.Booking
	res := storage.DB.
		Joins("JOIN listings l ON l.id = bookings.listing_id").
		Where("l.host_id = ?", hostID).
		Preload("Listing").
		Preload("Guest").
		Order("bookings.created_at DESC").
		Find(&bookings)
	if res.Error != nil {
		utils.CreateError(iris.StatusInternalServerError, "Error", res.Error.Error(), ctx)
		return
	}

	ctx.JSON(bookings)
}

// GetBookingTransactions lists the append-only ledger entries for a booking.
func GetBookingTransactions(ctx iris.Context) {
	callerID := ctx.Values().Get("userID").(uint)
	bookingID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid booking ID", ctx)
		return
	}

	var booking models.Booking
	if err := storage.DB.First(&booking, bookingID).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Booking not found", ctx)
		return
	}
	if booking.GuestID != callerID && booking.HostID != callerID {
		ctx.StatusCode(iris.StatusForbidden)
		ctx.JSON(iris.Map{"message": "Access denied"})
		return
	}

	var transactions []models.Transaction
	if err := storage.DB.Where("booking_id = ?", bookingID).
		Order("created_at ASC").Find(&transactions).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "data": transactions})
}
