package routes

import (
	"shortstay-server/models"
	"shortstay-server/storage"
	"shortstay-server/utils"

	"github.com/kataras/iris/v12"
)

type CreateListingInput struct {
	Title        string  `json:"title" validate:"required,max=256"`
	Description  string  `json:"description"`
	AddressLine1 string  `json:"addressLine1"`
	City         string  `json:"city"`
	Country      string  `json:"country"`
	Capacity     int     `json:"capacity" validate:"required,gte=1,lte=16"`
	NightlyPrice float64 `json:"nightlyPrice" validate:"required,gt=0"`
	CleaningFee  float64 `json:"cleaningFee" validate:"gte=0"`
	ServiceFee   float64 `json:"serviceFee" validate:"gte=0"`
	TaxRate      float64 `json:"taxRate" validate:"gte=0,lte=100"`
	Currency     string  `json:"currency"`
	MinNights    int     `json:"minNights" validate:"gte=1"`
	MaxNights    int     `json:"maxNights" validate:"gte=0"`
}

func CreateListing(ctx iris.Context) {
	hostID := ctx.Values().Get("userID").(uint)

	var input CreateListingInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	if input.MaxNights > 0 && input.MaxNights < input.MinNights {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "maxNights must be zero or at least minNights", ctx)
		return
	}

	active := true
	currency := input.Currency
	if currency == "" {
		currency = "MRU"
	}

	listing := models.Listing{
		HostID:       hostID,
		Title:        input.Title,
		Description:  input.Description,
		AddressLine1: input.AddressLine1,
		City:         input.City,
		Country:      input.Country,
		Capacity:     input.Capacity,
		NightlyPrice: input.NightlyPrice,
		CleaningFee:  input.CleaningFee,
		ServiceFee:   input.ServiceFee,
		TaxRate:      input.TaxRate,
		Currency:     currency,
		MinNights:    input.MinNights,
		MaxNights:    input.MaxNights,
		IsActive:     &active,
	}

	if err := storage.DB.Create(&listing).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(listing)
}

func GetListing(ctx iris.Context) {
	id := ctx.Params().Get("id")

	var listing models.Listing
	if err := storage.DB.Preload("Host").First(&listing, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Listing not found", ctx)
		return
	}

	ctx.JSON(listing)
}

func GetHostListings(ctx iris.Context) {
	hostID := ctx.Values().Get("userID").(uint)

	var listings []models.Listing
	if err := storage.DB.Where("host_id = ?", hostID).Order("created_at DESC").Find(&listings).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(listings)
}
