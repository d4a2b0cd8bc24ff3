package routes

import (
	"errors"

	"shortstay-server/services"
	"shortstay-server/utils"

	"github.com/kataras/iris/v12"
)

// Package-level services, wired once at startup (or by tests) via Setup.
var (
	Bookings *services.BookingService
	Engine   *services.PayoutEngine
	Cfg      services.Config
)

func Setup(bookings *services.BookingService, engine *services.PayoutEngine, cfg services.Config) {
	Bookings = bookings
	Engine = engine
	Cfg = cfg
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func writeServiceError(err error, ctx iris.Context) {
	var validationErr *services.ValidationError
	var conflictErr *services.ConflictError
	var notFoundErr *services.NotFoundError
	var stateErr *services.InvalidStateError
	var payoutCfgErr *services.PayoutConfigError
	var providerErr *services.PayoutProviderError

	switch {
	case errors.As(err, &validationErr):
		utils.CreateError(iris.StatusBadRequest, "Validation Error", validationErr.Message, ctx)
	case errors.As(err, &conflictErr):
		utils.CreateError(iris.StatusConflict, "Conflict", conflictErr.Message, ctx)
	case errors.As(err, &notFoundErr):
		utils.CreateError(iris.StatusNotFound, "Not Found", notFoundErr.Error(), ctx)
	case errors.As(err, &stateErr):
		utils.CreateError(iris.StatusConflict, "Invalid State", stateErr.Message, ctx)
	case errors.As(err, &payoutCfgErr):
		utils.CreateError(iris.StatusUnprocessableEntity, "Payout Setup Incomplete", payoutCfgErr.Message, ctx)
	case errors.As(err, &providerErr):
		utils.CreateError(iris.StatusBadGateway, "Payout Provider Error", providerErr.Error(), ctx)
	default:
		utils.CreateInternalServerError(ctx)
	}
}
