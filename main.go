package main

import (
	"context"
	"log"
	"os"

	"shortstay-server/routes"
	"shortstay-server/services"
	"shortstay-server/storage"
	"shortstay-server/utils"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

func main() {
	godotenv.Load()

	// Initialize services
	storage.InitializeDB()
	storage.InitializeRedis()

	cfg := services.LoadConfig()
	provider := services.NewHTTPPayoutProvider(cfg)
	engine := services.NewPayoutEngine(storage.DB, provider, cfg)
	bookings := services.NewBookingService(storage.DB, engine, cfg)
	bookings.Notify = services.NewNotificationService(storage.DB)
	bookings.Notify.Push = utils.SendNotification
	routes.Setup(bookings, engine, cfg)

	// The auto-release watcher is owned by process startup and stopped with
	// the server.
	watcherCtx, stopWatcher := context.WithCancel(context.Background())
	watcher := services.NewAutoReleaseWatcher(storage.DB, bookings, cfg)
	watcher.Start(watcherCtx)

	app := iris.New()
	app.Validator = validator.New()

	// CORS configuration
	app.AllowMethods(iris.MethodOptions)
	app.UseRouter(func(ctx iris.Context) {
		ctx.Header("Access-Control-Allow-Origin", ctx.GetHeader("Origin"))
		ctx.Header("Vary", "Origin")
		ctx.Header("Access-Control-Allow-Credentials", "true")
		ctx.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With")
		ctx.Header("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
		if ctx.Method() == iris.MethodOptions {
			ctx.StatusCode(iris.StatusNoContent)
			return
		}
		ctx.Next()
	})

	app.Use(iris.Compression)

	accessTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("ACCESS_TOKEN_SECRET")))
	accessTokenVerifier.WithDefaultBlocklist()
	accessTokenVerifierMiddleware := accessTokenVerifier.Verify(func() interface{} {
		return new(utils.AccessToken)
	})

	refreshTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("REFRESH_TOKEN_SECRET")))
	refreshTokenVerifier.WithDefaultBlocklist()
	refreshTokenVerifierMiddleware := refreshTokenVerifier.Verify(func() interface{} {
		return new(jwt.Claims)
	})
	refreshTokenVerifier.Extractors = append(refreshTokenVerifier.Extractors, func(ctx iris.Context) string {
		var tokenInput utils.RefreshTokenInput
		err := ctx.ReadJSON(&tokenInput)
		if err != nil {
			return ""
		}
		return tokenInput.RefreshToken
	})

	app.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"status": "ok"})
	})

	user := app.Party("/api/user")
	{
		user.Post("/register", routes.Register)
		user.Post("/login", routes.Login)
		user.Post("/refresh", refreshTokenVerifierMiddleware, utils.RefreshToken)
		user.Get("/me", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.GetUser)
		user.Put("/payout-profile", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.UpdatePayoutProfile)
	}

	listing := app.Party("/api/listing")
	{
		listing.Post("/", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.CreateListing)
		listing.Get("/{id}", routes.GetListing)
		listing.Get("/", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.GetHostListings)
	}

	availability := app.Party("/api/availability")
	{
		availability.Get("/listing/{listingID:uint}", routes.GetBlockedRanges)
		availability.Post("/block", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.BlockDates)
	}

	booking := app.Party("/api/booking")
	{
		booking.Post("/", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.CreateBooking)
		booking.Get("/", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.GetUserBookings)
		booking.Get("/host", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.GetHostBookings)
		booking.Post("/{id:uint}/confirm", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.ConfirmBooking)
		booking.Post("/{id:uint}/arrival", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.ConfirmArrival)
		booking.Post("/{id:uint}/payout/retry", accessTokenVerifierMiddleware, utils.AdminOnlyMiddleware, routes.RetryPayout)
		booking.Delete("/{id:uint}", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.CancelBooking)
		booking.Get("/{id:uint}/transactions", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.GetBookingTransactions)
	}

	// Payment provider webhook: public, authenticated by HMAC signature.
	payments := app.Party("/api/payments")
	{
		payments.Post("/webhook", routes.ConfirmPayment)
	}

	admin := app.Party("/api/admin", accessTokenVerifierMiddleware, utils.AdminOnlyMiddleware)
	{
		admin.Get("/bookings", routes.AdminListBookings)
		admin.Post("/bookings/{id:uint}/cancel", routes.AdminCancelBooking)
		admin.Post("/bookings/{id:uint}/refund", routes.AdminRefundBooking)
	}

	iris.RegisterOnInterrupt(func() {
		stopWatcher()
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Println("starting server on port", port)
	app.Listen(":" + port)
}
