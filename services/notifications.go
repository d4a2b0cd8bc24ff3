package services

import (
	"encoding/json"
	"fmt"
	"log"

	"shortstay-server/models"

	"gorm.io/gorm"
)

// NotificationService records in-app notifications and pushes them to the
// user's devices. Every send is fire-and-forget: a failure is logged and
// never propagates to booking or payout state.
type NotificationService struct {
	DB   *gorm.DB
	Push func(token, title, body string, data map[string]string) error
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{DB: db}
}

func (ns *NotificationService) notify(userID uint, kind, title, message string, bookingID uint) {
	notification := models.Notification{
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
		RefType: "booking",
		RefID:   bookingID,
	}
	if err := ns.DB.Create(&notification).Error; err != nil {
		log.Printf("notification: failed to store %s for user %d: %v", kind, userID, err)
		return
	}

	if ns.Push == nil {
		return
	}
	tokens, err := ns.userPushTokens(userID)
	if err != nil {
		return
	}
	data := map[string]string{
		"type":      kind,
		"bookingId": fmt.Sprintf("%d", bookingID),
	}
	for _, token := range tokens {
		if err := ns.Push(token, title, message, data); err != nil {
			log.Printf("notification: push to user %d failed: %v", userID, err)
		}
	}
}

func (ns *NotificationService) userPushTokens(userID uint) ([]string, error) {
	var user models.User
	if err := ns.DB.First(&user, userID).Error; err != nil {
		return nil, err
	}
	if user.AllowsNotifications == nil || !*user.AllowsNotifications || user.PushTokens == nil {
		return nil, fmt.Errorf("user %d has notifications disabled or no tokens", userID)
	}
	var tokens []string
	if err := json.Unmarshal(user.PushTokens, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

func (ns *NotificationService) BookingRequested(b *models.Booking) {
	ns.notify(b.HostID, "booking_request", "New Booking Request",
		fmt.Sprintf("New booking request from %s to %s",
			b.CheckIn.Format("Jan 2, 2006"), b.CheckOut.Format("Jan 2, 2006")),
		b.ID)
}

func (ns *NotificationService) PaymentReceived(b *models.Booking) {
	ns.notify(b.HostID, "payment_received", "Payment Received",
		fmt.Sprintf("Payment of %.2f %s received; funds are held until arrival is confirmed", b.Total, b.Currency),
		b.ID)
}

func (ns *NotificationService) PayoutReleased(b *models.Booking) {
	ns.notify(b.HostID, "payout_released", "Payout Released",
		fmt.Sprintf("Your payout of %.2f %s is on its way", b.HostAmount, b.PayoutCurrency),
		b.ID)
}

func (ns *NotificationService) PayoutFailed(b *models.Booking) {
	ns.notify(b.HostID, "payout_failed", "Payout Delayed",
		"We could not complete your payout; it will be retried automatically",
		b.ID)
}

func (ns *NotificationService) BookingCancelled(b *models.Booking) {
	ns.notify(b.GuestID, "booking_cancelled", "Booking Cancelled",
		fmt.Sprintf("Your booking from %s to %s has been cancelled",
			b.CheckIn.Format("Jan 2, 2006"), b.CheckOut.Format("Jan 2, 2006")),
		b.ID)
}
