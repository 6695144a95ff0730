package services

import (
	"context"
	"log"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/foodbridge/backend/internal/models"
	"github.com/foodbridge/backend/internal/repositories"
)

// Notifier is the one-way outbound notification port. Every call stores an
// in-app notification row and, when the recipient has a registered device,
// mirrors it as an FCM push. Dispatch is fire-and-forget: failures are
// logged and swallowed, never propagated to the state transition that
// triggered them.
type Notifier struct {
	notificationRepo repositories.NotificationRepository
	userRepo         repositories.UserRepository
	messaging        *messaging.Client // nil when Firebase is not configured
}

// NewNotifier creates a new Notifier
func NewNotifier(notificationRepo repositories.NotificationRepository, userRepo repositories.UserRepository, messagingClient *messaging.Client) *Notifier {
	return &Notifier{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		messaging:        messagingClient,
	}
}

// Notify dispatches a notification to an actor asynchronously.
func (n *Notifier) Notify(recipientID uint, notifType, title, message, priority, donationID string) {
	go n.dispatch(recipientID, notifType, title, message, priority, donationID)
}

func (n *Notifier) dispatch(recipientID uint, notifType, title, message, priority, donationID string) {
	notification := &models.Notification{
		Type:        notifType,
		RecipientID: recipientID,
		Title:       title,
		Message:     message,
		Priority:    priority,
		DonationID:  donationID,
	}
	if err := n.notificationRepo.CreateNotification(notification); err != nil {
		log.Printf("failed to store notification for user %d: %v", recipientID, err)
	}

	if n.messaging == nil {
		return
	}
	user, err := n.userRepo.GetUserByID(recipientID)
	if err != nil || user.DeviceToken == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = n.messaging.Send(ctx, &messaging.Message{
		Token: user.DeviceToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  message,
		},
		Data: map[string]string{
			"type":        notifType,
			"donation_id": donationID,
		},
	})
	if err != nil {
		log.Printf("failed to push notification to user %d: %v", recipientID, err)
	}
}
