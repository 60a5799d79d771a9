package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

var (
	// FirebaseApp is the Firebase app instance
	FirebaseApp *firebase.App
	// MessagingClient is the Firebase Cloud Messaging client
	MessagingClient *messaging.Client
)

// InitFirebase initializes Firebase Admin SDK
func InitFirebase() error {
	ctx := context.Background()

	serviceAccountPath := os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH")
	if serviceAccountPath == "" {
		log.Println("Warning: FIREBASE_SERVICE_ACCOUNT_PATH not set. Push notifications will be disabled.")
		return nil
	}

	opt := option.WithCredentialsFile(serviceAccountPath)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return fmt.Errorf("error initializing firebase app: %v", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return fmt.Errorf("error getting messaging client: %v", err)
	}

	FirebaseApp = app
	MessagingClient = client

	log.Println("Firebase Cloud Messaging initialized successfully")
	return nil
}

// NotificationPayload represents the notification data
type NotificationPayload struct {
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Data      map[string]interface{} `json:"data,omitempty"`
	ChannelID string                 `json:"channelId,omitempty"` // Android notification channel
	Priority  string                 `json:"priority,omitempty"`  // high, normal, low
}

// getAndroidConfig returns Android-specific notification configuration
func getAndroidConfig(payload NotificationPayload) *messaging.AndroidConfig {
	channelID := payload.ChannelID
	if channelID == "" {
		channelID = "trapy_default"
	}

	priority := messaging.PriorityHigh
	if payload.Priority == "normal" {
		priority = messaging.PriorityDefault
	}

	return &messaging.AndroidConfig{
		Priority: "high",
		Notification: &messaging.AndroidNotification{
			Sound:                 "default",
			ChannelID:             channelID,
			Priority:              priority,
			DefaultSound:          true,
			DefaultVibrateTimings: true,
		},
	}
}

// getAPNSConfig returns iOS-specific notification configuration
func getAPNSConfig() *messaging.APNSConfig {
	badge := 1
	return &messaging.APNSConfig{
		Payload: &messaging.APNSPayload{
			Aps: &messaging.Aps{
				Sound:            "default",
				Badge:            &badge,
				MutableContent:   true,
				ContentAvailable: true,
			},
		},
	}
}

// flattenData converts a data map to the string map required by FCM
func flattenData(data map[string]interface{}) map[string]string {
	dataStrings := make(map[string]string)
	for key, value := range data {
		switch v := value.(type) {
		case string:
			dataStrings[key] = v
		case int, int64, uint, float64, bool:
			dataStrings[key] = fmt.Sprintf("%v", v)
		default:
			jsonData, err := json.Marshal(v)
			if err != nil {
				log.Printf("Error marshaling data for key %s: %v", key, err)
				continue
			}
			dataStrings[key] = string(jsonData)
		}
	}
	return dataStrings
}

// SendNotificationToToken sends a notification to a specific FCM token
func SendNotificationToToken(ctx context.Context, token string, payload NotificationPayload) error {
	if MessagingClient == nil {
		log.Println("Warning: Firebase not initialized. Skipping notification.")
		return nil
	}

	message := &messaging.Message{
		Notification: &messaging.Notification{
			Title: payload.Title,
			Body:  payload.Body,
		},
		Data:    flattenData(payload.Data),
		Token:   token,
		Android: getAndroidConfig(payload),
		APNS:    getAPNSConfig(),
	}

	response, err := MessagingClient.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("error sending message: %v", err)
	}

	log.Printf("Successfully sent notification, response: %s", response)
	return nil
}

// SendTopicNotification sends a notification to a topic
func SendTopicNotification(ctx context.Context, topic string, payload NotificationPayload) error {
	if MessagingClient == nil {
		log.Println("Warning: Firebase not initialized. Skipping topic notification.")
		return nil
	}

	message := &messaging.Message{
		Notification: &messaging.Notification{
			Title: payload.Title,
			Body:  payload.Body,
		},
		Data:    flattenData(payload.Data),
		Topic:   topic,
		Android: getAndroidConfig(payload),
		APNS:    getAPNSConfig(),
	}

	response, err := MessagingClient.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("error sending topic message: %v", err)
	}

	log.Printf("Successfully sent notification to topic %s, response: %s", topic, response)
	return nil
}

// SubscribeToTopic subscribes tokens to a topic for targeted messaging
func SubscribeToTopic(ctx context.Context, tokens []string, topic string) error {
	if MessagingClient == nil {
		log.Println("Warning: Firebase not initialized. Skipping topic subscription.")
		return nil
	}

	response, err := MessagingClient.SubscribeToTopic(ctx, tokens, topic)
	if err != nil {
		return fmt.Errorf("error subscribing to topic: %v", err)
	}

	log.Printf("Successfully subscribed %d tokens to topic %s, %d failures", response.SuccessCount, topic, response.FailureCount)
	return nil
}

// SendBookingReceivedNotification notifies a driver that a passenger booked seats
func SendBookingReceivedNotification(ctx context.Context, driverToken string, bookingID, rideID uint, passengerName string, seats int) error {
	payload := NotificationPayload{
		Title: "New Booking",
		Body:  fmt.Sprintf("%s booked %d seat(s) on your ride", passengerName, seats),
		Data: map[string]interface{}{
			"type":      "booking_received",
			"bookingId": bookingID,
			"rideId":    rideID,
			"seats":     seats,
		},
		ChannelID: "trapy_bookings",
	}

	return SendNotificationToToken(ctx, driverToken, payload)
}

// SendBookingConfirmedNotification notifies a passenger that the driver confirmed
func SendBookingConfirmedNotification(ctx context.Context, passengerToken string, bookingID uint, driverName string) error {
	payload := NotificationPayload{
		Title: "Booking Confirmed",
		Body:  fmt.Sprintf("%s confirmed your booking", driverName),
		Data: map[string]interface{}{
			"type":      "booking_confirmed",
			"bookingId": bookingID,
		},
		ChannelID: "trapy_bookings",
	}

	return SendNotificationToToken(ctx, passengerToken, payload)
}

// SendBookingCancelledNotification notifies the other party about a cancellation
func SendBookingCancelledNotification(ctx context.Context, token string, bookingID uint, origin, destination string) error {
	payload := NotificationPayload{
		Title: "Booking Cancelled",
		Body:  fmt.Sprintf("A booking on the ride %s → %s was cancelled", origin, destination),
		Data: map[string]interface{}{
			"type":      "booking_cancelled",
			"bookingId": bookingID,
		},
		ChannelID: "trapy_bookings",
	}

	return SendNotificationToToken(ctx, token, payload)
}

// SendRideCancelledNotification notifies a passenger that the driver cancelled
// the whole ride
func SendRideCancelledNotification(ctx context.Context, passengerToken string, rideID uint, origin, destination string) error {
	payload := NotificationPayload{
		Title: "Ride Cancelled",
		Body:  fmt.Sprintf("Your ride %s → %s was cancelled by the driver", origin, destination),
		Data: map[string]interface{}{
			"type":   "ride_cancelled",
			"rideId": rideID,
		},
		ChannelID: "trapy_rides",
	}

	return SendNotificationToToken(ctx, passengerToken, payload)
}
