// Package notify forwards critical alerts to operator devices over Firebase
// Cloud Messaging. Entirely optional: without a configured service account
// the console runs exactly the same, the modal and toast surfaces do not
// depend on it.
package notify

import (
	"context"
	"encoding/base64"
	"errors"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/aegisfleet/console/pkg/fleet"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

type PushManager struct {
	FirebaseApp    *firebase.App
	OperatorTokens []string
}

// Setup initialises the Firebase app from a base64-encoded service account
// key.
func (m *PushManager) Setup(ctx context.Context, encodedKey string) error {
	if encodedKey == "" {
		return errors.New("no service account key configured")
	}

	decodedKey, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return err
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsJSON(decodedKey))
	if err != nil {
		return err
	}

	m.FirebaseApp = app

	return nil
}

// SendCriticalAlert pushes a critical driver alert to every registered
// operator device. Best effort: individual send failures are logged and do
// not stop the rest.
func (m *PushManager) SendCriticalAlert(ctx context.Context, alert fleet.AlertNotification) error {
	if m.FirebaseApp == nil {
		return errors.New("push manager not set up")
	}

	fcmClient, err := m.FirebaseApp.Messaging(ctx)
	if err != nil {
		return err
	}

	for _, token := range m.OperatorTokens {
		_, err := fcmClient.Send(ctx, &messaging.Message{
			Notification: &messaging.Notification{
				Title: "CRITICAL: " + alert.DriverState,
				Body:  alert.Message,
			},
			Token: token,
		})

		if err != nil {
			log.Error().Err(err).Str("event", alert.EventID).Msg("Failed to send push notification")
			continue
		}

		log.Info().Str("event", alert.EventID).Msg("Sent push notification")
	}

	return nil
}
