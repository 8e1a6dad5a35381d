// internal/fcm/fcm.go
package fcm

import (
	"context"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// Client wraps Firebase Cloud Messaging for push delivery of notifications.
type Client struct {
	client *messaging.Client
}

func NewClient(ctx context.Context, credentialsJSON []byte) (*Client, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{}, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return nil, fmt.Errorf("firebase init failed: %w", err)
	}
	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("messaging client init failed: %w", err)
	}
	return &Client{client: messagingClient}, nil
}

// SendToToken pushes one notification to a single device token.
func (c *Client) SendToToken(ctx context.Context, token, title, body string, data map[string]string) error {
	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}
	id, err := c.client.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("fcm send failed: %w", err)
	}
	log.Printf("✅ [FCM] Push sent (message id: %s)", id)
	return nil
}
