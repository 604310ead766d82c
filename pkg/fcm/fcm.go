package fcm

import (
	"context"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// MulticastLimit is the maximum number of tokens Firebase accepts in one
// SendEachForMulticast call.
const MulticastLimit = 500

// Client wraps Firebase Cloud Messaging functionality
type Client struct {
	messagingClient *messaging.Client
}

// NewClient creates a new FCM client using the provided credentials file
func NewClient(credentialsFile, projectID string) (*Client, error) {
	ctx := context.Background()

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	log.Println("[FCM] Client initialized successfully")
	return &Client{
		messagingClient: messagingClient,
	}, nil
}

// NotificationData contains the data to send in a push notification
type NotificationData struct {
	Title  string
	Body   string
	Data   map[string]string // Custom data payload
	Urgent bool              // Raises Android/APNS delivery priority
}

// SendResult is the per-token outcome of a multicast call, in input order.
type SendResult struct {
	Success bool
	Invalid bool // Token is no longer registered with the provider
	Err     error
}

// SendMulticast sends a push notification to up to MulticastLimit tokens in
// one provider call. The returned slice maps 1:1 onto the input tokens.
func (c *Client) SendMulticast(ctx context.Context, tokens []string, notification NotificationData) ([]SendResult, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	if len(tokens) > MulticastLimit {
		return nil, fmt.Errorf("multicast limited to %d tokens, got %d", MulticastLimit, len(tokens))
	}

	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: notification.Title,
			Body:  notification.Body,
		},
		Data: notification.Data,
		Android: &messaging.AndroidConfig{
			Notification: &messaging.AndroidNotification{Sound: "default"},
		},
	}
	if notification.Urgent {
		message.Android.Priority = "high"
		message.APNS = &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": "10"},
		}
	}

	response, err := c.messagingClient.SendEachForMulticast(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("failed to send FCM multicast message: %w", err)
	}

	log.Printf("[FCM] Multicast sent: %d success, %d failures", response.SuccessCount, response.FailureCount)

	results := make([]SendResult, len(tokens))
	for i, resp := range response.Responses {
		if resp.Success {
			results[i] = SendResult{Success: true}
			continue
		}
		results[i] = SendResult{
			Invalid: isTokenInvalid(resp.Error),
			Err:     resp.Error,
		}
	}

	return results, nil
}

// isTokenInvalid reports whether the provider permanently rejected the token,
// as opposed to a transient delivery failure.
func isTokenInvalid(err error) bool {
	if err == nil {
		return false
	}
	return messaging.IsRegistrationTokenNotRegistered(err) || messaging.IsInvalidArgument(err)
}
