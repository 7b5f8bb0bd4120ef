package notify

import (
	"context"
	"errors"

	"firebase.google.com/go/v4/messaging"
)

// MessagingClient is the part of the Firebase messaging client used here.
type MessagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMSender delivers to native Firebase Cloud Messaging device tokens.
type FCMSender struct {
	client MessagingClient
}

func NewFCMSender(client MessagingClient) *FCMSender {
	return &FCMSender{client: client}
}

func (s *FCMSender) Send(ctx context.Context, n Notification) error {
	_, err := s.client.Send(ctx, &messaging.Message{
		Token: n.Token,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: map[string]string{"chatId": n.ChatID},
	})
	return err
}

var ErrNoSender = errors.New("no sender for token")

// Router sends Expo tokens through Expo and everything else through FCM.
type Router struct {
	Expo Sender
	FCM  Sender
}

func (r Router) Send(ctx context.Context, n Notification) error {
	if IsExpoToken(n.Token) {
		if r.Expo == nil {
			return ErrNoSender
		}
		return r.Expo.Send(ctx, n)
	}
	if r.FCM == nil {
		return ErrNoSender
	}
	return r.FCM.Send(ctx, n)
}
