package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

type postmarkAPI interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// PostmarkSender sends mail through Postmark's transactional API. Replies go
// to the support address.
type PostmarkSender struct {
	client       postmarkAPI
	senderEmail  string
	supportEmail string
}

func NewPostmarkSender(serverToken, accountToken, senderEmail, supportEmail string) (*PostmarkSender, error) {
	if serverToken == "" || accountToken == "" {
		return nil, errors.New("postmark tokens are required")
	}
	if senderEmail == "" {
		return nil, errors.New("sender email is required")
	}
	return &PostmarkSender{
		client:       postmark.NewClient(serverToken, accountToken),
		senderEmail:  senderEmail,
		supportEmail: supportEmail,
	}, nil
}

func (s *PostmarkSender) Send(ctx context.Context, m Message) error {
	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:       s.senderEmail,
		ReplyTo:    s.supportEmail,
		To:         m.To,
		Subject:    m.Subject,
		Tag:        m.Tag,
		HTMLBody:   m.HTMLBody,
		TrackOpens: false,
		TrackLinks: "None",
	})
	if err != nil {
		return errors.Join(ErrFailedToSend, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrFailedToSend, fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return nil
}
