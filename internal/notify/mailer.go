package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/etalk/webchain-order-sync/internal/aws"
)

// Mailer sends a single HTML message to one recipient.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SESMailer sends mail through SESv2.
type SESMailer struct {
	client aws.SESAPI
	sender string
}

// NewSESMailer returns a Mailer backed by SESv2 sending from sender.
func NewSESMailer(client aws.SESAPI, sender string) *SESMailer {
	return &SESMailer{
		client: client,
		sender: sender,
	}
}

// Send delivers one HTML email.
func (m *SESMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	utf8 := "UTF-8"
	input := &sesv2.SendEmailInput{
		FromEmailAddress: &m.sender,
		Destination: &sestypes.Destination{
			ToAddresses: []string{to},
		},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: &subject, Charset: &utf8},
				Body: &sestypes.Body{
					Html: &sestypes.Content{Data: &htmlBody, Charset: &utf8},
				},
			},
		},
	}
	if _, err := m.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
