package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// EmailService defines the interface for outbound transactional mail
type EmailService interface {
	SendVerificationEmail(ctx context.Context, email, token string, expiresAt time.Time) error
	SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	baseURL     string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(region, fromAddress, baseURL string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		baseURL:     baseURL,
		logger:      logger,
	}, nil
}

const emailStyle = `
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #f8f9fa; padding: 20px; text-align: center; border-radius: 4px; }
        .content { padding: 20px 0; }
        .button { display: inline-block; background-color: #2f6f4f; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
        .warning { background-color: #fff3cd; padding: 10px; border-left: 4px solid #ffc107; margin: 10px 0; }
`

// SendVerificationEmail mails the address-confirmation link issued at
// registration or resend.
func (s *AWSSESEmailService) SendVerificationEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	verificationLink := fmt.Sprintf("%s/verify-email?token=%s", s.baseURL, token)

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>%s</style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Confirm your Inkwell account</h1>
        </div>
        <div class="content">
            <p>Welcome to Inkwell!</p>
            <p>To start ordering and publishing printed course materials, please confirm your email address:</p>
            <p><a href="%s" class="button">Confirm Email Address</a></p>
            <p>Or copy and paste this link in your browser:<br>
            <code>%s</code></p>
            <div class="warning">
                <strong>Security notice:</strong> this link expires in 24 hours.
            </div>
            <p><strong>Didn't create this account?</strong><br>
            You can ignore this email and the address will not be confirmed.</p>
        </div>
        <div class="footer">
            <p>This is an automated message from Inkwell. Please do not reply.</p>
        </div>
    </div>
</body>
</html>
`, emailStyle, verificationLink, verificationLink)

	textBody := fmt.Sprintf(`Confirm your Inkwell account

Welcome to Inkwell! To start ordering and publishing printed course materials, please confirm your email address:

%s

Security notice: this link expires in 24 hours.

Didn't create this account? You can ignore this email and the address will not be confirmed.
`, verificationLink)

	return s.send(ctx, email, "Confirm your Inkwell email address", htmlBody, textBody)
}

// SendPasswordResetEmail mails the single-use reset link.
func (s *AWSSESEmailService) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	resetLink := fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, token)

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>%s</style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Reset your Inkwell password</h1>
        </div>
        <div class="content">
            <p>We received a request to reset the password for your Inkwell account.</p>
            <p><a href="%s" class="button">Choose a New Password</a></p>
            <p>Or copy and paste this link in your browser:<br>
            <code>%s</code></p>
            <div class="warning">
                <strong>Security notice:</strong> this link expires in 1 hour and can be used once.
            </div>
            <p><strong>Didn't request this?</strong><br>
            You can ignore this email; your password will not change.</p>
        </div>
        <div class="footer">
            <p>This is an automated message from Inkwell. Please do not reply.</p>
        </div>
    </div>
</body>
</html>
`, emailStyle, resetLink, resetLink)

	textBody := fmt.Sprintf(`Reset your Inkwell password

We received a request to reset the password for your Inkwell account. Use the link below to choose a new password:

%s

Security notice: this link expires in 1 hour and can be used once.

Didn't request this? You can ignore this email; your password will not change.
`, resetLink)

	return s.send(ctx, email, "Reset your Inkwell password", htmlBody, textBody)
}

func (s *AWSSESEmailService) send(ctx context.Context, email, subject, htmlBody, textBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send email via SES",
			slog.String("subject", subject),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		slog.String("subject", subject),
		slog.String("message_id", *result.MessageId))

	return nil
}
