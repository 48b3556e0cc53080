package service

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"lautcoach/internal/models"
	"lautcoach/internal/validation"
)

// MasteryNotifier tells a learner they mastered a sound.
type MasteryNotifier interface {
	NotifyMastered(ctx context.Context, user models.User, module *models.SoundModule, rec models.MasteryRecord) error
}

type emailSender interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailService sends mastery emails via Amazon SES. Without a from address
// it is disabled and every send is a no-op.
type EmailService struct {
	client    emailSender
	fromEmail string
	fromName  string
	enabled   bool
	logger    *slog.Logger
}

// NewEmailService creates an email service for region.
func NewEmailService(ctx context.Context, awsRegion, fromEmail string, logger *slog.Logger) (*EmailService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if fromEmail == "" {
		logger.Info("email service disabled: SES_FROM_ADDRESS not configured")
		return &EmailService{logger: logger}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Info("email service enabled", "from", fromEmail, "region", awsRegion)
	return newEmailService(sesv2.NewFromConfig(cfg), fromEmail, logger), nil
}

func newEmailService(client emailSender, fromEmail string, logger *slog.Logger) *EmailService {
	return &EmailService{
		client:    client,
		fromEmail: fromEmail,
		fromName:  "Lautcoach",
		enabled:   true,
		logger:    logger,
	}
}

// IsEnabled reports whether emails are actually sent.
func (s *EmailService) IsEnabled() bool {
	return s.enabled
}

// NotifyMastered implements MasteryNotifier.
func (s *EmailService) NotifyMastered(ctx context.Context, user models.User, module *models.SoundModule, rec models.MasteryRecord) error {
	if !s.enabled || user.Email == "" {
		s.logger.DebugContext(ctx, "skipping mastery email", "user_id", user.ID, "sound_id", module.SoundID)
		return nil
	}
	if err := validation.ValidateEmail(user.Email); err != nil {
		s.logger.WarnContext(ctx, "skipping mastery email", "user_id", user.ID, "error", err)
		return nil
	}

	name := user.Name
	if name == "" {
		name = "there"
	}
	subject := fmt.Sprintf("You mastered %s!", module.Name)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<h1>Sehr gut, %s!</h1>
	<p>You have mastered the <strong>%s</strong> sound [%s].</p>
	<p>Average score: %.1f over %d attempts. Best score: %.1f.</p>
	<p>Pick a new sound to keep going.</p>
</body>
</html>`,
		html.EscapeString(name), html.EscapeString(module.Name), html.EscapeString(module.PhonemeIPA),
		rec.AverageScore, rec.TotalAttempts, rec.BestScore)

	textBody := fmt.Sprintf(`Sehr gut, %s!

You have mastered the %s sound [%s].
Average score: %.1f over %d attempts. Best score: %.1f.

Pick a new sound to keep going.`,
		name, module.Name, module.PhonemeIPA, rec.AverageScore, rec.TotalAttempts, rec.BestScore)

	return s.sendEmail(ctx, user.Email, subject, htmlBody, textBody)
}

func (s *EmailService) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	attrs := []any{"to", toEmail, "subject", subject}
	if result != nil && result.MessageId != nil {
		attrs = append(attrs, "message_id", *result.MessageId)
	}
	s.logger.InfoContext(ctx, "email sent", attrs...)
	return nil
}
