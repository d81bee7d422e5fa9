package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/utafrali/furnishop/internal/domain"
	apperrors "github.com/utafrali/furnishop/pkg/errors"
	"github.com/utafrali/furnishop/pkg/phone"
	"github.com/utafrali/furnishop/pkg/validator"
)

// ContactNotifier forwards contact requests to the shop's chat.
type ContactNotifier interface {
	NotifyContact(ctx context.Context, req domain.ContactRequest) error
}

// ContactInput is the contact form.
type ContactInput struct {
	Name    string `json:"name" validate:"required,min=2,max=100"`
	Phone   string `json:"phone" validate:"required,ruphone"`
	Message string `json:"message" validate:"required,max=2000"`
}

// ContactService delivers contact form submissions.
type ContactService struct {
	notifier ContactNotifier
	logger   *slog.Logger
}

// NewContactService creates a new contact service.
func NewContactService(notifier ContactNotifier, logger *slog.Logger) *ContactService {
	return &ContactService{notifier: notifier, logger: logger}
}

// Submit validates the form and sends it on synchronously, so the visitor
// learns whether the message got through.
func (s *ContactService) Submit(ctx context.Context, input ContactInput) error {
	input.Name = strings.TrimSpace(input.Name)
	input.Phone = strings.TrimSpace(input.Phone)
	input.Message = strings.TrimSpace(input.Message)
	if err := validator.Validate(input); err != nil {
		return err
	}

	req := domain.ContactRequest{
		Name:    input.Name,
		Phone:   phone.Normalize(input.Phone),
		Message: input.Message,
	}
	if err := s.notifier.NotifyContact(ctx, req); err != nil {
		s.logger.ErrorContext(ctx, "failed to deliver contact request", slog.String("error", err.Error()))
		return apperrors.ServiceUnavailable("message could not be delivered, please call us instead", err)
	}

	s.logger.InfoContext(ctx, "contact request delivered")
	return nil
}
