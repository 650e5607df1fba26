package notifications

import (
	"context"
	"log/slog"
)

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

type Service struct {
	store       StoreAPI
	Mailer      Mailer
	DefaultFrom string
}

func New(store StoreAPI, mailer Mailer) *Service {
	return &Service{store: store, Mailer: mailer, DefaultFrom: "no-reply@example.com"}
}

func (s *Service) Create(ctx context.Context, tenantID, accountID, ntype, title, body, contextID string) error {
	if err := s.store.CreateNotification(ctx, tenantID, accountID, ntype, title, body, contextID); err != nil {
		return err
	}

	enabled, from := s.getEmailSettings(ctx, tenantID)
	if !enabled {
		return nil
	}
	if from == "" {
		from = s.DefaultFrom
	}

	email, err := s.store.AccountEmail(ctx, tenantID, accountID)
	if err != nil {
		slog.Warn("notification email lookup failed", "err", err)
		return nil
	}
	if email == "" {
		return nil
	}
	if err := s.Mailer.Send(ctx, from, email, title, body); err != nil {
		slog.Warn("notification email send failed", "err", err)
	}
	return nil
}

// Send fans one message out to every recipient. It never returns an error:
// workflow transitions must not fail because a notification could not be
// stored or delivered.
func (s *Service) Send(ctx context.Context, tenantID, senderID string, recipientIDs []string, message, kind, contextID string) {
	for _, recipientID := range recipientIDs {
		if recipientID == senderID {
			continue
		}
		if err := s.Create(ctx, tenantID, recipientID, kind, "Payroll cutoff update", message, contextID); err != nil {
			slog.Warn("notification create failed", "recipient", recipientID, "err", err)
		}
	}
}

func (s *Service) List(ctx context.Context, tenantID, accountID string, limit, offset int) ([]map[string]any, error) {
	return s.store.ListNotifications(ctx, tenantID, accountID, limit, offset)
}

func (s *Service) Count(ctx context.Context, tenantID, accountID string) (int, error) {
	return s.store.CountNotifications(ctx, tenantID, accountID)
}

func (s *Service) MarkRead(ctx context.Context, tenantID, accountID, notificationID string) error {
	return s.store.MarkRead(ctx, tenantID, accountID, notificationID)
}

func (s *Service) getEmailSettings(ctx context.Context, tenantID string) (bool, string) {
	enabled, from, err := s.store.EmailSettings(ctx, tenantID)
	if err != nil {
		return false, ""
	}
	return enabled, from
}

func (s *Service) GetSettings(ctx context.Context, tenantID string) (bool, string, error) {
	return s.store.EmailSettings(ctx, tenantID)
}

func (s *Service) UpdateSettings(ctx context.Context, tenantID string, enabled bool, from string) error {
	return s.store.UpdateSettings(ctx, tenantID, enabled, from)
}
