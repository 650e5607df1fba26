package notifications

import "context"

type StoreAPI interface {
	CreateNotification(ctx context.Context, tenantID, accountID, ntype, title, body, contextID string) error
	AccountEmail(ctx context.Context, tenantID, accountID string) (string, error)
	ListNotifications(ctx context.Context, tenantID, accountID string, limit, offset int) ([]map[string]any, error)
	CountNotifications(ctx context.Context, tenantID, accountID string) (int, error)
	MarkRead(ctx context.Context, tenantID, accountID, notificationID string) error
	EmailSettings(ctx context.Context, tenantID string) (bool, string, error)
	UpdateSettings(ctx context.Context, tenantID string, enabled bool, from string) error
}
