package notifications

import "context"

func (s *Store) CreateNotification(ctx context.Context, tenantID, accountID, ntype, title, body, contextID string) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO notifications (tenant_id, account_id, type, title, body, context_id)
    VALUES ($1,$2,$3,$4,$5,$6)
  `, tenantID, accountID, ntype, title, body, nullIfEmpty(contextID))
	return err
}

func (s *Store) AccountEmail(ctx context.Context, tenantID, accountID string) (string, error) {
	var email string
	if err := s.DB.QueryRow(ctx, "SELECT email FROM accounts WHERE tenant_id = $1 AND id = $2", tenantID, accountID).Scan(&email); err != nil {
		return "", err
	}
	return email, nil
}

func (s *Store) ListNotifications(ctx context.Context, tenantID, accountID string, limit, offset int) ([]map[string]any, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, type, title, body, context_id, read_at, created_at
    FROM notifications
    WHERE tenant_id = $1 AND account_id = $2
    ORDER BY created_at DESC
    LIMIT $3 OFFSET $4
  `, tenantID, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var id, ntype, title, body string
		var contextID, readAt, createdAt any
		if err := rows.Scan(&id, &ntype, &title, &body, &contextID, &readAt, &createdAt); err != nil {
			return nil, err
		}
		out = append(out, map[string]any{
			"id":        id,
			"type":      ntype,
			"title":     title,
			"body":      body,
			"contextId": contextID,
			"readAt":    readAt,
			"createdAt": createdAt,
		})
	}
	return out, rows.Err()
}

func (s *Store) CountNotifications(ctx context.Context, tenantID, accountID string) (int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM notifications WHERE tenant_id = $1 AND account_id = $2", tenantID, accountID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) MarkRead(ctx context.Context, tenantID, accountID, notificationID string) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE notifications SET read_at = now()
    WHERE tenant_id = $1 AND account_id = $2 AND id = $3
  `, tenantID, accountID, notificationID)
	return err
}

func (s *Store) EmailSettings(ctx context.Context, tenantID string) (bool, string, error) {
	var enabled bool
	var from string
	if err := s.DB.QueryRow(ctx, `
    SELECT email_notifications_enabled, COALESCE(email_from, '')
    FROM tenant_settings
    WHERE tenant_id = $1
  `, tenantID).Scan(&enabled, &from); err != nil {
		return false, "", err
	}
	return enabled, from, nil
}

func (s *Store) UpdateSettings(ctx context.Context, tenantID string, enabled bool, from string) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO tenant_settings (tenant_id, email_notifications_enabled, email_from)
    VALUES ($1,$2,$3)
    ON CONFLICT (tenant_id) DO UPDATE
      SET email_notifications_enabled = EXCLUDED.email_notifications_enabled,
          email_from = EXCLUDED.email_from,
          updated_at = now()
  `, tenantID, enabled, nullIfEmpty(from))
	return err
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
