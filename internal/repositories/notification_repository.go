package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aaravmahajanofficial/storefront-core/internal/errors"
	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	"github.com/aaravmahajanofficial/storefront-core/internal/utils"
	"github.com/google/uuid"
)

// NotificationRepository is the delivery log for order emails. error_message
// stays NULL until a delivery fails.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification *models.Notification) error
	UpdateNotificationStatus(ctx context.Context, id uuid.UUID, status models.NotificationStatus, errorMsg string) error
	ListByOrderID(ctx context.Context, orderID string) ([]*models.Notification, error)
}

const (
	insertNotificationSQL = `
		INSERT INTO notifications (id, order_id, recipient, subject, content, status, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NOW(), NOW())`

	updateNotificationStatusSQL = `
		UPDATE notifications
		SET status = $2, error_message = NULLIF($3, ''), updated_at = NOW()
		WHERE id = $1`

	listNotificationsByOrderSQL = `
		SELECT id, order_id, recipient, subject, content, status, COALESCE(error_message, ''), created_at, updated_at
		FROM notifications
		WHERE order_id = $1
		ORDER BY created_at DESC, id`
)

type notificationRepository struct {
	db *sql.DB
}

func NewNotificationRepo(db *sql.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) CreateNotification(ctx context.Context, n *models.Notification) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	if _, err := r.db.ExecContext(dbCtx, insertNotificationSQL,
		n.ID, n.OrderID, n.Recipient, n.Subject, n.Content, n.Status, n.ErrorMessage); err != nil {
		return fmt.Errorf("recording notification for order %s: %w", n.OrderID, err)
	}

	return nil
}

// UpdateNotificationStatus returns a NOT_FOUND AppError when id matches no row.
func (r *notificationRepository) UpdateNotificationStatus(ctx context.Context, id uuid.UUID, status models.NotificationStatus, errorMsg string) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(dbCtx, updateNotificationStatusSQL, id, status, errorMsg)
	if err != nil {
		return fmt.Errorf("marking notification %s %s: %w", id, status, err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("marking notification %s %s: %w", id, status, err)
	} else if n == 0 {
		return errors.NotFoundError("Notification not found").WithDetail(id.String())
	}

	return nil
}

func (r *notificationRepository) ListByOrderID(ctx context.Context, orderID string) ([]*models.Notification, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(dbCtx, listNotificationsByOrderSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing notifications for order %s: %w", orderID, err)
	}
	defer rows.Close()

	out := []*models.Notification{}
	for rows.Next() {
		n := &models.Notification{}
		if err := rows.Scan(&n.ID, &n.OrderID, &n.Recipient, &n.Subject, &n.Content,
			&n.Status, &n.ErrorMessage, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning notification row: %w", err)
		}
		out = append(out, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing notifications for order %s: %w", orderID, err)
	}

	return out, nil
}
