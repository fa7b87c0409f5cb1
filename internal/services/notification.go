package service

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"

	"github.com/aaravmahajanofficial/storefront-core/internal/api/middleware"
	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	repository "github.com/aaravmahajanofficial/storefront-core/internal/repositories"
	"github.com/google/uuid"
)

// EmailSender is the slice of the SendGrid client the notifier needs.
type EmailSender interface {
	Send(ctx context.Context, msg *models.EmailMessage) error
}

type NotificationService interface {
	OrderNotifier
	ListForOrder(ctx context.Context, orderID string) ([]*models.Notification, error)
}

type notificationService struct {
	repo         repository.NotificationRepository
	emailService EmailSender
	storeName    string
}

func NewNotificationService(repo repository.NotificationRepository, emailService EmailSender, storeName string) NotificationService {
	return &notificationService{repo: repo, emailService: emailService, storeName: storeName}
}

var confirmationHTML = template.Must(template.New("confirmation").Parse(
	`<p>Hi {{.Name}},</p><p>Your order <strong>{{.OrderID}}</strong> for {{.GrandTotal}} has been placed ({{.Method}}).</p><p>{{.Store}}</p>`,
))

// SendOrderConfirmation records the email before sending it and marks the
// record sent or failed afterwards.
func (n *notificationService) SendOrderConfirmation(ctx context.Context, confirmation *models.OrderConfirmation) error {
	logger := middleware.LoggerFromContext(ctx)

	name := strings.TrimSpace(confirmation.Name)
	if name == "" {
		name = "there"
	}

	subject := fmt.Sprintf("Your %s order %s is confirmed", n.storeName, confirmation.OrderID)
	content := fmt.Sprintf("Hi %s,\n\nYour order %s for %s has been placed (%s).\n\n%s",
		name, confirmation.OrderID, confirmation.GrandTotal, confirmation.Method, n.storeName)

	var html strings.Builder
	if err := confirmationHTML.Execute(&html, map[string]string{
		"Name":       name,
		"OrderID":    confirmation.OrderID,
		"GrandTotal": confirmation.GrandTotal,
		"Method":     confirmation.Method,
		"Store":      n.storeName,
	}); err != nil {
		return fmt.Errorf("failed to render confirmation email: %w", err)
	}

	notification := &models.Notification{
		ID:        uuid.New(),
		OrderID:   confirmation.OrderID,
		Recipient: confirmation.To,
		Subject:   subject,
		Content:   content,
		Status:    models.StatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := n.repo.CreateNotification(ctx, notification); err != nil {
		return fmt.Errorf("failed to create notification record: %w", err)
	}

	err := n.emailService.Send(ctx, &models.EmailMessage{
		To:          confirmation.To,
		ToName:      strings.TrimSpace(confirmation.Name),
		Subject:     subject,
		Content:     content,
		HTMLContent: html.String(),
		Category:    models.CategoryOrderConfirmation,
		OrderID:     confirmation.OrderID,
	})
	if err != nil {
		if updateErr := n.repo.UpdateNotificationStatus(ctx, notification.ID, models.StatusFailed, err.Error()); updateErr != nil {
			logger.Warn("Failed to mark notification failed", slog.String("notification_id", notification.ID.String()), slog.String("error", updateErr.Error()))
		}
		return fmt.Errorf("failed to send email: %w", err)
	}

	if err := n.repo.UpdateNotificationStatus(ctx, notification.ID, models.StatusSent, ""); err != nil {
		return fmt.Errorf("notification sent successfully but failed to update notification status: %w", err)
	}

	logger.Info("Order confirmation sent", slog.String("order_id", confirmation.OrderID))

	return nil
}

func (n *notificationService) ListForOrder(ctx context.Context, orderID string) ([]*models.Notification, error) {
	notifications, err := n.repo.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	return notifications, nil
}
