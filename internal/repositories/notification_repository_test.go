package repository_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	appErrors "github.com/aaravmahajanofficial/storefront-core/internal/errors"
	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	repository "github.com/aaravmahajanofficial/storefront-core/internal/repositories"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupNotificationRepoTest(t *testing.T) (repository.NotificationRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err, "Failed to create sqlmock")

	t.Cleanup(func() {
		db.Close()
	})

	repo := repository.NewNotificationRepo(db)
	require.NotNil(t, repo, "NewNotificationRepo should return a non-nil repository")

	return repo, mock
}

func TestNotificationRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateNotification", func(t *testing.T) {
		notification := &models.Notification{
			ID:        uuid.New(),
			OrderID:   "ord-1",
			Recipient: "buyer@example.com",
			Subject:   "Order ord-1 confirmed",
			Content:   "Thanks for your order",
			Status:    models.StatusPending,
		}
		expectedSQL := `INSERT INTO notifications .+ VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, NULLIF\(\$7, ''\), NOW\(\), NOW\(\)\)`

		t.Run("Success", func(t *testing.T) {
			// Arrange
			repo, mock := setupNotificationRepoTest(t)
			mock.ExpectExec(expectedSQL).
				WithArgs(notification.ID, "ord-1", "buyer@example.com", notification.Subject, notification.Content, models.StatusPending, "").
				WillReturnResult(sqlmock.NewResult(1, 1))

			// Act
			err := repo.CreateNotification(ctx, notification)

			// Assert
			require.NoError(t, err)
			assert.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})

		t.Run("Failure - Database Error", func(t *testing.T) {
			// Arrange
			repo, mock := setupNotificationRepoTest(t)
			dbErr := errors.New("insert failed")
			mock.ExpectExec(expectedSQL).WillReturnError(dbErr)

			// Act
			err := repo.CreateNotification(ctx, notification)

			// Assert
			assert.ErrorIs(t, err, dbErr)
			assert.ErrorContains(t, err, "recording notification for order ord-1")
			assert.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})
	})

	t.Run("UpdateNotificationStatus", func(t *testing.T) {
		id := uuid.New()
		expectedSQL := `UPDATE notifications\s+SET status = \$2, error_message = NULLIF\(\$3, ''\), updated_at = NOW\(\)\s+WHERE id = \$1`

		t.Run("Success", func(t *testing.T) {
			// Arrange
			repo, mock := setupNotificationRepoTest(t)
			mock.ExpectExec(expectedSQL).
				WithArgs(id, models.StatusSent, "").
				WillReturnResult(sqlmock.NewResult(0, 1))

			// Act
			err := repo.UpdateNotificationStatus(ctx, id, models.StatusSent, "")

			// Assert
			require.NoError(t, err)
			assert.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})

		t.Run("Failure - Not Found", func(t *testing.T) {
			// Arrange
			repo, mock := setupNotificationRepoTest(t)
			mock.ExpectExec(expectedSQL).
				WithArgs(id, models.StatusFailed, "bounced").
				WillReturnResult(sqlmock.NewResult(0, 0))

			// Act
			err := repo.UpdateNotificationStatus(ctx, id, models.StatusFailed, "bounced")

			// Assert
			var appErr *appErrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, appErrors.ErrCodeNotFound, appErr.Code)
			assert.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})
	})

	t.Run("ListByOrderID", func(t *testing.T) {
		expectedSQL := regexp.QuoteMeta(`COALESCE(error_message, '')`) + `.+WHERE order_id = \$1\s+ORDER BY created_at DESC, id`
		columns := []string{"id", "order_id", "recipient", "subject", "content", "status", "error_message", "created_at", "updated_at"}

		t.Run("Success", func(t *testing.T) {
			// Arrange
			repo, mock := setupNotificationRepoTest(t)
			now := time.Now()
			first, second := uuid.New(), uuid.New()
			mock.ExpectQuery(expectedSQL).
				WithArgs("ord-1").
				WillReturnRows(sqlmock.NewRows(columns).
					AddRow(first, "ord-1", "a@example.com", "s", "c", "sent", "", now, now).
					AddRow(second, "ord-1", "a@example.com", "s", "c", "failed", "bounced", now, now))

			// Act
			notifications, err := repo.ListByOrderID(ctx, "ord-1")

			// Assert
			require.NoError(t, err)
			require.Len(t, notifications, 2)
			assert.Equal(t, first, notifications[0].ID)
			assert.Equal(t, models.StatusFailed, notifications[1].Status)
			assert.Equal(t, "bounced", notifications[1].ErrorMessage)
			assert.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})

		t.Run("Failure - Scan Error", func(t *testing.T) {
			// Arrange
			repo, mock := setupNotificationRepoTest(t)
			mock.ExpectQuery(expectedSQL).
				WithArgs("ord-1").
				WillReturnRows(sqlmock.NewRows(columns).
					AddRow("not-a-uuid", "ord-1", "a@example.com", "s", "c", "sent", "", time.Now(), time.Now()))

			// Act
			notifications, err := repo.ListByOrderID(ctx, "ord-1")

			// Assert
			assert.Nil(t, notifications)
			assert.ErrorContains(t, err, "scanning notification row")
			assert.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})
	})
}
