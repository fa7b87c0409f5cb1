package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/XSAM/otelsql"
	"github.com/aaravmahajanofficial/storefront-core/internal/config"
	"github.com/aaravmahajanofficial/storefront-core/internal/utils"
	"go.opentelemetry.io/otel/attribute"

	_ "github.com/lib/pq"
)

// Repositories bundles the Postgres-backed repositories over one pool.
type Repositories struct {
	DB           *sql.DB
	Cart         CartRepository
	Catalog      CatalogRepository
	Notification NotificationRepository
}

// New opens a traced connection pool and verifies the database is reachable.
func New(ctx context.Context, cfg *config.Database) (*Repositories, error) {
	db, err := otelsql.Open("postgres", cfg.GetDSN(),
		otelsql.WithAttributes(attribute.String("db.system", "postgresql")),
		otelsql.WithSpanOptions(otelsql.SpanOptions{OmitConnResetSession: true, OmitRows: true}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return NewRepositories(db), nil
}

func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		DB:           db,
		Cart:         NewCartRepo(db),
		Catalog:      NewCatalogRepo(db),
		Notification: NewNotificationRepo(db),
	}
}

func (r *Repositories) Close() error {
	return r.DB.Close()
}
