// Package testdb opens throwaway sqlite databases carrying the catalog schema.
package testdb

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var schema = []string{
	`CREATE TABLE brands (id TEXT PRIMARY KEY, name TEXT NOT NULL)`,
	`CREATE TABLE colors (id TEXT PRIMARY KEY, name TEXT NOT NULL)`,
	`CREATE TABLE categories (id TEXT PRIMARY KEY, name TEXT NOT NULL, parent_id TEXT, level INTEGER NOT NULL DEFAULT 0)`,
	`CREATE TABLE features (id TEXT PRIMARY KEY, name TEXT NOT NULL, is_multichoice BOOLEAN NOT NULL DEFAULT 0, is_variation BOOLEAN NOT NULL DEFAULT 0, is_visible BOOLEAN NOT NULL DEFAULT 1)`,
	`CREATE TABLE feature_values (id TEXT PRIMARY KEY, feature_id TEXT NOT NULL REFERENCES features(id) ON DELETE CASCADE, value TEXT NOT NULL)`,
	`CREATE TABLE products (
		id TEXT PRIMARY KEY,
		master_id TEXT REFERENCES products(id) ON DELETE CASCADE,
		common_name TEXT NOT NULL,
		variant_name TEXT,
		slug TEXT NOT NULL,
		color_id TEXT,
		brand_id TEXT,
		category_id TEXT,
		description TEXT,
		main_photo TEXT,
		miniature_photo TEXT,
		photos TEXT NOT NULL DEFAULT '[]',
		video_urls TEXT NOT NULL DEFAULT '[]',
		is_visible BOOLEAN NOT NULL DEFAULT 0,
		offers_count INTEGER NOT NULL DEFAULT 0,
		offers_min_price NUMERIC,
		offers_old_price NUMERIC,
		reviews_count INTEGER NOT NULL DEFAULT 0,
		rating REAL,
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT products_slug_key UNIQUE (slug)
	)`,
	`CREATE TABLE product_variation_features (product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE, feature_id TEXT NOT NULL, PRIMARY KEY (product_id, feature_id))`,
	`CREATE TABLE product_features (id TEXT PRIMARY KEY, product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE, feature_id TEXT NOT NULL, UNIQUE (product_id, feature_id))`,
	`CREATE TABLE product_feature_values (id TEXT PRIMARY KEY, product_feature_id TEXT NOT NULL REFERENCES product_features(id) ON DELETE CASCADE, feature_value_id TEXT NOT NULL)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME,
		created_at DATETIME
	)`,
}

// Open returns an isolated in-memory database with foreign keys enabled.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.Exec("PRAGMA foreign_keys = ON").Error)
	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}
