package repository

import (
	"testing"
	"time"

	"quadra/internal/database"
	"quadra/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return gormDB, mock
}

func setupSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func seedProfile(t *testing.T, db *gorm.DB, name, username string) *models.Profile {
	t.Helper()
	p := &models.Profile{ID: uuid.New(), Name: name, Username: username}
	require.NoError(t, db.Create(p).Error)
	return p
}

func seedPost(t *testing.T, db *gorm.DB, author uuid.UUID, title string, topic models.Topic, likes int, at time.Time) *models.Post {
	t.Helper()
	p := &models.Post{
		ID:        uuid.New(),
		UserID:    author,
		Title:     title,
		Content:   title + " body",
		Topic:     topic,
		Likes:     likes,
		CreatedAt: at,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}
