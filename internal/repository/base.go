// Package repository provides data access layer implementations for the application.
package repository

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// decrementClamped never lets a counter drop below zero.
var decrementClamped = gorm.Expr("CASE WHEN likes > 0 THEN likes - 1 ELSE 0 END")

// IsUniqueViolation reports whether err is a duplicate-key error from Postgres.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// adjustLikes moves the likes counter of one row by delta, clamped at zero.
func adjustLikes(tx *gorm.DB, model any, id uuid.UUID, delta int) error {
	if delta == 0 {
		return nil
	}
	expr := gorm.Expr("likes + ?", delta)
	if delta < 0 {
		expr = decrementClamped
		if delta < -1 {
			expr = gorm.Expr("CASE WHEN likes + ? > 0 THEN likes + ? ELSE 0 END", delta, delta)
		}
	}
	return tx.Model(model).Where("id = ?", id).UpdateColumn("likes", expr).Error
}

// currentLikes reads the counter of one row; a missing row is
// gorm.ErrRecordNotFound.
func currentLikes(tx *gorm.DB, table string, id uuid.UUID) (int, error) {
	var likes int
	row := tx.Table(table).Select("likes").Where("id = ?", id).Row()
	if err := row.Scan(&likes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, gorm.ErrRecordNotFound
		}
		return 0, err
	}
	return likes, nil
}

// insertLike inserts a like row and reports whether a new row was written.
// An existing row is not an error.
func insertLike(tx *gorm.DB, row any) (bool, error) {
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if res.Error != nil {
		if IsUniqueViolation(res.Error) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
