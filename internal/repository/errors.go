package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolationCode = "23505"

// IsUniqueViolation 判断是否唯一约束冲突（postgres / sqlite）
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

// IsUniqueViolationOn 判断唯一约束冲突是否发生在指定列上
func IsUniqueViolationOn(err error, table, column string) bool {
	if !IsUniqueViolation(err) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// gorm 默认索引名为 idx_<table>_<column>
		return strings.EqualFold(pgErr.ConstraintName, "idx_"+table+"_"+column) ||
			strings.EqualFold(pgErr.ColumnName, column)
	}
	return strings.Contains(strings.ToLower(err.Error()), strings.ToLower(table+"."+column))
}
