package repository

import (
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgreSQLのSQLSTATEコード
const (
	pqUniqueViolation     = pq.ErrorCode("23505")
	pqForeignKeyViolation = pq.ErrorCode("23503")
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation
}

// isUUID はUUID列に渡す前にIDの形式を検証する。
// 不正な形式をそのまま渡すと22P02エラーになるため、未検出として扱う。
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
