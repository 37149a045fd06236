// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"net/http"
)

// ErrorKind はエラーの分類を表す。HTTPステータスへの変換に使用する。
type ErrorKind string

const (
	// KindValidation は入力値の欠落・形式不正。
	KindValidation ErrorKind = "validation"
	// KindAuthentication はセッションが無い、または無効。
	KindAuthentication ErrorKind = "authentication"
	// KindAuthorization はセッションは有効だが権限が無い。
	KindAuthorization ErrorKind = "authorization"
	// KindNotFound はリソースが存在しない。
	KindNotFound ErrorKind = "not_found"
	// KindConflict は一意制約に抵触する。
	KindConflict ErrorKind = "conflict"
	// KindInternal は想定外の失敗。
	KindInternal ErrorKind = "internal"
)

// HTTPStatus はエラー分類に対応するHTTPステータスコードを返す。
// 重複メールアドレスは既存クライアントとの互換のため409ではなく400を返す。
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// APIError は統一エラーフォーマットを表す。
// Messageはそのままクライアントに返すため、内部情報を含めてはならない。
type APIError struct {
	Code    string    // エラーコード
	Message string    // エラーメッセージ
	Kind    ErrorKind // エラー分類
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeProductNotFound    = "PRODUCT_NOT_FOUND"
	ErrCodeItemNotFound       = "ITEM_NOT_FOUND"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:    ErrCodeInvalidRequest,
		Message: message,
		Kind:    KindValidation,
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
// メールアドレス未登録とパスワード不一致のどちらでも同一の値を返す。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:    ErrCodeInvalidCredentials,
		Message: "Invalid email or password",
		Kind:    KindAuthentication,
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:    ErrCodeEmailTaken,
		Message: "Email already in use",
		Kind:    KindConflict,
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:    ErrCodeUnauthorized,
		Message: "Authentication required",
		Kind:    KindAuthentication,
	}
}

// NewForbiddenError は権限不足エラーを生成する。
// 対象リソースの内容は一切含めない。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:    ErrCodeForbidden,
		Message: "Forbidden",
		Kind:    KindAuthorization,
	}
}

// NewProductNotFoundError は商品未検出エラーを生成する。
func NewProductNotFoundError() *APIError {
	return &APIError{
		Code:    ErrCodeProductNotFound,
		Message: "Product not found",
		Kind:    KindNotFound,
	}
}

// NewItemNotFoundError はカート内に該当商品が無い場合のエラーを生成する。
func NewItemNotFoundError() *APIError {
	return &APIError{
		Code:    ErrCodeItemNotFound,
		Message: "Item not found in cart",
		Kind:    KindNotFound,
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録すること。
func NewInternalError() *APIError {
	return &APIError{
		Code:    ErrCodeInternal,
		Message: "Internal server error",
		Kind:    KindInternal,
	}
}
