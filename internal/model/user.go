// Package model はドメインモデルを定義する。
package model

import "time"

// User は認証可能な登録アカウントを表す。
// PasswordHashはAPIレスポンスに含めてはならない。
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Location     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SessionClaims はセッショントークンに埋め込まれるクレームを表す。
// ExpiresAtは常にIssuedAt + TTL、NotBeforeはIssuedAtと等しい。
type SessionClaims struct {
	TokenID   string
	Subject   string
	Email     string
	IssuedAt  time.Time
	NotBefore time.Time
	ExpiresAt time.Time
}

// Session はログイン・登録の結果として発行されるトークンとユーザーの組。
type Session struct {
	Token  string
	Claims SessionClaims
	User   *User
}
