// Package credential はパスワードハッシュとセッショントークンの署名・検証を提供する。
package credential

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost はパスワードハッシュの既定コスト。
const DefaultBcryptCost = 12

// PasswordHasher はbcryptによるパスワードハッシュを扱う。
type PasswordHasher struct {
	cost int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewPasswordHasher はPasswordHasherを生成する。
// costがbcryptの許容範囲外の場合はDefaultBcryptCostを使用する。
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash は平文パスワードのbcryptハッシュを返す。ソルトを含むため結果は毎回異なる。
func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify は平文パスワードがハッシュと一致するかを返す。
// ハッシュの形式不正を含むあらゆるエラーはfalseとして扱う。
func (h *PasswordHasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// VerifyDummy は存在しないユーザーに対するログイン試行で呼び出す。
// 実ユーザーのパスワード不一致と同じコストの比較を1回行い、常にfalseを返す。
func (h *PasswordHasher) VerifyDummy(plaintext string) bool {
	h.dummyOnce.Do(func() {
		// 生成に失敗した場合はnilのままとなり、比較は即座に失敗する
		h.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("ecofinds-dummy-password"), h.cost)
	})
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(plaintext))
	return false
}
