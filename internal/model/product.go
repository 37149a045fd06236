// Package model はドメインモデルを定義する。
package model

import "time"

// Product は出品者が1人だけ存在する中古商品を表す。
type Product struct {
	ID          string
	OwnerID     string
	Name        string
	Price       int64 // 通貨の整数単位。0以上
	Category    string
	Condition   Condition
	Description string
	Image       string
	Location    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProductWithSeller は商品と出品者の表示名を結合したモデル。
type ProductWithSeller struct {
	Product
	SellerName string
}

// Condition は商品の状態を表す。
type Condition string

const (
	ConditionExcellent Condition = "Excellent"
	ConditionGood      Condition = "Good"
	ConditionFair      Condition = "Fair"
)

// Valid は定義済みの状態かどうかを返す。
func (c Condition) Valid() bool {
	switch c {
	case ConditionExcellent, ConditionGood, ConditionFair:
		return true
	default:
		return false
	}
}

// Category は商品カテゴリを表す。
type Category struct {
	Name string
}
