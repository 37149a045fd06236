// Package model はドメインモデルを定義する。
package model

import "time"

const (
	// MaxLineQuantity はカート1行あたりの数量の上限。加算結果もこの値で頭打ちになる。
	MaxLineQuantity = 9999
	// MaxCartLines はカートが持てる商品行数の上限。
	MaxCartLines = 200
)

// Cart はユーザーごとに1つだけ存在するカートを表す。
// IDが空の場合はまだカートが作成されていないことを示す。
type Cart struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	Items     []CartLine
}

// CartLine はカート内の商品と数量の組を表す。Quantityは常に1以上。
// Productは読み取り時点の商品情報で、価格のスナップショットは保持しない。
type CartLine struct {
	ID        string
	CartID    string
	ProductID string
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time
	Product   ProductWithSeller
}

// LineTotal は現在の商品価格に基づく小計を返す。
func (l CartLine) LineTotal() int64 {
	return l.Product.Price * int64(l.Quantity)
}

// Total はカート全体の合計金額を返す。
func (c *Cart) Total() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.LineTotal()
	}
	return total
}

// ItemCount はカート内の商品数量の合計を返す。
func (c *Cart) ItemCount() int {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}
