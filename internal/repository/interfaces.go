// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/ecofinds/internal/model"
)

// ErrEmailTaken はメールアドレスの一意制約違反を表す。
var ErrEmailTaken = errors.New("email already exists")

// ErrProductMissing はカート書き込み時に参照先の商品が存在しないことを表す。
var ErrProductMissing = errors.New("product does not exist")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレス（大文字小文字を区別しない）でユーザーを取得する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。メールアドレスが重複する場合はErrEmailTakenを返す。
	Create(ctx context.Context, user *model.User) error
}

// ProductFilter は商品一覧の絞り込み条件。
type ProductFilter struct {
	Category string
	OwnerID  string
	Limit    int
	Offset   int
}

// ProductRepository は商品データの永続化インターフェース。
type ProductRepository interface {
	// FindByID は指定IDの商品を出品者名付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.ProductWithSeller, error)

	// List は条件に一致する商品を新しい順に返す。
	List(ctx context.Context, filter ProductFilter) ([]model.ProductWithSeller, error)

	// Create は商品を作成する。
	Create(ctx context.Context, product *model.Product) error

	// Update は商品の可変フィールドを上書き更新する。対象が無い場合はfalseを返す。
	Update(ctx context.Context, product *model.Product) (bool, error)

	// Delete は指定IDの商品を削除する。対象が無い場合はfalseを返す。
	// 関連するcart_itemsはCASCADE削除される。
	Delete(ctx context.Context, id string) (bool, error)
}

// CategoryRepository は商品カテゴリの参照インターフェース。
type CategoryRepository interface {
	// List は全カテゴリを名前順に返す。
	List(ctx context.Context) ([]model.Category, error)

	// Exists は指定名のカテゴリが存在するかを返す。
	Exists(ctx context.Context, name string) (bool, error)
}

// CartRepository はカートとカート行の永続化インターフェース。
type CartRepository interface {
	// FindByUserID はユーザーのカートを商品情報付きで取得する。
	// カートが未作成の場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Cart, error)

	// AddItem はカートを必要に応じて作成し、カート行をINSERT ON CONFLICTで加算する。
	// 加算後の数量はmodel.MaxLineQuantityで頭打ちになる。
	// 同一(cart_id, product_id)への同時実行は順次の加算として合成される。
	// 商品が存在しない場合はErrProductMissingを返す。
	AddItem(ctx context.Context, userID, productID string, quantity int) (*model.CartLine, error)

	// SetItemQuantity はカート行の数量を上書きする。quantityが0以下の場合は行を削除する。
	// 対象行が存在しない場合はfalseを返す。
	SetItemQuantity(ctx context.Context, userID, productID string, quantity int) (bool, error)

	// RemoveItem はカート行を削除する。対象行が存在しない場合はfalseを返す。
	RemoveItem(ctx context.Context, userID, productID string) (bool, error)

	// MergeItems はカートを必要に応じて作成し、全行を単一トランザクションで加算する。
	// 存在しない商品の行は書き込まずにそのIDを返す。途中で失敗した場合は何も反映しない。
	MergeItems(ctx context.Context, userID string, lines []MergeLine) (skipped []string, err error)
}

// MergeLine はMergeItemsで加算する1行。
type MergeLine struct {
	ProductID string
	Quantity  int
}

// RevocationStore は失効済みトークンIDの保存先インターフェース。
// エントリはトークン本来の有効期限まで保持すればよい。
type RevocationStore interface {
	// Revoke はトークンIDを失効リストに追加する。
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error

	// IsRevoked はトークンIDが失効済みかを返す。
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
