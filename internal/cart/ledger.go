// Package cart はユーザーごとのカート台帳を提供する。
//
// 台帳は (ユーザー, 商品) ごとに高々1行を持ち、数量は常に1以上に保たれる。
// 追加は加算として扱われ、同一商品への同時追加は順次の加算と同じ結果になる。
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/ecofinds/internal/metrics"
	"github.com/hitoshi/ecofinds/internal/model"
	"github.com/hitoshi/ecofinds/internal/repository"
)

// ProductFinder は商品の存在確認に使用するインターフェース。
// repository.ProductRepositoryの部分集合として定義する。
type ProductFinder interface {
	FindByID(ctx context.Context, id string) (*model.ProductWithSeller, error)
}

// Notifier はカート変更の通知先。
type Notifier interface {
	NotifyCartUpdated(userID string)
}

// LineInput はマージ対象の1行。
type LineInput struct {
	ProductID string
	Quantity  int
}

// MergeResult はマージの結果。Skippedには存在しなかった商品IDが入る。
type MergeResult struct {
	Cart    *model.Cart
	Skipped []string
}

// Ledger はカート台帳のサービス層。
type Ledger struct {
	carts    repository.CartRepository
	products ProductFinder
	notifier Notifier
	metrics  metrics.MetricsCollector
}

// NewLedger はLedgerを生成する。notifierとcollectorはnilでもよい。
func NewLedger(
	carts repository.CartRepository,
	products ProductFinder,
	notifier Notifier,
	collector metrics.MetricsCollector,
) *Ledger {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Ledger{
		carts:    carts,
		products: products,
		notifier: notifier,
		metrics:  collector,
	}
}

// Get はユーザーのカートを現在の商品情報付きで返す。
// カートが未作成の場合は空のカートを返す。
func (l *Ledger) Get(ctx context.Context, userID string) (*model.Cart, error) {
	c, err := l.carts.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("カートの取得に失敗しました: %w", err)
	}
	if c == nil {
		return &model.Cart{UserID: userID, Items: []model.CartLine{}}, nil
	}
	return c, nil
}

// Add は商品をquantity個カートに追加する。既に行がある場合は数量を加算する。
// 加算後の数量はmodel.MaxLineQuantityで頭打ちになる。
func (l *Ledger) Add(ctx context.Context, userID, productID string, quantity int) (*model.CartLine, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, model.NewValidationError("Product ID is required")
	}
	if quantity < 1 || quantity > model.MaxLineQuantity {
		return nil, model.NewValidationError("Quantity must be a positive integer")
	}

	p, err := l.products.FindByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewProductNotFoundError()
	}

	line, err := l.carts.AddItem(ctx, userID, productID, quantity)
	if errors.Is(err, repository.ErrProductMissing) {
		// 存在確認の後に商品が削除された
		return nil, model.NewProductNotFoundError()
	}
	if err != nil {
		return nil, fmt.Errorf("カートへの追加に失敗しました: %w", err)
	}

	l.metrics.RecordCartMutation("add")
	l.notify(userID)
	return line, nil
}

// SetQuantity はカート行の数量を上書きする。quantityが0以下の場合は行を削除する。
// 行が存在しない場合はItemNotFoundエラーを返す。
func (l *Ledger) SetQuantity(ctx context.Context, userID, productID string, quantity int) (*model.Cart, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, model.NewValidationError("Product ID is required")
	}
	if quantity > model.MaxLineQuantity {
		return nil, model.NewValidationError("Quantity is too large")
	}

	found, err := l.carts.SetItemQuantity(ctx, userID, productID, quantity)
	if err != nil {
		return nil, fmt.Errorf("数量の更新に失敗しました: %w", err)
	}
	if !found {
		return nil, model.NewItemNotFoundError()
	}

	op := "set_quantity"
	if quantity <= 0 {
		op = "remove"
	}
	l.metrics.RecordCartMutation(op)
	l.notify(userID)
	return l.Get(ctx, userID)
}

// Remove はカート行を削除し、更新後のカートを返す。
// 行が存在しない場合はItemNotFoundエラーを返す。
func (l *Ledger) Remove(ctx context.Context, userID, productID string) (*model.Cart, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, model.NewValidationError("Product ID is required")
	}

	found, err := l.carts.RemoveItem(ctx, userID, productID)
	if err != nil {
		return nil, fmt.Errorf("カート行の削除に失敗しました: %w", err)
	}
	if !found {
		return nil, model.NewItemNotFoundError()
	}

	l.metrics.RecordCartMutation("remove")
	l.notify(userID)
	return l.Get(ctx, userID)
}

// Merge はローカルカートの内容を台帳に統合する。
// 商品ごとに数量を加算し、存在しない商品はスキップしてSkippedに記録する。
// 書き込みは1トランザクションで行うため、失敗時はどの行も反映されない。
// 行ごとの数量はmodel.MaxLineQuantityに切り詰める。
func (l *Ledger) Merge(ctx context.Context, userID string, lines []LineInput) (*MergeResult, error) {
	// 入力内の重複を先に合算する。順序は最初に現れた順を保つ
	order := make([]string, 0, len(lines))
	totals := make(map[string]int, len(lines))
	for _, in := range lines {
		id := strings.TrimSpace(in.ProductID)
		if id == "" {
			return nil, model.NewValidationError("Product ID is required")
		}
		if in.Quantity < 1 {
			return nil, model.NewValidationError("Quantity must be a positive integer")
		}
		if _, seen := totals[id]; !seen {
			order = append(order, id)
		}
		totals[id] = min(totals[id]+min(in.Quantity, model.MaxLineQuantity), model.MaxLineQuantity)
	}
	if len(order) > model.MaxCartLines {
		return nil, model.NewValidationError("Too many cart lines")
	}

	skipped := []string{}
	if len(order) > 0 {
		merge := make([]repository.MergeLine, 0, len(order))
		for _, id := range order {
			merge = append(merge, repository.MergeLine{ProductID: id, Quantity: totals[id]})
		}
		var err error
		skipped, err = l.carts.MergeItems(ctx, userID, merge)
		if err != nil {
			return nil, fmt.Errorf("カートの統合に失敗しました: %w", err)
		}
		if skipped == nil {
			skipped = []string{}
		}
	}

	if len(skipped) > 0 {
		l.metrics.RecordCartMergeSkipped(len(skipped))
		slog.Info("cart merge skipped unknown products",
			slog.String("user_id", userID),
			slog.Int("skipped", len(skipped)),
		)
	}
	if len(order) > len(skipped) {
		l.metrics.RecordCartMutation("merge")
		l.notify(userID)
	}

	c, err := l.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &MergeResult{Cart: c, Skipped: skipped}, nil
}

func (l *Ledger) notify(userID string) {
	if l.notifier != nil {
		l.notifier.NotifyCartUpdated(userID)
	}
}
