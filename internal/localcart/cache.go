// Package localcart はログイン前の端末ローカルなカートを提供する。
//
// カートはStoreの固定キーに行の一覧として保存され、変更のたびに全件を書き戻して
// 購読者へ変更イベントを配信する。サーバーのカート台帳とはSyncClientで統合する。
package localcart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/ecofinds/internal/model"
)

// StorageKey はカートを保存するキー。
const StorageKey = "ecofinds-cart"

var (
	// ErrLineNotFound はカートに該当商品の行がないことを示す。
	ErrLineNotFound = errors.New("cart line not found")
	// ErrInvalidQuantity は数量が1未満であることを示す。
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	// ErrEmptyProductID は商品IDが空であることを示す。
	ErrEmptyProductID = errors.New("product id is required")
	// ErrCartFull はカートの行数が上限に達していることを示す。
	ErrCartFull = fmt.Errorf("cart cannot hold more than %d products", model.MaxCartLines)
)

// Line はローカルカートの1行。
type Line struct {
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"addedAt"`
}

// ChangeEvent はカート変更の通知。
type ChangeEvent struct {
	Lines []Line
	Count int
}

// Cache はStore上のローカルカート。
type Cache struct {
	store Store
	now   func() time.Time

	mu sync.Mutex // 読み込みから書き戻しまでを直列化する

	subMu  sync.Mutex
	subs   map[int]chan ChangeEvent
	nextID int
}

// NewCache はstoreを使用するCacheを生成する。
func NewCache(store Store) *Cache {
	return &Cache{
		store: store,
		now:   time.Now,
		subs:  make(map[int]chan ChangeEvent),
	}
}

// Lines は現在のカート行を返す。保存データが壊れている場合は空のカートとして扱う。
func (c *Cache) Lines(ctx context.Context) ([]Line, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx)
}

// Count は全行の数量の合計を返す。
func (c *Cache) Count(ctx context.Context) (int, error) {
	lines, err := c.Lines(ctx)
	if err != nil {
		return 0, err
	}
	return countOf(lines), nil
}

// Add は商品をquantity個追加する。既に行がある場合は数量を加算する。
// 数量はサーバーのカートと同じくmodel.MaxLineQuantityで頭打ちになる。
func (c *Cache) Add(ctx context.Context, productID string, quantity int) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return ErrEmptyProductID
	}
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	return c.mutate(ctx, func(lines []Line) ([]Line, error) {
		for i := range lines {
			if lines[i].ProductID == productID {
				lines[i].Quantity = min(lines[i].Quantity+min(quantity, model.MaxLineQuantity), model.MaxLineQuantity)
				return lines, nil
			}
		}
		if len(lines) >= model.MaxCartLines {
			return nil, ErrCartFull
		}
		line := Line{ProductID: productID, Quantity: min(quantity, model.MaxLineQuantity), AddedAt: c.now().UTC()}
		return append(lines, line), nil
	})
}

// Remove は商品の行を削除する。行がない場合はErrLineNotFoundを返す。
func (c *Cache) Remove(ctx context.Context, productID string) error {
	return c.mutate(ctx, func(lines []Line) ([]Line, error) {
		return removeLine(lines, productID)
	})
}

// SetQuantity は行の数量を上書きする。quantityが0以下の場合は行を削除する。
// 行がない場合はErrLineNotFoundを返す。
func (c *Cache) SetQuantity(ctx context.Context, productID string, quantity int) error {
	return c.mutate(ctx, func(lines []Line) ([]Line, error) {
		if quantity <= 0 {
			return removeLine(lines, productID)
		}
		for i := range lines {
			if lines[i].ProductID == productID {
				lines[i].Quantity = min(quantity, model.MaxLineQuantity)
				return lines, nil
			}
		}
		return nil, ErrLineNotFound
	})
}

// Clear はカートを空にする。
func (c *Cache) Clear(ctx context.Context) error {
	return c.mutate(ctx, func([]Line) ([]Line, error) {
		return []Line{}, nil
	})
}

// Settle はサーバーへ送信済みの行の数量を差し引く。
// 送信後に追加された分は残り、数量が0以下になった行は削除される。
func (c *Cache) Settle(ctx context.Context, sent []Line) error {
	return c.mutate(ctx, func(lines []Line) ([]Line, error) {
		sentQty := make(map[string]int, len(sent))
		for _, l := range sent {
			sentQty[l.ProductID] += l.Quantity
		}
		kept := make([]Line, 0, len(lines))
		for _, l := range lines {
			l.Quantity -= sentQty[l.ProductID]
			if l.Quantity > 0 {
				kept = append(kept, l)
			}
		}
		return kept, nil
	})
}

// Subscribe は変更イベントを受け取るチャネルと購読解除関数を返す。
// 受信側が詰まっている場合、そのイベントは破棄される。
func (c *Cache) Subscribe() (<-chan ChangeEvent, func()) {
	ch := make(chan ChangeEvent, 8)

	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// mutate は読み込み、変更、書き戻し、通知を一続きで行う。
func (c *Cache) mutate(ctx context.Context, fn func([]Line) ([]Line, error)) error {
	c.mu.Lock()
	lines, err := c.load(ctx)
	if err != nil {
		c.mu.Unlock()
		return err
	}

	lines, err = fn(lines)
	if err != nil {
		c.mu.Unlock()
		return err
	}

	data, err := json.Marshal(lines)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("encode local cart: %w", err)
	}
	if err := c.store.Set(ctx, StorageKey, data); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("save local cart: %w", err)
	}
	c.mu.Unlock()

	c.publish(ChangeEvent{Lines: lines, Count: countOf(lines)})
	return nil
}

func (c *Cache) load(ctx context.Context) ([]Line, error) {
	data, err := c.store.Get(ctx, StorageKey)
	if err != nil {
		return nil, fmt.Errorf("load local cart: %w", err)
	}
	lines := []Line{}
	if len(data) == 0 {
		return lines, nil
	}
	if err := json.Unmarshal(data, &lines); err != nil {
		slog.Warn("local cart data is corrupt, treating as empty", slog.String("error", err.Error()))
		return []Line{}, nil
	}
	if lines == nil {
		lines = []Line{}
	}
	return lines, nil
}

func (c *Cache) publish(ev ChangeEvent) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		// 購読者ごとに独立したスライスを渡す
		snapshot := ChangeEvent{Lines: append([]Line(nil), ev.Lines...), Count: ev.Count}
		select {
		case ch <- snapshot:
		default:
		}
	}
}

func removeLine(lines []Line, productID string) ([]Line, error) {
	for i := range lines {
		if lines[i].ProductID == productID {
			return append(lines[:i], lines[i+1:]...), nil
		}
	}
	return nil, ErrLineNotFound
}

func countOf(lines []Line) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}
