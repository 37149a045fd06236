package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/ecofinds/internal/model"
)

// PostgresCartRepo はPostgreSQLを使用したカートリポジトリ。
type PostgresCartRepo struct {
	db *sql.DB
}

// NewPostgresCartRepo はPostgresCartRepoを生成する。
func NewPostgresCartRepo(db *sql.DB) *PostgresCartRepo {
	return &PostgresCartRepo{db: db}
}

// cartLineSelect はカート行を商品・出品者情報付きで取得するSELECT句。
// 価格は常に現在のproducts.priceを参照する。
const cartLineSelect = `SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.created_at, ci.updated_at,
	` + productColumns + `
	FROM cart_items ci
	JOIN products p ON p.id = ci.product_id
	JOIN users u ON u.id = p.owner_id`

func scanCartLine(s rowScanner) (model.CartLine, error) {
	var line model.CartLine
	targets := append([]any{
		&line.ID, &line.CartID, &line.ProductID, &line.Quantity, &line.CreatedAt, &line.UpdatedAt,
	}, productScanTargets(&line.Product)...)
	err := s.Scan(targets...)
	return line, err
}

// FindByUserID はユーザーのカートを取得する。カートが未作成の場合はnilを返す。
func (r *PostgresCartRepo) FindByUserID(ctx context.Context, userID string) (*model.Cart, error) {
	if !isUUID(userID) {
		return nil, nil
	}

	cart := &model.Cart{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, created_at FROM carts WHERE user_id = $1`,
		userID,
	).Scan(&cart.ID, &cart.UserID, &cart.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find cart: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		cartLineSelect+` WHERE ci.cart_id = $1 ORDER BY ci.created_at, ci.id`,
		cart.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}
	defer rows.Close()

	cart.Items = []model.CartLine{}
	for rows.Next() {
		line, err := scanCartLine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		cart.Items = append(cart.Items, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cart items: %w", err)
	}

	return cart, nil
}

// AddItem はカートとカート行をそれぞれ単一のINSERT ON CONFLICT文でUPSERTする。
// カート行は UNIQUE(cart_id, product_id) に対する加算となり、上書きは行わない。
// 数量はmodel.MaxLineQuantityを超えない。
// 読み取りと書き込みを分けないため、同一キーへの同時加算で更新が失われることはない。
func (r *PostgresCartRepo) AddItem(ctx context.Context, userID, productID string, quantity int) (*model.CartLine, error) {
	if !isUUID(productID) {
		return nil, ErrProductMissing
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	cartID, err := upsertCart(ctx, tx, userID, now)
	if err != nil {
		return nil, err
	}

	var lineID string
	err = tx.QueryRowContext(ctx,
		`INSERT INTO cart_items (id, cart_id, product_id, quantity, created_at, updated_at)
		 VALUES ($1, $2, $3, LEAST($4::integer, $6::integer), $5, $5)
		 ON CONFLICT (cart_id, product_id) DO UPDATE SET
		     quantity = LEAST(cart_items.quantity + EXCLUDED.quantity, $6::integer),
		     updated_at = EXCLUDED.updated_at
		 RETURNING id`,
		uuid.New().String(), cartID, productID, quantity, now, model.MaxLineQuantity,
	).Scan(&lineID)
	if isForeignKeyViolation(err) {
		return nil, ErrProductMissing
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upsert cart item: %w", err)
	}

	line, err := scanCartLine(tx.QueryRowContext(ctx, cartLineSelect+` WHERE ci.id = $1`, lineID))
	if err != nil {
		return nil, fmt.Errorf("failed to load cart item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &line, nil
}

// upsertCart はユーザーのカートを作成または取得し、そのIDを返す。
func upsertCart(ctx context.Context, tx *sql.Tx, userID string, now time.Time) (string, error) {
	var cartID string
	err := tx.QueryRowContext(ctx,
		`INSERT INTO carts (id, user_id, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		 RETURNING id`,
		uuid.New().String(), userID, now,
	).Scan(&cartID)
	if err != nil {
		return "", fmt.Errorf("failed to upsert cart: %w", err)
	}
	return cartID, nil
}

// MergeItems は全行の加算を1つのトランザクションで行う。
// 商品の存在確認はINSERT ... SELECTで書き込みと同じ文の中で行い、
// 対象の商品が無い行は0行の挿入となってskippedに入る。
func (r *PostgresCartRepo) MergeItems(ctx context.Context, userID string, lines []MergeLine) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	cartID, err := upsertCart(ctx, tx, userID, now)
	if err != nil {
		return nil, err
	}

	skipped := []string{}
	for _, l := range lines {
		if !isUUID(l.ProductID) {
			skipped = append(skipped, l.ProductID)
			continue
		}
		result, err := tx.ExecContext(ctx,
			`INSERT INTO cart_items (id, cart_id, product_id, quantity, created_at, updated_at)
			 SELECT $1::uuid, $2::uuid, p.id, LEAST($4::integer, $6::integer), $5::timestamptz, $5::timestamptz
			 FROM products p WHERE p.id = $3::uuid
			 ON CONFLICT (cart_id, product_id) DO UPDATE SET
			     quantity = LEAST(cart_items.quantity + EXCLUDED.quantity, $6::integer),
			     updated_at = EXCLUDED.updated_at`,
			uuid.New().String(), cartID, l.ProductID, l.Quantity, now, model.MaxLineQuantity,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to merge cart item: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to get rows affected: %w", err)
		}
		if n == 0 {
			skipped = append(skipped, l.ProductID)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return skipped, nil
}

// SetItemQuantity はカート行の数量を上書きする。quantityが0以下の場合は行を削除する。
func (r *PostgresCartRepo) SetItemQuantity(ctx context.Context, userID, productID string, quantity int) (bool, error) {
	if quantity <= 0 {
		return r.RemoveItem(ctx, userID, productID)
	}
	if !isUUID(userID) || !isUUID(productID) {
		return false, nil
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE cart_items ci
		 SET quantity = $3, updated_at = $4
		 FROM carts c
		 WHERE ci.cart_id = c.id AND c.user_id = $1 AND ci.product_id = $2`,
		userID, productID, quantity, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update cart item quantity: %w", err)
	}
	return affected(result)
}

// RemoveItem はカート行を削除する。
func (r *PostgresCartRepo) RemoveItem(ctx context.Context, userID, productID string) (bool, error) {
	if !isUUID(userID) || !isUUID(productID) {
		return false, nil
	}

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM cart_items ci
		 USING carts c
		 WHERE ci.cart_id = c.id AND c.user_id = $1 AND ci.product_id = $2`,
		userID, productID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete cart item: %w", err)
	}
	return affected(result)
}

// compile-time interface check
var _ CartRepository = (*PostgresCartRepo)(nil)
