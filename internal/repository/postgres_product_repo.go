package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hitoshi/ecofinds/internal/model"
)

// PostgresProductRepo はPostgreSQLを使用した商品リポジトリ。
type PostgresProductRepo struct {
	db *sql.DB
}

// NewPostgresProductRepo はPostgresProductRepoを生成する。
func NewPostgresProductRepo(db *sql.DB) *PostgresProductRepo {
	return &PostgresProductRepo{db: db}
}

// productColumns は商品と出品者名を取得する共通SELECT句。
// cart_itemsとのJOINでも使用する。
const productColumns = `p.id, p.owner_id, p.name, p.price, p.category, p.condition,
	p.description, p.image, p.location, p.created_at, p.updated_at, u.name`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// productScanTargets はproductColumnsに対応するScan先を返す。
func productScanTargets(p *model.ProductWithSeller) []any {
	return []any{
		&p.ID, &p.OwnerID, &p.Name, &p.Price, &p.Category, &p.Condition,
		&p.Description, &p.Image, &p.Location, &p.CreatedAt, &p.UpdatedAt, &p.SellerName,
	}
}

// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
func (r *PostgresProductRepo) FindByID(ctx context.Context, id string) (*model.ProductWithSeller, error) {
	if !isUUID(id) {
		return nil, nil
	}

	p := &model.ProductWithSeller{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+`
		 FROM products p JOIN users u ON u.id = p.owner_id
		 WHERE p.id = $1`,
		id,
	).Scan(productScanTargets(p)...)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	return p, nil
}

// List は条件に一致する商品を作成日時の降順で返す。
func (r *PostgresProductRepo) List(ctx context.Context, filter ProductFilter) ([]model.ProductWithSeller, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Category != "" {
		args = append(args, filter.Category)
		conds = append(conds, fmt.Sprintf("p.category = $%d", len(args)))
	}
	if filter.OwnerID != "" {
		if !isUUID(filter.OwnerID) {
			return []model.ProductWithSeller{}, nil
		}
		args = append(args, filter.OwnerID)
		conds = append(conds, fmt.Sprintf("p.owner_id = $%d", len(args)))
	}

	query := `SELECT ` + productColumns + ` FROM products p JOIN users u ON u.id = p.owner_id`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(` ORDER BY p.created_at DESC, p.id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []model.ProductWithSeller{}
	for rows.Next() {
		var p model.ProductWithSeller
		if err := rows.Scan(productScanTargets(&p)...); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	return products, nil
}

// Create は商品を作成する。
func (r *PostgresProductRepo) Create(ctx context.Context, p *model.Product) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO products (id, owner_id, name, price, category, condition, description, image, location, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.OwnerID, p.Name, p.Price, p.Category, string(p.Condition),
		p.Description, p.Image, p.Location, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

// Update は商品の可変フィールドを上書き更新する。owner_idは変更しない。
func (r *PostgresProductRepo) Update(ctx context.Context, p *model.Product) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE products
		 SET name = $2, price = $3, category = $4, condition = $5,
		     description = $6, image = $7, location = $8, updated_at = $9
		 WHERE id = $1`,
		p.ID, p.Name, p.Price, p.Category, string(p.Condition),
		p.Description, p.Image, p.Location, p.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update product: %w", err)
	}
	return affected(result)
}

// Delete は指定IDの商品を削除する。
func (r *PostgresProductRepo) Delete(ctx context.Context, id string) (bool, error) {
	if !isUUID(id) {
		return false, nil
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete product: %w", err)
	}
	return affected(result)
}

func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// PostgresCategoryRepo はPostgreSQLを使用したカテゴリリポジトリ。
type PostgresCategoryRepo struct {
	db *sql.DB
}

// NewPostgresCategoryRepo はPostgresCategoryRepoを生成する。
func NewPostgresCategoryRepo(db *sql.DB) *PostgresCategoryRepo {
	return &PostgresCategoryRepo{db: db}
}

// List は全カテゴリを名前順に返す。
func (r *PostgresCategoryRepo) List(ctx context.Context) ([]model.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []model.Category{}
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// Exists は指定名のカテゴリが存在するかを返す。
func (r *PostgresCategoryRepo) Exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM categories WHERE name = $1)`, name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check category: %w", err)
	}
	return exists, nil
}

// compile-time interface check
var (
	_ ProductRepository  = (*PostgresProductRepo)(nil)
	_ CategoryRepository = (*PostgresCategoryRepo)(nil)
)
