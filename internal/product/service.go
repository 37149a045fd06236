// Package product は商品の一覧・登録・更新・削除のドメインロジックを提供する。
// 更新と削除は出品者本人のみが実行できる。
package product

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hitoshi/ecofinds/internal/authz"
	"github.com/hitoshi/ecofinds/internal/model"
	"github.com/hitoshi/ecofinds/internal/repository"
	"github.com/hitoshi/ecofinds/internal/security"
)

const (
	// DefaultListLimit は一覧取得の既定件数。
	DefaultListLimit = 50
	// MaxListLimit は一覧取得の最大件数。
	MaxListLimit = 100

	maxNameLength        = 200
	maxDescriptionLength = 5000
	maxLocationLength    = 200
	maxPrice             = 1_000_000_000
)

// URLValidator は画像URLの静的検証インターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// ListFilter は商品一覧の取得条件。
type ListFilter struct {
	Category string
	Limit    int
	Offset   int
}

// ProductInput は商品登録の入力値。
type ProductInput struct {
	Name        string
	Price       int64
	Category    string
	Condition   model.Condition
	Description string
	Image       string
	Location    string
}

// ProductPatch は商品更新の入力値。nilのフィールドは変更しない。
type ProductPatch struct {
	Name        *string
	Price       *int64
	Category    *string
	Condition   *model.Condition
	Description *string
	Image       *string
	Location    *string
}

// Service は商品カタログのサービス層。
type Service struct {
	products   repository.ProductRepository
	categories repository.CategoryRepository
	sanitizer  security.ListingSanitizer
	urls       URLValidator
	prober     security.ImageProber // nilの場合は画像URLへの到達確認を行わない
	now        func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	products repository.ProductRepository,
	categories repository.CategoryRepository,
	sanitizer security.ListingSanitizer,
	urls URLValidator,
	prober security.ImageProber,
) *Service {
	return &Service{
		products:   products,
		categories: categories,
		sanitizer:  sanitizer,
		urls:       urls,
		prober:     prober,
		now:        time.Now,
	}
}

// Categories は全カテゴリを返す。
func (s *Service) Categories(ctx context.Context) ([]model.Category, error) {
	cats, err := s.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("カテゴリ一覧の取得に失敗しました: %w", err)
	}
	return cats, nil
}

// List は商品一覧を新しい順に返す。
func (s *Service) List(ctx context.Context, filter ListFilter) ([]model.ProductWithSeller, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	products, err := s.products.List(ctx, repository.ProductFilter{
		Category: filter.Category,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, fmt.Errorf("商品一覧の取得に失敗しました: %w", err)
	}
	return products, nil
}

// Get は指定IDの商品を返す。存在しない場合はProductNotFoundエラーを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.ProductWithSeller, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewProductNotFoundError()
	}
	return p, nil
}

// Create は呼び出しユーザーを出品者として商品を登録する。
func (s *Service) Create(ctx context.Context, user *model.User, in ProductInput) (*model.ProductWithSeller, error) {
	if user == nil {
		return nil, model.NewUnauthorizedError()
	}

	now := s.now().UTC()
	p := &model.Product{
		ID:          uuid.New().String(),
		OwnerID:     user.ID,
		Name:        in.Name,
		Price:       in.Price,
		Category:    in.Category,
		Condition:   in.Condition,
		Description: in.Description,
		Image:       in.Image,
		Location:    in.Location,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if p.Condition == "" {
		p.Condition = model.ConditionGood
	}

	if err := s.prepare(ctx, p, true); err != nil {
		return nil, err
	}

	if err := s.products.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("商品の登録に失敗しました: %w", err)
	}

	slog.Info("product created",
		slog.String("product_id", p.ID),
		slog.String("user_id", user.ID),
	)
	return &model.ProductWithSeller{Product: *p, SellerName: user.Name}, nil
}

// Update は商品を更新する。
// 存在確認（404）→ 所有者確認（403）→ 入力検証（400）の順に判定し、
// 拒否時のエラーには保存済みの値を含めない。
func (s *Service) Update(ctx context.Context, user *model.User, id string, patch ProductPatch) (*model.ProductWithSeller, error) {
	if user == nil {
		return nil, model.NewUnauthorizedError()
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.AssertOwnsProduct(user, &existing.Product); err != nil {
		slog.Warn("product update denied",
			slog.String("product_id", id),
			slog.String("user_id", user.ID),
		)
		return nil, err
	}

	p := existing.Product
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Condition != nil {
		p.Condition = *patch.Condition
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Image != nil {
		p.Image = *patch.Image
	}
	if patch.Location != nil {
		p.Location = *patch.Location
	}
	p.UpdatedAt = s.now().UTC()

	// 保存済みの画像URLは変更された場合のみ再検証する
	if err := s.prepare(ctx, &p, patch.Image != nil); err != nil {
		return nil, err
	}

	found, err := s.products.Update(ctx, &p)
	if err != nil {
		return nil, fmt.Errorf("商品の更新に失敗しました: %w", err)
	}
	if !found {
		return nil, model.NewProductNotFoundError()
	}

	slog.Info("product updated",
		slog.String("product_id", p.ID),
		slog.String("user_id", user.ID),
	)
	return &model.ProductWithSeller{Product: p, SellerName: existing.SellerName}, nil
}

// Delete は商品を削除する。カート内の該当行も削除される。
func (s *Service) Delete(ctx context.Context, user *model.User, id string) error {
	if user == nil {
		return model.NewUnauthorizedError()
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := authz.AssertOwnsProduct(user, &existing.Product); err != nil {
		slog.Warn("product delete denied",
			slog.String("product_id", id),
			slog.String("user_id", user.ID),
		)
		return err
	}

	found, err := s.products.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("商品の削除に失敗しました: %w", err)
	}
	if !found {
		return model.NewProductNotFoundError()
	}

	slog.Info("product deleted",
		slog.String("product_id", id),
		slog.String("user_id", user.ID),
	)
	return nil
}

// prepare はテキストをサニタイズし、各フィールドを検証する。
// 画像URLの検証と到達確認はcheckImageがtrueの場合のみ行う。
func (s *Service) prepare(ctx context.Context, p *model.Product, checkImage bool) error {
	p.Name = s.sanitizer.PlainText(p.Name)
	p.Location = s.sanitizer.PlainText(p.Location)
	p.Description = s.sanitizer.Description(p.Description)

	switch {
	case p.Name == "":
		return model.NewValidationError("Name is required")
	case utf8.RuneCountInString(p.Name) > maxNameLength:
		return model.NewValidationError("Name is too long")
	case utf8.RuneCountInString(p.Description) > maxDescriptionLength:
		return model.NewValidationError("Description is too long")
	case utf8.RuneCountInString(p.Location) > maxLocationLength:
		return model.NewValidationError("Location is too long")
	case p.Price < 0 || p.Price > maxPrice:
		return model.NewValidationError("Price must be between 0 and 1000000000")
	case !p.Condition.Valid():
		return model.NewValidationError("Condition must be one of Excellent, Good, Fair")
	}

	ok, err := s.categories.Exists(ctx, p.Category)
	if err != nil {
		return fmt.Errorf("カテゴリの確認に失敗しました: %w", err)
	}
	if !ok {
		return model.NewValidationError("Unknown category")
	}

	if checkImage && p.Image != "" {
		if err := s.urls.ValidateURL(p.Image); err != nil {
			slog.Info("image url rejected", slog.String("error", err.Error()))
			return model.NewValidationError("Image URL is not allowed")
		}
		if s.prober != nil {
			if err := s.prober.Probe(ctx, p.Image); err != nil {
				slog.Info("image probe failed", slog.String("error", err.Error()))
				return model.NewValidationError("Image URL does not point to an image")
			}
		}
	}

	return nil
}
