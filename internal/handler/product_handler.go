package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/ecofinds/internal/middleware"
	"github.com/hitoshi/ecofinds/internal/model"
	"github.com/hitoshi/ecofinds/internal/product"
)

// ProductServiceInterface は商品ハンドラーが必要とするサービスインターフェース。
type ProductServiceInterface interface {
	Categories(ctx context.Context) ([]model.Category, error)
	List(ctx context.Context, filter product.ListFilter) ([]model.ProductWithSeller, error)
	Get(ctx context.Context, id string) (*model.ProductWithSeller, error)
	Create(ctx context.Context, user *model.User, in product.ProductInput) (*model.ProductWithSeller, error)
	Update(ctx context.Context, user *model.User, id string, patch product.ProductPatch) (*model.ProductWithSeller, error)
	Delete(ctx context.Context, user *model.User, id string) error
}

// ProductHandler は商品カタログ関連のHTTPハンドラー。
type ProductHandler struct {
	service ProductServiceInterface
}

// NewProductHandler はProductHandlerを生成する。
func NewProductHandler(service ProductServiceInterface) *ProductHandler {
	return &ProductHandler{service: service}
}

type createProductRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Price       *int64 `json:"price" validate:"required,min=0"`
	Category    string `json:"category" validate:"required"`
	Condition   string `json:"condition" validate:"omitempty,oneof=Excellent Good Fair"`
	Description string `json:"description" validate:"max=5000"`
	Image       string `json:"image" validate:"omitempty,url,max=2048"`
	Location    string `json:"location" validate:"max=200"`
}

type updateProductRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	Price       *int64  `json:"price" validate:"omitempty,min=0"`
	Category    *string `json:"category" validate:"omitempty,min=1"`
	Condition   *string `json:"condition" validate:"omitempty,oneof=Excellent Good Fair"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	Image       *string `json:"image" validate:"omitempty,max=2048"`
	Location    *string `json:"location" validate:"omitempty,max=200"`
}

type categoryResponse struct {
	Name string `json:"name"`
}

// ListCategories はカテゴリ一覧を返す。
// GET /api/categories
func (h *ProductHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.service.Categories(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		resp = append(resp, categoryResponse{Name: c.Name})
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListProducts は商品一覧を返す。
// GET /api/products?category=&limit=&offset=
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(q.Get("limit"))
	if err != nil {
		middleware.WriteAPIError(w, model.NewValidationError("limit must be an integer"))
		return
	}
	offset, err := queryInt(q.Get("offset"))
	if err != nil {
		middleware.WriteAPIError(w, model.NewValidationError("offset must be an integer"))
		return
	}

	products, err := h.service.List(r.Context(), product.ListFilter{
		Category: q.Get("category"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]productResponse, 0, len(products))
	for i := range products {
		resp = append(resp, toProductResponse(&products[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetProduct は商品詳細を返す。
// GET /api/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

// CreateProduct は商品を出品する。
// POST /api/products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req createProductRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	p, err := h.service.Create(r.Context(), user, product.ProductInput{
		Name:        req.Name,
		Price:       *req.Price,
		Category:    req.Category,
		Condition:   model.Condition(req.Condition),
		Description: req.Description,
		Image:       req.Image,
		Location:    req.Location,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(p))
}

// UpdateProduct は出品者本人による商品の更新を行う。
// PUT /api/products/{id}
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req updateProductRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	patch := product.ProductPatch{
		Name:        req.Name,
		Price:       req.Price,
		Category:    req.Category,
		Description: req.Description,
		Image:       req.Image,
		Location:    req.Location,
	}
	if req.Condition != nil {
		c := model.Condition(*req.Condition)
		patch.Condition = &c
	}

	p, err := h.service.Update(r.Context(), user, chi.URLParam(r, "id"), patch)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

// DeleteProduct は出品者本人による商品の削除を行う。
// DELETE /api/products/{id}
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	if err := h.service.Delete(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// queryInt はクエリパラメータを整数に変換する。空文字は0とする。
func queryInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
