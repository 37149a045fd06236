package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/ecofinds/internal/cart"
	"github.com/hitoshi/ecofinds/internal/middleware"
	"github.com/hitoshi/ecofinds/internal/model"
)

// CartServiceInterface はカートハンドラーが必要とするサービスインターフェース。
type CartServiceInterface interface {
	Get(ctx context.Context, userID string) (*model.Cart, error)
	Add(ctx context.Context, userID, productID string, quantity int) (*model.CartLine, error)
	SetQuantity(ctx context.Context, userID, productID string, quantity int) (*model.Cart, error)
	Remove(ctx context.Context, userID, productID string) (*model.Cart, error)
	Merge(ctx context.Context, userID string, lines []cart.LineInput) (*cart.MergeResult, error)
}

// CartHandler はカート関連のHTTPハンドラー。
// 全ルートはRequireAuthの後に配置する。
type CartHandler struct {
	service CartServiceInterface
}

// NewCartHandler はCartHandlerを生成する。
func NewCartHandler(service CartServiceInterface) *CartHandler {
	return &CartHandler{service: service}
}

type addToCartRequest struct {
	ProductID string `json:"productId" validate:"required,max=64"`
	Quantity  *int   `json:"quantity" validate:"omitempty,min=1,max=9999"`
}

type removeFromCartRequest struct {
	ProductID string `json:"productId" validate:"required,max=64"`
}

type updateCartRequest struct {
	ProductID string `json:"productId" validate:"required,max=64"`
	Quantity  *int   `json:"quantity" validate:"required,max=9999"`
}

type mergeCartRequest struct {
	Items []mergeLineRequest `json:"items" validate:"max=200,dive"`
}

// mergeLineRequest の数量に上限は設けず、台帳側で行ごとの上限に切り詰める。
type mergeLineRequest struct {
	ProductID string `json:"productId" validate:"required,max=64"`
	Quantity  int    `json:"quantity" validate:"min=1"`
}

type cartMutationResponse struct {
	Success bool         `json:"success"`
	Cart    cartResponse `json:"cart"`
}

type mergeCartResponse struct {
	Cart    cartResponse `json:"cart"`
	Skipped []string     `json:"skipped"`
}

// GetCart は現在のユーザーのカートを返す。カートが無い場合は空のカートを返す。
// GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	c, err := h.service.Get(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

// AddToCart は商品をカートに追加する。quantityの既定値は1。
// POST /api/cart/add
func (h *CartHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req addToCartRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	line, err := h.service.Add(r.Context(), userID, req.ProductID, quantity)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCartLineResponse(line))
}

// RemoveFromCart はカートから商品の行を削除する。
// POST /api/cart/remove
func (h *CartHandler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req removeFromCartRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	c, err := h.service.Remove(r.Context(), userID, req.ProductID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartMutationResponse{Success: true, Cart: toCartResponse(c)})
}

// UpdateCart はカート行の数量を上書きする。0以下は削除として扱う。
// POST /api/cart/update
func (h *CartHandler) UpdateCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateCartRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	c, err := h.service.SetQuantity(r.Context(), userID, req.ProductID, *req.Quantity)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartMutationResponse{Success: true, Cart: toCartResponse(c)})
}

// MergeCart はログイン前のローカルカートをカートに統合する。
// POST /api/cart/merge
func (h *CartHandler) MergeCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req mergeCartRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	lines := make([]cart.LineInput, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, cart.LineInput{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	res, err := h.service.Merge(r.Context(), userID, lines)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mergeCartResponse{Cart: toCartResponse(res.Cart), Skipped: res.Skipped})
}

// requireUserID はコンテキストからユーザーIDを取り出す。無い場合は401を書き込む。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthorizedError())
		return "", false
	}
	return userID, true
}
