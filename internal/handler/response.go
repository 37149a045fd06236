// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hitoshi/ecofinds/internal/middleware"
	"github.com/hitoshi/ecofinds/internal/model"
)

// maxBodyBytes はリクエストボディの上限サイズ。
const maxBodyBytes = 1 << 20

var validate = newValidator()

// newValidator はjsonタグ名でフィールドを報告するvalidatorを生成する。
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeRequest はJSONボディをdstに読み込み、構造体タグで検証する。
// 失敗した場合は400レスポンスを書き込みfalseを返す。
func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		msg := "Invalid request body"
		if errors.Is(err, io.EOF) {
			msg = "Request body is required"
		}
		middleware.WriteAPIError(w, model.NewValidationError(msg))
		return false
	}

	if err := validate.Struct(dst); err != nil {
		middleware.WriteAPIError(w, model.NewValidationError(validationMessage(err)))
		return false
	}
	return true
}

// validationMessage は最初の検証エラーを利用者向けの文言に変換する。
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return "Missing required fields"
	case "email":
		return "Invalid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("Invalid %s", fe.Field())
	}
}

// writeJSON はvをJSONで書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// handleServiceError はサービス層のエラーを適切なHTTPレスポンスに変換する。
// 想定外のエラーは詳細をログのみに記録し、500を返す。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteAPIError(w, apiErr)
		return
	}

	slog.Error("service error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// okResponse は削除・ログアウトなどの確認レスポンス。
type okResponse struct {
	OK bool `json:"ok"`
}

// userResponse はパスワードハッシュを含まない公開ユーザー情報。
type userResponse struct {
	ID       string    `json:"id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Location string    `json:"location"`
	JoinedAt time.Time `json:"joinedAt"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:       u.ID,
		Email:    u.Email,
		Name:     u.Name,
		Location: u.Location,
		JoinedAt: u.CreatedAt,
	}
}

type productResponse struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Seller      string    `json:"seller"`
	Name        string    `json:"name"`
	Price       int64     `json:"price"`
	Category    string    `json:"category"`
	Condition   string    `json:"condition"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	Location    string    `json:"location"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toProductResponse(p *model.ProductWithSeller) productResponse {
	return productResponse{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		Seller:      p.SellerName,
		Name:        p.Name,
		Price:       p.Price,
		Category:    p.Category,
		Condition:   string(p.Condition),
		Description: p.Description,
		Image:       p.Image,
		Location:    p.Location,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type cartLineResponse struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	LineTotal int64           `json:"lineTotal"`
	Product   productResponse `json:"product"`
}

func toCartLineResponse(l *model.CartLine) cartLineResponse {
	return cartLineResponse{
		ID:        l.ID,
		ProductID: l.ProductID,
		Quantity:  l.Quantity,
		LineTotal: l.LineTotal(),
		Product:   toProductResponse(&l.Product),
	}
}

type cartResponse struct {
	ID        string             `json:"id,omitempty"`
	UserID    string             `json:"userId"`
	Items     []cartLineResponse `json:"items"`
	Total     int64              `json:"total"`
	ItemCount int                `json:"itemCount"`
}

func toCartResponse(c *model.Cart) cartResponse {
	items := make([]cartLineResponse, 0, len(c.Items))
	for i := range c.Items {
		items = append(items, toCartLineResponse(&c.Items[i]))
	}
	return cartResponse{
		ID:        c.ID,
		UserID:    c.UserID,
		Items:     items,
		Total:     c.Total(),
		ItemCount: c.ItemCount(),
	}
}
