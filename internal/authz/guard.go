// Package authz はリソース所有者に基づく認可判定を提供する。
package authz

import "github.com/hitoshi/ecofinds/internal/model"

// OwnsProduct はuserがproductの出品者である場合にtrueを返す。
func OwnsProduct(user *model.User, product *model.Product) bool {
	return user != nil && product != nil && user.ID != "" && user.ID == product.OwnerID
}

// AssertOwnsProduct はuserがproductの出品者でなければForbiddenエラーを返す。
// エラーには商品の情報を含めない。
func AssertOwnsProduct(user *model.User, product *model.Product) error {
	if !OwnsProduct(user, product) {
		return model.NewForbiddenError()
	}
	return nil
}
