package localcart

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// mergePath はサーバーのカート統合エンドポイント。
const mergePath = "/api/cart/merge"

// SyncResult はサーバーとの統合結果。
type SyncResult struct {
	Merged    int      // 送信した行数
	ItemCount int      // 統合後のサーバー側カートの数量合計
	Skipped   []string // サーバーに存在しなかった商品ID
}

// SyncClient はローカルカートをサーバーのカート台帳へ統合するクライアント。
type SyncClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewSyncClient はSyncClientを生成する。tokenはセッショントークン。
func NewSyncClient(baseURL, token string, timeout time.Duration) *SyncClient {
	return &SyncClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type mergeLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type mergeRequest struct {
	Items []mergeLine `json:"items"`
}

type mergeResponse struct {
	Cart struct {
		ItemCount int `json:"itemCount"`
	} `json:"cart"`
	Skipped []string `json:"skipped"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Merge はcacheの全行をサーバーへ送信し、成功した場合は送信した分をcacheから差し引く。
// 空のカートの場合は何も送信しない。
func (s *SyncClient) Merge(ctx context.Context, cache *Cache) (*SyncResult, error) {
	lines, err := cache.Lines(ctx)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return &SyncResult{Skipped: []string{}}, nil
	}

	req := mergeRequest{Items: make([]mergeLine, 0, len(lines))}
	for _, l := range lines {
		req.Items = append(req.Items, mergeLine{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode merge request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+mergePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build merge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send merge request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read merge response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("merge rejected (%d %s): %s", resp.StatusCode, apiErr.Code, apiErr.Error)
		}
		return nil, fmt.Errorf("merge rejected with status %d", resp.StatusCode)
	}

	var out mergeResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode merge response: %w", err)
	}

	if err := cache.Settle(ctx, lines); err != nil {
		return nil, fmt.Errorf("settle local cart after merge: %w", err)
	}

	skipped := out.Skipped
	if skipped == nil {
		skipped = []string{}
	}
	return &SyncResult{
		Merged:    len(lines),
		ItemCount: out.Cart.ItemCount,
		Skipped:   skipped,
	}, nil
}
