package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/period"
)

const (
	previewFunction = "generate-preview-schedule"
	weeklyFunction  = "generate-weekly-schedules"
)

// GatewayMaterializer 通过 HTTP 调用外部排程生成函数
// POST {baseURL}/functions/v1/<name>
type GatewayMaterializer struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewGatewayMaterializer 创建网关生成器，timeout<=0 时不设置客户端超时
func NewGatewayMaterializer(baseURL, apiKey string, timeout time.Duration) *GatewayMaterializer {
	return &GatewayMaterializer{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (g *GatewayMaterializer) GeneratePreview(ctx context.Context, organizationID, userID string, weekStart time.Time) error {
	return g.invoke(ctx, previewFunction, map[string]interface{}{
		"userId":         userID,
		"organizationId": organizationID,
		"weekStart":      period.FormatDate(weekStart),
	})
}

func (g *GatewayMaterializer) GenerateWeeklySchedules(ctx context.Context, organizationID string, weekStart time.Time) error {
	return g.invoke(ctx, weeklyFunction, map[string]interface{}{
		"organizationId": organizationID,
		"weekStart":      period.FormatDate(weekStart),
	})
}

func (g *GatewayMaterializer) invoke(ctx context.Context, name string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/functions/v1/"+name, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
		req.Header.Set("apikey", g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s call: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s status %d: %s", name, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var result struct {
		Success *bool  `json:"success"`
		Error   string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if len(data) > 0 && json.Unmarshal(data, &result) == nil {
		if result.Success != nil && !*result.Success {
			if result.Error == "" {
				result.Error = "unknown error"
			}
			return fmt.Errorf("%s failed: %s", name, result.Error)
		}
	}
	return nil
}
