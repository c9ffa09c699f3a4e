// Package handler 提供 HTTP 请求处理器
package handler

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"newsbrief-ai-api/internal/config"
	"newsbrief-ai-api/internal/interfaces/http/dto"
	"newsbrief-ai-api/pkg/errors"
)

// respondError 按 AppError 的语义返回错误响应
func respondError(c *gin.Context, err error) {
	appErr := errors.AsAppError(err)
	var detail *dto.ErrorDetail
	if appErr.Detail != "" || appErr.Code != "" {
		detail = &dto.ErrorDetail{
			ErrorCode: string(appErr.Code),
			Details:   appErr.Detail,
		}
	}
	dto.ErrorWithDetail(c, appErr.HTTPStatus, appErr.Message, detail)
}

// resolveProviderModel 解析 LLM Provider 和 Model，空值取配置默认
func resolveProviderModel(cfg *config.Config, provider, model string) (string, string, error) {
	if cfg == nil {
		return "", "", fmt.Errorf("server config not configured")
	}

	p := strings.TrimSpace(provider)
	if p == "" {
		p = strings.TrimSpace(cfg.LLM.DefaultProvider)
	}
	if p == "" {
		return "", "", fmt.Errorf("llm provider not specified")
	}

	providerCfg, ok := cfg.LLM.Providers[p]
	if !ok {
		return "", "", fmt.Errorf("llm provider not found: %s", p)
	}

	m := strings.TrimSpace(model)
	if m == "" {
		m = strings.TrimSpace(providerCfg.Model)
	}
	return p, m, nil
}
