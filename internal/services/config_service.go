// internal/services/config_service.go
package services

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Corphon/NovelForgeMCP/internal/config"
)

// ConfigService LLM设置的读写入口
// 更新先在网关上生效（校验提供商可用），成功后才持久化。
type ConfigService struct {
	gateway *GatewayService
	logger  zerolog.Logger
}

// NewConfigService 创建配置服务
func NewConfigService(gateway *GatewayService, logger zerolog.Logger) *ConfigService {
	return &ConfigService{
		gateway: gateway,
		logger:  logger.With().Str("service", "config").Logger(),
	}
}

// LLMSettings 对外暴露的LLM设置视图，凭据做掩码处理
type LLMSettings struct {
	Provider     string `json:"provider"`
	APIKeyMasked string `json:"api_key_masked"`
	HighModel    string `json:"high_model"`
	LowModel     string `json:"low_model"`
	Ready        bool   `json:"ready"`
}

// GetSettings 返回当前LLM设置
func (s *ConfigService) GetSettings() *LLMSettings {
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return &LLMSettings{}
	}

	ready, _ := s.gateway.GetProviderStatus()
	return &LLMSettings{
		Provider:     cfg.LLMProvider,
		APIKeyMasked: maskCredential(cfg.LLMConfig["api_key"]),
		HighModel:    cfg.LLMConfig["high_model"],
		LowModel:     cfg.LLMConfig["low_model"],
		Ready:        ready,
	}
}

// UpdateSettingsRequest 更新LLM设置的请求
type UpdateSettingsRequest struct {
	Provider  string `json:"provider"`
	APIKey    string `json:"api_key"`
	HighModel string `json:"high_model"`
	LowModel  string `json:"low_model"`
}

// UpdateSettings 更新提供商与凭据
// 空字段沿用现值；网关初始化失败时既不落盘也不改变现有网关状态。
func (s *ConfigService) UpdateSettings(req UpdateSettingsRequest) error {
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return fmt.Errorf("配置系统未初始化")
	}

	provider := req.Provider
	if provider == "" {
		provider = cfg.LLMProvider
	}

	llmConfig := make(map[string]string, len(cfg.LLMConfig))
	for k, v := range cfg.LLMConfig {
		llmConfig[k] = v
	}
	if req.APIKey != "" {
		llmConfig["api_key"] = strings.TrimSpace(req.APIKey)
	}
	if req.HighModel != "" {
		llmConfig["high_model"] = req.HighModel
	}
	if req.LowModel != "" {
		llmConfig["low_model"] = req.LowModel
	}

	if llmConfig["api_key"] == "" {
		return ErrCredentialMissing
	}

	if err := s.gateway.UpdateProvider(provider, llmConfig); err != nil {
		return err
	}

	if err := config.UpdateLLMConfig(provider, llmConfig); err != nil {
		return fmt.Errorf("保存配置失败: %w", err)
	}

	s.logger.Info().Str("provider", provider).Msg("LLM设置已更新")
	return nil
}

// maskCredential 凭据掩码：保留前4后4位，过短时全掩
func maskCredential(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", 6) + key[len(key)-4:]
}
