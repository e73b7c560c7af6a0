// internal/services/gateway_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/Corphon/NovelForgeMCP/internal/config"
	"github.com/Corphon/NovelForgeMCP/internal/llm"
)

// Tier 表示生成任务的模型档位
type Tier string

const (
	// TierHigh 高档位：架构推演、批量规划等重型任务
	TierHigh Tier = "high"
	// TierLow 低档位：正文写作、润色等高频任务
	TierLow Tier = "low"
)

const defaultTemperature = 0.85

// GenerationRequest 一次文本生成请求
type GenerationRequest struct {
	Prompt       string
	SystemPrompt string
	Tier         Tier
	JSONMode     bool
	MaxTokens    int
	Temperature  float64
}

// GatewayService 文本生成网关
// 负责凭据校验、档位到模型的映射、高档位失败后的降级重试，
// 以及对模型返回文本的宽容JSON修复。
type GatewayService struct {
	mu           sync.RWMutex
	provider     llm.Provider
	providerName string
	llmConfig    map[string]string
	logger       zerolog.Logger
}

// NewGatewayService 根据应用配置创建网关
func NewGatewayService(cfg *config.AppConfig, logger zerolog.Logger) *GatewayService {
	s := &GatewayService{
		logger: logger.With().Str("service", "gateway").Logger(),
	}

	if cfg != nil {
		if err := s.UpdateProvider(cfg.LLMProvider, cfg.LLMConfig); err != nil {
			s.logger.Warn().Err(err).Str("provider", cfg.LLMProvider).Msg("LLM提供商初始化失败，网关处于未就绪状态")
		}
	}

	return s
}

// NewGatewayServiceWithProvider 使用现成的提供商实例创建网关，供测试注入
func NewGatewayServiceWithProvider(provider llm.Provider, llmConfig map[string]string, logger zerolog.Logger) *GatewayService {
	name := ""
	if provider != nil {
		name = provider.GetName()
	}
	return &GatewayService{
		provider:     provider,
		providerName: name,
		llmConfig:    llmConfig,
		logger:       logger,
	}
}

// UpdateProvider 切换或重新配置提供商
func (s *GatewayService) UpdateProvider(providerName string, llmConfig map[string]string) error {
	provider, err := llm.GetProvider(providerName, llmConfig)
	if err != nil {
		return fmt.Errorf("初始化提供商失败: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.provider = provider
	s.providerName = providerName
	s.llmConfig = llmConfig
	return nil
}

// IsReady 判断网关是否具备发起调用的条件
func (s *GatewayService) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider != nil && s.llmConfig["api_key"] != ""
}

// GetProviderStatus 返回就绪状态与提供商名称
func (s *GatewayService) GetProviderStatus() (bool, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider != nil && s.llmConfig["api_key"] != "", s.providerName
}

// resolveModel 将档位映射为具体的模型名
func (s *GatewayService) resolveModel(tier Tier) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := "low_model"
	if tier == TierHigh {
		key = "high_model"
	}
	if model := s.llmConfig[key]; model != "" {
		return model
	}
	return s.llmConfig["default_model"]
}

// Generate 执行一次文本生成
// 高档位调用失败时自动降级到低档位重试一次，低档位失败直接返回错误。
func (s *GatewayService) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	s.mu.RLock()
	provider := s.provider
	apiKey := s.llmConfig["api_key"]
	s.mu.RUnlock()

	if provider == nil || apiKey == "" {
		return "", ErrCredentialMissing
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}

	call := func(model string) (string, error) {
		resp, err := provider.CompleteText(ctx, llm.CompletionRequest{
			Prompt:       req.Prompt,
			SystemPrompt: req.SystemPrompt,
			Model:        model,
			MaxTokens:    req.MaxTokens,
			Temperature:  float32(temperature),
			JSONMode:     req.JSONMode,
		})
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(resp.Text) == "" {
			return "", fmt.Errorf("模型返回了空内容")
		}
		return resp.Text, nil
	}

	model := s.resolveModel(req.Tier)
	text, err := call(model)
	if err == nil {
		return text, nil
	}

	if req.Tier == TierHigh {
		fallback := s.resolveModel(TierLow)
		if fallback != "" && fallback != model {
			s.logger.Warn().Err(err).Str("model", model).Str("fallback", fallback).Msg("高档位调用失败，降级重试")
			if text, fbErr := call(fallback); fbErr == nil {
				return text, nil
			} else {
				return "", fmt.Errorf("AI 服务暂时不可用: %w", fbErr)
			}
		}
	}

	return "", fmt.Errorf("请求失败: %w", err)
}

// GenerateStructured 执行生成并将结果解析为结构化数据
// 解析失败时返回 ErrNoStructuredData，调用方不会收到半解析的结果。
func (s *GatewayService) GenerateStructured(ctx context.Context, req GenerationRequest, out interface{}) error {
	req.JSONMode = true
	text, err := s.Generate(ctx, req)
	if err != nil {
		return err
	}

	if err := ParseLenientJSON(text, out); err != nil {
		s.logger.Warn().Str("head", truncateForLog(text, 200)).Msg("JSON解析失败")
		return ErrNoStructuredData
	}
	return nil
}

// ParseLenientJSON 对模型返回的文本做多阶段宽容解析
// 依次尝试：原文直解、去除Markdown标记、截取首尾大括号、截取首尾方括号，
// 最后做一次完整的结构修复。全部失败才报错。
func ParseLenientJSON(raw string, out interface{}) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("内容为空")
	}

	candidates := make([]string, 0, 5)
	candidates = append(candidates, raw)

	cleaned := strings.TrimSpace(jsonNoiseReplacer.Replace(raw))
	if cleaned != raw {
		candidates = append(candidates, cleaned)
	}

	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start != -1 && end > start {
		candidates = append(candidates, raw[start:end+1])
	}
	if start, end := strings.Index(raw, "["), strings.LastIndex(raw, "]"); start != -1 && end > start {
		candidates = append(candidates, raw[start:end+1])
	}

	candidates = append(candidates, cleanJSONString(raw))

	var lastErr error
	for _, candidate := range candidates {
		if err := json.Unmarshal([]byte(candidate), out); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return lastErr
}

func truncateForLog(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

var jsonNoiseReplacer = strings.NewReplacer(
	"```json", "",
	"```", "",
	"\uFEFF", "",
	"\u00A0", " ",
	"\u2028", "\n",
	"\u2029", "\n",
)

var structuralPunctuationMap = map[rune]rune{
	'：': ':',
	'﹕': ':',
	'，': ',',
	'﹐': ',',
	'；': ';',
	'﹔': ';',
	'【': '[',
	'】': ']',
	'［': '[',
	'］': ']',
	'｛': '{',
	'｝': '}',
	'（': '(',
	'）': ')',
}

var quotePairs = map[rune]rune{
	'"': '"',
	'“': '”',
	'”': '”',
	'„': '”',
	'‟': '”',
	'「': '」',
	'」': '」',
	'『': '』',
	'﹁': '﹂',
	'﹂': '﹂',
}

func normalizeJSONStructure(s string) string {
	if s == "" {
		return s
	}

	var builder strings.Builder
	builder.Grow(len(s))
	inString := false
	escaped := false
	currentClosing := '"'

	for _, r := range s {
		if inString {
			if !escaped && r == '\\' {
				escaped = true
				builder.WriteRune(r)
				continue
			}

			if escaped {
				escaped = false
				builder.WriteRune(r)
				continue
			}

			if r == currentClosing || r == '"' {
				inString = false
				currentClosing = '"'
				builder.WriteRune('"')
				continue
			}

			builder.WriteRune(r)
			continue
		}

		if replacement, ok := structuralPunctuationMap[r]; ok {
			r = replacement
		} else if closing, ok := quotePairs[r]; ok {
			inString = true
			currentClosing = closing
			builder.WriteRune('"')
			continue
		} else if r == '"' {
			inString = true
			currentClosing = '"'
			builder.WriteRune(r)
			continue
		} else if r > unicode.MaxASCII && !unicode.IsSpace(r) {
			// 丢弃出现在字符串外的异常Unicode字符（例如 æ、• 等）
			continue
		}

		builder.WriteRune(r)
	}

	return builder.String()
}

func cleanJSONString(s string) string {
	if s == "" {
		return s
	}

	// 统一替换常见的噪声、全角符号以及Markdown标记
	s = jsonNoiseReplacer.Replace(s)
	s = strings.TrimSpace(s)

	// 移除零宽字符及除换行/制表符外的控制字符
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\u200B', '\u200C', '\u200D', '\u2060', '\uFEFF':
			return -1
		}
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	// 查找第一个 { 或 [，将其之前的内容全部丢弃
	start := strings.IndexAny(s, "[{")
	if start == -1 {
		return s
	}

	s = strings.TrimSpace(s[start:])
	if s == "" {
		return s
	}

	// 规范化JSON结构所需的标点符号，移除字符串外的异常字符
	s = normalizeJSONStructure(s)

	isArray := len(s) > 0 && s[0] == '['

	// 简单的括号计数匹配
	balance := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		char := s[i]

		if escaped {
			escaped = false
			continue
		}

		if char == '\\' {
			escaped = true
			continue
		}

		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			if isArray {
				if char == '[' {
					balance++
				} else if char == ']' {
					balance--
				}
			} else {
				if char == '{' {
					balance++
				} else if char == '}' {
					balance--
				}
			}

			if balance == 0 {
				// 找到了匹配的结束符
				return strings.TrimSpace(s[:i+1])
			}
		}
	}

	// 如果没找到匹配的结束符，回退到找最后一个结束符
	end := -1
	if isArray {
		end = strings.LastIndex(s, "]")
	} else {
		end = strings.LastIndex(s, "}")
	}

	if end != -1 {
		return strings.TrimSpace(s[:end+1])
	}

	return strings.TrimSpace(s)
}
