// internal/services/image_service.go
package services

import (
	"context"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/Corphon/NovelForgeMCP/internal/llm"
)

// ImageService 图像生成网关
// 生成失败时退化为由提示词种子决定的占位图，调用方永远拿到可用的URL。
type ImageService struct {
	gateway *GatewayService
	logger  zerolog.Logger
}

// NewImageService 创建图像服务
func NewImageService(gateway *GatewayService, logger zerolog.Logger) *ImageService {
	return &ImageService{
		gateway: gateway,
		logger:  logger.With().Str("service", "image").Logger(),
	}
}

// PaintImage 根据提示词生成图片，返回data URL或占位图URL
func (s *ImageService) PaintImage(ctx context.Context, prompt string) string {
	s.gateway.mu.RLock()
	provider := s.gateway.provider
	apiKey := s.gateway.llmConfig["api_key"]
	s.gateway.mu.RUnlock()

	painter, ok := provider.(llm.ImagePainter)
	if !ok || apiKey == "" {
		return PlaceholderImageURL(prompt)
	}

	imageURL, err := painter.PaintImage(ctx, prompt)
	if err != nil || imageURL == "" {
		s.logger.Warn().Err(err).Msg("图像生成失败，使用占位图")
		return PlaceholderImageURL(prompt)
	}
	return imageURL
}

// PlaceholderImageURL 由提示词派生的确定性占位图地址
func PlaceholderImageURL(prompt string) string {
	seed := url.QueryEscape(prompt)
	if len(seed) > 10 {
		seed = seed[:10]
	}
	return "https://picsum.photos/seed/" + seed + "/512/512"
}
