// internal/services/errors.go
package services

import "errors"

// 服务层的哨兵错误，供API层映射为用户可读的提示
var (
	// ErrCredentialMissing 未配置API Key时拒绝调用生成服务
	ErrCredentialMissing = errors.New("API Key 未配置")

	// ErrGenerationBusy 同一项目同一阶段已有生成任务在执行
	ErrGenerationBusy = errors.New("当前已有生成任务在执行")

	// ErrNoStructuredData 模型返回的文本无法修复为有效JSON
	ErrNoStructuredData = errors.New("AI 未返回有效的结构化数据")

	// ErrNoSourceMaterial 批量生成缺少可用的故事素材
	ErrNoSourceMaterial = errors.New("缺少故事素材，请先完成架构阶段")

	// ErrNoChapters 模型返回的结构化数据中没有任何章节
	ErrNoChapters = errors.New("AI 未生成任何章节")

	// ErrProjectNotFound 项目不存在
	ErrProjectNotFound = errors.New("项目不存在")

	// ErrEpilogueUnconfirmed 进度已满100%，继续生成番外需要用户显式确认
	ErrEpilogueUnconfirmed = errors.New("剧情进度已达 100%，继续生成番外或续集章节需要确认")

	// ErrStaleResponse 响应对应的请求已被更新的请求取代
	ErrStaleResponse = errors.New("响应已过期")
)
