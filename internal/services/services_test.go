// internal/services/services_test.go
package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Corphon/NovelForgeMCP/internal/llm"
	"github.com/Corphon/NovelForgeMCP/internal/logger"
	"github.com/Corphon/NovelForgeMCP/internal/models"
	"github.com/Corphon/NovelForgeMCP/internal/storage"
)

// fakeProvider 测试用的可编程提供者
type fakeProvider struct {
	mu      sync.Mutex
	calls   []llm.CompletionRequest
	respond func(req llm.CompletionRequest) (string, error)
}

func (f *fakeProvider) Initialize(config map[string]string) error { return nil }
func (f *fakeProvider) GetName() string                           { return "fake" }
func (f *fakeProvider) GetSupportedModels() []string              { return []string{"fake-high", "fake-low"} }

func (f *fakeProvider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if f.respond == nil {
		return nil, errors.New("未配置响应")
	}
	text, err := f.respond(req)
	if err != nil {
		return nil, err
	}
	return &llm.CompletionResponse{Text: text, ModelName: req.Model, ProviderName: "fake"}, nil
}

// callCount 返回已发起的调用数
func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// lastCall 返回最后一次请求，没有调用时失败
func (f *fakeProvider) lastCall(t *testing.T) llm.CompletionRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatal("提供者未收到任何调用")
	}
	return f.calls[len(f.calls)-1]
}

// respondText 固定返回一段文本
func respondText(text string) func(llm.CompletionRequest) (string, error) {
	return func(llm.CompletionRequest) (string, error) { return text, nil }
}

// testStack 组装一套基于临时目录与fake提供者的服务
type testStack struct {
	provider *fakeProvider
	gateway  *GatewayService
	guard    *GenerationGuard
	progress *ProgressService
	projects *ProjectService

	architect *ArchitectService
	planner   *PlannerService
	logic     *LogicService
	writer    *WriterService
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	fs, err := storage.NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("创建文件存储失败: %v", err)
	}

	log := logger.Nop()
	projects, err := NewProjectService(fs, log)
	if err != nil {
		t.Fatalf("创建项目服务失败: %v", err)
	}

	provider := &fakeProvider{}
	gateway := NewGatewayServiceWithProvider(provider, map[string]string{
		"api_key":    "test-key",
		"high_model": "fake-high",
		"low_model":  "fake-low",
	}, log)

	guard := NewGenerationGuard()
	progress := NewProgressService()
	images := NewImageService(gateway, log)

	return &testStack{
		provider:  provider,
		gateway:   gateway,
		guard:     guard,
		progress:  progress,
		projects:  projects,
		architect: NewArchitectService(projects, gateway, images, guard, log),
		planner:   NewPlannerService(projects, gateway, guard, progress, log),
		logic:     NewLogicService(projects, gateway, guard, log),
		writer:    NewWriterService(projects, gateway, guard, log),
	}
}

// newPlannedProject 创建一个带主线构架与角色的项目
func (s *testStack) newPlannedProject(t *testing.T) *models.Project {
	t.Helper()

	p := s.projects.Create("测试小说")
	err := s.projects.Mutate(p.ID, func(p *models.Project) error {
		p.Architecture.MainPlot = "少年获得上古传承，踏上复仇之路。"
		p.Architecture.PlotStructure = "起：村庄被毁。承：拜师学艺。转：身世之谜。合：终极对决。"
		p.CharacterList = []models.Character{
			{ID: models.NextLocalID(), Name: "林寒", Role: "主角", PlotFunction: "复仇者"},
			{ID: models.NextLocalID(), Name: "苏婉", Role: "女主角", PlotFunction: "情感寄托"},
			{ID: models.NextLocalID(), Name: "黑袍人", Role: "反派", PlotFunction: "宿敌"},
		}
		return nil
	})
	if err != nil {
		t.Fatalf("初始化项目失败: %v", err)
	}

	project, err := s.projects.Get(p.ID)
	if err != nil {
		t.Fatalf("读取项目失败: %v", err)
	}
	return project
}
