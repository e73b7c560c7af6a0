// internal/services/project_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Corphon/NovelForgeMCP/internal/models"
	"github.com/Corphon/NovelForgeMCP/internal/storage"
)

const (
	projectsDir      = "projects"
	projectsFilename = "projects.json"
)

// ProjectService 项目集合的唯一持有者
// 内存中的项目集合是显式应用状态，所有服务通过本服务读写；
// 落盘采用"整集合一个文件"的键值模型，定期自动保存加退出时强制保存。
type ProjectService struct {
	storage *storage.FileStorage
	logger  zerolog.Logger

	mu       sync.RWMutex
	projects map[string]*models.Project
	dirty    bool
}

// NewProjectService 创建项目服务并加载已有存档
func NewProjectService(fs *storage.FileStorage, logger zerolog.Logger) (*ProjectService, error) {
	s := &ProjectService{
		storage:  fs,
		logger:   logger.With().Str("service", "project").Logger(),
		projects: make(map[string]*models.Project),
	}

	var saved []*models.Project
	err := fs.LoadJSONFile(projectsDir, projectsFilename, &saved)
	if err == nil {
		for _, p := range saved {
			if p == nil || p.ID == "" {
				continue
			}
			p.Normalize()
			s.projects[p.ID] = p
		}
		s.logger.Info().Int("count", len(s.projects)).Msg("项目存档已加载")
	} else if !fs.FileExists(projectsDir, projectsFilename) {
		s.logger.Info().Msg("未发现项目存档，从空集合开始")
	} else {
		return nil, fmt.Errorf("加载项目存档失败: %w", err)
	}

	return s, nil
}

// List 返回按最后修改时间倒序排列的全部项目
func (s *ProjectService) List() []*models.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*models.Project, 0, len(s.projects))
	for _, p := range s.projects {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].LastModified > list[j].LastModified
	})
	return list
}

// Get 获取指定项目
func (s *ProjectService) Get(id string) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, ErrProjectNotFound
	}
	return p, nil
}

// Create 创建新项目
func (s *ProjectService) Create(title string) *models.Project {
	if title == "" {
		title = "未命名作品"
	}

	p := models.NewProject(uuid.NewString(), title)

	s.mu.Lock()
	s.projects[p.ID] = p
	s.dirty = true
	s.mu.Unlock()

	s.logger.Info().Str("project_id", p.ID).Str("title", title).Msg("项目已创建")
	return p
}

// Delete 删除项目
func (s *ProjectService) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		return ErrProjectNotFound
	}
	delete(s.projects, id)
	s.dirty = true
	return nil
}

// Mutate 在写锁保护下对项目执行修改
// 多字段更新（章节追加+进度推进等）通过单次Mutate调用保证不出现中间状态。
func (s *ProjectService) Mutate(id string, fn func(p *models.Project) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return ErrProjectNotFound
	}

	if err := fn(p); err != nil {
		return err
	}

	p.Touch()
	s.dirty = true
	return nil
}

// Import 导入完整项目数据，重新分配ID后加入集合
// 旧版本存档缺失的字段在这里补默认值。
func (s *ProjectService) Import(data []byte) (*models.Project, error) {
	var p models.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("解析项目数据失败: %w", err)
	}

	if p.Title == "" {
		return nil, fmt.Errorf("项目数据缺少标题")
	}

	p.Normalize()
	p.ID = uuid.NewString()
	p.Touch()

	s.mu.Lock()
	s.projects[p.ID] = &p
	s.dirty = true
	s.mu.Unlock()

	s.logger.Info().Str("project_id", p.ID).Str("title", p.Title).Msg("项目已导入")
	return &p, nil
}

// Save 将项目集合落盘，未发生修改时跳过
func (s *ProjectService) Save() error {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}

	list := make([]*models.Project, 0, len(s.projects))
	for _, p := range s.projects {
		list = append(list, p)
	}
	s.dirty = false
	s.mu.Unlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].LastModified > list[j].LastModified
	})

	if err := s.storage.SaveJSONFile(projectsDir, projectsFilename, list); err != nil {
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
		return fmt.Errorf("保存项目存档失败: %w", err)
	}
	return nil
}

// StartAutosave 启动定期自动保存，ctx取消时做最后一次保存后退出
func (s *ProjectService) StartAutosave(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 2 * time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.Save(); err != nil {
					s.logger.Error().Err(err).Msg("自动保存失败")
				}
			case <-ctx.Done():
				if err := s.Save(); err != nil {
					s.logger.Error().Err(err).Msg("退出前保存失败")
				}
				return
			}
		}
	}()
}
