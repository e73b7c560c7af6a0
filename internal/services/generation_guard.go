// internal/services/generation_guard.go
package services

import (
	"sync"
	"time"
)

// GenerationGuard 生成任务的并发守卫
// 同一个键（项目+阶段）同一时刻只允许一个生成任务在执行，
// 并为每次任务发放递增的请求标签，用于丢弃被取代的过期响应。
type GenerationGuard struct {
	mu      sync.Mutex
	seq     uint64
	active  map[string]*guardEntry
	current map[string]uint64
	ttl     time.Duration
}

// guardEntry 记录一个在执行中的任务
type guardEntry struct {
	tag     uint64
	started time.Time
}

// NewGenerationGuard 创建生成守卫
func NewGenerationGuard() *GenerationGuard {
	g := &GenerationGuard{
		active:  make(map[string]*guardEntry),
		current: make(map[string]uint64),
		ttl:     10 * time.Minute,
	}

	// 定期清理被遗弃的任务记录（例如进程内panic后未Release）
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			g.sweep()
		}
	}()

	return g
}

// Acquire 尝试占用一个键，成功时返回本次任务的请求标签
func (g *GenerationGuard) Acquire(key string) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.active[key]; busy {
		return 0, ErrGenerationBusy
	}

	g.seq++
	tag := g.seq
	g.active[key] = &guardEntry{tag: tag, started: time.Now()}
	g.current[key] = tag
	return tag, nil
}

// Release 释放键的占用，只有持有当前标签的任务才能释放
func (g *GenerationGuard) Release(key string, tag uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if entry, ok := g.active[key]; ok && entry.tag == tag {
		delete(g.active, key)
	}
}

// Invalidate 废弃键上尚未完成的任务：在执行中的任务完成后其结果会被丢弃
func (g *GenerationGuard) Invalidate(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.seq++
	g.current[key] = g.seq
	delete(g.active, key)
}

// CancelProject 废弃一个项目在全部阶段的在途生成
// 删除项目或客户端切换项目时调用，使未完成请求的响应到达后被丢弃。
func (g *GenerationGuard) CancelProject(projectID string) {
	for _, key := range []string{
		architectKey(projectID),
		planningKey(projectID),
		logicKey(projectID),
		writingKey(projectID),
	} {
		g.Invalidate(key)
	}
}

// IsCurrent 判断标签是否仍然是该键的最新请求
func (g *GenerationGuard) IsCurrent(key string, tag uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.current[key] == tag
}

// sweep 清理超过TTL仍未释放的任务记录
func (g *GenerationGuard) sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	for key, entry := range g.active {
		if now.Sub(entry.started) > g.ttl {
			delete(g.active, key)
		}
	}
}
