// internal/services/progress_service.go
package services

import (
	"fmt"
	"sync"
	"time"
)

// IncrementPlan 一次推进计划的计算结果
type IncrementPlan struct {
	ActualIncrement int  `json:"actual_increment"` // 实际可推进的百分比
	TargetProgress  int  `json:"target_progress"`  // 本次生成完成后的目标进度
	Epilogue        bool `json:"epilogue"`         // 进度已满，本次生成属于尾声/续篇内容
}

// PlanIncrement 根据当前进度与期望增量计算推进计划
// 纯函数：actual = min(increment, 100-current)，target = min(100, current+actual)。
// 进度已达100时 actual 退化为1（尾声模式），需要调用方显式确认后才可继续生成。
func PlanIncrement(currentProgress, increment int) IncrementPlan {
	if currentProgress < 0 {
		currentProgress = 0
	}
	if currentProgress > 100 {
		currentProgress = 100
	}
	if increment < 1 {
		increment = 1
	}
	if increment > 100 {
		increment = 100
	}

	if currentProgress == 100 {
		return IncrementPlan{ActualIncrement: 1, TargetProgress: 100, Epilogue: true}
	}

	actual := increment
	if remaining := 100 - currentProgress; actual > remaining {
		actual = remaining
	}

	target := currentProgress + actual
	if target > 100 {
		target = 100
	}

	return IncrementPlan{ActualIncrement: actual, TargetProgress: target}
}

// TaskUpdate 生成任务的进度更新
type TaskUpdate struct {
	Progress int    `json:"progress"` // 进度百分比 (0-100)
	Message  string `json:"message"`  // 描述性消息
	Status   string `json:"status"`   // 状态：running, completed, failed
}

// TaskTracker 跟踪一次长时间生成任务（批量大纲、逻辑扫描等）的进度
type TaskTracker struct {
	TaskID      string
	Progress    int
	Message     string
	Status      string
	StartTime   time.Time
	UpdateTime  time.Time
	Subscribers map[chan TaskUpdate]bool
	Done        chan struct{}
	mutex       sync.Mutex
}

// ProgressService 管理所有任务进度跟踪器
type ProgressService struct {
	trackers map[string]*TaskTracker
	mutex    sync.RWMutex
}

// NewProgressService 创建进度服务实例
func NewProgressService() *ProgressService {
	return &ProgressService{
		trackers: make(map[string]*TaskTracker),
	}
}

// CreateTracker 创建新的任务跟踪器
// 同一taskID运行中时返回现有跟踪器；已结束的换成全新跟踪器，
// 避免在已关闭的Done通道上再次Complete/Fail。
func (s *ProgressService) CreateTracker(taskID string) *TaskTracker {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if tracker, exists := s.trackers[taskID]; exists {
		tracker.mutex.Lock()
		running := tracker.Status == "running"
		tracker.mutex.Unlock()
		if running {
			return tracker
		}
	}

	tracker := &TaskTracker{
		TaskID:      taskID,
		Progress:    0,
		Message:     "任务初始化中...",
		Status:      "running",
		StartTime:   time.Now(),
		UpdateTime:  time.Now(),
		Subscribers: make(map[chan TaskUpdate]bool),
		Done:        make(chan struct{}),
	}

	s.trackers[taskID] = tracker
	return tracker
}

// GetTracker 获取任务跟踪器
func (s *ProgressService) GetTracker(taskID string) (*TaskTracker, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	tracker, exists := s.trackers[taskID]
	return tracker, exists
}

// Update 更新任务进度并广播给订阅者
func (t *TaskTracker) Update(progress int, message string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if progress > t.Progress {
		t.Progress = progress
	}
	if message != "" {
		t.Message = message
	}
	t.UpdateTime = time.Now()

	t.broadcast(TaskUpdate{Progress: t.Progress, Message: t.Message, Status: t.Status})
}

// Complete 标记任务完成
func (t *TaskTracker) Complete(message string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.Progress = 100
	if message != "" {
		t.Message = message
	} else {
		t.Message = "任务已完成"
	}
	t.Status = "completed"
	t.UpdateTime = time.Now()

	t.broadcast(TaskUpdate{Progress: 100, Message: t.Message, Status: "completed"})
	close(t.Done)
}

// Fail 标记任务失败
func (t *TaskTracker) Fail(errorMsg string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.Message = fmt.Sprintf("任务失败: %s", errorMsg)
	t.Status = "failed"
	t.UpdateTime = time.Now()

	t.broadcast(TaskUpdate{Progress: t.Progress, Message: t.Message, Status: "failed"})
	close(t.Done)
}

// broadcast 非阻塞地通知所有订阅者，调用方需持有锁
func (t *TaskTracker) broadcast(update TaskUpdate) {
	for subscriber := range t.Subscribers {
		select {
		case subscriber <- update:
		default:
		}
	}
}

// Subscribe 订阅任务进度更新，立即收到当前状态
func (t *TaskTracker) Subscribe() chan TaskUpdate {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	subscriber := make(chan TaskUpdate, 10)
	t.Subscribers[subscriber] = true

	subscriber <- TaskUpdate{Progress: t.Progress, Message: t.Message, Status: t.Status}
	return subscriber
}

// Unsubscribe 取消订阅
func (t *TaskTracker) Unsubscribe(subscriber chan TaskUpdate) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	delete(t.Subscribers, subscriber)
	close(subscriber)
}

// CleanupCompletedTasks 清理已完成且超过保留期的任务
func (s *ProgressService) CleanupCompletedTasks(maxAge time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()
	for id, tracker := range s.trackers {
		tracker.mutex.Lock()
		isFinished := tracker.Status == "completed" || tracker.Status == "failed"
		isOld := now.Sub(tracker.UpdateTime) > maxAge
		tracker.mutex.Unlock()

		if isFinished && isOld {
			delete(s.trackers, id)
		}
	}
}
