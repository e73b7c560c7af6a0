// internal/services/progress_service_test.go
package services

import (
	"testing"
	"time"
)

// TestPlanIncrementProperties 全域校验推进计划的不变量
func TestPlanIncrementProperties(t *testing.T) {
	for current := 0; current <= 100; current++ {
		for increment := 1; increment <= 100; increment++ {
			plan := PlanIncrement(current, increment)

			if current < 100 {
				expected := increment
				if remaining := 100 - current; expected > remaining {
					expected = remaining
				}
				if plan.ActualIncrement != expected {
					t.Fatalf("current=%d increment=%d: 实际增量应为%d，得到%d",
						current, increment, expected, plan.ActualIncrement)
				}
				if plan.TargetProgress != current+expected {
					t.Fatalf("current=%d increment=%d: 目标进度应为%d，得到%d",
						current, increment, current+expected, plan.TargetProgress)
				}
				if plan.Epilogue {
					t.Fatalf("current=%d: 进度未满时不应进入尾声模式", current)
				}
			}

			if plan.TargetProgress > 100 {
				t.Fatalf("目标进度不能超过100，得到%d", plan.TargetProgress)
			}
		}
	}
}

// TestPlanIncrementScenarios 固定场景
func TestPlanIncrementScenarios(t *testing.T) {
	tests := []struct {
		current, increment int
		wantActual         int
		wantTarget         int
		wantEpilogue       bool
	}{
		{40, 20, 20, 60, false},
		{95, 20, 5, 100, false},
		{0, 100, 100, 100, false},
		{100, 20, 1, 100, true},
	}

	for _, tt := range tests {
		plan := PlanIncrement(tt.current, tt.increment)
		if plan.ActualIncrement != tt.wantActual || plan.TargetProgress != tt.wantTarget || plan.Epilogue != tt.wantEpilogue {
			t.Errorf("PlanIncrement(%d, %d) = %+v，期望 actual=%d target=%d epilogue=%v",
				tt.current, tt.increment, plan, tt.wantActual, tt.wantTarget, tt.wantEpilogue)
		}
	}
}

// TestPlanIncrementClampsInput 越界输入被钳制而不是报错
func TestPlanIncrementClampsInput(t *testing.T) {
	if plan := PlanIncrement(-5, 0); plan.ActualIncrement != 1 || plan.TargetProgress != 1 {
		t.Errorf("负进度与零增量应钳制为0和1，得到%+v", plan)
	}
	if plan := PlanIncrement(50, 200); plan.ActualIncrement != 50 || plan.TargetProgress != 100 {
		t.Errorf("超限增量应钳制为100，得到%+v", plan)
	}
}

// TestTaskTrackerLifecycle 任务跟踪器的订阅与完成流程
func TestTaskTrackerLifecycle(t *testing.T) {
	svc := NewProgressService()
	tracker := svc.CreateTracker("task-1")

	// 重复创建返回同一实例
	if again := svc.CreateTracker("task-1"); again != tracker {
		t.Fatal("同一taskID应返回同一跟踪器")
	}

	updates := tracker.Subscribe()

	// 订阅后立即收到当前状态
	first := <-updates
	if first.Status != "running" || first.Progress != 0 {
		t.Fatalf("初始状态错误: %+v", first)
	}

	tracker.Update(50, "处理中")
	got := <-updates
	if got.Progress != 50 || got.Message != "处理中" {
		t.Fatalf("更新未送达: %+v", got)
	}

	// 进度只升不降
	tracker.Update(30, "")
	got = <-updates
	if got.Progress != 50 {
		t.Fatalf("进度不应回退: %+v", got)
	}

	tracker.Complete("")
	got = <-updates
	if got.Status != "completed" || got.Progress != 100 {
		t.Fatalf("完成状态错误: %+v", got)
	}

	select {
	case <-tracker.Done:
	case <-time.After(time.Second):
		t.Fatal("Done通道应在完成后关闭")
	}

	tracker.Unsubscribe(updates)
}

// TestCreateTrackerReplacesFinished 已结束的跟踪器复用taskID时换成新实例
func TestCreateTrackerReplacesFinished(t *testing.T) {
	svc := NewProgressService()

	first := svc.CreateTracker("task-1")
	first.Complete("")

	second := svc.CreateTracker("task-1")
	if second == first {
		t.Fatal("已完成的跟踪器不应被复用")
	}
	if second.Status != "running" {
		t.Fatalf("新跟踪器应处于运行状态: %s", second.Status)
	}

	// 新一轮任务可以正常完成，不触发重复关闭
	second.Update(50, "第二轮")
	second.Complete("")

	failed := svc.CreateTracker("task-2")
	failed.Fail("出错")
	if again := svc.CreateTracker("task-2"); again == failed {
		t.Fatal("失败的跟踪器不应被复用")
	}
}

// TestCleanupCompletedTasks 过期任务被清理，进行中任务保留
func TestCleanupCompletedTasks(t *testing.T) {
	svc := NewProgressService()

	done := svc.CreateTracker("done")
	done.Complete("")
	running := svc.CreateTracker("running")
	_ = running

	svc.CleanupCompletedTasks(0)

	if _, exists := svc.GetTracker("done"); exists {
		t.Error("已完成的过期任务应被清理")
	}
	if _, exists := svc.GetTracker("running"); !exists {
		t.Error("进行中的任务不应被清理")
	}
}
