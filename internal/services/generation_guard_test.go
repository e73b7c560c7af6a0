// internal/services/generation_guard_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardRejectsConcurrentAcquire(t *testing.T) {
	g := NewGenerationGuard()

	tag, err := g.Acquire("p1:planning")
	require.NoError(t, err)

	_, err = g.Acquire("p1:planning")
	assert.ErrorIs(t, err, ErrGenerationBusy)

	// 不同键互不影响
	_, err = g.Acquire("p1:writing")
	assert.NoError(t, err)
	_, err = g.Acquire("p2:planning")
	assert.NoError(t, err)

	g.Release("p1:planning", tag)
	_, err = g.Acquire("p1:planning")
	assert.NoError(t, err)
}

func TestGuardReleaseRequiresOwnTag(t *testing.T) {
	g := NewGenerationGuard()

	tag, err := g.Acquire("k")
	require.NoError(t, err)

	// 错误的标签不能解除占用
	g.Release("k", tag+100)
	_, err = g.Acquire("k")
	assert.ErrorIs(t, err, ErrGenerationBusy)

	g.Release("k", tag)
	_, err = g.Acquire("k")
	assert.NoError(t, err)
}

// 废弃后在途任务的标签过期，其响应到达时会被丢弃
func TestGuardInvalidateStalesInFlightTag(t *testing.T) {
	g := NewGenerationGuard()

	tag, err := g.Acquire("k")
	require.NoError(t, err)
	assert.True(t, g.IsCurrent("k", tag))

	g.Invalidate("k")
	assert.False(t, g.IsCurrent("k", tag))

	// 废弃同时解除占用，允许立即发起新任务
	freshTag, err := g.Acquire("k")
	require.NoError(t, err)
	assert.True(t, g.IsCurrent("k", freshTag))
	assert.False(t, g.IsCurrent("k", tag))
}

// 取消项目废弃其全部阶段的在途标签
func TestCancelProjectStalesAllStageKeys(t *testing.T) {
	g := NewGenerationGuard()
	const projectID = "p1"

	keys := []string{
		architectKey(projectID),
		planningKey(projectID),
		logicKey(projectID),
		writingKey(projectID),
	}
	tags := make(map[string]uint64, len(keys))
	for _, key := range keys {
		tag, err := g.Acquire(key)
		require.NoError(t, err)
		tags[key] = tag
	}

	g.CancelProject(projectID)

	for _, key := range keys {
		assert.False(t, g.IsCurrent(key, tags[key]), "取消后 %s 的标签应过期", key)
		_, err := g.Acquire(key)
		assert.NoError(t, err, "取消后 %s 应可立即重新占用", key)
	}

	// 其它项目不受影响
	otherTag, err := g.Acquire(planningKey("p2"))
	require.NoError(t, err)
	g.CancelProject(projectID)
	assert.True(t, g.IsCurrent(planningKey("p2"), otherTag))
}

func TestGuardSweepReclaimsAbandonedEntries(t *testing.T) {
	g := NewGenerationGuard()
	g.ttl = 10 * time.Millisecond

	_, err := g.Acquire("k")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	g.sweep()

	_, err = g.Acquire("k")
	assert.NoError(t, err, "超时任务被回收后键应可重新占用")
}
