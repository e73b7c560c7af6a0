// internal/models/ids.go
package models

import (
	"sync/atomic"
	"time"
)

var localIDSeq atomic.Int64

func init() {
	localIDSeq.Store(time.Now().UnixMilli())
}

// NextLocalID 生成进程内单调递增的本地ID，用于章节与角色
// 以毫秒时间戳为种子，重启后仍保持大体递增，避免与历史存档冲突。
func NextLocalID() int64 {
	return localIDSeq.Add(1)
}
