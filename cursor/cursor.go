// Package cursor 保存某个监听资源最近一次观察到的 Consul 一致性索引。
package cursor

import "sync/atomic"

// Cursor 线程安全的索引游标，零值表示从未观察到索引
type Cursor struct {
	v atomic.Pointer[uint64]
}

// New 创建一个空游标
func New() *Cursor {
	return &Cursor{}
}

// Get 返回当前索引，ok 为 false 表示从未观察到
func (c *Cursor) Get() (index uint64, ok bool) {
	p := c.v.Load()
	if p == nil {
		return 0, false
	}
	return *p, true
}

// SetIfPresent 只有在响应确实携带索引时才更新，缺失的索引不会清除已知值。
// 返回值表示是否发生了更新。
func (c *Cursor) SetIfPresent(index uint64, present bool) bool {
	if !present {
		return false
	}
	c.v.Store(&index)
	return true
}

// Reset 回到未初始化状态
func (c *Cursor) Reset() {
	c.v.Store(nil)
}
