package consul

import "time"

// Event Consul 事件日志中的一条记录
type Event struct {
	ID            string
	Name          string
	Payload       []byte
	NodeFilter    string
	ServiceFilter string
	TagFilter     string
	Version       int
	LTime         uint64
}

// Index 返回由事件 ID 推导出的索引
func (e *Event) Index() uint64 {
	return EventIDToIndex(e.ID)
}

// KeyValue KV 存储中的一个条目
type KeyValue struct {
	Key         string
	Value       []byte
	CreateIndex uint64
	ModifyIndex uint64
	Flags       uint64
}

// IsFolder 以 / 结尾的键只是目录占位
func (kv *KeyValue) IsFolder() bool {
	return len(kv.Key) > 0 && kv.Key[len(kv.Key)-1] == '/'
}

// QueryOptions 阻塞查询参数，WaitIndex 为 0 时不阻塞
type QueryOptions struct {
	WaitIndex uint64
	WaitTime  time.Duration
}

// QueryMeta 阻塞查询返回的索引信息。
// IndexPresent 为 false 表示响应没有携带可用的索引。
type QueryMeta struct {
	LastIndex    uint64
	IndexPresent bool
}
