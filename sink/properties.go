package sink

import (
	"context"
	"sort"
	"sync"

	"github.com/kmlixh/consulWatch/kv"
)

// Properties 线程安全的内存属性视图，按变更批次更新
type Properties struct {
	mu      sync.RWMutex
	values  map[string]string
	version uint64
}

// NewProperties 创建属性视图
func NewProperties() *Properties {
	return &Properties{values: make(map[string]string)}
}

// OnKvChange 应用变更批次
func (p *Properties) OnKvChange(ctx context.Context, batch kv.ChangeBatch) error {
	p.Apply(batch)
	return nil
}

// Apply 设置修改的属性并删除被删除的属性
func (p *Properties) Apply(batch kv.ChangeBatch) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, c := range batch {
		if c.Deleted {
			delete(p.values, name)
			continue
		}
		p.values[name] = c.Value
	}
	p.version++
}

// Get 读取属性
func (p *Properties) Get(name string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[name]
	return v, ok
}

// Names 返回排序后的属性名
func (p *Properties) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.values))
	for name := range p.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot 返回属性副本
func (p *Properties) Snapshot() map[string]string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]string, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// Version 返回已应用的批次数
func (p *Properties) Version() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.version
}
