package kv

import (
	"sort"
	"sync"

	"github.com/kmlixh/consulWatch/cursor"
)

// Context 一个被监听的 KV 前缀及其基线：最近的索引与已知属性集合
type Context struct {
	prefix string
	cursor *cursor.Cursor

	mu   sync.RWMutex
	keys map[string]struct{}
}

// ContextState 上下文状态快照
type ContextState struct {
	Prefix     string   `json:"prefix"`
	Index      uint64   `json:"index"`
	IndexKnown bool     `json:"index_known"`
	Keys       []string `json:"keys"`
}

func newContext(prefix string) *Context {
	return &Context{
		prefix: prefix,
		cursor: cursor.New(),
		keys:   make(map[string]struct{}),
	}
}

// Prefix 返回监听的前缀
func (c *Context) Prefix() string {
	return c.prefix
}

// Index 返回最近一次成功轮询的索引
func (c *Context) Index() (uint64, bool) {
	return c.cursor.Get()
}

// Keys 返回已知属性名，已排序
func (c *Context) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.keys))
	for k := range c.keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// State 返回上下文快照
func (c *Context) State() ContextState {
	index, known := c.cursor.Get()
	return ContextState{
		Prefix:     c.prefix,
		Index:      index,
		IndexKnown: known,
		Keys:       c.Keys(),
	}
}

func (c *Context) existing() map[string]struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]struct{}, len(c.keys))
	for k := range c.keys {
		out[k] = struct{}{}
	}
	return out
}

// commit 同时替换属性集合与索引
func (c *Context) commit(index uint64, keys map[string]struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = keys
	c.cursor.SetIfPresent(index, true)
}
