// Package consultest 提供内存版的 Consul，用于在没有真实集群的情况下测试监听逻辑。
package consultest

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-uuid"
	"github.com/kmlixh/consulWatch/consul"
	"github.com/kmlixh/consulWatch/errors"
)

// Server 内存中的 Consul，事件日志与 KV 各自维护索引。
// 查询不会真正阻塞，WaitIndex/WaitTime 只被记录下来供断言使用。
type Server struct {
	mu sync.Mutex

	events    []*consul.Event
	kv        map[string]*consul.KeyValue
	raftIndex uint64

	omitIndex  bool
	emptyIndex uint64
	failures  []error
	queries   []Query
}

// Query 记录一次查询的参数
type Query struct {
	Kind    string
	Target  string
	Options consul.QueryOptions
}

// NewServer 创建空的内存 Consul
func NewServer() *Server {
	return &Server{kv: make(map[string]*consul.KeyValue)}
}

// FailNext 让接下来的查询依次返回给定错误
func (s *Server) FailNext(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, errs...)
}

// OmitIndex 控制响应是否携带索引
func (s *Server) OmitIndex(omit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.omitIndex = omit
}

// EmptyEventIndex 设置事件日志为空时返回的索引。真实 agent 在没有事件时返回 1，默认不返回索引
func (s *Server) EmptyEventIndex(index uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emptyIndex = index
}

// Queries 返回已记录的查询
func (s *Server) Queries() []Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Query, len(s.queries))
	copy(out, s.queries)
	return out
}

func (s *Server) record(kind, target string, q consul.QueryOptions) error {
	s.queries = append(s.queries, Query{Kind: kind, Target: target, Options: q})
	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		return err
	}
	return nil
}

// FireEvent 追加一条事件，ID 为随机 UUID
func (s *Server) FireEvent(ctx context.Context, name string, payload []byte) (*consul.Event, error) {
	id, err := uuid.GenerateUUID()
	if err != nil {
		return nil, err
	}
	return s.AppendEvent(&consul.Event{ID: id, Name: name, Payload: payload}), nil
}

// AppendEvent 以给定 ID 追加事件
func (s *Server) AppendEvent(e *consul.Event) *consul.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	cp.LTime = uint64(len(s.events) + 1)
	s.events = append(s.events, &cp)
	return &cp
}

// TruncateEvents 丢弃最早的 n 条事件，模拟 Consul 滚动自己的事件缓冲
func (s *Server) TruncateEvents(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.events) {
		n = len(s.events)
	}
	s.events = append([]*consul.Event(nil), s.events[n:]...)
}

// ListEvents 按到达顺序返回事件。与 Consul agent 一致，索引取最后一条事件的推导索引。
func (s *Server) ListEvents(ctx context.Context, name string, q consul.QueryOptions) ([]*consul.Event, consul.QueryMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("events", name, q); err != nil {
		return nil, consul.QueryMeta{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, consul.QueryMeta{}, err
	}

	var out []*consul.Event
	for _, e := range s.events {
		if name != "" && e.Name != name {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	if s.omitIndex {
		return out, consul.QueryMeta{}, nil
	}
	if len(out) == 0 {
		if s.emptyIndex == 0 {
			return out, consul.QueryMeta{}, nil
		}
		return out, consul.QueryMeta{LastIndex: s.emptyIndex, IndexPresent: true}, nil
	}
	return out, consul.QueryMeta{LastIndex: out[len(out)-1].Index(), IndexPresent: true}, nil
}

// Put 写入一个键，ModifyIndex 取递增后的全局索引
func (s *Server) Put(key string, value string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raftIndex++
	entry, ok := s.kv[key]
	if !ok {
		entry = &consul.KeyValue{Key: key, CreateIndex: s.raftIndex}
		s.kv[key] = entry
	}
	entry.Value = []byte(value)
	entry.ModifyIndex = s.raftIndex
	return s.raftIndex
}

// Delete 删除一个键
func (s *Server) Delete(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raftIndex++
	delete(s.kv, key)
	return s.raftIndex
}

// Load 用给定条目整体替换 KV 内容并把全局索引设为 index
func (s *Server) Load(index uint64, entries ...*consul.KeyValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv = make(map[string]*consul.KeyValue, len(entries))
	for _, e := range entries {
		cp := *e
		s.kv[e.Key] = &cp
	}
	s.raftIndex = index
}

// PutKey 实现与 consul.Client 相同的写接口
func (s *Server) PutKey(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return errors.ErrEmptyKey
	}
	s.Put(key, string(value))
	return nil
}

// DeleteKey 实现与 consul.Client 相同的删除接口
func (s *Server) DeleteKey(ctx context.Context, key string) error {
	if key == "" {
		return errors.ErrEmptyKey
	}
	s.Delete(key)
	return nil
}

// ListKeys 返回前缀下按键排序的条目，索引为当前全局索引
func (s *Server) ListKeys(ctx context.Context, prefix string, q consul.QueryOptions) ([]*consul.KeyValue, consul.QueryMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("kv", prefix, q); err != nil {
		return nil, consul.QueryMeta{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, consul.QueryMeta{}, err
	}

	var out []*consul.KeyValue
	for key, e := range s.kv {
		if strings.HasPrefix(key, prefix) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })

	if s.omitIndex || s.raftIndex == 0 {
		return out, consul.QueryMeta{}, nil
	}
	return out, consul.QueryMeta{LastIndex: s.raftIndex, IndexPresent: true}, nil
}
