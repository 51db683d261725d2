// Package consul 通过 Consul 的 HTTP API 执行阻塞查询，是监听核心唯一的外部依赖。
package consul

import (
	"context"
	"fmt"

	"github.com/hashicorp/consul/api"
	"github.com/kmlixh/consulWatch"
	"github.com/kmlixh/consulWatch/errors"
)

// Client 基于 hashicorp/consul/api 的阻塞查询客户端
type Client struct {
	consulClient *api.Client
	event        *api.Event
	kv           *api.KV
}

// NewClient 根据配置创建客户端
func NewClient(config *consulWatch.Config) (*Client, error) {
	if config == nil {
		config = consulWatch.NewConfig()
	}
	client, err := api.NewClient(config.APIConfig())
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeConfigInvalid, "failed to create consul client", err)
	}
	return NewClientFromAPI(client), nil
}

// NewClientFromAPI 包装已有的 api.Client
func NewClientFromAPI(client *api.Client) *Client {
	return &Client{
		consulClient: client,
		event:        client.Event(),
		kv:           client.KV(),
	}
}

// API 返回底层的 api.Client
func (c *Client) API() *api.Client {
	return c.consulClient
}

func queryOptions(ctx context.Context, q QueryOptions) *api.QueryOptions {
	opts := &api.QueryOptions{}
	if q.WaitIndex > 0 {
		opts.WaitIndex = q.WaitIndex
		opts.WaitTime = q.WaitTime
	}
	return opts.WithContext(ctx)
}

func queryMeta(meta *api.QueryMeta) QueryMeta {
	if meta == nil || meta.LastIndex == 0 {
		return QueryMeta{}
	}
	return QueryMeta{LastIndex: meta.LastIndex, IndexPresent: true}
}

// ListEvents 列出事件日志，name 为空时返回全部事件
func (c *Client) ListEvents(ctx context.Context, name string, q QueryOptions) ([]*Event, QueryMeta, error) {
	list, meta, err := c.event.List(name, queryOptions(ctx, q))
	if err != nil {
		return nil, QueryMeta{}, errors.NewError(errors.ErrCodeTransport, fmt.Sprintf("failed to list events %q", name), err)
	}

	events := make([]*Event, 0, len(list))
	for _, e := range list {
		if e == nil {
			continue
		}
		events = append(events, fromUserEvent(e))
	}
	return events, queryMeta(meta), nil
}

// ListKeys 递归列出前缀下的所有键
func (c *Client) ListKeys(ctx context.Context, prefix string, q QueryOptions) ([]*KeyValue, QueryMeta, error) {
	if prefix == "" {
		return nil, QueryMeta{}, errors.ErrEmptyPrefix
	}

	pairs, meta, err := c.kv.List(prefix, queryOptions(ctx, q))
	if err != nil {
		return nil, QueryMeta{}, errors.NewError(errors.ErrCodeTransport, fmt.Sprintf("failed to list KVs with prefix %s", prefix), err)
	}

	entries := make([]*KeyValue, 0, len(pairs))
	for _, p := range pairs {
		if p == nil {
			continue
		}
		entries = append(entries, &KeyValue{
			Key:         p.Key,
			Value:       p.Value,
			CreateIndex: p.CreateIndex,
			ModifyIndex: p.ModifyIndex,
			Flags:       p.Flags,
		})
	}
	return entries, queryMeta(meta), nil
}

// FireEvent 发布一个用户事件
func (c *Client) FireEvent(ctx context.Context, name string, payload []byte) (*Event, error) {
	if name == "" {
		return nil, errors.NewError(errors.ErrCodeValidation, "event name cannot be empty", nil)
	}

	params := &api.UserEvent{Name: name, Payload: payload}
	id, _, err := c.event.Fire(params, (&api.WriteOptions{}).WithContext(ctx))
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeTransport, fmt.Sprintf("failed to fire event %q", name), err)
	}
	params.ID = id
	return fromUserEvent(params), nil
}

// PutKey 设置键值对
func (c *Client) PutKey(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return errors.ErrEmptyKey
	}

	p := &api.KVPair{
		Key:   key,
		Value: value,
	}
	if _, err := c.kv.Put(p, (&api.WriteOptions{}).WithContext(ctx)); err != nil {
		return errors.NewError(errors.ErrCodeTransport, "failed to put KV", err)
	}
	return nil
}

// DeleteKey 删除键值对
func (c *Client) DeleteKey(ctx context.Context, key string) error {
	if key == "" {
		return errors.ErrEmptyKey
	}

	if _, err := c.kv.Delete(key, (&api.WriteOptions{}).WithContext(ctx)); err != nil {
		return errors.NewError(errors.ErrCodeTransport, "failed to delete KV", err)
	}
	return nil
}

func fromUserEvent(e *api.UserEvent) *Event {
	return &Event{
		ID:            e.ID,
		Name:          e.Name,
		Payload:       e.Payload,
		NodeFilter:    e.NodeFilter,
		ServiceFilter: e.ServiceFilter,
		TagFilter:     e.TagFilter,
		Version:       e.Version,
		LTime:         e.LTime,
	}
}
