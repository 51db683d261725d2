// Package kv 监听 Consul KV 前缀，把新增、修改和删除的键汇总成一个变更批次。
package kv

import (
	"sort"
	"strings"

	"github.com/kmlixh/consulWatch/consul"
)

// Change 单个属性的变更，Deleted 为 true 表示属性已被删除
type Change struct {
	Value   string
	Deleted bool
}

// ChangeBatch 一次轮询产生的变更，键为规范化后的属性名
type ChangeBatch map[string]Change

// Merge 把 other 合并进 b，同名属性以 other 为准
func (b ChangeBatch) Merge(other ChangeBatch) {
	for name, c := range other {
		b[name] = c
	}
}

// Values 返回 属性名 -> 值 的映射，被删除的属性值为 nil
func (b ChangeBatch) Values() map[string]*string {
	out := make(map[string]*string, len(b))
	for name, c := range b {
		if c.Deleted {
			out[name] = nil
			continue
		}
		v := c.Value
		out[name] = &v
	}
	return out
}

// Names 返回排序后的属性名
func (b ChangeBatch) Names() []string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Counts 返回修改和删除的数量
func (b ChangeBatch) Counts() (changed, deleted int) {
	for _, c := range b {
		if c.Deleted {
			deleted++
		} else {
			changed++
		}
	}
	return changed, deleted
}

// NormalizePrefix 保证前缀以 / 结尾，config/app 不会匹配到 config/application/ 下的键
func NormalizePrefix(prefix string) string {
	if prefix == "" || strings.HasSuffix(prefix, "/") {
		return prefix
	}
	return prefix + "/"
}

// PropertyName 把 KV 键转换为相对于 prefix 的属性名：
// 去掉前缀和开头的 /，其余 / 替换为 .。目录键、前缀本身以及同级的其他键返回 false。
func PropertyName(prefix, key string) (string, bool) {
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(key, prefix)
	if !strings.HasSuffix(prefix, "/") && rest != "" && !strings.HasPrefix(rest, "/") {
		return "", false
	}
	name := strings.TrimPrefix(rest, "/")
	if name == "" || strings.HasSuffix(name, "/") {
		return "", false
	}
	return strings.ReplaceAll(name, "/", "."), true
}

// Diff 对比一次查询结果与上一次的基线。
// ModifyIndex 大于 since 的条目记为修改，existing 中存在而本次结果中没有的属性记为删除。
// 返回的 current 是本次结果的完整属性集合，作为下一次的基线。
func Diff(prefix string, entries []*consul.KeyValue, since uint64, existing map[string]struct{}) (batch ChangeBatch, current map[string]struct{}) {
	batch = make(ChangeBatch)
	current = make(map[string]struct{}, len(entries))

	for _, e := range entries {
		if e == nil || e.IsFolder() {
			continue
		}
		name, ok := PropertyName(prefix, e.Key)
		if !ok {
			continue
		}
		current[name] = struct{}{}
		if e.ModifyIndex > since {
			batch[name] = Change{Value: string(e.Value)}
		}
	}

	for name := range existing {
		if _, ok := current[name]; !ok {
			batch[name] = Change{Deleted: true}
		}
	}
	return batch, current
}
