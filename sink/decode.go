package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kmlixh/consulWatch/errors"
	"github.com/kmlixh/consulWatch/kv"
	"gopkg.in/yaml.v3"
)

// ConfigCallbackFunc 配置更新回调函数类型
type ConfigCallbackFunc func(name string, target interface{})

// UnmarshalFunc 把属性值解码到目标结构体
type UnmarshalFunc func(data []byte, target interface{}) error

// Decoder 监听单个属性，值变化时解码到目标结构体。
// 属性被删除或值为空时不做任何事。
type Decoder struct {
	name      string
	target    interface{}
	unmarshal UnmarshalFunc
	callback  ConfigCallbackFunc
}

// NewDecoder 创建解码 Sink
func NewDecoder(name string, target interface{}, unmarshal UnmarshalFunc, callback ...ConfigCallbackFunc) *Decoder {
	d := &Decoder{name: name, target: target, unmarshal: unmarshal}
	if len(callback) > 0 {
		d.callback = callback[0]
	}
	return d
}

// NewJSONDecoder 以 JSON 解码属性值
func NewJSONDecoder(name string, target interface{}, callback ...ConfigCallbackFunc) *Decoder {
	return NewDecoder(name, target, json.Unmarshal, callback...)
}

// NewYamlDecoder 以 YAML 解码属性值
func NewYamlDecoder(name string, target interface{}, callback ...ConfigCallbackFunc) *Decoder {
	return NewDecoder(name, target, yaml.Unmarshal, callback...)
}

// OnKvChange 实现 kv.Sink
func (d *Decoder) OnKvChange(ctx context.Context, batch kv.ChangeBatch) error {
	c, ok := batch[d.name]
	if !ok || c.Deleted || c.Value == "" {
		return nil
	}

	if err := d.unmarshal([]byte(c.Value), d.target); err != nil {
		return errors.NewError(errors.ErrCodeDecode, fmt.Sprintf("failed to decode property %s", d.name), err)
	}

	if d.callback != nil {
		d.callback(d.name, d.target)
	}
	return nil
}
