package consul

import (
	"strconv"
	"strings"
)

// EventIDToIndex 复现 Consul 客户端由事件 UUID 推导索引的方式：
// 去掉连字符后，前 16 位与后 16 位十六进制分别解析为 uint64 再做异或。
// 长度不是 36 或包含非法字符时返回 0。
//
// 不同的 UUID 可能得到相同的索引，这是 Consul 协议本身的限制，这里不做处理。
func EventIDToIndex(id string) uint64 {
	if len(id) != 36 {
		return 0
	}
	hex := strings.ReplaceAll(id, "-", "")
	if len(hex) != 32 {
		return 0
	}
	lower, err := strconv.ParseUint(hex[:16], 16, 64)
	if err != nil {
		return 0
	}
	upper, err := strconv.ParseUint(hex[16:], 16, 64)
	if err != nil {
		return 0
	}
	return lower ^ upper
}
