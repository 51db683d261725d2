package consulWatch

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/kmlixh/consulWatch/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultEventWait  = 5 * time.Second
	DefaultEventDelay = 1 * time.Second
	DefaultKVWait     = 55 * time.Second
	DefaultKVDelay    = 1 * time.Second
	DefaultHTTPPort   = 9180
)

// Config 封装了 api.Config，并携带监听相关的配置
type Config struct {
	config *api.Config

	Events  EventsConfig
	KV      KVConfig
	Logging LoggingConfig
	Kafka   KafkaConfig
	HTTP    HTTPConfig
}

// EventsConfig 事件监听配置
type EventsConfig struct {
	Enabled bool          `yaml:"enabled"`
	Name    string        `yaml:"name"`
	Wait    time.Duration `yaml:"wait"`
	Delay   time.Duration `yaml:"delay"`
}

// KVConfig KV 前缀监听配置
type KVConfig struct {
	Contexts    []string      `yaml:"contexts"`
	Wait        time.Duration `yaml:"wait"`
	Delay       time.Duration `yaml:"delay"`
	InitialEmit bool          `yaml:"initial_emit"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Filename   string `yaml:"filename"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	JSON       bool   `yaml:"json"`
}

// KafkaConfig 事件转发到 Kafka 的配置，Brokers 为空时不启用
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// HTTPConfig 诊断接口配置，Port 为负数时不启用
type HTTPConfig struct {
	Port int `yaml:"port"`
}

type fileConfig struct {
	Consul struct {
		Address    string `yaml:"address"`
		Token      string `yaml:"token"`
		Scheme     string `yaml:"scheme"`
		Datacenter string `yaml:"datacenter"`
	} `yaml:"consul"`
	Events  EventsConfig  `yaml:"events"`
	KV      KVConfig      `yaml:"kv"`
	Logging LoggingConfig `yaml:"logging"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	HTTP    HTTPConfig    `yaml:"http"`
}

// NewConfig 创建一个新的 Config 实例
func NewConfig() *Config {
	c := &Config{
		config: api.DefaultConfig(),
	}
	c.applyDefaults()
	return c
}

// NewConfigWithAddress 使用指定地址创建一个新的 Config 实例
func NewConfigWithAddress(address string) *Config {
	return NewConfig().WithAddress(address)
}

// LoadConfig 从 YAML 文件加载配置，支持 ${ENV} 和 ${ENV:default} 占位符
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeConfigInvalid, fmt.Sprintf("read config %s", path), err)
	}
	return ParseConfig(b)
}

// ParseConfig 解析 YAML 配置内容
func ParseConfig(b []byte) (*Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal([]byte(expandEnv(string(b))), &fc); err != nil {
		return nil, errors.NewError(errors.ErrCodeConfigInvalid, "parse config", err)
	}

	c := NewConfig()
	if fc.Consul.Address != "" {
		c.SetAddress(fc.Consul.Address)
	}
	if fc.Consul.Token != "" {
		c.SetToken(fc.Consul.Token)
	}
	if fc.Consul.Scheme != "" {
		c.SetScheme(fc.Consul.Scheme)
	}
	if fc.Consul.Datacenter != "" {
		c.SetDatacenter(fc.Consul.Datacenter)
	}
	c.Events = fc.Events
	c.KV = fc.KV
	c.Logging = fc.Logging
	c.Kafka = fc.Kafka
	c.HTTP = fc.HTTP
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::([^}]*))?\}`)

func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(m string) string {
		parts := envPattern.FindStringSubmatch(m)
		if v, ok := os.LookupEnv(parts[1]); ok {
			return v
		}
		return parts[2]
	})
}

func (c *Config) applyDefaults() {
	if c.Events.Wait <= 0 {
		c.Events.Wait = DefaultEventWait
	}
	if c.Events.Delay <= 0 {
		c.Events.Delay = DefaultEventDelay
	}
	if c.KV.Wait <= 0 {
		c.KV.Wait = DefaultKVWait
	}
	if c.KV.Delay <= 0 {
		c.KV.Delay = DefaultKVDelay
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = DefaultHTTPPort
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.GetAddress() == "" {
		return errors.NewError(errors.ErrCodeConfigInvalid, "consul.address is required", nil)
	}
	if !c.Events.Enabled && len(c.KV.Contexts) == 0 {
		return errors.NewError(errors.ErrCodeConfigInvalid, "nothing to watch: enable events or configure kv.contexts", nil)
	}
	seen := make(map[string]bool, len(c.KV.Contexts))
	for _, prefix := range c.KV.Contexts {
		if strings.TrimSpace(prefix) == "" {
			return errors.NewError(errors.ErrCodeConfigInvalid, "kv.contexts contains an empty prefix", nil)
		}
		key := strings.TrimSuffix(prefix, "/") + "/"
		if seen[key] {
			return errors.NewError(errors.ErrCodeConfigInvalid, fmt.Sprintf("kv context %s configured twice", prefix), nil)
		}
		seen[key] = true
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return errors.NewError(errors.ErrCodeConfigInvalid, "kafka.topic is required when brokers are set", nil)
	}
	return nil
}

// WithAddress 设置地址并返回自身，便于链式调用
func (c *Config) WithAddress(address string) *Config {
	c.SetAddress(address)
	return c
}

// WithToken 设置访问令牌
func (c *Config) WithToken(token string) *Config {
	c.SetToken(token)
	return c
}

// WithScheme 设置协议方案
func (c *Config) WithScheme(scheme string) *Config {
	c.SetScheme(scheme)
	return c
}

// WithEvents 开启事件监听
func (c *Config) WithEvents(name string) *Config {
	c.Events.Enabled = true
	c.Events.Name = name
	return c
}

// WithContexts 追加需要监听的 KV 前缀
func (c *Config) WithContexts(prefixes ...string) *Config {
	c.KV.Contexts = append(c.KV.Contexts, prefixes...)
	return c
}

// SetAddress 设置 Consul 服务器地址
func (c *Config) SetAddress(address string) {
	c.config.Address = address
}

// GetAddress 获取 Consul 服务器地址
func (c *Config) GetAddress() string {
	return c.config.Address
}

// SetToken 设置访问令牌
func (c *Config) SetToken(token string) {
	c.config.Token = token
}

// GetToken 获取访问令牌
func (c *Config) GetToken() string {
	return c.config.Token
}

// SetScheme 设置协议方案（http/https）
func (c *Config) SetScheme(scheme string) {
	c.config.Scheme = scheme
}

// GetScheme 获取协议方案
func (c *Config) GetScheme() string {
	return c.config.Scheme
}

// SetDatacenter 设置数据中心
func (c *Config) SetDatacenter(datacenter string) {
	c.config.Datacenter = datacenter
}

// GetDatacenter 获取数据中心
func (c *Config) GetDatacenter() string {
	return c.config.Datacenter
}

// APIConfig 返回内部 api.Config 的副本
func (c *Config) APIConfig() *api.Config {
	cp := *c.config
	return &cp
}
