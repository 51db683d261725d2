package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level 日志级别
type Level int

const (
	// DEBUG 调试级别
	DEBUG Level = iota
	// INFO 信息级别
	INFO
	// WARN 警告级别
	WARN
	// ERROR 错误级别
	ERROR
	// FATAL 致命错误级别
	FATAL
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

var zapLevels = map[Level]zapcore.Level{
	DEBUG: zapcore.DebugLevel,
	INFO:  zapcore.InfoLevel,
	WARN:  zapcore.WarnLevel,
	ERROR: zapcore.ErrorLevel,
	FATAL: zapcore.FatalLevel,
}

// String 返回级别名称
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel 解析配置文件中的级别字符串，无法识别时返回 INFO
func ParseLevel(s string) Level {
	s = strings.ToUpper(strings.TrimSpace(s))
	for level, name := range levelNames {
		if name == s {
			return level
		}
	}
	return INFO
}

// Logger 日志记录器，底层使用 zap
type Logger struct {
	level     zap.AtomicLevel
	output    zapcore.WriteSyncer
	zl        *zap.Logger
	mu        sync.Mutex
	fields    map[string]interface{}
	callDepth int
	json      bool
	closer    io.Closer
}

// Options 日志选项
type Options struct {
	Level     Level
	Output    io.Writer
	CallDepth int
	Fields    map[string]interface{}

	// Filename 不为空时写入文件并按大小滚动，优先于 Output
	Filename   string
	MaxSize    int
	MaxBackups int
	MaxAge     int

	// JSON 使用 JSON 编码，默认是控制台格式
	JSON bool
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// DefaultLogger 获取默认日志记录器
func DefaultLogger() *Logger {
	once.Do(func() {
		defaultLogger = NewLogger(&Options{
			Level:  INFO,
			Output: os.Stdout,
		})
	})
	return defaultLogger
}

// NewLogger 创建新的日志记录器
func NewLogger(opts *Options) *Logger {
	if opts == nil {
		opts = &Options{
			Level:  INFO,
			Output: os.Stdout,
		}
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Fields == nil {
		opts.Fields = make(map[string]interface{})
	}

	l := &Logger{
		level:     zap.NewAtomicLevelAt(zapLevels[opts.Level]),
		fields:    opts.Fields,
		callDepth: opts.CallDepth,
		json:      opts.JSON,
	}
	if opts.Filename != "" {
		rotate := &lumberjack.Logger{
			Filename:   opts.Filename,
			MaxSize:    opts.MaxSize,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAge,
		}
		l.output = zapcore.AddSync(rotate)
		l.closer = rotate
	} else {
		l.output = zapcore.AddSync(opts.Output)
	}
	l.zl = l.build()
	return l
}

func (l *Logger) build() *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderCfg.EncodeCaller = zapcore.ShortCallerEncoder

	var encoder zapcore.Encoder
	if l.json {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}
	core := zapcore.NewCore(encoder, l.output, l.level)
	zl := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2+l.callDepth))
	if len(l.fields) > 0 {
		zl = zl.With(toZapFields(l.fields)...)
	}
	return zl
}

func toZapFields(fields map[string]interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}

// WithField 添加字段
func (l *Logger) WithField(key string, value interface{}) *Logger {
	newLogger := l.clone()
	newLogger.fields[key] = value
	newLogger.zl = newLogger.zl.With(zap.Any(key, value))
	return newLogger
}

// WithFields 添加多个字段
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	newLogger := l.clone()
	for k, v := range fields {
		newLogger.fields[k] = v
	}
	newLogger.zl = newLogger.zl.With(toZapFields(fields)...)
	return newLogger
}

// SetLevel 设置日志级别
func (l *Logger) SetLevel(level Level) {
	l.level.SetLevel(zapLevels[level])
}

// GetLevel 获取日志级别
func (l *Logger) GetLevel() Level {
	current := l.level.Level()
	for level, zl := range zapLevels {
		if zl == current {
			return level
		}
	}
	return INFO
}

// SetOutput 设置输出
func (l *Logger) SetOutput(output io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = zapcore.AddSync(output)
	l.zl = l.build()
}

// Zap 返回底层的 zap.Logger，供需要强类型字段的组件使用
func (l *Logger) Zap() *zap.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.zl.WithOptions(zap.AddCallerSkip(-2))
}

// Sync 刷新缓冲
func (l *Logger) Sync() error {
	return l.current().Sync()
}

// Close 刷新并关闭滚动文件
func (l *Logger) Close() error {
	_ = l.Sync()
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

func (l *Logger) clone() *Logger {
	fields := make(map[string]interface{}, len(l.fields))
	for k, v := range l.fields {
		fields[k] = v
	}
	return &Logger{
		level:     l.level,
		output:    l.output,
		zl:        l.current(),
		fields:    fields,
		callDepth: l.callDepth,
		json:      l.json,
		closer:    l.closer,
	}
}

func (l *Logger) current() *zap.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.zl
}

func (l *Logger) log(level Level, msg string) {
	zl := l.current()
	switch level {
	case DEBUG:
		zl.Debug(msg)
	case INFO:
		zl.Info(msg)
	case WARN:
		zl.Warn(msg)
	case ERROR:
		zl.Error(msg)
	case FATAL:
		zl.Fatal(msg)
	}
}

func (l *Logger) enabled(level Level) bool {
	return l.level.Enabled(zapLevels[level])
}

// Debug 调试日志
func (l *Logger) Debug(args ...interface{}) {
	if l.enabled(DEBUG) {
		l.log(DEBUG, fmt.Sprint(args...))
	}
}

// Debugf 格式化调试日志
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.enabled(DEBUG) {
		l.log(DEBUG, fmt.Sprintf(format, args...))
	}
}

// Info 信息日志
func (l *Logger) Info(args ...interface{}) {
	if l.enabled(INFO) {
		l.log(INFO, fmt.Sprint(args...))
	}
}

// Infof 格式化信息日志
func (l *Logger) Infof(format string, args ...interface{}) {
	if l.enabled(INFO) {
		l.log(INFO, fmt.Sprintf(format, args...))
	}
}

// Warn 警告日志
func (l *Logger) Warn(args ...interface{}) {
	if l.enabled(WARN) {
		l.log(WARN, fmt.Sprint(args...))
	}
}

// Warnf 格式化警告日志
func (l *Logger) Warnf(format string, args ...interface{}) {
	if l.enabled(WARN) {
		l.log(WARN, fmt.Sprintf(format, args...))
	}
}

// Error 错误日志
func (l *Logger) Error(args ...interface{}) {
	if l.enabled(ERROR) {
		l.log(ERROR, fmt.Sprint(args...))
	}
}

// Errorf 格式化错误日志
func (l *Logger) Errorf(format string, args ...interface{}) {
	if l.enabled(ERROR) {
		l.log(ERROR, fmt.Sprintf(format, args...))
	}
}

// Fatal 致命错误日志
func (l *Logger) Fatal(args ...interface{}) {
	l.log(FATAL, fmt.Sprint(args...))
}

// Fatalf 格式化致命错误日志
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.log(FATAL, fmt.Sprintf(format, args...))
}
