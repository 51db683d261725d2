// Package server 提供诊断用的 HTTP 接口：指标、监听状态与当前属性。
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kmlixh/consulWatch/event"
	"github.com/kmlixh/consulWatch/kv"
	"github.com/kmlixh/consulWatch/logger"
	"github.com/kmlixh/consulWatch/metrics"
	"github.com/kmlixh/consulWatch/sink"
	"github.com/kmlixh/consulWatch/watch"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Options 诊断接口的数据来源，未设置的部分不会出现在响应中
type Options struct {
	Metrics    *metrics.Metrics
	Group      *watch.Group
	KV         *kv.Watcher
	Events     *event.Watcher
	Properties *sink.Properties
}

// Server 诊断 HTTP 服务
type Server struct {
	log    *zap.Logger
	opts   Options
	engine *gin.Engine
	srv    *http.Server
}

// EventState 事件监听状态
type EventState struct {
	Name       string `json:"name"`
	Index      uint64 `json:"index"`
	IndexKnown bool   `json:"index_known"`
}

// WatchesResponse /watches 的响应
type WatchesResponse struct {
	Tasks    []watch.TaskStatus     `json:"tasks"`
	Contexts []kv.ContextState      `json:"contexts,omitempty"`
	Event    *EventState            `json:"event,omitempty"`
	Counters map[string]interface{} `json:"counters,omitempty"`
}

// New 创建诊断服务
func New(log *logger.Logger, opts Options) *Server {
	if log == nil {
		log = logger.DefaultLogger()
	}
	s := &Server{
		log:  log.Zap(),
		opts: opts,
	}
	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.route(s.engine)
	return s
}

func (s *Server) route(r *gin.Engine) {
	r.GET("/health", s.health)
	r.GET("/watches", s.watches)
	r.GET("/properties", s.properties)
	r.GET("/properties/:name", s.property)
	if reg := s.opts.Metrics.Registry(); reg != nil {
		handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		r.GET("/metrics", gin.WrapH(handler))
	}
}

// Handler 返回路由，测试时可直接使用
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve 在后台监听端口
func (s *Server) Serve(port int) {
	s.log.Info("http server is going to start", zap.Int("port", port))
	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.engine,
	}
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("fail to start http server", zap.Error(err))
		}
	}()
}

// Shutdown 在超时时间内关闭服务
func (s *Server) Shutdown(timeout time.Duration) {
	if s.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.log.Info("http server is going to stop")
	if err := s.srv.Shutdown(ctx); err != nil {
		s.log.Warn("shutdown the server forcefully", zap.Error(err))
	} else {
		s.log.Info("shutdown the server gracefully")
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) watches(c *gin.Context) {
	resp := WatchesResponse{Tasks: []watch.TaskStatus{}}
	if s.opts.Group != nil {
		resp.Tasks = s.opts.Group.Statuses()
	}
	if s.opts.KV != nil {
		resp.Contexts = s.opts.KV.Contexts()
	}
	if s.opts.Events != nil {
		index, known := s.opts.Events.Index()
		resp.Event = &EventState{Name: s.opts.Events.Name(), Index: index, IndexKnown: known}
	}
	if s.opts.Metrics != nil {
		resp.Counters = s.opts.Metrics.GetMetrics()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) properties(c *gin.Context) {
	if s.opts.Properties == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, s.opts.Properties.Snapshot())
}

func (s *Server) property(c *gin.Context) {
	name := c.Param("name")
	if s.opts.Properties != nil {
		if v, ok := s.opts.Properties.Get(name); ok {
			c.JSON(http.StatusOK, gin.H{"name": name, "value": v})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("property %s not found", name)})
}
