package watch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kmlixh/consulWatch/errors"
	"github.com/kmlixh/consulWatch/logger"
)

// Group 按名称管理一组监听任务
type Group struct {
	tasks map[string]*Task
	mu    sync.RWMutex
	log   *logger.Logger
	ctx   context.Context
}

// NewGroup 创建新的任务组
func NewGroup(log *logger.Logger) *Group {
	if log == nil {
		log = logger.DefaultLogger()
	}
	return &Group{
		tasks: make(map[string]*Task),
		log:   log,
	}
}

// Add 添加任务，组已启动时立即启动该任务
func (g *Group) Add(name string, poller Poller, delay time.Duration) error {
	if name == "" {
		return errors.NewError(errors.ErrCodeValidation, "watch name cannot be empty", nil)
	}
	if poller == nil {
		return errors.NewError(errors.ErrCodeValidation, "poller cannot be nil", nil)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.tasks[name]; exists {
		return errors.NewError(errors.ErrCodeValidation, fmt.Sprintf("watch with name %s already exists", name), nil)
	}

	task := NewTask(name, poller, delay, g.log)
	if g.ctx != nil {
		if err := task.Start(g.ctx); err != nil {
			return err
		}
	}
	g.tasks[name] = task
	return nil
}

// Remove 停止并移除任务
func (g *Group) Remove(name string) error {
	g.mu.Lock()
	task, exists := g.tasks[name]
	if !exists {
		g.mu.Unlock()
		return errors.NewError(errors.ErrCodeValidation, fmt.Sprintf("watch with name %s does not exist", name), nil)
	}
	delete(g.tasks, name)
	g.mu.Unlock()

	task.Stop()
	return nil
}

// Get 获取任务
func (g *Group) Get(name string) (*Task, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	task, exists := g.tasks[name]
	return task, exists
}

// Start 启动所有任务，之后添加的任务会自动启动
func (g *Group) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ctx != nil {
		return errors.ErrAlreadyStarted
	}
	g.ctx = ctx
	for _, name := range g.sortedNames() {
		if err := g.tasks[name].Start(ctx); err != nil {
			return errors.NewError(errors.ErrCodeUnknown, fmt.Sprintf("failed to start watch %s", name), err)
		}
	}
	g.log.Infof("started %d watch tasks", len(g.tasks))
	return nil
}

// StopAll 停止所有任务并清空任务组
func (g *Group) StopAll() {
	g.mu.Lock()
	tasks := g.tasks
	g.tasks = make(map[string]*Task)
	g.ctx = nil
	g.mu.Unlock()

	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(task *Task) {
			defer wg.Done()
			task.Stop()
		}(task)
	}
	wg.Wait()
}

// List 列出所有任务名称，已排序
func (g *Group) List() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sortedNames()
}

// Count 获取任务数量
func (g *Group) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.tasks)
}

// Statuses 返回所有任务的状态，按名称排序
func (g *Group) Statuses() []TaskStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()

	statuses := make([]TaskStatus, 0, len(g.tasks))
	for _, name := range g.sortedNames() {
		statuses = append(statuses, g.tasks[name].Status())
	}
	return statuses
}

func (g *Group) sortedNames() []string {
	names := make([]string, 0, len(g.tasks))
	for name := range g.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
