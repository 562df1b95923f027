package workers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/azhengyongqin/caseflow/internal/repository"
)

// Handler 处理单个作业，返回三态结果
type Handler func(ctx context.Context, job *repository.Job) Result

// Registry job_type -> Handler 的静态注册表，启动时构建
type Registry struct {
	mu    sync.RWMutex
	items map[string]Handler // key: job_type
}

func NewRegistry() *Registry {
	return &Registry{
		items: map[string]Handler{},
	}
}

// Register 注册处理函数；同一 job_type 只能注册一次
func (r *Registry) Register(jobType string, h Handler) error {
	jobType = strings.TrimSpace(jobType)
	if jobType == "" {
		return errors.New("job_type 不能为空")
	}
	if h == nil {
		return errors.New("handler 不能为空")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[jobType]; exists {
		return fmt.Errorf("job_type %q 已注册", jobType)
	}
	r.items[jobType] = h
	return nil
}

// MustRegister 注册失败直接 panic（仅用于启动阶段）
func (r *Registry) MustRegister(jobType string, h Handler) {
	if err := r.Register(jobType, h); err != nil {
		panic(err)
	}
}

// Get 获取处理函数
func (r *Registry) Get(jobType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.items[jobType]
	return h, ok
}

// Types 返回已注册的 job_type（排序）
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.items))
	for k := range r.items {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
