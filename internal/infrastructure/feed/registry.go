package feed

import (
	"fmt"
	"sync"
)

// Registry 采集策略注册表
type Registry struct {
	mu       sync.RWMutex
	scanners map[string]Scanner
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{
		scanners: make(map[string]Scanner),
	}
}

// Register 注册策略，同名覆盖
func (r *Registry) Register(s Scanner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanners[s.Name()] = s
}

// Resolve 按名称解析策略
func (r *Registry) Resolve(name string) (Scanner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.scanners[name]
	if !ok {
		return nil, fmt.Errorf("unknown scanner: %s", name)
	}
	return s, nil
}
