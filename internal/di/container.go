// internal/di/container.go
package di

import (
	"fmt"
	"sync"
)

// Container 服务容器
type Container struct {
	services map[string]interface{}
	mu       sync.RWMutex
}

var (
	instance *Container
	once     sync.Once
)

// GetContainer 获取容器单例
func GetContainer() *Container {
	once.Do(func() {
		instance = &Container{
			services: make(map[string]interface{}),
		}
	})
	return instance
}

// Register 注册服务
func (c *Container) Register(name string, service interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[name] = service
}

// Get 获取服务
func (c *Container) Get(name string) (interface{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	service, exists := c.services[name]
	if !exists {
		return nil, fmt.Errorf("服务未注册: %s", name)
	}
	return service, nil
}

// MustGet 获取服务，不存在时panic（仅用于启动阶段）
func (c *Container) MustGet(name string) interface{} {
	service, err := c.Get(name)
	if err != nil {
		panic(err)
	}
	return service
}

// Has 检查服务是否已注册
func (c *Container) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, exists := c.services[name]
	return exists
}

// Remove 移除服务
func (c *Container) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.services, name)
}

// Clear 清空所有服务（主要用于测试）
func (c *Container) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services = make(map[string]interface{})
}

// GetNames 获取所有已注册服务名称
func (c *Container) GetNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.services))
	for name := range c.services {
		names = append(names, name)
	}
	return names
}
