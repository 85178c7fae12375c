// Package di provides a minimal service container used to wire modules.
package di

import (
	"fmt"
	"sync"
)

// ServiceRegistry is the read side of the container.
type ServiceRegistry interface {
	// Get returns the service registered under name, constructing it on
	// first access if a factory was registered. Panics if name is unknown.
	Get(name string) any
}

// Container is the write side of the container.
type Container interface {
	ServiceRegistry

	// Register stores a ready-made service instance under name.
	Register(name string, service any)

	// RegisterFactory stores a lazy constructor. The factory runs once,
	// on first Get, and the result is cached.
	RegisterFactory(name string, factory func(ServiceRegistry) any)
}

type container struct {
	mu        sync.Mutex
	services  map[string]any
	factories map[string]func(ServiceRegistry) any
}

// NewContainer creates an empty container.
func NewContainer() Container {
	return &container{
		services:  make(map[string]any),
		factories: make(map[string]func(ServiceRegistry) any),
	}
}

func (c *container) Register(name string, service any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[name] = service
}

func (c *container) RegisterFactory(name string, factory func(ServiceRegistry) any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[name] = factory
}

func (c *container) Get(name string) any {
	c.mu.Lock()
	if svc, ok := c.services[name]; ok {
		c.mu.Unlock()
		return svc
	}
	factory, ok := c.factories[name]
	c.mu.Unlock()

	if !ok {
		panic(fmt.Sprintf("di: no service registered under %q", name))
	}

	// Run the factory outside the lock so factories can Get dependencies.
	svc := factory(c)

	c.mu.Lock()
	if existing, ok := c.services[name]; ok {
		// Another goroutine won the race; keep the first instance.
		c.mu.Unlock()
		return existing
	}
	c.services[name] = svc
	c.mu.Unlock()

	return svc
}

// RegisterToken registers a typed factory under a string token.
func RegisterToken[T any](c Container, token string, factory func(ServiceRegistry) T) {
	c.RegisterFactory(token, func(sr ServiceRegistry) any {
		return factory(sr)
	})
}

// GetToken resolves a typed service from the registry.
func GetToken[T any](sr ServiceRegistry, token string) T {
	svc, ok := sr.Get(token).(T)
	if !ok {
		panic(fmt.Sprintf("di: service %q has unexpected type %T", token, sr.Get(token)))
	}
	return svc
}
