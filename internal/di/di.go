// Package di provides a small typed dependency injection container.
package di

import (
	"fmt"
	"sync"
)

// ServiceRegistry resolves registered services by name.
type ServiceRegistry interface {
	// Get returns the service registered under name, constructing it on
	// first use when registered through a factory. Returns nil if the name
	// is unknown.
	Get(name string) any
}

// Container is a ServiceRegistry that also accepts registrations.
type Container interface {
	ServiceRegistry

	// Register stores a ready-made service instance under name.
	Register(name string, svc any)

	// RegisterFactory stores a lazy constructor. The factory runs at most
	// once, on the first Get for the name.
	RegisterFactory(name string, factory func(ServiceRegistry) any)
}

// NewContainer creates an empty container.
func NewContainer() Container {
	return &container{
		instances: make(map[string]any),
		factories: make(map[string]func(ServiceRegistry) any),
	}
}

type container struct {
	mu        sync.Mutex
	instances map[string]any
	factories map[string]func(ServiceRegistry) any
}

func (c *container) Register(name string, svc any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.instances[name] = svc
}

func (c *container) RegisterFactory(name string, factory func(ServiceRegistry) any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[name] = factory
}

func (c *container) Get(name string) any {
	c.mu.Lock()

	if svc, ok := c.instances[name]; ok {
		c.mu.Unlock()
		return svc
	}

	factory, ok := c.factories[name]
	if !ok {
		c.mu.Unlock()
		return nil
	}

	// Release the lock while constructing so factories can resolve their
	// own dependencies through the container.
	delete(c.factories, name)
	c.mu.Unlock()

	svc := factory(c)

	c.mu.Lock()
	c.instances[name] = svc
	c.mu.Unlock()

	return svc
}

// Token is a typed handle for a registered service.
type Token[T any] struct {
	name string
}

// NewToken creates a token with a unique service name.
func NewToken[T any](name string) Token[T] {
	return Token[T]{name: name}
}

// Name returns the underlying service name.
func (t Token[T]) Name() string {
	return t.name
}

// RegisterToken registers a typed factory for the token's service.
func RegisterToken[T any](c Container, t Token[T], factory func(ServiceRegistry) T) {
	c.RegisterFactory(t.name, func(sr ServiceRegistry) any {
		return factory(sr)
	})
}

// GetToken resolves the token's service, panicking on missing or
// mistyped registrations. Wiring mistakes are programmer errors and
// should fail loudly at startup.
func GetToken[T any](sr ServiceRegistry, t Token[T]) T {
	svc := sr.Get(t.name)
	if svc == nil {
		panic(fmt.Sprintf("di: service %q not registered", t.name))
	}

	typed, ok := svc.(T)
	if !ok {
		panic(fmt.Sprintf("di: service %q has type %T, not the requested type", t.name, svc))
	}

	return typed
}
