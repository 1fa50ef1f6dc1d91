// Package health tracks component readiness so startup ordering (connect
// the mongo client, then accept checkouts) is observable and waitable
// instead of implicit.
package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ComponentStatus is the point-in-time readiness of one registered component.
type ComponentStatus struct {
	Name      string    `json:"name"`
	Ready     bool      `json:"ready"`
	StartedAt time.Time `json:"started_at"`
	ReadyAt   time.Time `json:"ready_at,omitempty"`
}

// ReadinessStatus is the aggregate readiness of every registered component.
type ReadinessStatus struct {
	Ready      bool              `json:"ready"`
	Components []ComponentStatus `json:"components"`
	ReadyAt    time.Time         `json:"ready_at,omitempty"`
}

// ComponentManager registers components that must become ready before the
// module is considered up.
type ComponentManager interface {
	// AddComponent registers name and returns a function to mark it ready.
	AddComponent(name string) func()
}

// ReadinessChecker reports current readiness.
type ReadinessChecker interface {
	IsReady() bool
	GetStatus() ReadinessStatus
}

// ReadinessWaiter blocks callers until every component is ready.
type ReadinessWaiter interface {
	WaitReady(ctx context.Context) error
}

type component struct {
	name      string
	ready     bool
	startedAt time.Time
	readyAt   time.Time
}

type readiness struct {
	mu         sync.RWMutex
	components map[string]*component
	readyChan  chan struct{}
	readyOnce  sync.Once
	log        *zap.Logger
}

func newReadiness(log *zap.Logger) *readiness {
	if log == nil {
		log = zap.NewNop()
	}
	return &readiness{
		components: make(map[string]*component),
		readyChan:  make(chan struct{}),
		log:        log,
	}
}

func (r *readiness) AddComponent(name string) func() {
	if name == "" {
		panic("health: component name cannot be empty")
	}

	r.mu.Lock()
	if _, exists := r.components[name]; exists {
		r.mu.Unlock()
		r.log.Warn("component already registered", zap.String("component", name))
		return func() { r.markReady(name) }
	}
	r.components[name] = &component{name: name, startedAt: time.Now()}
	r.mu.Unlock()

	r.log.Debug("component registered", zap.String("component", name))
	return func() { r.markReady(name) }
}

func (r *readiness) markReady(name string) {
	r.mu.Lock()

	comp, exists := r.components[name]
	if !exists {
		r.mu.Unlock()
		panic("health: component '" + name + "' does not exist, must call AddComponent first")
	}
	if comp.ready {
		r.mu.Unlock()
		return
	}
	comp.ready = true
	comp.readyAt = time.Now()

	allReady := true
	for _, c := range r.components {
		if !c.ready {
			allReady = false
			break
		}
	}
	r.mu.Unlock()

	r.log.Info("component ready",
		zap.String("component", name),
		zap.Duration("initialization-time", comp.readyAt.Sub(comp.startedAt)),
	)

	if allReady {
		r.readyOnce.Do(func() {
			close(r.readyChan)
			r.log.Info("all components ready")
		})
	}
}

func (r *readiness) IsReady() bool {
	select {
	case <-r.readyChan:
		return true
	default:
		return false
	}
}

func (r *readiness) GetStatus() ReadinessStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := ReadinessStatus{
		Ready:      r.IsReady(),
		Components: make([]ComponentStatus, 0, len(r.components)),
	}
	for _, comp := range r.components {
		status.Components = append(status.Components, ComponentStatus{
			Name:      comp.name,
			Ready:     comp.ready,
			StartedAt: comp.startedAt,
			ReadyAt:   comp.readyAt,
		})
		if comp.readyAt.After(status.ReadyAt) {
			status.ReadyAt = comp.readyAt
		}
	}

	sort.Slice(status.Components, func(i, j int) bool {
		return status.Components[i].Name < status.Components[j].Name
	})

	return status
}

func (r *readiness) WaitReady(ctx context.Context) error {
	select {
	case <-r.readyChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
