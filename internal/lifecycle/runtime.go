package lifecycle

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Component is a long-running part of the bot with an explicit lifecycle.
// Start must return once the component is running; Stop must honor the
// context deadline.
type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type namedComponent struct {
	name      string
	component Component
}

// Runtime starts components in registration order and stops them in reverse.
// A failed Start stops whatever was already started before returning.
type Runtime struct {
	components []namedComponent
}

func NewRuntime() *Runtime {
	return &Runtime{}
}

func (r *Runtime) Register(name string, component Component) {
	if component == nil {
		return
	}
	r.components = append(r.components, namedComponent{name: name, component: component})
}

func (r *Runtime) Start(ctx context.Context) error {
	started := make([]namedComponent, 0, len(r.components))
	for _, nc := range r.components {
		if err := nc.component.Start(ctx); err != nil {
			_ = stopComponents(ctx, started)
			return fmt.Errorf("start %s: %w", nc.name, err)
		}
		log.WithField("component", nc.name).Debug("component started")
		started = append(started, nc)
	}
	return nil
}

func (r *Runtime) Stop(ctx context.Context) error {
	return stopComponents(ctx, r.components)
}

func stopComponents(ctx context.Context, components []namedComponent) error {
	var stopErr error
	for i := len(components) - 1; i >= 0; i-- {
		nc := components[i]
		if err := nc.component.Stop(ctx); err != nil {
			stopErr = errors.Join(stopErr, fmt.Errorf("stop %s: %w", nc.name, err))
			continue
		}
		log.WithField("component", nc.name).Debug("component stopped")
	}
	return stopErr
}
