package plugin

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/palmrest/internal/events"
)

var _ events.Publisher = (*Dispatcher)(nil)

// Dispatcher runs every subscribed plugin for each rest event.
// Plugins run in the background so a slow hook never stalls the video stream.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
	log      logrus.FieldLogger
	wg       sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewDispatcher creates a Dispatcher over already discovered plugins.
func NewDispatcher(manager *Manager, executor *Executor, log logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{
		manager:  manager,
		executor: executor,
		log:      log.WithField("component", "plugin"),
	}
}

// Publish starts the plugins subscribed to ev and returns without waiting for them.
func (d *Dispatcher) Publish(_ context.Context, ev events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}

	for _, p := range d.manager.Subscribers(ev.Kind) {
		d.wg.Add(1)
		go d.run(p, ev)
	}
	return nil
}

func (d *Dispatcher) run(p *Plugin, ev events.Event) {
	defer d.wg.Done()

	log := d.log.WithFields(logrus.Fields{"plugin": p.Manifest.Name, "event": ev.Kind})

	// The executor's own timeout bounds the run; the triggering frame's context is long gone.
	resp, err := d.executor.Execute(context.Background(), p, NewRequest(p, ev))
	if err != nil {
		log.WithError(err).Warn("plugin failed")
		return
	}
	if !resp.Success {
		log.WithField("error", resp.Error).Warn("plugin reported failure")
		return
	}
	log.Debug("plugin ran")
}

// Close stops accepting events and waits for running plugins.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.wg.Wait()
	return nil
}
