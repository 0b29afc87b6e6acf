package plugin

import (
	"context"
	"errors"
	"sync"

	"github.com/ayusman/shotcoach/internal/log"
)

// Outcome is the result of one plugin run during a Publish.
type Outcome struct {
	Plugin   string
	Response *Response
	Err      error
}

// Dispatcher fans events out to subscribed plugins.
type Dispatcher struct {
	Manager  *Manager
	Executor *Executor
}

// NewDispatcher returns a Dispatcher over dir with the default timeout.
func NewDispatcher(dir string) *Dispatcher {
	return &Dispatcher{Manager: NewManager(dir), Executor: NewExecutor(DefaultTimeout)}
}

// Publish runs every subscriber of event concurrently and waits for all of
// them. Failures are logged and reported in the outcomes; they never stop
// other plugins.
func (d *Dispatcher) Publish(ctx context.Context, event string, payload any) []Outcome {
	subs := d.Manager.Subscribers(event)
	if len(subs) == 0 {
		return nil
	}

	out := make([]Outcome, len(subs))
	var wg sync.WaitGroup
	for i, p := range subs {
		wg.Add(1)
		go func(i int, p *Plugin) {
			defer wg.Done()

			resp, err := d.Executor.Execute(ctx, p, &Request{Event: event, Analysis: payload})
			if err == nil && !resp.Success {
				msg := resp.Error
				if msg == "" {
					msg = "plugin reported failure"
				}
				err = errors.New(msg)
			}
			if err != nil {
				log.Warn("plugin failed", "plugin", p.Manifest.Name, "event", event, "err", err)
			} else {
				log.Debug("plugin ran", "plugin", p.Manifest.Name, "event", event)
			}
			out[i] = Outcome{Plugin: p.Manifest.Name, Response: resp, Err: err}
		}(i, p)
	}
	wg.Wait()
	return out
}
