package tasks

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/ethereum/go-ethereum/log"
)

// Group runs detached tasks. Starting a task never blocks, and a failing task
// does not cancel the others. Wait joins all tasks and reports every failure.
type Group struct {
	log log.Logger

	group errgroup.Group

	mu   sync.Mutex
	errs *multierror.Error
}

func NewGroup(l log.Logger) *Group {
	return &Group{log: l}
}

// Go starts fn under the given name and returns immediately.
// A panic in fn is recovered and reported as the task's error.
func (g *Group) Go(name string, fn func() error) {
	g.group.Go(func() (err error) {
		start := time.Now()
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("task %s panicked: %v", name, p)
			}
			if err != nil {
				g.log.Error("Task failed", "task", name, "duration", time.Since(start), "err", err)
				g.mu.Lock()
				g.errs = multierror.Append(g.errs, fmt.Errorf("%s: %w", name, err))
				g.mu.Unlock()
			} else {
				g.log.Info("Task completed", "task", name, "duration", time.Since(start))
			}
		}()
		return fn()
	})
}

// Wait blocks until every started task returned, and returns all their failures.
func (g *Group) Wait() error {
	_ = g.group.Wait()
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.errs.ErrorOrNil()
}
