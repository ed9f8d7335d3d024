package tomed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ModuleRunner runs a module within the supervisor.
type ModuleRunner struct {
	Name string
	Run  func(ctx context.Context) error
}

// Supervisor manages module lifecycles.
type Supervisor struct {
	Logger *zap.Logger
}

// Run starts every module and blocks until they all stop. A module
// failure cancels its siblings; the joined failures become the return
// value. Clean context cancellation is not an error.
func (s Supervisor) Run(ctx context.Context, modules []ModuleRunner) error {
	if len(modules) == 0 {
		return errors.New("no modules enabled")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, module := range modules {
		m := module
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.runOne(ctx, m); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				cancel()
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (s Supervisor) runOne(ctx context.Context, m ModuleRunner) error {
	logger := s.Logger.With(zap.String("module", m.Name))
	logger.Info("starting module")
	err := m.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("module exited", zap.Error(err))
		return fmt.Errorf("%s: %w", m.Name, err)
	}
	logger.Info("module stopped")
	return nil
}
