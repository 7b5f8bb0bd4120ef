package services

import (
	"context"
	"sync"
	"time"

	"relay-chat/pkg/logger"

	"go.uber.org/zap"
)

// RepairWorker runs IndexRepairer.ReconcileAll on a fixed interval.
type RepairWorker struct {
	repairer *IndexRepairer
	interval time.Duration
	log      *logger.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	passes   chan RepairReport
}

func NewRepairWorker(repairer *IndexRepairer, interval time.Duration, log *logger.Logger) *RepairWorker {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &RepairWorker{
		repairer: repairer,
		interval: interval,
		log:      log,
		stopChan: make(chan struct{}),
		passes:   make(chan RepairReport, 1),
	}
}

// Start begins the worker loop
func (w *RepairWorker) Start() {
	w.wg.Add(1)
	go w.run()
}

// Stop waits for an in-flight pass to finish
func (w *RepairWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
}

// Passes receives the report of the latest completed pass. Older reports are
// dropped when nobody reads them.
func (w *RepairWorker) Passes() <-chan RepairReport {
	return w.passes
}

func (w *RepairWorker) run() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.pass()
		}
	}
}

func (w *RepairWorker) pass() {
	ctx, cancel := context.WithTimeout(context.Background(), w.interval)
	defer cancel()
	go func() {
		select {
		case <-w.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	report, err := w.repairer.ReconcileAll(ctx)
	if err != nil {
		w.log.Logger.Warn("scheduled index repair incomplete", zap.Error(err))
	}
	select {
	case <-w.passes:
	default:
	}
	w.passes <- report
}
