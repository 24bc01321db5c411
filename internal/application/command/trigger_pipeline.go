package command

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/academic-risk-hub/internal/domain/shared"
	"github.com/alem-hub/academic-risk-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRIGGER PIPELINE
// Запускает прогон в фоне и сразу отвечает. Пока прогон идёт, новые
// запуски отклоняются.
// ══════════════════════════════════════════════════════════════════════════════

// PipelineRunner выполняет прогон.
type PipelineRunner interface {
	Handle(ctx context.Context, cmd RunPipelineCommand) (*PipelineSummary, error)
}

// TriggerStatus - ответ на запуск.
type TriggerStatus string

const (
	TriggerProcessing     TriggerStatus = "processing"
	TriggerAlreadyRunning TriggerStatus = "already_running"
)

// TriggerAck - немедленный ответ на запуск.
type TriggerAck struct {
	Status  TriggerStatus `json:"status"`
	RunID   string        `json:"run_id,omitempty"`
	Message string        `json:"message"`
}

// TriggerPipelineHandler запускает прогоны без перекрытия.
type TriggerPipelineHandler struct {
	runner  PipelineRunner
	timeout time.Duration
	log     *logger.Logger

	running atomic.Bool
	wg      sync.WaitGroup

	// startMu упорядочивает wg.Add в Trigger и wg.Wait в Shutdown.
	startMu  sync.Mutex
	stopped  bool
	stopping chan struct{}

	mu      sync.RWMutex
	last    *PipelineSummary
	lastErr error
}

// NewTriggerPipelineHandler создаёт обработчик. timeout ограничивает один прогон.
func NewTriggerPipelineHandler(runner PipelineRunner, timeout time.Duration, log *logger.Logger) *TriggerPipelineHandler {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	return &TriggerPipelineHandler{
		runner:   runner,
		timeout:  timeout,
		log:      log.With(logger.Component("pipeline_trigger")),
		stopping: make(chan struct{}),
	}
}

// Trigger запускает прогон в фоне. Если прогон уже идёт, возвращает
// TriggerAlreadyRunning и ErrPipelineAlreadyRunning. После Shutdown
// возвращает ErrPipelineStopped.
func (h *TriggerPipelineHandler) Trigger() (TriggerAck, error) {
	h.startMu.Lock()
	defer h.startMu.Unlock()

	if h.stopped {
		return TriggerAck{}, shared.ErrPipelineStopped
	}
	if !h.running.CompareAndSwap(false, true) {
		return TriggerAck{
			Status:  TriggerAlreadyRunning,
			Message: "Ya hay una generación de recomendaciones en curso",
		}, shared.ErrPipelineAlreadyRunning
	}

	runID := uuid.NewString()
	h.wg.Add(1)
	go h.run(runID)

	return TriggerAck{
		Status:  TriggerProcessing,
		RunID:   runID,
		Message: "Generación de recomendaciones iniciada en segundo plano",
	}, nil
}

// Run выполняет прогон синхронно, если другой не идёт. Используется планировщиком.
func (h *TriggerPipelineHandler) Run(ctx context.Context) (*PipelineSummary, error) {
	h.startMu.Lock()
	if h.stopped {
		h.startMu.Unlock()
		return nil, shared.ErrPipelineStopped
	}
	if !h.running.CompareAndSwap(false, true) {
		h.startMu.Unlock()
		return nil, shared.ErrPipelineAlreadyRunning
	}
	h.wg.Add(1)
	h.startMu.Unlock()

	defer h.wg.Done()
	defer h.running.Store(false)
	return h.execute(ctx, uuid.NewString())
}

func (h *TriggerPipelineHandler) run(runID string) {
	defer h.wg.Done()
	defer h.running.Store(false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-h.stopping:
			cancel()
		case <-ctx.Done():
		}
	}()

	if _, err := h.execute(ctx, runID); err != nil {
		h.log.Error("background pipeline failed", logger.RunID(runID), logger.Err(err))
	}
}

func (h *TriggerPipelineHandler) execute(ctx context.Context, runID string) (*PipelineSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	summary, err := h.runner.Handle(ctx, RunPipelineCommand{RunID: runID})

	h.mu.Lock()
	h.last, h.lastErr = summary, err
	h.mu.Unlock()
	return summary, err
}

// Running сообщает, идёт ли прогон.
func (h *TriggerPipelineHandler) Running() bool {
	return h.running.Load()
}

// Last возвращает итог последнего завершённого прогона.
func (h *TriggerPipelineHandler) Last() (*PipelineSummary, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last, h.lastErr
}

// Shutdown отменяет фоновый прогон и ждёт его завершения. Новые прогоны
// после этого не запускаются.
func (h *TriggerPipelineHandler) Shutdown(ctx context.Context) error {
	h.startMu.Lock()
	if !h.stopped {
		h.stopped = true
		close(h.stopping)
	}
	h.startMu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
