package worker

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/foliobooks/folio/pkg/config"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

var ErrShutdown = errors.New("worker is shutting down")

// Task is a unit of background work. Run receives a context carrying a
// task-scoped logger.
type Task struct {
	Type string
	Key  string
	Run  func(ctx context.Context) error
}

// Worker runs tasks on a fixed set of processes fed by a bounded queue.
// When the queue is full, Enqueue starts the task on its own goroutine
// instead of making the caller wait.
type Worker struct {
	processes int
	log       logger.Logger

	mu       sync.RWMutex
	closed   bool
	overflow sync.WaitGroup

	queue          chan Task
	shutdown       chan struct{}
	doneProcessing chan struct{}
}

func New(cfg *config.Config) *Worker {
	processes := cfg.WorkerProcesses
	if processes < 1 {
		processes = 1
	}
	return &Worker{
		processes: processes,
		log:       logger.New(),

		queue:          make(chan Task, cfg.WorkerQueueSize),
		shutdown:       make(chan struct{}),
		doneProcessing: make(chan struct{}, processes),
	}
}

func (w *Worker) Start() {
	for i := 0; i < w.processes; i++ {
		go w.processTasks()
	}
}

// Enqueue schedules task and returns immediately.
func (w *Worker) Enqueue(task Task) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return errors.WithStack(ErrShutdown)
	}

	select {
	case w.queue <- task:
	default:
		w.overflow.Add(1)
		go func() {
			defer w.overflow.Done()
			w.run(task)
		}()
	}
	return nil
}

func (w *Worker) processTasks() {
	for {
		select {
		case <-w.shutdown:
			// Finish whatever was accepted before shutting down.
			for {
				select {
				case task := <-w.queue:
					w.run(task)
				default:
					w.doneProcessing <- struct{}{}
					return
				}
			}
		case task := <-w.queue:
			w.run(task)
		}
	}
}

func (w *Worker) run(task Task) {
	id, err := uuid.NewRandom()
	if err != nil {
		w.log.Err(err).Error("new uuid error")
		return
	}
	log := w.log.ID(id.String()).Root(logger.Data{"task_type": task.Type, "task_key": task.Key})
	ctx := log.WithContext(context.Background())

	defer func() {
		if r := recover(); r != nil {
			log.Error("task panicked", logger.Data{"panic": r, "stack": string(debug.Stack())})
		}
	}()

	if err := task.Run(ctx); err != nil {
		log.Err(err).Error("process error")
	}
}

// Shutdown stops accepting tasks and waits for every accepted task to
// finish.
func (w *Worker) Shutdown() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	close(w.shutdown)
	for i := 0; i < w.processes; i++ {
		<-w.doneProcessing
	}
	w.overflow.Wait()
}
