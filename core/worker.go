package core

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smarty/jarsmith/contracts"
)

type TaskFunc func(ctx context.Context, progress contracts.ProgressSink) error

// Task is one background invocation. Wait blocks until it has finished.
type Task struct {
	ID         string
	Name       string
	InstanceID string

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func (this *Task) Wait() error {
	<-this.done
	return this.err
}

func (this *Task) Cancel()               { this.cancel() }
func (this *Task) Done() <-chan struct{} { return this.done }

// Worker runs tasks on their own goroutines. Tasks for the same instance
// never overlap: each holds that instance's lock for its whole run.
type Worker struct {
	mutex  sync.Mutex
	locks  map[string]chan struct{}
	sink   contracts.ProgressSink
	logger *log.Logger
}

func NewWorker(sink contracts.ProgressSink) *Worker {
	if sink == nil {
		sink = nopProgress{}
	}
	return &Worker{locks: make(map[string]chan struct{}), sink: sink, logger: log.Default()}
}

func (this *Worker) Submit(ctx context.Context, instanceID, name string, work TaskFunc) *Task {
	ctx, cancel := context.WithCancel(ctx)
	task := &Task{
		ID:         uuid.NewString(),
		Name:       name,
		InstanceID: instanceID,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go this.run(ctx, task, work)
	return task
}

// Run submits work and waits for it.
func (this *Worker) Run(ctx context.Context, instanceID, name string, work TaskFunc) error {
	return this.Submit(ctx, instanceID, name, work).Wait()
}

func (this *Worker) run(ctx context.Context, task *Task, work TaskFunc) {
	defer close(task.done)
	defer task.cancel()

	started := time.Now()
	task.err = this.acquire(ctx, task.InstanceID)
	if task.err == nil {
		task.err = this.execute(ctx, task, work)
		this.release(task.InstanceID)
	}

	if task.err != nil {
		this.logger.Printf("[ERROR] task %s (%s on %s) failed: %s", task.ID, task.Name, task.InstanceID, task.err)
		this.sink.Report(100, contracts.UserMessage(task.err))
		return
	}
	this.logger.Printf("[INFO] task %s (%s on %s) finished in %s.",
		task.ID, task.Name, task.InstanceID, time.Since(started).Round(time.Millisecond))
}

func (this *Worker) execute(ctx context.Context, task *Task, work TaskFunc) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("task %s panicked: %v", task.Name, recovered)
		}
	}()
	this.logger.Printf("[INFO] task %s (%s on %s) started.", task.ID, task.Name, task.InstanceID)
	return work(ctx, this.sink)
}

func (this *Worker) acquire(ctx context.Context, instanceID string) error {
	lock := this.lockFor(instanceID)
	select {
	case lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return contracts.NewError(contracts.CanceledError, "wait for instance", instanceID, ctx.Err())
	}
}

func (this *Worker) release(instanceID string) {
	<-this.lockFor(instanceID)
}

func (this *Worker) lockFor(instanceID string) chan struct{} {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	lock, found := this.locks[instanceID]
	if !found {
		lock = make(chan struct{}, 1)
		this.locks[instanceID] = lock
	}
	return lock
}
