/*
 * Copyright 2022 The Gremlins Authors
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

// Package workerpool runs Executors across a fixed number of goroutines,
// sized from configuration so that the engine's per-file parsing and
// mutation phase never oversubscribes the machine.
package workerpool

import (
	"fmt"
	"runtime"

	"github.com/mutanet/mutanet/internal/configuration"
)

// Executor is one unit of work a Worker runs.
type Executor interface {
	Start(w *Worker)
}

// Worker pulls Executors off a shared queue until it is closed.
type Worker struct {
	Name string
	ID   int

	stopCh chan struct{}
}

// NewWorker creates a Worker with the given id and name.
func NewWorker(id int, name string) *Worker {
	return &Worker{Name: name, ID: id, stopCh: make(chan struct{})}
}

// Start launches the Worker's run loop, reading Executors from queue until
// it is closed or Stop is called.
func (w *Worker) Start(queue <-chan Executor) {
	go func() {
		for {
			select {
			case <-w.stopCh:
				return
			case executor, ok := <-queue:
				if !ok {
					return
				}
				executor.Start(w)
			}
		}
	}()
}

// Stop halts the Worker's run loop.
func (w *Worker) Stop() {
	close(w.stopCh)
}

// Pool is a fixed-size set of Workers sharing one Executor queue.
type Pool struct {
	name    string
	queue   chan Executor
	workers []*Worker
}

// Initialize sizes a Pool from configuration.UnleashWorkersKey, defaulting
// to runtime.NumCPU(). In integration mode, the worker count (explicit or
// defaulted) is halved, since each test run in integration mode exercises
// the whole suite and so is itself more resource-hungry.
func Initialize(name string) *Pool {
	n := configuration.Get[int](configuration.UnleashWorkersKey)
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if configuration.Get[bool](configuration.UnleashIntegrationMode) {
		n /= 2
	}
	if n < 1 {
		n = 1
	}

	workers := make([]*Worker, n)
	for i := 0; i < n; i++ {
		workers[i] = NewWorker(i, fmt.Sprintf("%s-%d", name, i))
	}

	return &Pool{
		name:    name,
		queue:   make(chan Executor),
		workers: workers,
	}
}

// Start launches every Worker in the Pool.
func (p *Pool) Start() {
	for _, w := range p.workers {
		w.Start(p.queue)
	}
}

// Stop halts every Worker and closes the shared queue.
func (p *Pool) Stop() {
	for _, w := range p.workers {
		w.Stop()
	}
}

// AppendExecutor enqueues e to be picked up by the next free Worker.
func (p *Pool) AppendExecutor(e Executor) {
	p.queue <- e
}

// ActiveWorkers reports how many Workers this Pool was sized to.
func (p *Pool) ActiveWorkers() int {
	return len(p.workers)
}
