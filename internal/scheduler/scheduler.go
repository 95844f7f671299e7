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

// Package scheduler runs the two-phase dispatch the compiled, instrumented
// module is put through: a single coverage pass that finds which test
// hits which mutant, followed by one dispatch invocation per live mutant,
// scoped to only the tests that actually cover it.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mutanet/mutanet/internal/collector"
	"github.com/mutanet/mutanet/internal/coverage"
	"github.com/mutanet/mutanet/internal/log"
	"github.com/mutanet/mutanet/internal/mutant"
	"github.com/mutanet/mutanet/internal/testplatform"
)

// Scheduler drives the coverage pass and the per-mutant dispatch against
// one instrumented module copy.
type Scheduler struct {
	platform testplatform.Adapter
	timeout  *Timeout
}

// New builds a Scheduler around the given test-platform adapter.
func New(platform testplatform.Adapter) *Scheduler {
	return &Scheduler{platform: platform, timeout: NewTimeout()}
}

// CoverageRun executes the instrumented binary once with no mutant active,
// recording every mutant id each test hits. It returns the resulting
// coverage.Matrix, seeding Timeout's per-test averages from the observed
// event durations as it goes.
func (s *Scheduler) CoverageRun(ctx context.Context, workDir, pkg string) (*coverage.Matrix, error) {
	hitLog := filepath.Join(workDir, "mutanet-hits.log")

	settings := collector.Settings{ActiveMutantID: -1, HitLogPath: hitLog}
	outcome, err := s.platform.Run(ctx, workDir, pkg, nil, settings, 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("coverage run failed: %w", err)
	}
	if outcome.Verdict == testplatform.SetupFailed {
		return nil, fmt.Errorf("coverage run could not build or run the test binary")
	}

	for _, ev := range outcome.Events {
		if ev.Test == "" || ev.Elapsed <= 0 {
			continue
		}
		s.timeout.Observe(mutant.TestID(ev.Test), time.Duration(ev.Elapsed*float64(time.Second)))
	}

	f, err := os.Open(hitLog)
	if err != nil {
		return nil, fmt.Errorf("failed to open hit log: %w", err)
	}
	defer func() { _ = f.Close() }()

	matrix := coverage.NewMatrix()
	if err := matrix.ParseHitLog(f); err != nil {
		return nil, fmt.Errorf("failed to parse hit log: %w", err)
	}

	return matrix, nil
}

// Dispatch runs every mutant in mutants against its covering tests (or the
// full test list, for a statically-covered mutant), marking its Status as
// it resolves. Mutants the coverage run never reached are marked
// NoCoverage without spending a dispatch invocation on them. Up to
// concurrency dispatch invocations run at once (0 defaults to
// runtime.NumCPU()), mirroring the teacher's worker-pool accounting but
// built on golang.org/x/sync/errgroup's limited group instead of a
// dedicated pool, since dispatch has no long-lived workers to name or
// inspect the way internal/workerpool's consumers do.
func (s *Scheduler) Dispatch(ctx context.Context, workDir, pkg string, mutants []*mutant.Mutant, matrix *coverage.Matrix, concurrency int) error {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, m := range mutants {
		m := m
		id := m.ID()
		if !matrix.IsStatic(id) && !matrix.HasCoverage(id) {
			m.SetStatus(mutant.NoCoverage, "no test exercised this mutant's site")
			continue
		}

		g.Go(func() error {
			(&mutantExecutor{
				scheduler: s,
				ctx:       gCtx,
				workDir:   workDir,
				pkg:       pkg,
				mutant:    m,
				matrix:    matrix,
			}).run()

			return nil
		})
	}

	return g.Wait()
}

type mutantExecutor struct {
	scheduler *Scheduler
	ctx       context.Context
	workDir   string
	pkg       string
	mutant    *mutant.Mutant
	matrix    *coverage.Matrix
}

func (e *mutantExecutor) run() {
	id := e.mutant.ID()
	names := testIDsToStrings(e.matrix.CoveringTests(id))

	timeout := e.scheduler.timeout.Of("")
	for _, n := range e.matrix.CoveringTests(id) {
		if t := e.scheduler.timeout.Of(n); t > timeout {
			timeout = t
		}
	}

	runID := uuid.New()
	settings := collector.Settings{ActiveMutantID: int(id)}

	var scopedNames []string
	if !e.matrix.IsStatic(id) {
		scopedNames = names
	}

	outcome, err := e.scheduler.platform.Run(e.ctx, e.workDir, e.pkg, scopedNames, settings, timeout)
	if err != nil {
		log.Errorf("dispatch %s for mutant %d failed: %v\n", runID, id, err)
		e.mutant.SetStatus(mutant.Survived, "dispatch invocation failed to run")

		return
	}

	switch outcome.Verdict {
	case testplatform.Fail:
		e.mutant.SetStatus(mutant.Killed, "")
		for _, t := range outcome.FailedTests {
			e.mutant.AddKillingTest(mutant.TestID(t))
		}
	case testplatform.TimedOut:
		e.mutant.SetStatus(mutant.Timeout, "")
	case testplatform.SetupFailed:
		e.mutant.SetStatus(mutant.Survived, "dispatch invocation could not build or run")
	default:
		e.mutant.SetStatus(mutant.Survived, "")
	}
}

func testIDsToStrings(ids []mutant.TestID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}

	return out
}
