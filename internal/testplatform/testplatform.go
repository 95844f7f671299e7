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

// Package testplatform is this module's test-platform adapter: the
// Go-native stand-in for a VSTest-like runner. `go test` is the only
// platform a go.mod-rooted module can have, so unlike a multi-framework
// host there is no detection step - Adapter always shells out to the go
// tool, in -json mode so results can be parsed per test instead of only by
// process exit code.
package testplatform

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mutanet/mutanet/internal/collector"
	"github.com/mutanet/mutanet/internal/gomodule"
	"github.com/mutanet/mutanet/internal/mutant"
)

// execContext matches exec.CommandContext's signature, overridable in
// tests.
type execContext = func(ctx context.Context, name string, args ...string) *exec.Cmd

// Verdict is the observed outcome of one dispatch invocation.
type Verdict int

// The verdicts a dispatch invocation can report.
const (
	// Pass means every requested test passed: for a mutant dispatch, the
	// mutant survived.
	Pass Verdict = iota
	// Fail means at least one requested test failed: for a mutant
	// dispatch, the mutant was killed.
	Fail
	// TimedOut means the invocation exceeded its deadline.
	TimedOut
	// SetupFailed means the test binary itself could not run (exit code
	// 2), distinct from a normal test failure.
	SetupFailed
)

// Event mirrors the subset of test2json's event shape this adapter reads.
// See `go help test2json`.
type Event struct {
	Action  string  `json:"Action"`
	Test    string  `json:"Test"`
	Elapsed float64 `json:"Elapsed"`
}

// Outcome is the result of one Adapter.Run call.
type Outcome struct {
	Verdict Verdict
	Events  []Event
	// FailedTests lists the tests whose "fail" event was observed.
	FailedTests []string
}

// Adapter runs `go test -json` against one package of the instrumented
// module, optionally scoped to a set of test names.
type Adapter struct {
	execContext execContext
	module      gomodule.GoModule
	buildTags   string
	testCPU     int
}

// New builds an Adapter using exec.CommandContext.
func New(mod gomodule.GoModule, buildTags string, testCPU int) Adapter {
	return Adapter{execContext: exec.CommandContext, module: mod, buildTags: buildTags, testCPU: testCPU}
}

// WithExecContext overrides the Adapter's process launcher, for tests.
func (a Adapter) WithExecContext(c execContext) Adapter {
	a.execContext = c

	return a
}

// Run invokes `go test -json` in workDir, scoped to pkg (a Go import
// path, or "./..." for the whole module), running only the named tests
// when names is non-empty. settings is marshalled into the
// MUTANET_COLLECTOR_SETTINGS environment variable so the instrumented
// binary's internal/collector package picks it up.
func (a Adapter) Run(ctx context.Context, workDir, pkg string, names []string, settings collector.Settings, timeout time.Duration) (Outcome, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := a.args(pkg, names, timeout)
	cmd := a.execContext(runCtx, "go", args...)
	cmd.Dir = workDir
	setupProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }

	env, err := settingsEnv(settings)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to encode collector settings: %w", err)
	}
	cmd.Env = append(cmd.Env, env...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Outcome{}, err
	}

	if err := cmd.Start(); err != nil {
		return Outcome{}, err
	}

	events, failed := parseEvents(stdout)
	waitErr := cmd.Wait()

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return Outcome{Verdict: TimedOut, Events: events, FailedTests: failed}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		switch exitErr.ExitCode() {
		case 1:
			return Outcome{Verdict: Fail, Events: events, FailedTests: failed}, nil
		default:
			return Outcome{Verdict: SetupFailed, Events: events, FailedTests: failed}, nil
		}
	}
	if waitErr != nil {
		return Outcome{}, waitErr
	}

	return Outcome{Verdict: Pass, Events: events}, nil
}

func (a Adapter) args(pkg string, names []string, timeout time.Duration) []string {
	args := []string{"test", "-json"}
	if a.buildTags != "" {
		args = append(args, "-tags", a.buildTags)
	}
	args = append(args, "-timeout", (timeout + 2*time.Second).String())
	args = append(args, "-failfast")
	if a.testCPU != 0 {
		args = append(args, "-cpu", fmt.Sprintf("%d", a.testCPU))
	}
	if len(names) > 0 {
		args = append(args, "-run", "^("+strings.Join(names, "|")+")$")
	}
	args = append(args, filepath.ToSlash(pkg))

	return args
}

func settingsEnv(s collector.Settings) ([]string, error) {
	raw, err := yaml.Marshal(s)
	if err != nil {
		return nil, err
	}

	return []string{collector.SettingsEnvVar + "=" + string(raw)}, nil
}

func parseEvents(r io.Reader) ([]Event, []string) {
	var events []Event
	var failed []string
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		events = append(events, ev)
		if ev.Action == "fail" && ev.Test != "" {
			failed = append(failed, ev.Test)
		}
	}

	return events, failed
}

// Discover lists the test ids in pkg, so the coverage run knows which
// tests it is attributing hits to. Grounded on `go test -list`.
func (a Adapter) Discover(ctx context.Context, workDir, pkg string) ([]mutant.TestID, error) {
	cmd := a.execContext(ctx, "go", "test", "-list", ".*", pkg)
	cmd.Dir = workDir
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	var ids []mutant.TestID
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "Test") {
			continue
		}
		ids = append(ids, mutant.TestID(line))
	}

	return ids, nil
}
