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

// Package collector is linked into the instrumented test binary itself. It
// is the one package every placed mutation site calls into, and it plays
// two different roles depending on how the harness invokes the test
// binary:
//
//   - during the coverage run, no mutant is "active"; every Pick call
//     records which test currently executing hit which mutant id, building
//     the coverage matrix the scheduler needs;
//   - during dispatch, exactly one mutant id is active (read from the
//     MUTANET_COLLECTOR_SETTINGS environment payload); Pick evaluates the
//     mutated branch only for that id, so the test binary behaves as if
//     only a single mutant existed.
package collector

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// SettingsEnvVar is the environment variable the harness uses to pass this
// run's configuration into the instrumented test binary.
const SettingsEnvVar = "MUTANET_COLLECTOR_SETTINGS"

// Settings is the payload decoded from SettingsEnvVar.
type Settings struct {
	// ActiveMutantID is the mutant under test for this invocation, or -1
	// during the coverage run when no mutant should be activated.
	ActiveMutantID int `yaml:"activeMutantId"`
	// HitLogPath is where Hit/HitStatic records are appended during the
	// coverage run. Empty when not in coverage mode.
	HitLogPath string `yaml:"hitLogPath"`
}

var (
	mu       sync.Mutex
	settings Settings
	loaded   bool
	logger   *zap.Logger
	hitFile  *os.File

	currentTest string
)

func load() {
	mu.Lock()
	defer mu.Unlock()
	if loaded {
		return
	}
	loaded = true
	settings = Settings{ActiveMutantID: -1}

	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	logger = l

	raw := os.Getenv(SettingsEnvVar)
	if raw == "" {
		return
	}
	if err := yaml.Unmarshal([]byte(raw), &settings); err != nil {
		logger.Warn("failed to decode collector settings", zap.Error(err))
		return
	}
	if settings.HitLogPath != "" {
		f, err := os.OpenFile(settings.HitLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			logger.Warn("failed to open hit log", zap.Error(err))
			return
		}
		hitFile = f
	}
}

// Active reports whether id is the mutant this process invocation is
// dispatching against.
func Active(id int) bool {
	load()
	mu.Lock()
	defer mu.Unlock()

	return settings.ActiveMutantID == id
}

// Pick returns mutated when id is Active, original otherwise. It always
// records a Hit first, so coverage-run invocations observe every site a
// test exercises regardless of whether any mutant is active.
func Pick[T any](id int, original, mutated T) T {
	Hit(id)
	if Active(id) {
		return mutated
	}

	return original
}

// PickStatic behaves like Pick but marks the hit as coming from a
// package-level initializer, which the coverage matrix treats specially:
// a mutant only ever hit statically must be dispatched against the full
// test list, since no single test "covers" package initialisation.
func PickStatic[T any](id int, original, mutated T) T {
	HitStatic(id)
	if Active(id) {
		return mutated
	}

	return original
}

// Hit records that mutant id's site executed under the current test.
func Hit(id int) {
	load()
	if hitFile == nil {
		return
	}
	mu.Lock()
	test := currentTest
	mu.Unlock()
	writeHit(id, test, false)
}

// HitStatic records that mutant id's site executed from a package-level
// initializer, outside of any test.
func HitStatic(id int) {
	load()
	if hitFile == nil {
		return
	}
	writeHit(id, "", true)
}

func writeHit(id int, test string, static bool) {
	mu.Lock()
	defer mu.Unlock()
	if hitFile == nil {
		return
	}
	kind := "t"
	if static {
		kind = "s"
	}
	_, _ = hitFile.WriteString(kind + "\t" + test + "\t" + itoa(id) + "\n")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}

	return string(buf[i:])
}

// Begin marks test as the currently executing test, for attribution of
// any Hit calls that happen before it completes. It returns a function
// that restores the previously current test; the instrumented test passes
// it to t.Cleanup, which runs in leaf-to-root order, so subtests restore
// their parent's marker when they finish.
//
// Coverage-run binaries must run with -p 1 -parallel 1: Begin's notion of
// "current test" is process-wide, not goroutine-local, matching the
// one-pass serial coverage run this package is built for.
func Begin(name string) func() {
	load()
	mu.Lock()
	prev := currentTest
	currentTest = name
	mu.Unlock()

	return func() {
		mu.Lock()
		currentTest = prev
		mu.Unlock()
	}
}

// Close flushes and releases any resources the collector opened. The
// test instrumentation does not inject a call to it; the hit log is
// written unbuffered, so each record is on disk once Hit returns.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if hitFile != nil {
		_ = hitFile.Close()
		hitFile = nil
	}
	if logger != nil {
		_ = logger.Sync()
	}
}
