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

package scheduler

import (
	"sync"
	"time"

	"github.com/mutanet/mutanet/internal/configuration"
	"github.com/mutanet/mutanet/internal/mutant"
)

// DefaultTimeoutCoefficient is the default multiplier applied to a test's
// observed duration to get its dispatch timeout.
const DefaultTimeoutCoefficient = 1.5

// DefaultTimeoutFloor is the minimum timeout dispatch ever applies,
// regardless of how fast a test ran during the coverage pass.
const DefaultTimeoutFloor = 5 * time.Second

// Timeout keeps an adaptive, concurrency-safe average test duration per
// test id, the same "adaptive package timeout" idea applied per test
// instead of per package, since dispatch runs a single test (or a small
// batch of them) at a time rather than a whole package.
type Timeout struct {
	m           sync.RWMutex
	tests       map[mutant.TestID]time.Duration
	coefficient float64
	floor       time.Duration
}

// NewTimeout instantiates a Timeout, reading its coefficient from
// configuration.UnleashTimeoutCoefficientKey when set.
func NewTimeout() *Timeout {
	coefficient := DefaultTimeoutCoefficient
	c := configuration.Get[float64](configuration.UnleashTimeoutCoefficientKey)
	if c == 0 {
		c = float64(configuration.Get[int](configuration.UnleashTimeoutCoefficientKey))
	}
	if c != 0 {
		coefficient = c
	}

	return &Timeout{
		tests:       make(map[mutant.TestID]time.Duration),
		coefficient: coefficient,
		floor:       DefaultTimeoutFloor,
	}
}

// Observe records that test took duration to run during the coverage
// pass, and returns the timeout that should be applied to it during
// dispatch: the coefficient-scaled, running average of its observed
// durations, floored at DefaultTimeoutFloor.
func (t *Timeout) Observe(test mutant.TestID, duration time.Duration) time.Duration {
	t.m.Lock()
	defer t.m.Unlock()

	d := time.Duration(float64(duration) * t.coefficient)
	if prev, ok := t.tests[test]; ok {
		d = (d + prev) / 2
	}
	t.tests[test] = d

	return t.clamp(d)
}

// Of returns the current timeout for test, or the floor if it was never
// observed.
func (t *Timeout) Of(test mutant.TestID) time.Duration {
	t.m.RLock()
	defer t.m.RUnlock()
	d, ok := t.tests[test]
	if !ok {
		return t.floor
	}

	return t.clamp(d)
}

func (t *Timeout) clamp(d time.Duration) time.Duration {
	if d < t.floor {
		return t.floor
	}

	return d
}
