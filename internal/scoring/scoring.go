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

// Package scoring computes a session's mutation score and coverage, and
// compares them against the configured thresholds.
package scoring

import (
	"github.com/mutanet/mutanet/internal/configuration"
	"github.com/mutanet/mutanet/internal/execution"
	"github.com/mutanet/mutanet/internal/mutant"
)

// Tally counts every mutant.Status observed in a session.
type Tally struct {
	Killed       int
	Survived     int
	TimedOut     int
	NotCovered   int
	CompileError int
	Ignored      int
}

// Add records one mutant's status in the Tally.
func (t *Tally) Add(s mutant.Status) {
	switch s {
	case mutant.Killed:
		t.Killed++
	case mutant.Survived:
		t.Survived++
	case mutant.Timeout:
		t.TimedOut++
	case mutant.NoCoverage:
		t.NotCovered++
	case mutant.CompileError:
		t.CompileError++
	case mutant.Ignored:
		t.Ignored++
	}
}

// FromMutants builds a Tally from a set of mutants.
func FromMutants(mutants []*mutant.Mutant) Tally {
	var t Tally
	for _, m := range mutants {
		t.Add(m.Status())
	}

	return t
}

// Score is the session's mutation score (the fraction of testable
// mutants a test suite killed) and mutant coverage (the fraction of
// non-excluded mutants any test reached at all).
type Score struct {
	Efficacy float64
	Coverage float64
	// Undefined is set when there are no killed-or-survived-or-timed-out
	// mutants to divide by: every mutant ended up Ignored, CompileError,
	// or NoCoverage. Efficacy is meaningless in that case (mathematically
	// 0/0, reported as 0 only because float64 has no ratio-less value),
	// and Assess must treat it as neither passing nor failing any
	// configured threshold.
	Undefined bool
}

// Compute derives a Score from t, excluding Ignored and CompileError
// mutants from both ratios. A session with no killed-or-survived-or-
// timed-out mutants has no testable outcome at all: Efficacy is reported
// as 0 but Undefined is set, so Assess can tell "no mutants were
// testable" apart from "every testable mutant survived".
func Compute(t Tally) Score {
	killedOrSurvived := t.Killed + t.Survived + t.TimedOut
	var efficacy float64
	if killedOrSurvived > 0 {
		efficacy = float64(t.Killed+t.TimedOut) / float64(killedOrSurvived) * 100
	}

	testable := t.Killed + t.Survived + t.TimedOut + t.NotCovered
	var coverage float64
	if testable > 0 {
		coverage = float64(killedOrSurvived) / float64(testable) * 100
	}

	return Score{Efficacy: efficacy, Coverage: coverage, Undefined: killedOrSurvived == 0}
}

// Assess compares s against the configured thresholds, returning an
// execution.ExitError when either is violated. A dry run never fails the
// thresholds, since it never dispatches mutants to be killed, and neither
// does a run whose score is Undefined: there is nothing a threshold can
// meaningfully judge when no mutant was ever testable.
func Assess(s Score) error {
	if configuration.Get[bool](configuration.UnleashDryRunKey) {
		return nil
	}
	if s.Undefined {
		return nil
	}

	et := thresholdFloat(configuration.UnleashThresholdEfficacyKey)
	if et > 0 && s.Efficacy < et {
		return execution.NewExitErr(execution.EfficacyThreshold)
	}

	ct := thresholdFloat(configuration.UnleashThresholdMCoverageKey)
	if ct > 0 && s.Coverage < ct {
		return execution.NewExitErr(execution.MutantCoverageThreshold)
	}

	return nil
}

func thresholdFloat(key string) float64 {
	if v := configuration.Get[float64](key); v != 0 {
		return v
	}

	return float64(configuration.Get[int](key))
}
