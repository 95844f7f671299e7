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

package coverage_test

import (
	"strings"
	"testing"

	"github.com/mutanet/mutanet/internal/coverage"
	"github.com/mutanet/mutanet/internal/mutant"
)

func TestMatrix_ParseHitLog(t *testing.T) {
	log := "t\tTestFoo\t1\nt\tTestBar\t1\ns\t\t2\n"
	m := coverage.NewMatrix()
	if err := m.ParseHitLog(strings.NewReader(log)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := m.CoveringTests(1)
	if len(tests) != 2 {
		t.Fatalf("expected 2 covering tests for mutant 1, got %d", len(tests))
	}
	if !m.HasCoverage(1) {
		t.Fatal("expected mutant 1 to have coverage")
	}
	if !m.IsStatic(2) {
		t.Fatal("expected mutant 2 to be static")
	}
	if m.HasCoverage(3) {
		t.Fatal("expected mutant 3 to have no coverage")
	}
	_ = mutant.ID(0)
}
