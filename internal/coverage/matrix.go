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

package coverage

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/mutanet/mutanet/internal/mutant"
)

// Matrix maps a mutant id to the tests observed exercising its site during
// the coverage run, plus whether the site was ever hit from a package-level
// initializer instead of a test body. It is the input the scheduler's
// dispatch phase reads to decide, per mutant, which tests to run.
type Matrix struct {
	covering map[mutant.ID]map[mutant.TestID]struct{}
	static   map[mutant.ID]bool
}

// NewMatrix returns an empty Matrix, ready for Record calls.
func NewMatrix() *Matrix {
	return &Matrix{
		covering: make(map[mutant.ID]map[mutant.TestID]struct{}),
		static:   make(map[mutant.ID]bool),
	}
}

// Record adds test as a covering test of id. When static is true, id is
// marked statically covered instead and test is not recorded.
func (m *Matrix) Record(id mutant.ID, test mutant.TestID, static bool) {
	if static {
		m.static[id] = true

		return
	}
	set, ok := m.covering[id]
	if !ok {
		set = make(map[mutant.TestID]struct{})
		m.covering[id] = set
	}
	set[test] = struct{}{}
}

// CoveringTests returns the tests recorded against id, in no particular
// order.
func (m *Matrix) CoveringTests(id mutant.ID) []mutant.TestID {
	set, ok := m.covering[id]
	if !ok {
		return nil
	}
	out := make([]mutant.TestID, 0, len(set))
	for t := range set {
		out = append(out, t)
	}

	return out
}

// IsStatic reports whether id was ever hit from a package-level
// initializer.
func (m *Matrix) IsStatic(id mutant.ID) bool {
	return m.static[id]
}

// HasCoverage reports whether id was observed at all, whether from a test
// or statically.
func (m *Matrix) HasCoverage(id mutant.ID) bool {
	if m.static[id] {
		return true
	}

	return len(m.covering[id]) > 0
}

// ParseHitLog reads the newline-delimited hit records a collector-linked
// test binary appends during the coverage run (see
// internal/collector.Hit/HitStatic) and folds them into m.
//
// Each line has the form "<kind>\t<test>\t<id>", where kind is "t" for a
// test-attributed hit or "s" for a static one.
func (m *Matrix) ParseHitLog(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 3)
		if len(fields) != 3 {
			continue
		}
		id, err := strconv.Atoi(fields[2])
		if err != nil {
			continue
		}
		if fields[0] == "s" {
			m.Record(mutant.ID(id), "", true)

			continue
		}
		m.Record(mutant.ID(id), mutant.TestID(fields[1]), false)
	}

	return scanner.Err()
}
