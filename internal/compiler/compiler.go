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

// Package compiler runs the compile/rollback loop: it renders every
// instrumented file, asks internal/gofrontend to build the tree, and, on
// failure, strips out whichever placements the build blamed until the
// tree compiles clean or no further attribution is possible.
package compiler

import (
	"fmt"
	"go/ast"
	"go/token"
	"strings"

	"github.com/mutanet/mutanet/internal/gofrontend"
	"github.com/mutanet/mutanet/internal/mutant"
	"github.com/mutanet/mutanet/internal/placer"
)

// Unrecoverable is returned when a build failure cannot be attributed to
// any live placement: the tree is broken for a reason the loop cannot
// fix by reverting mutations.
type Unrecoverable struct {
	Diagnostics []gofrontend.Diagnostic
}

func (e *Unrecoverable) Error() string {
	return fmt.Sprintf("build failed with %d diagnostic(s) not attributable to any placement", len(e.Diagnostics))
}

// Loop owns one compile/rollback pass over a workdir-provisioned module
// copy.
type Loop struct {
	compiler gofrontend.Compiler
}

// New builds a Loop around the given Compiler.
func New(c gofrontend.Compiler) Loop {
	return Loop{compiler: c}
}

// Run renders files into dir, builds, and on failure reverts whichever
// placements the build blames, repeating until the tree compiles or a
// failure can't be attributed. mutants receives a CompileError status for
// every placement reverted this way. It returns Unrecoverable if a
// diagnostic never maps to a live placement.
func (l Loop) Run(fset *token.FileSet, files map[string]*ast.File, placements []*placer.Placement, mutants map[mutant.ID]*mutant.Mutant, dir string) error {
	live := make([]*placer.Placement, len(placements))
	copy(live, placements)

	maxIterations := len(placements) + 1
	for i := 0; i < maxIterations; i++ {
		if err := render(fset, files, dir); err != nil {
			return fmt.Errorf("failed to render instrumented tree: %w", err)
		}

		diags, err := l.compiler.Compile(dir)
		if err == nil {
			return nil
		}
		if len(diags) == 0 {
			return &Unrecoverable{Diagnostics: diags}
		}

		offending := attribute(fset, live, diags)
		if len(offending) == 0 {
			return &Unrecoverable{Diagnostics: diags}
		}

		for _, p := range offending {
			p.Revert()
			if m, ok := mutants[p.ID]; ok {
				m.SetStatus(mutant.CompileError, "placement caused a build failure")
			}
			live = without(live, p)
		}
	}

	return &Unrecoverable{}
}

// attribute maps each diagnostic to the smallest enclosing live
// placement, deduplicating placements blamed by more than one
// diagnostic.
func attribute(fset *token.FileSet, live []*placer.Placement, diags []gofrontend.Diagnostic) []*placer.Placement {
	seen := make(map[mutant.ID]bool)
	var offending []*placer.Placement
	for _, d := range diags {
		p := find(fset, live, d)
		if p == nil || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		offending = append(offending, p)
	}

	return offending
}

func find(fset *token.FileSet, live []*placer.Placement, d gofrontend.Diagnostic) *placer.Placement {
	var best *placer.Placement
	bestSpan := -1

	for _, p := range live {
		start := fset.Position(p.Mutation.OriginalNode.Pos())
		end := fset.Position(p.Mutation.OriginalNode.End())
		if !sameFile(start.Filename, d.File) {
			continue
		}
		if d.Line < start.Line || d.Line > end.Line {
			continue
		}
		span := end.Line - start.Line
		if best == nil || span < bestSpan {
			best, bestSpan = p, span
		}
	}

	return best
}

func sameFile(a, b string) bool {
	return strings.HasSuffix(a, b) || strings.HasSuffix(b, a)
}

func without(placements []*placer.Placement, target *placer.Placement) []*placer.Placement {
	out := make([]*placer.Placement, 0, len(placements))
	for _, p := range placements {
		if p != target {
			out = append(out, p)
		}
	}

	return out
}

// render writes every file to its own key in files, which must already be
// an absolute path inside dir.
func render(fset *token.FileSet, files map[string]*ast.File, _ string) error {
	for path, file := range files {
		src, err := gofrontend.Render(fset, file)
		if err != nil {
			return fmt.Errorf("failed to render %s: %w", path, err)
		}
		if err := gofrontend.WriteFile(path, src); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}

	return nil
}
