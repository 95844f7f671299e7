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

// Package engine is the orchestrator that walks a module's source tree,
// asks the mutator registry (internal/mutators) which sites it can mutate,
// and hands every accepted mutation to the placer (internal/placer) so it
// ends up behind a runtime switch in the returned, still in-memory, ASTs.
//
// It never touches a test binary or the go tool itself; that is
// internal/compiler's and internal/scheduler's job once the Result below is
// handed off.
package engine

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mutanet/mutanet/internal/diff"
	"github.com/mutanet/mutanet/internal/exclusion"
	"github.com/mutanet/mutanet/internal/gomodule"
	"github.com/mutanet/mutanet/internal/mutant"
	"github.com/mutanet/mutanet/internal/mutators"
	"github.com/mutanet/mutanet/internal/placer"
	"github.com/mutanet/mutanet/internal/workerpool"
)

// ignoreMarker is the comment a source line (or the statement on the line
// right below it) can carry to opt out of mutation entirely, the
// Go-idiomatic stand-in for an attribute-based exclusion mechanism.
const ignoreMarker = "mutanet:ignore"

var generatedFilePattern = regexp.MustCompile(`^// Code generated .* DO NOT EDIT\.$`)

// CodeData carries the cross-cutting filters applied while walking the
// tree: which lines were touched since a given ref, and which files are
// excluded outright.
type CodeData struct {
	Diff      diff.Diff
	Exclusion exclusion.Rules
}

// Result is everything the compiler/scheduler stages need: the parsed,
// already-mutated ASTs keyed by their absolute path under root, the
// FileSet they share, the Placements that can still be reverted, and the
// tracked Mutant for every accepted mutation (including the ones a
// placement strategy refused, recorded as Ignored).
type Result struct {
	FileSet    *token.FileSet
	Files      map[string]*ast.File
	Placements []*placer.Placement
	Mutants    []*mutant.Mutant
}

// Engine walks root (an on-disk copy of the module, typically provisioned
// by internal/workdir) and mutates every eligible, non-test .go file it
// finds.
type Engine struct {
	fs       fs.FS
	root     string
	module   gomodule.GoModule
	codeData CodeData
	level    mutant.Level
	nextID   int64
}

// New builds an Engine that will walk root, a directory containing a copy
// of mod, filtering and leveling mutations according to codeData and
// level.
func New(root string, mod gomodule.GoModule, codeData CodeData, level mutant.Level) Engine {
	return Engine{
		fs:       os.DirFS(root),
		root:     root,
		module:   mod,
		codeData: codeData,
		level:    level,
	}
}

// Run walks the tree to find every eligible, non-test .go file, then
// parses and mutates them concurrently across an internal/workerpool.Pool
// (file-level parsing and mutator discovery is CPU-bound and embarrassingly
// parallel across files, unlike the scheduler's dispatch phase which is
// bound by how many test processes can usefully run at once).
//
// A file that fails to parse aborts the whole run: the copy is supposed to
// be a faithful snapshot of a module that already builds, so a parse
// failure means the copy itself is broken, not that this file has no
// mutations.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	var paths []string
	walkErr := fs.WalkDir(e.fs, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		if e.codeData.Exclusion.IsFileExcluded(path) {
			return nil
		}
		paths = append(paths, path)

		return nil
	})
	if walkErr != nil {
		return Result{}, walkErr
	}

	fset := token.NewFileSet()
	files := make(map[string]*ast.File)
	var placements []*placer.Placement
	var mutants []*mutant.Mutant

	var mu sync.Mutex
	var firstErr error
	var wg sync.WaitGroup

	pool := workerpool.Initialize("engine")
	pool.Start()
	defer pool.Stop()

	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		job := &fileJob{
			engine: e,
			fset:   fset,
			path:   path,
			wg:     &wg,
			onDone: func(abs string, file *ast.File, fileMutants []*mutant.Mutant, filePlacements []*placer.Placement, err error) {
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					if firstErr == nil {
						firstErr = err
					}

					return
				}
				if file == nil {
					return
				}
				files[abs] = file
				mutants = append(mutants, fileMutants...)
				placements = append(placements, filePlacements...)
			},
		}
		pool.AppendExecutor(job)
	}

	if err := e.instrumentTests(pool, fset, files, &mu, &wg, func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}); err != nil {
		return Result{}, err
	}

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if firstErr != nil {
		return Result{}, firstErr
	}

	return Result{FileSet: fset, Files: files, Placements: placements, Mutants: mutants}, nil
}

// fileJob is the workerpool.Executor that parses and mutates one file.
type fileJob struct {
	engine *Engine
	fset   *token.FileSet
	path   string
	wg     *sync.WaitGroup
	onDone func(abs string, file *ast.File, mutants []*mutant.Mutant, placements []*placer.Placement, err error)
}

func (j *fileJob) Start(_ *workerpool.Worker) {
	defer j.wg.Done()

	abs := filepath.Join(j.engine.root, j.path)
	src, err := os.ReadFile(abs)
	if err != nil {
		j.onDone(abs, nil, nil, nil, err)

		return
	}

	file, err := parser.ParseFile(j.fset, abs, src, parser.ParseComments)
	if err != nil {
		j.onDone(abs, nil, nil, nil, err)

		return
	}
	if isGeneratedFile(file) {
		j.onDone(abs, nil, nil, nil, nil)

		return
	}

	fileMutants, filePlacements := j.engine.mutateFile(abs, file, j.fset)
	j.onDone(abs, file, fileMutants, filePlacements, nil)
}

// mutateFile collects every Mutation every registered mutator proposes
// against file's pristine tree before placing any of them, so that a
// mutator running after another never walks into the branches a prior
// placement just introduced.
func (e *Engine) mutateFile(path string, file *ast.File, fset *token.FileSet) ([]*mutant.Mutant, []*placer.Placement) {
	var proposed []mutant.Mutation
	for _, mut := range mutators.All() {
		if mut.MinLevel() > e.level {
			continue
		}
		proposed = append(proposed, mut.Find(file)...)
	}

	ignored := ignoreSpans(fset, file)
	refusals := placer.FindRefusals(file)

	var mutants []*mutant.Mutant
	var placements []*placer.Placement
	for _, mutation := range proposed {
		pos := fset.Position(mutation.OriginalNode.Pos())

		id := mutant.ID(atomic.AddInt64(&e.nextID, 1) - 1)
		m := mutant.New(id, mutation.KindTag, path, pos)

		if ignored.contains(mutation.OriginalNode.Pos()) {
			m.SetStatus(mutant.Ignored, "marked "+ignoreMarker)
			mutants = append(mutants, m)

			continue
		}
		if !e.codeData.Diff.IsChanged(pos) {
			m.SetStatus(mutant.Ignored, "outside the requested diff range")
			mutants = append(mutants, m)

			continue
		}

		isStatic := !isInsideFunc(file, mutation.OriginalNode)
		placement, err := placer.Place(file, mutation, id, isStatic, refusals)
		if err != nil {
			m.SetStatus(mutant.Ignored, err.Error())
			mutants = append(mutants, m)

			continue
		}

		m.SetStaticCovering(isStatic)
		mutants = append(mutants, m)
		placements = append(placements, placement)
	}

	return mutants, placements
}

// isInsideFunc reports whether target lies within the body of some
// top-level FuncDecl other than a package init function. A mutation outside
// every such body, including one inside init, only runs once, at package
// initialisation, so the placer must treat its site as static.
func isInsideFunc(file *ast.File, target ast.Node) bool {
	for _, d := range file.Decls {
		fd, ok := d.(*ast.FuncDecl)
		if !ok || fd.Body == nil {
			continue
		}
		if fd.Recv == nil && fd.Name.Name == "init" {
			continue
		}
		if fd.Body.Pos() <= target.Pos() && target.End() <= fd.Body.End() {
			return true
		}
	}

	return false
}

// ignoreSpan is the source range of a node whose attached comments (as
// resolved by go/ast's own association rules) carry an ignoreMarker.
type ignoreSpan struct {
	start, end token.Pos
}

type ignoreSpanSet []ignoreSpan

func (s ignoreSpanSet) contains(pos token.Pos) bool {
	for _, sp := range s {
		if sp.start <= pos && pos < sp.end {
			return true
		}
	}

	return false
}

// ignoreSpans walks file's CommentMap (the same node/comment association
// go/ast and gofmt use) and returns the span of every node carrying an
// ignoreMarker comment.
func ignoreSpans(fset *token.FileSet, file *ast.File) ignoreSpanSet {
	cmap := ast.NewCommentMap(fset, file, file.Comments)

	var spans ignoreSpanSet
	for node, groups := range cmap {
		for _, g := range groups {
			for _, c := range g.List {
				if strings.Contains(c.Text, ignoreMarker) {
					spans = append(spans, ignoreSpan{start: node.Pos(), end: node.End()})
				}
			}
		}
	}

	return spans
}

// isGeneratedFile reports whether any comment in file carries the
// standard "Code generated ... DO NOT EDIT." marker.
func isGeneratedFile(file *ast.File) bool {
	for _, group := range file.Comments {
		for _, c := range group.List {
			if generatedFilePattern.MatchString(strings.TrimSpace(c.Text)) {
				return true
			}
		}
	}

	return false
}
