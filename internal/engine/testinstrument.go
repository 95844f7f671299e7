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

package engine

import (
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/mutanet/mutanet/internal/placer"
	"github.com/mutanet/mutanet/internal/workerpool"
)

// testFilePaths walks e's tree for every non-excluded _test.go file.
func (e *Engine) testFilePaths() ([]string, error) {
	var paths []string
	walkErr := fs.WalkDir(e.fs, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".go" || !strings.HasSuffix(path, "_test.go") {
			return nil
		}
		if e.codeData.Exclusion.IsFileExcluded(path) {
			return nil
		}
		paths = append(paths, path)

		return nil
	})

	return paths, walkErr
}

// instrumentTests registers one testFileJob per _test.go file on pool,
// merging every file instrumentTestFile actually changed into files.
// Coverage can only attribute a Hit to the test that caused it if
// something calls collector.Begin with that test's name before the test
// body runs; this is where that call gets injected, since nothing else in
// the pipeline ever touches a _test.go file.
func (e *Engine) instrumentTests(pool *workerpool.Pool, fset *token.FileSet, files map[string]*ast.File, mu *sync.Mutex, wg *sync.WaitGroup, onErr func(error)) error {
	paths, walkErr := e.testFilePaths()
	if walkErr != nil {
		return walkErr
	}

	for _, path := range paths {
		wg.Add(1)
		job := &testFileJob{
			engine: e,
			fset:   fset,
			path:   path,
			wg:     wg,
			onDone: func(abs string, file *ast.File, err error) {
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					onErr(err)

					return
				}
				if file == nil {
					return
				}
				files[abs] = file
			},
		}
		pool.AppendExecutor(job)
	}

	return nil
}

// testFileJob is the workerpool.Executor that parses one _test.go file and
// instruments every top-level test function it declares.
type testFileJob struct {
	engine *Engine
	fset   *token.FileSet
	path   string
	wg     *sync.WaitGroup
	onDone func(abs string, file *ast.File, err error)
}

func (j *testFileJob) Start(_ *workerpool.Worker) {
	defer j.wg.Done()

	abs := filepath.Join(j.engine.root, j.path)
	src, err := os.ReadFile(abs)
	if err != nil {
		j.onDone(abs, nil, err)

		return
	}

	file, err := parser.ParseFile(j.fset, abs, src, parser.ParseComments)
	if err != nil {
		j.onDone(abs, nil, err)

		return
	}

	if !instrumentTestFile(j.fset, file) {
		j.onDone(abs, nil, nil)

		return
	}

	j.onDone(abs, file, nil)
}

// instrumentTestFile injects a t.Cleanup(mutanetcollector.Begin(t.Name()))
// as the first statement of every top-level test function's body, so any
// mutant Hit recorded while that test runs is attributed to it instead of
// going down as an empty test name. It reports whether it changed file,
// adding the collector import only when it did.
func instrumentTestFile(fset *token.FileSet, file *ast.File) bool {
	changed := false
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || !isTestFunc(fd) {
			continue
		}

		name := testParamName(fd)
		if name == "" {
			continue
		}

		fd.Body.List = append([]ast.Stmt{beginCleanupStmt(name)}, fd.Body.List...)
		changed = true
	}

	if changed {
		astutil.AddNamedImport(fset, file, placer.CollectorAlias, placer.CollectorImportPath)
	}

	return changed
}

// beginCleanupStmt builds:
//
//	<param>.Cleanup(mutanetcollector.Begin(<param>.Name()))
func beginCleanupStmt(param string) ast.Stmt {
	return &ast.ExprStmt{
		X: &ast.CallExpr{
			Fun: &ast.SelectorExpr{X: ast.NewIdent(param), Sel: ast.NewIdent("Cleanup")},
			Args: []ast.Expr{
				&ast.CallExpr{
					Fun: &ast.SelectorExpr{X: ast.NewIdent(placer.CollectorAlias), Sel: ast.NewIdent("Begin")},
					Args: []ast.Expr{
						&ast.CallExpr{
							Fun: &ast.SelectorExpr{X: ast.NewIdent(param), Sel: ast.NewIdent("Name")},
						},
					},
				},
			},
		},
	}
}

// isTestFunc reports whether fd is a function go test itself would run:
// no receiver, a name matching the Test(nothing|[^a-z]...) pattern, and
// exactly one *testing.T parameter.
func isTestFunc(fd *ast.FuncDecl) bool {
	if fd.Recv != nil || fd.Body == nil {
		return false
	}

	return isTestFuncName(fd.Name.Name) && testParamName(fd) != ""
}

func isTestFuncName(name string) bool {
	if !strings.HasPrefix(name, "Test") {
		return false
	}
	rest := name[len("Test"):]
	if rest == "" {
		return true
	}

	return !unicode.IsLower([]rune(rest)[0])
}

// testParamName returns the name of fd's *testing.T parameter, or "" if fd
// doesn't take exactly one such parameter, or that parameter is unnamed or
// blank: there is no identifier left to call Cleanup on in that case, so
// the function is left uninstrumented.
func testParamName(fd *ast.FuncDecl) string {
	params := fd.Type.Params
	if params == nil || len(params.List) != 1 {
		return ""
	}

	field := params.List[0]
	if len(field.Names) != 1 || !isTestingTPointer(field.Type) {
		return ""
	}

	name := field.Names[0].Name
	if name == "_" {
		return ""
	}

	return name
}

func isTestingTPointer(expr ast.Expr) bool {
	star, ok := expr.(*ast.StarExpr)
	if !ok {
		return false
	}
	sel, ok := star.X.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	pkg, ok := sel.X.(*ast.Ident)

	return ok && pkg.Name == "testing" && sel.Sel.Name == "T"
}
