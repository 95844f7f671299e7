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

package compiler_test

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/mutanet/mutanet/internal/compiler"
	"github.com/mutanet/mutanet/internal/gofrontend"
	"github.com/mutanet/mutanet/internal/mutant"
	"github.com/mutanet/mutanet/internal/placer"
)

func fakeExecCommand(script func(n int) (int, string)) func(name string, args ...string) *exec.Cmd {
	calls := 0

	return func(_ string, args ...string) *exec.Cmd {
		n := calls
		calls++
		code, out := script(n)
		cs := []string{"-test.run=TestCompilerHelperProcess", "--"}
		cs = append(cs, args...)
		cmd := exec.Command(os.Args[0], cs...)
		cmd.Env = []string{
			"GO_TEST_PROCESS=1",
			"HELPER_EXIT_CODE=" + itoa(code),
			"HELPER_STDOUT=" + out,
		}

		return cmd
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}

	return string(digits)
}

func TestCompilerHelperProcess(t *testing.T) {
	if os.Getenv("GO_TEST_PROCESS") != "1" {
		return
	}
	os.Stdout.WriteString(os.Getenv("HELPER_STDOUT"))
	code := 0
	for _, c := range os.Getenv("HELPER_EXIT_CODE") {
		code = code*10 + int(c-'0')
	}
	os.Exit(code)
}

func TestLoop_succeedsImmediatelyWhenBuildPasses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	writeSource(t, path, "package main\n\nfunc f() int { return 1 + 2 }\n")

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
	if err != nil {
		t.Fatal(err)
	}

	target := findBinaryExpr(file)
	m := mutant.Mutation{OriginalNode: target, ReplacementNode: &ast.BinaryExpr{X: target.X, Op: token.SUB, Y: target.Y}, KindTag: mutant.KindArithmeticOp}
	p, err := placer.Place(file, m, 1, false, nil)
	if err != nil {
		t.Fatalf("unexpected placement error: %v", err)
	}

	comp := gofrontend.New().WithExecContext(fakeExecCommand(func(int) (int, string) { return 0, "" }))
	loop := compiler.New(comp)

	mutants := map[mutant.ID]*mutant.Mutant{1: mutant.New(1, mutant.KindArithmeticOp, path, token.Position{})}
	files := map[string]*ast.File{path: file}

	if err := loop.Run(fset, files, []*placer.Placement{p}, mutants, dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoop_revertsOffendingPlacementThenSucceeds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	writeSource(t, path, "package main\n\nfunc f() int { return 1 + 2 }\n")

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
	if err != nil {
		t.Fatal(err)
	}

	target := findBinaryExpr(file)
	line := fset.Position(target.Pos()).Line
	m := mutant.Mutation{OriginalNode: target, ReplacementNode: &ast.BinaryExpr{X: target.X, Op: token.SUB, Y: target.Y}, KindTag: mutant.KindArithmeticOp}
	p, err := placer.Place(file, m, 1, false, nil)
	if err != nil {
		t.Fatalf("unexpected placement error: %v", err)
	}

	diagLine := itoa(line)
	comp := gofrontend.New().WithExecContext(fakeExecCommand(func(n int) (int, string) {
		if n == 0 {
			return 2, path + ":" + diagLine + ":1: undefined: mutanetcollector\n"
		}

		return 0, ""
	}))
	loop := compiler.New(comp)

	m1 := mutant.New(1, mutant.KindArithmeticOp, path, token.Position{})
	mutants := map[mutant.ID]*mutant.Mutant{1: m1}
	files := map[string]*ast.File{path: file}

	if err := loop.Run(fset, files, []*placer.Placement{p}, mutants, dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m1.Status() != mutant.CompileError {
		t.Errorf("want CompileError, got %v", m1.Status())
	}
}

func writeSource(t *testing.T, path, src string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
}

func findBinaryExpr(file *ast.File) *ast.BinaryExpr {
	var found *ast.BinaryExpr
	ast.Inspect(file, func(n ast.Node) bool {
		if found != nil {
			return false
		}
		if b, ok := n.(*ast.BinaryExpr); ok {
			found = b
			return false
		}

		return true
	})

	return found
}
