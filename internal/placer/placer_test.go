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

package placer_test

import (
	"bytes"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"strings"
	"testing"

	"github.com/mutanet/mutanet/internal/mutant"
	"github.com/mutanet/mutanet/internal/mutators"
	"github.com/mutanet/mutanet/internal/placer"
)

func parseSrc(t *testing.T, src string) (*token.FileSet, *ast.File) {
	t.Helper()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "test.go", src, 0)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	return fset, f
}

func render(t *testing.T, fset *token.FileSet, file *ast.File) string {
	t.Helper()
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, fset, file); err != nil {
		t.Fatalf("print failed: %v", err)
	}

	return buf.String()
}

func findMutation(t *testing.T, file *ast.File, kind mutant.KindTag) mutant.Mutation {
	t.Helper()
	for _, m := range mutators.All() {
		if m.Kind() != kind {
			continue
		}
		found := m.Find(file)
		if len(found) > 0 {
			return found[0]
		}
	}
	t.Fatalf("no mutation of kind %s found", kind)

	return mutant.Mutation{}
}

func TestPlace_expressionSite(t *testing.T) {
	src := "package p\n\nfunc f(a, b int) int {\n\treturn a + b\n}\n"
	fset, file := parseSrc(t, src)
	mutation := findMutation(t, file, mutant.KindArithmeticOp)
	refusals := placer.FindRefusals(file)

	placement, err := placer.Place(file, mutation, mutant.ID(7), false, refusals)
	if err != nil {
		t.Fatalf("Place returned an error: %v", err)
	}
	if placement.IsStatic {
		t.Fatal("expected a non-static placement for a site inside a function body")
	}

	out := render(t, fset, file)
	if !strings.Contains(out, "mutanetcollector.Pick(7,") {
		t.Fatalf("expected a Pick(7, ...) call in the rendered source, got:\n%s", out)
	}

	placement.Revert()
	out = render(t, fset, file)
	if strings.Contains(out, "mutanetcollector") {
		t.Fatalf("expected Revert to restore the original expression, got:\n%s", out)
	}
	if !strings.Contains(out, "a + b") {
		t.Fatalf("expected the original expression back after Revert, got:\n%s", out)
	}
}

func TestPlace_staticSite(t *testing.T) {
	src := "package p\n\nvar x = 1 + 2\n"
	fset, file := parseSrc(t, src)
	mutation := findMutation(t, file, mutant.KindArithmeticOp)
	refusals := placer.FindRefusals(file)

	placement, err := placer.Place(file, mutation, mutant.ID(3), true, refusals)
	if err != nil {
		t.Fatalf("Place returned an error: %v", err)
	}
	if !placement.IsStatic {
		t.Fatal("expected a static placement for a package-level var initializer")
	}

	out := render(t, fset, file)
	if !strings.Contains(out, "mutanetcollector.PickStatic(3,") {
		t.Fatalf("expected a PickStatic(3, ...) call in the rendered source, got:\n%s", out)
	}
}

func TestPlace_statementSite(t *testing.T) {
	src := "package p\n\nfunc f() {\n\ti := 0\n\ti++\n\t_ = i\n}\n"
	fset, file := parseSrc(t, src)
	mutation := findMutation(t, file, mutant.KindUpdate)
	refusals := placer.FindRefusals(file)

	placement, err := placer.Place(file, mutation, mutant.ID(1), false, refusals)
	if err != nil {
		t.Fatalf("Place returned an error: %v", err)
	}

	out := render(t, fset, file)
	if !strings.Contains(out, "mutanetcollector.Hit(1)") {
		t.Fatalf("expected a Hit(1) call in the rendered source, got:\n%s", out)
	}
	if !strings.Contains(out, "mutanetcollector.Active(1)") {
		t.Fatalf("expected an Active(1) check in the rendered source, got:\n%s", out)
	}

	placement.Revert()
	out = render(t, fset, file)
	if strings.Contains(out, "mutanetcollector") {
		t.Fatalf("expected Revert to restore the original statement, got:\n%s", out)
	}
}

func TestPlace_refusesUnsupportedNodeKind(t *testing.T) {
	mutation := mutant.Mutation{
		OriginalNode:    &ast.CommentGroup{},
		ReplacementNode: &ast.CommentGroup{},
		DisplayName:     "unsupported",
		KindTag:         mutant.KindBoolean,
	}
	_, file := parseSrc(t, "package p\n")

	_, err := placer.Place(file, mutation, mutant.ID(0), false, placer.FindRefusals(file))
	if err == nil {
		t.Fatal("expected Place to refuse a node kind with no placement strategy")
	}
	var refused *placer.Refused
	if !asRefused(err, &refused) {
		t.Fatalf("expected a *placer.Refused, got %T", err)
	}
}

func TestPlace_refusesConstInitializer(t *testing.T) {
	src := "package p\n\nconst Foo = 1 + 2\n"
	_, file := parseSrc(t, src)
	mutation := findMutation(t, file, mutant.KindArithmeticOp)
	refusals := placer.FindRefusals(file)

	_, err := placer.Place(file, mutation, mutant.ID(0), true, refusals)
	if err == nil {
		t.Fatal("expected Place to refuse a const declaration initializer")
	}
	var refused *placer.Refused
	if !asRefused(err, &refused) {
		t.Fatalf("expected a *placer.Refused, got %T", err)
	}
}

func TestPlace_refusesCaseClauseExpression(t *testing.T) {
	src := "package p\n\nfunc f(x int) int {\n\tswitch {\n\tcase 1+2 > x:\n\t\treturn 1\n\t}\n\treturn 0\n}\n"
	_, file := parseSrc(t, src)
	mutation := findMutation(t, file, mutant.KindArithmeticOp)
	refusals := placer.FindRefusals(file)

	_, err := placer.Place(file, mutation, mutant.ID(0), false, refusals)
	if err == nil {
		t.Fatal("expected Place to refuse a case clause expression")
	}
	var refused *placer.Refused
	if !asRefused(err, &refused) {
		t.Fatalf("expected a *placer.Refused, got %T", err)
	}
}

func TestPlace_refusesCompositeLiteralKey(t *testing.T) {
	src := "package p\n\nvar m = map[bool]string{true: \"yes\"}\n"
	_, file := parseSrc(t, src)
	mutation := findMutation(t, file, mutant.KindBoolean)
	refusals := placer.FindRefusals(file)

	_, err := placer.Place(file, mutation, mutant.ID(0), true, refusals)
	if err == nil {
		t.Fatal("expected Place to refuse a composite-literal key")
	}
	var refused *placer.Refused
	if !asRefused(err, &refused) {
		t.Fatalf("expected a *placer.Refused, got %T", err)
	}
}

func TestPlace_refusesStructTag(t *testing.T) {
	src := "package p\n\ntype T struct {\n\tName string `json:\"name\"`\n}\n"
	_, file := parseSrc(t, src)
	mutation := findMutation(t, file, mutant.KindString)
	refusals := placer.FindRefusals(file)

	_, err := placer.Place(file, mutation, mutant.ID(0), true, refusals)
	if err == nil {
		t.Fatal("expected Place to refuse a struct tag literal")
	}
	var refused *placer.Refused
	if !asRefused(err, &refused) {
		t.Fatalf("expected a *placer.Refused, got %T", err)
	}
}

func TestPlace_refusesDeferCallArgument(t *testing.T) {
	src := "package p\n\nfunc g(int) {}\n\nfunc f() {\n\tdefer g(1 + 2)\n}\n"
	_, file := parseSrc(t, src)
	mutation := findMutation(t, file, mutant.KindArithmeticOp)
	refusals := placer.FindRefusals(file)

	_, err := placer.Place(file, mutation, mutant.ID(0), false, refusals)
	if err == nil {
		t.Fatal("expected Place to refuse a defer call argument")
	}
	var refused *placer.Refused
	if !asRefused(err, &refused) {
		t.Fatalf("expected a *placer.Refused, got %T", err)
	}
}

func asRefused(err error, target **placer.Refused) bool {
	r, ok := err.(*placer.Refused)
	if !ok {
		return false
	}
	*target = r

	return true
}
