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

// Package placer turns a mutant.Mutation into source text placed behind a
// runtime switch, so that the whole module compiles once with every
// mutation present and the active one is picked at test time by
// internal/collector.
//
// Every placement funnels both the original and the mutated node through the
// same collector call: a Hit (or HitStatic, for code that runs once at
// package initialisation) records that the mutant's site executed, and an
// Active check decides, for the single mutant id the harness is currently
// dispatching, whether to take the mutated branch.
package placer

import (
	"go/ast"
	"go/token"

	"github.com/mutanet/mutanet/internal/mutant"
)

// CollectorImportPath is the import path of the linked-in runtime package
// that every placement calls into.
const CollectorImportPath = "github.com/mutanet/mutanet/internal/collector"

// CollectorAlias is the identifier placed code (and the engine's test-file
// instrumentation) uses to refer to the collector package, importable
// under this name regardless of the mutated file's own import aliases.
const CollectorAlias = "mutanetcollector"

// Placement records everything the compiler loop needs to strip a
// placement back out of the tree if it turns out to break the build.
type Placement struct {
	Mutation mutant.Mutation
	ID       mutant.ID
	File     *ast.File
	IsStatic bool

	parent   ast.Node
	setter   func(ast.Node)
	original ast.Node
}

// Revert restores the site to the node it had before Place ran, used by
// the compile/rollback loop when a placement is implicated in a build
// failure.
func (p *Placement) Revert() {
	if p.setter != nil {
		p.setter(p.original)
	}
}

// Refused is returned by Place when the mutation's site has no supported
// placement strategy, e.g. a case label or a const-expression context
// that cannot host a function call.
type Refused struct {
	Reason string
}

func (r *Refused) Error() string { return "placement refused: " + r.Reason }

// refusedSpan is a source range a mutation may not be placed within.
type refusedSpan struct {
	start, end token.Pos
}

// Refusals is the set of syntactic positions within one file that Place
// must refuse, computed once per file by FindRefusals and reused across
// every mutation proposed against it.
type Refusals []refusedSpan

func (r Refusals) contains(pos token.Pos) bool {
	for _, s := range r {
		if s.start <= pos && pos < s.end {
			return true
		}
	}

	return false
}

// FindRefusals walks file once and collects every position a Mutation's
// OriginalNode may fall within but must never be wrapped at: case clause
// expressions, composite-literal keys, struct tag strings, const
// declaration initializers (Go requires all of these to stay ordinary,
// unwrapped expressions), and go/defer call arguments, where wrapping
// would obscure the statement's own call being the one actually
// deferred/spawned.
func FindRefusals(file *ast.File) Refusals {
	var spans Refusals
	add := func(n ast.Node) {
		if n == nil {
			return
		}
		spans = append(spans, refusedSpan{start: n.Pos(), end: n.End()})
	}

	for _, decl := range file.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.CONST {
			continue
		}
		for _, spec := range gd.Specs {
			vs, ok := spec.(*ast.ValueSpec)
			if !ok {
				continue
			}
			for _, v := range vs.Values {
				add(v)
			}
		}
	}

	ast.Inspect(file, func(n ast.Node) bool {
		switch p := n.(type) {
		case *ast.CaseClause:
			for _, e := range p.List {
				add(e)
			}
		case *ast.CompositeLit:
			for _, elt := range p.Elts {
				if kv, ok := elt.(*ast.KeyValueExpr); ok {
					add(kv.Key)
				}
			}
		case *ast.Field:
			if p.Tag != nil {
				add(p.Tag)
			}
		case *ast.GoStmt:
			for _, a := range p.Call.Args {
				add(a)
			}
		case *ast.DeferStmt:
			for _, a := range p.Call.Args {
				add(a)
			}
		}

		return true
	})

	return spans
}

// Place finds the Mutation's OriginalNode inside file and rewrites it (and
// the AST it is embedded in) so that, at runtime, the site calls into the
// collector before choosing between the original and replacement forms.
// It returns a Placement that can be reverted, or a *Refused error when no
// placement strategy applies or refusals marks the site as off-limits.
func Place(file *ast.File, m mutant.Mutation, id mutant.ID, isStatic bool, refusals Refusals) (*Placement, error) {
	switch m.OriginalNode.(type) {
	case ast.Expr, ast.Stmt:
	default:
		return nil, &Refused{Reason: "unsupported node kind for placement"}
	}
	if refusals.contains(m.OriginalNode.Pos()) {
		return nil, &Refused{Reason: "unsupported placement"}
	}

	switch target := m.OriginalNode.(type) {
	case ast.Expr:
		return placeExpr(file, target, m, id, isStatic)
	case ast.Stmt:
		return placeStmt(file, target, m, id, isStatic)
	default:
		return nil, &Refused{Reason: "unsupported node kind for placement"}
	}
}

func placeExpr(file *ast.File, target ast.Expr, m mutant.Mutation, id mutant.ID, isStatic bool) (*Placement, error) {
	parent, setter := findExprParentAndSetter(file, target)
	if parent == nil || setter == nil {
		return nil, &Refused{Reason: "no replaceable parent found for expression site"}
	}
	replacement, ok := m.ReplacementNode.(ast.Expr)
	if !ok {
		return nil, &Refused{Reason: "replacement node is not an expression"}
	}

	wrapped := wrapExpr(id, target, replacement, isStatic)
	setter(wrapped)

	return &Placement{
		Mutation: m,
		ID:       id,
		File:     file,
		IsStatic: isStatic,
		parent:   parent,
		setter:   func(n ast.Node) { setter(n.(ast.Expr)) },
		original: target,
	}, nil
}

func placeStmt(file *ast.File, target ast.Stmt, m mutant.Mutation, id mutant.ID, isStatic bool) (*Placement, error) {
	block, idx := findStmtParentBlock(file, target)
	if block == nil {
		return nil, &Refused{Reason: "no enclosing block found for statement site"}
	}
	replacement, ok := m.ReplacementNode.(ast.Stmt)
	if !ok {
		return nil, &Refused{Reason: "replacement node is not a statement"}
	}

	wrapped := wrapStmt(id, target, replacement, isStatic)
	original := block.List[idx]
	block.List[idx] = wrapped

	return &Placement{
		Mutation: m,
		ID:       id,
		File:     file,
		IsStatic: isStatic,
		parent:   block,
		setter:   func(n ast.Node) { block.List[idx] = n.(ast.Stmt) },
		original: original,
	}, nil
}

// wrapExpr rewrites the site to:
//
//	mutanetcollector.Pick(id, <original>, <mutated>)
//
// Pick is a generic function in internal/collector; its type parameter is
// inferred from original and mutated, so placer never needs a type
// checker to know the site's static type, the same freedom the teacher's
// own token-level rewriter has in never needing one either. Pick records
// the Hit (or HitStatic) internally before consulting Active.
func wrapExpr(id mutant.ID, original, replacement ast.Expr, isStatic bool) ast.Expr {
	fn := "Pick"
	if isStatic {
		fn = "PickStatic"
	}

	return &ast.CallExpr{
		Fun: &ast.SelectorExpr{
			X:   ast.NewIdent(CollectorAlias),
			Sel: ast.NewIdent(fn),
		},
		Args: []ast.Expr{
			&ast.BasicLit{Kind: token.INT, Value: id.String()},
			original,
			replacement,
		},
	}
}

func wrapStmt(id mutant.ID, original, replacement ast.Stmt, isStatic bool) ast.Stmt {
	hitCall := hitCallStmt(id, isStatic)

	return &ast.BlockStmt{
		List: []ast.Stmt{
			&ast.ExprStmt{X: hitCall},
			&ast.IfStmt{
				Cond: activeCall(id),
				Body: &ast.BlockStmt{List: []ast.Stmt{replacement}},
				Else: &ast.BlockStmt{List: []ast.Stmt{original}},
			},
		},
	}
}

func hitCallStmt(id mutant.ID, isStatic bool) *ast.CallExpr {
	fn := "Hit"
	if isStatic {
		fn = "HitStatic"
	}

	return &ast.CallExpr{
		Fun: &ast.SelectorExpr{
			X:   ast.NewIdent(CollectorAlias),
			Sel: ast.NewIdent(fn),
		},
		Args: []ast.Expr{&ast.BasicLit{Kind: token.INT, Value: id.String()}},
	}
}

func activeCall(id mutant.ID) *ast.CallExpr {
	return &ast.CallExpr{
		Fun: &ast.SelectorExpr{
			X:   ast.NewIdent(CollectorAlias),
			Sel: ast.NewIdent("Active"),
		},
		Args: []ast.Expr{&ast.BasicLit{Kind: token.INT, Value: id.String()}},
	}
}

// findExprParentAndSetter walks file looking for the node that directly
// holds target, returning a setter that replaces it in place. Grounded on
// the teacher's findParentAndReplacer in internal/engine/engine.go,
// extended to cover the statement contexts that hold expressions
// (ExprStmt, composite literal elements and values, value specs). An
// expression held by any other parent, such as an index or slice
// expression, gets no setter.
func findExprParentAndSetter(file *ast.File, target ast.Expr) (ast.Node, func(ast.Expr)) {
	var parent ast.Node
	var setter func(ast.Expr)

	ast.Inspect(file, func(n ast.Node) bool {
		if n == nil || setter != nil {
			return false
		}

		switch p := n.(type) {
		case *ast.UnaryExpr:
			if p.X == target {
				parent, setter = p, func(e ast.Expr) { p.X = e }
				return false
			}
		case *ast.BinaryExpr:
			if p.X == target {
				parent, setter = p, func(e ast.Expr) { p.X = e }
				return false
			}
			if p.Y == target {
				parent, setter = p, func(e ast.Expr) { p.Y = e }
				return false
			}
		case *ast.ParenExpr:
			if p.X == target {
				parent, setter = p, func(e ast.Expr) { p.X = e }
				return false
			}
		case *ast.CallExpr:
			if p.Fun == target {
				parent, setter = p, func(e ast.Expr) { p.Fun = e }
				return false
			}
			for i, arg := range p.Args {
				if arg == target {
					idx := i
					parent, setter = p, func(e ast.Expr) { p.Args[idx] = e }
					return false
				}
			}
		case *ast.ReturnStmt:
			for i, r := range p.Results {
				if r == target {
					idx := i
					parent, setter = p, func(e ast.Expr) { p.Results[idx] = e }
					return false
				}
			}
		case *ast.AssignStmt:
			for i, e := range p.Lhs {
				if e == target {
					idx := i
					parent, setter = p, func(e ast.Expr) { p.Lhs[idx] = e }
					return false
				}
			}
			for i, e := range p.Rhs {
				if e == target {
					idx := i
					parent, setter = p, func(e ast.Expr) { p.Rhs[idx] = e }
					return false
				}
			}
		case *ast.IfStmt:
			if p.Cond == target {
				parent, setter = p, func(e ast.Expr) { p.Cond = e }
				return false
			}
		case *ast.ForStmt:
			if p.Cond == target {
				parent, setter = p, func(e ast.Expr) { p.Cond = e }
				return false
			}
		case *ast.SwitchStmt:
			if p.Tag == target {
				parent, setter = p, func(e ast.Expr) { p.Tag = e }
				return false
			}
		case *ast.ExprStmt:
			if p.X == target {
				parent, setter = p, func(e ast.Expr) { p.X = e }
				return false
			}
		case *ast.CompositeLit:
			for i, elt := range p.Elts {
				if elt == target {
					idx := i
					parent, setter = p, func(e ast.Expr) { p.Elts[idx] = e }
					return false
				}
			}
		case *ast.KeyValueExpr:
			if p.Value == target {
				parent, setter = p, func(e ast.Expr) { p.Value = e }
				return false
			}
		case *ast.ValueSpec:
			for i, v := range p.Values {
				if v == target {
					idx := i
					parent, setter = p, func(e ast.Expr) { p.Values[idx] = e }
					return false
				}
			}
		}

		return true
	})

	return parent, setter
}

// findStmtParentBlock locates the *ast.BlockStmt directly containing
// target and the index within its List.
func findStmtParentBlock(file *ast.File, target ast.Stmt) (*ast.BlockStmt, int) {
	var block *ast.BlockStmt
	var idx = -1

	ast.Inspect(file, func(n ast.Node) bool {
		if block != nil {
			return false
		}
		b, ok := n.(*ast.BlockStmt)
		if !ok {
			return true
		}
		for i, s := range b.List {
			if s == target {
				block, idx = b, i
				return false
			}
		}

		return true
	})

	return block, idx
}
