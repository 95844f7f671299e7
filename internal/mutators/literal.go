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

package mutators

import (
	"go/ast"
	"go/token"

	"github.com/mutanet/mutanet/internal/mutant"
)

// booleanLiteralMutator flips the Go boolean literals true and false,
// grounded on the teacher's exprmutator.go handling of *ast.Ident literal
// nodes.
type booleanLiteralMutator struct{}

func (booleanLiteralMutator) Kind() mutant.KindTag   { return mutant.KindBoolean }
func (booleanLiteralMutator) MinLevel() mutant.Level { return mutant.Standard }

func (booleanLiteralMutator) Find(file *ast.File) []mutant.Mutation {
	var out []mutant.Mutation
	ast.Inspect(file, func(n ast.Node) bool {
		id, ok := n.(*ast.Ident)
		if !ok {
			return true
		}
		var repl string
		switch id.Name {
		case "true":
			repl = "false"
		case "false":
			repl = "true"
		default:
			return true
		}
		out = append(out, mutant.Mutation{
			OriginalNode:    id,
			ReplacementNode: &ast.Ident{NamePos: id.NamePos, Name: repl},
			DisplayName:     id.Name + " -> " + repl,
			KindTag:         mutant.KindBoolean,
		})

		return true
	})

	return out
}

// stringLiteralMutator empties non-empty string literals and replaces an
// empty one with the placeholder "mutanet", the Go analogue of mutating a
// string-interpolation or format-string body.
type stringLiteralMutator struct{}

func (stringLiteralMutator) Kind() mutant.KindTag   { return mutant.KindString }
func (stringLiteralMutator) MinLevel() mutant.Level { return mutant.Standard }

func (stringLiteralMutator) Find(file *ast.File) []mutant.Mutation {
	var out []mutant.Mutation
	ast.Inspect(file, func(n ast.Node) bool {
		lit, ok := n.(*ast.BasicLit)
		if !ok || lit.Kind != token.STRING {
			return true
		}
		repl := `""`
		if lit.Value == `""` || lit.Value == "``" {
			repl = `"mutanet"`
		}
		out = append(out, mutant.Mutation{
			OriginalNode:    lit,
			ReplacementNode: &ast.BasicLit{ValuePos: lit.ValuePos, Kind: token.STRING, Value: repl},
			DisplayName:     lit.Value + " -> " + repl,
			KindTag:         mutant.KindString,
		})

		return true
	})

	return out
}

// checkedRemovalMutator is the Go analogue of removing a language-level
// overflow-checked block: it targets calls to a project's own checked-
// arithmetic wrappers (by convention, any call whose callee identifier
// starts with "Checked") and unwraps them to their first argument, the same
// way removing a checked{} block falls back to ordinary arithmetic.
type checkedRemovalMutator struct{}

func (checkedRemovalMutator) Kind() mutant.KindTag   { return mutant.KindCheckedRemoval }
func (checkedRemovalMutator) MinLevel() mutant.Level { return mutant.Complete }

func (checkedRemovalMutator) Find(file *ast.File) []mutant.Mutation {
	var out []mutant.Mutation
	ast.Inspect(file, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok || len(call.Args) == 0 {
			return true
		}
		name := calleeName(call.Fun)
		if !hasCheckedPrefix(name) {
			return true
		}
		out = append(out, mutant.Mutation{
			OriginalNode:    call,
			ReplacementNode: call.Args[0],
			DisplayName:     name + "(...) -> " + name + "'s first argument",
			KindTag:         mutant.KindCheckedRemoval,
		})

		return true
	})

	return out
}

func hasCheckedPrefix(name string) bool {
	return len(name) > len("Checked") && name[:len("Checked")] == "Checked"
}

func calleeName(fn ast.Expr) string {
	switch f := fn.(type) {
	case *ast.Ident:
		return f.Name
	case *ast.SelectorExpr:
		return f.Sel.Name
	default:
		return ""
	}
}

// nullConditionalMutator collapses a nil-guard short circuit: for
// `x != nil && expr`, it proposes dropping the guard and keeping only expr,
// the Go rendering of collapsing a null-conditional access chain.
type nullConditionalMutator struct{}

func (nullConditionalMutator) Kind() mutant.KindTag   { return mutant.KindNullConditional }
func (nullConditionalMutator) MinLevel() mutant.Level { return mutant.Advanced }

func (nullConditionalMutator) Find(file *ast.File) []mutant.Mutation {
	var out []mutant.Mutation
	ast.Inspect(file, func(n ast.Node) bool {
		bin, ok := n.(*ast.BinaryExpr)
		if !ok || bin.Op != token.LAND {
			return true
		}
		if !isNilGuard(bin.X) {
			return true
		}
		out = append(out, mutant.Mutation{
			OriginalNode:    bin,
			ReplacementNode: bin.Y,
			DisplayName:     "drop nil guard",
			KindTag:         mutant.KindNullConditional,
		})

		return true
	})

	return out
}

func isNilGuard(e ast.Expr) bool {
	bin, ok := e.(*ast.BinaryExpr)
	if !ok || bin.Op != token.NEQ {
		return false
	}
	id, ok := bin.Y.(*ast.Ident)

	return ok && id.Name == "nil"
}

// collectionInitMutator empties a non-empty composite literal, the Go
// analogue of emptying a collection initializer.
type collectionInitMutator struct{}

func (collectionInitMutator) Kind() mutant.KindTag   { return mutant.KindCollectionInit }
func (collectionInitMutator) MinLevel() mutant.Level { return mutant.Complete }

func (collectionInitMutator) Find(file *ast.File) []mutant.Mutation {
	var out []mutant.Mutation
	ast.Inspect(file, func(n ast.Node) bool {
		lit, ok := n.(*ast.CompositeLit)
		if !ok || len(lit.Elts) == 0 {
			return true
		}
		clone := *lit
		clone.Elts = nil
		out = append(out, mutant.Mutation{
			OriginalNode:    lit,
			ReplacementNode: &clone,
			DisplayName:     "empty composite literal",
			KindTag:         mutant.KindCollectionInit,
		})

		return true
	})

	return out
}

// callSwapAntonyms pairs up the standard library calls most commonly
// confused with one another, the Go rendering of swapping LINQ-style
// method calls such as Any/All or Max/Min.
var callSwapAntonyms = map[string]string{
	"ToUpper":    "ToLower",
	"ToLower":    "ToUpper",
	"TrimPrefix": "TrimSuffix",
	"TrimSuffix": "TrimPrefix",
	"Max":        "Min",
	"Min":        "Max",
	"Before":     "After",
	"After":      "Before",
}

// callSwapMutator swaps a selector call's method name for its registered
// antonym, keeping the argument list untouched.
type callSwapMutator struct{}

func (callSwapMutator) Kind() mutant.KindTag   { return mutant.KindCallSwap }
func (callSwapMutator) MinLevel() mutant.Level { return mutant.Complete }

func (callSwapMutator) Find(file *ast.File) []mutant.Mutation {
	var out []mutant.Mutation
	ast.Inspect(file, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		repl, ok := callSwapAntonyms[sel.Sel.Name]
		if !ok {
			return true
		}
		cloneSel := *sel
		cloneSel.Sel = &ast.Ident{NamePos: sel.Sel.NamePos, Name: repl}
		cloneCall := *call
		cloneCall.Fun = &cloneSel
		out = append(out, mutant.Mutation{
			OriginalNode:    call,
			ReplacementNode: &cloneCall,
			DisplayName:     sel.Sel.Name + "(...) -> " + repl + "(...)",
			KindTag:         mutant.KindCallSwap,
		})

		return true
	})

	return out
}
