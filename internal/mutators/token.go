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

// Package mutators is the pure registry of mutation rules: each Mutator
// walks a parsed file and reports the sites where it knows how to propose a
// Mutation, without touching the filesystem or the workdir. Component B
// (internal/placer) decides how a Mutation becomes source text.
package mutators

import (
	"go/ast"
	"go/token"

	"github.com/mutanet/mutanet/internal/mutant"
)

// Mutator finds the sites in file where it can propose a Mutation. A
// Mutator never mutates file itself.
type Mutator interface {
	Kind() mutant.KindTag
	MinLevel() mutant.Level
	Find(file *ast.File) []mutant.Mutation
}

// All returns the full catalog of mutators, in a stable order. The order
// determines mutant id assignment when two mutators match overlapping
// regions of the same file, so it must never change between runs of the
// same binary.
func All() []Mutator {
	return []Mutator{
		tokenMutator{kind: mutant.KindArithmeticOp, level: mutant.Basic, table: arithmeticTable},
		tokenMutator{kind: mutant.KindConditionalsOp, level: mutant.Basic, table: conditionalsBoundaryTable},
		tokenMutator{kind: mutant.KindConditionalsOp, level: mutant.Basic, table: conditionalsNegationTable},
		tokenMutator{kind: mutant.KindUpdate, level: mutant.Basic, table: incDecTable},
		tokenMutator{kind: mutant.KindInvertLogical, level: mutant.Basic, table: invertLogicalTable},
		tokenMutator{kind: mutant.KindInvertNegatives, level: mutant.Standard, table: invertNegativesTable},
		tokenMutator{kind: mutant.KindBitwiseOp, level: mutant.Advanced, table: invertBitwiseTable},
		tokenMutator{kind: mutant.KindBitwiseOp, level: mutant.Advanced, table: invertBitwiseAssignTable},
		tokenMutator{kind: mutant.KindAssignmentOp, level: mutant.Advanced, table: invertAssignTable},
		tokenMutator{kind: mutant.KindAssignmentOp, level: mutant.Advanced, table: removeSelfAssignTable},
		tokenMutator{kind: mutant.KindLoopControl, level: mutant.Advanced, table: invertLoopCtrlTable},
		booleanLiteralMutator{},
		stringLiteralMutator{},
		checkedRemovalMutator{},
		nullConditionalMutator{},
		collectionInitMutator{},
		callSwapMutator{},
	}
}

// arithmeticTable and its siblings below mirror the token swap tables the
// teacher built for its single-mutation-per-run token rewriter; here they
// drive a Find pass instead of an in-place rewrite.
var (
	arithmeticTable = map[token.Token]token.Token{
		token.ADD: token.SUB,
		token.SUB: token.ADD,
		token.MUL: token.QUO,
		token.QUO: token.MUL,
		token.REM: token.MUL,
	}
	conditionalsBoundaryTable = map[token.Token]token.Token{
		token.GEQ: token.GTR,
		token.GTR: token.GEQ,
		token.LEQ: token.LSS,
		token.LSS: token.LEQ,
	}
	conditionalsNegationTable = map[token.Token]token.Token{
		token.EQL: token.NEQ,
		token.NEQ: token.EQL,
		token.GEQ: token.LSS,
		token.GTR: token.LEQ,
		token.LEQ: token.GTR,
		token.LSS: token.GEQ,
	}
	incDecTable = map[token.Token]token.Token{
		token.INC: token.DEC,
		token.DEC: token.INC,
	}
	invertLogicalTable = map[token.Token]token.Token{
		token.LAND: token.LOR,
		token.LOR:  token.LAND,
	}
	invertNegativesTable = map[token.Token]token.Token{
		token.SUB: token.ADD,
	}
	invertBitwiseTable = map[token.Token]token.Token{
		token.AND:     token.OR,
		token.OR:      token.AND,
		token.XOR:     token.AND,
		token.AND_NOT: token.AND,
		token.SHL:     token.SHR,
		token.SHR:     token.SHL,
	}
	invertBitwiseAssignTable = map[token.Token]token.Token{
		token.AND_ASSIGN:     token.OR_ASSIGN,
		token.OR_ASSIGN:      token.AND_ASSIGN,
		token.XOR_ASSIGN:     token.AND_ASSIGN,
		token.AND_NOT_ASSIGN: token.AND_ASSIGN,
		token.SHL_ASSIGN:     token.SHR_ASSIGN,
		token.SHR_ASSIGN:     token.SHL_ASSIGN,
	}
	invertAssignTable = map[token.Token]token.Token{
		token.ADD_ASSIGN: token.SUB_ASSIGN,
		token.SUB_ASSIGN: token.ADD_ASSIGN,
		token.MUL_ASSIGN: token.QUO_ASSIGN,
		token.QUO_ASSIGN: token.MUL_ASSIGN,
	}
	removeSelfAssignTable = map[token.Token]token.Token{
		token.ADD_ASSIGN:     token.ASSIGN,
		token.AND_ASSIGN:     token.ASSIGN,
		token.AND_NOT_ASSIGN: token.ASSIGN,
		token.MUL_ASSIGN:     token.ASSIGN,
		token.OR_ASSIGN:      token.ASSIGN,
		token.QUO_ASSIGN:     token.ASSIGN,
		token.REM_ASSIGN:     token.ASSIGN,
		token.SHL_ASSIGN:     token.ASSIGN,
		token.SHR_ASSIGN:     token.ASSIGN,
		token.SUB_ASSIGN:     token.ASSIGN,
		token.XOR_ASSIGN:     token.ASSIGN,
	}
	invertLoopCtrlTable = map[token.Token]token.Token{
		token.BREAK:    token.CONTINUE,
		token.CONTINUE: token.BREAK,
	}
)

// tokenMutator proposes a one-for-one token swap wherever a node carries a
// token.Token that table knows how to invert. It covers ast.BinaryExpr,
// ast.IncDecStmt, ast.AssignStmt and ast.BranchStmt, which together carry
// every token the tables above reference, plus ast.UnaryExpr for the
// invert-negatives table only (which in turn never touches a BinaryExpr).
type tokenMutator struct {
	kind  mutant.KindTag
	level mutant.Level
	table map[token.Token]token.Token
}

func (t tokenMutator) Kind() mutant.KindTag   { return t.kind }
func (t tokenMutator) MinLevel() mutant.Level { return t.level }

func (t tokenMutator) Find(file *ast.File) []mutant.Mutation {
	var out []mutant.Mutation
	ast.Inspect(file, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.BinaryExpr:
			if repl, ok := t.table[node.Op]; ok && t.kind != mutant.KindInvertNegatives {
				clone := *node
				clone.Op = repl
				out = append(out, mutant.Mutation{
					OriginalNode:    node,
					ReplacementNode: &clone,
					DisplayName:     node.Op.String() + " -> " + repl.String(),
					KindTag:         t.kind,
				})
			}
		case *ast.IncDecStmt:
			if repl, ok := t.table[node.Tok]; ok {
				clone := *node
				clone.Tok = repl
				out = append(out, mutant.Mutation{
					OriginalNode:    node,
					ReplacementNode: &clone,
					DisplayName:     node.Tok.String() + " -> " + repl.String(),
					KindTag:         t.kind,
				})
			}
		case *ast.AssignStmt:
			if repl, ok := t.table[node.Tok]; ok {
				clone := *node
				clone.Tok = repl
				out = append(out, mutant.Mutation{
					OriginalNode:    node,
					ReplacementNode: &clone,
					DisplayName:     node.Tok.String() + " -> " + repl.String(),
					KindTag:         t.kind,
				})
			}
		case *ast.BranchStmt:
			if node.Label != nil {
				return true
			}
			if repl, ok := t.table[node.Tok]; ok {
				clone := *node
				clone.Tok = repl
				out = append(out, mutant.Mutation{
					OriginalNode:    node,
					ReplacementNode: &clone,
					DisplayName:     node.Tok.String() + " -> " + repl.String(),
					KindTag:         t.kind,
				})
			}
		case *ast.UnaryExpr:
			if repl, ok := t.table[node.Op]; ok && t.kind == mutant.KindInvertNegatives {
				clone := *node
				clone.Op = repl
				out = append(out, mutant.Mutation{
					OriginalNode:    node,
					ReplacementNode: &clone,
					DisplayName:     node.Op.String() + " -> " + repl.String(),
					KindTag:         t.kind,
				})
			}
		}

		return true
	})

	return out
}
