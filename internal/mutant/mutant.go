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

// Package mutant holds the data model shared by every stage of the
// mutation-testing pipeline: the Mutation produced by a mutator, the Mutant
// that tracks it through the session, and the small value types (test ids,
// coverage entries, mutation levels) that stitch the stages together.
package mutant

import (
	"fmt"
	"go/ast"
	"go/token"
)

// Status represents where a Mutant is in its lifecycle.
//
// Transitions are monotonic: once a Mutant reaches Ignored, CompileError,
// NoCoverage, Killed, Survived or Timeout it never changes status again.
type Status int

// The statuses a Mutant can reach.
const (
	Pending Status = iota
	Ignored
	CompileError
	NoCoverage
	Killed
	Survived
	Timeout
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Ignored:
		return "IGNORED"
	case CompileError:
		return "COMPILE ERROR"
	case NoCoverage:
		return "NO COVERAGE"
	case Killed:
		return "KILLED"
	case Survived:
		return "SURVIVED"
	case Timeout:
		return "TIMED OUT"
	default:
		panic("this should not happen")
	}
}

// IsTerminal reports whether s is a status from which no further transition
// is allowed.
func (s Status) IsTerminal() bool {
	return s != Pending
}

// KindTag is the category of a Mutation, e.g. "ArithmeticOp" or "Update".
// It is a free-form tag used for reporting and statistics; the concrete
// mutator that produced the Mutation decides its value.
type KindTag string

// The kind tags produced by the mutators in internal/mutators.
const (
	KindArithmeticOp    KindTag = "ArithmeticOp"
	KindConditionalsOp  KindTag = "ConditionalsOp"
	KindUpdate          KindTag = "Update"
	KindCheckedRemoval  KindTag = "CheckedRemoval"
	KindBoolean         KindTag = "Boolean"
	KindString          KindTag = "String"
	KindInvertLogical   KindTag = "InvertLogical"
	KindInvertNegatives KindTag = "InvertNegatives"
	KindBitwiseOp       KindTag = "BitwiseOp"
	KindAssignmentOp    KindTag = "AssignmentOp"
	KindLoopControl     KindTag = "LoopControl"
	KindNullConditional KindTag = "NullConditional"
	KindCollectionInit  KindTag = "CollectionInit"
	KindCallSwap        KindTag = "CallSwap"
)

// AllKinds returns every KindTag a mutator in this module can produce, in
// the order the constants above are declared.
func AllKinds() []KindTag {
	return []KindTag{
		KindArithmeticOp,
		KindConditionalsOp,
		KindUpdate,
		KindCheckedRemoval,
		KindBoolean,
		KindString,
		KindInvertLogical,
		KindInvertNegatives,
		KindBitwiseOp,
		KindAssignmentOp,
		KindLoopControl,
		KindNullConditional,
		KindCollectionInit,
		KindCallSwap,
	}
}

// Level is the ordinal mutation level a session is run at. A mutator only
// fires when the session's Level is at least the mutator's declared
// minimum.
type Level int

// The supported levels, in increasing order of aggressiveness.
const (
	Basic Level = iota
	Standard
	Advanced
	Complete
)

func (l Level) String() string {
	switch l {
	case Basic:
		return "basic"
	case Standard:
		return "standard"
	case Advanced:
		return "advanced"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// ParseLevel parses a Level from its lowercase name, defaulting to Basic
// when s is empty.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "", "basic":
		return Basic, nil
	case "standard":
		return Standard, nil
	case "advanced":
		return Advanced, nil
	case "complete":
		return Complete, nil
	default:
		return Basic, fmt.Errorf("unknown mutation level %q", s)
	}
}

// ID uniquely identifies a Mutant within a Session. Ids are assigned in
// source-traversal order starting at zero and never reused.
type ID int

func (id ID) String() string {
	return fmt.Sprintf("%d", int(id))
}

// TestID is an opaque identifier for a discovered test. Equality is by id
// only; two TestID with the same value refer to the same test regardless of
// how their name or source path were obtained.
type TestID string

// TestDescription describes a single discovered test case.
type TestDescription struct {
	ID          TestID
	Name        string
	SourcePath  string
	FrameworkTag string
}

// Mutation is the proposed edit at one AST site. It is immutable once
// created: nothing downstream of a mutator may write to its fields.
type Mutation struct {
	OriginalNode    ast.Node
	ReplacementNode ast.Node
	DisplayName     string
	KindTag         KindTag
}

// Mutant is a tracked instance of a Mutation, with a stable identity and a
// lifecycle independent of the AST it came from.
type Mutant struct {
	id     ID
	kind   KindTag
	file   string
	pos    token.Position
	status Status
	reason string

	coveringTests  map[TestID]struct{}
	staticCovering bool

	killingTests map[TestID]struct{}
}

// New creates a pending Mutant for the given Mutation, at the given file and
// position.
func New(id ID, kind KindTag, file string, pos token.Position) *Mutant {
	return &Mutant{
		id:            id,
		kind:          kind,
		file:          file,
		pos:           pos,
		status:        Pending,
		coveringTests: make(map[TestID]struct{}),
		killingTests:  make(map[TestID]struct{}),
	}
}

// ID returns the Mutant's stable id.
func (m *Mutant) ID() ID { return m.id }

// Kind returns the KindTag of the Mutation this Mutant tracks.
func (m *Mutant) Kind() KindTag { return m.kind }

// File returns the source file path the Mutant belongs to.
func (m *Mutant) File() string { return m.file }

// Position returns the Mutant's source span (start position).
func (m *Mutant) Position() token.Position { return m.pos }

// Status returns the Mutant's current Status.
func (m *Mutant) Status() Status { return m.status }

// StatusReason returns the diagnostic string attached to the current status,
// if any (e.g. why a mutant was Ignored or flagged CompileError).
func (m *Mutant) StatusReason() string { return m.reason }

// SetStatus transitions the Mutant to s, recording reason for diagnostics.
// It panics if the Mutant is already in a different terminal status, since
// status transitions must be monotonic; setting the current status again
// only replaces the reason.
func (m *Mutant) SetStatus(s Status, reason string) {
	if m.status.IsTerminal() && m.status != s {
		panic(fmt.Sprintf("mutant %d: illegal transition from %s to %s", m.id, m.status, s))
	}
	m.status = s
	m.reason = reason
}

// AddCoveringTest records that t was observed exercising this Mutant's site
// during the coverage run.
func (m *Mutant) AddCoveringTest(t TestID) {
	m.coveringTests[t] = struct{}{}
}

// CoveringTests returns the set of tests that cover this Mutant.
func (m *Mutant) CoveringTests() []TestID {
	return keys(m.coveringTests)
}

// IsCoveredBy reports whether t is among this Mutant's covering tests.
func (m *Mutant) IsCoveredBy(t TestID) bool {
	_, ok := m.coveringTests[t]

	return ok
}

// SetStaticCovering marks this Mutant as triggered from a one-time
// initializer: it must be dispatched against all tests, not just the ones
// in CoveringTests.
func (m *Mutant) SetStaticCovering(v bool) {
	m.staticCovering = v
}

// IsStaticCovering reports whether this Mutant was hit from a static
// initializer.
func (m *Mutant) IsStaticCovering() bool {
	return m.staticCovering
}

// AddKillingTest records a test that killed this Mutant.
func (m *Mutant) AddKillingTest(t TestID) {
	m.killingTests[t] = struct{}{}
}

// KillingTests returns the tests that killed this Mutant, if any.
func (m *Mutant) KillingTests() []TestID {
	return keys(m.killingTests)
}

func keys(set map[TestID]struct{}) []TestID {
	if len(set) == 0 {
		return nil
	}
	out := make([]TestID, 0, len(set))
	for k := range set {
		out = append(out, k)
	}

	return out
}
