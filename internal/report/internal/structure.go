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

package internal

// OutputResult is the data structure for the file output format.
type OutputResult struct {
	GoModule          string       `json:"go_module"`
	Files             []OutputFile `json:"files"`
	TestEfficacy      float64      `json:"test_efficacy"`
	MutationsCoverage float64      `json:"mutations_coverage"`
	MutantsTotal      int          `json:"mutants_total"`
	MutantsKilled     int          `json:"mutants_killed"`
	MutantsSurvived   int          `json:"mutants_survived"`
	MutantsTimedOut   int          `json:"mutants_timed_out"`
	MutantsNotCovered int          `json:"mutants_not_covered"`
	MutantsIgnored    int          `json:"mutants_ignored"`
	ElapsedTime       float64      `json:"elapsed_time"`
	KindStatistics    KindType     `json:"kind_statistics"`
}

// OutputFile represents a single file in the OutputResult data structure.
type OutputFile struct {
	Filename  string     `json:"file_name"`
	Mutations []Mutation `json:"mutations"`
}

// Mutation represents a single mutation in the OutputResult data structure.
type Mutation struct {
	Type          string   `json:"type"`
	Status        string   `json:"status"`
	Line          int      `json:"line"`
	Column        int      `json:"column"`
	KillingTests  []string `json:"killing_tests,omitempty"`
	CoveringTests []string `json:"covering_tests,omitempty"`
}

// KindType tallies mutants by the KindTag of the mutator that proposed them.
type KindType struct {
	ArithmeticOp    int `json:"arithmetic_op,omitempty"`
	ConditionalsOp  int `json:"conditionals_op,omitempty"`
	Update          int `json:"update,omitempty"`
	CheckedRemoval  int `json:"checked_removal,omitempty"`
	Boolean         int `json:"boolean,omitempty"`
	String          int `json:"string,omitempty"`
	InvertLogical   int `json:"invert_logical,omitempty"`
	InvertNegatives int `json:"invert_negatives,omitempty"`
	BitwiseOp       int `json:"bitwise_op,omitempty"`
	AssignmentOp    int `json:"assignment_op,omitempty"`
	LoopControl     int `json:"loop_control,omitempty"`
	NullConditional int `json:"null_conditional,omitempty"`
	CollectionInit  int `json:"collection_init,omitempty"`
	CallSwap        int `json:"call_swap,omitempty"`
}
