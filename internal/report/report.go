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

package report

import (
	"encoding/json"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/hako/durafmt"

	"github.com/mutanet/mutanet/internal/log"
	"github.com/mutanet/mutanet/internal/mutant"
	"github.com/mutanet/mutanet/internal/report/internal"
	"github.com/mutanet/mutanet/internal/scoring"

	"github.com/mutanet/mutanet/internal/configuration"
)

var (
	fgRed      = color.New(color.FgRed).SprintFunc()
	fgGreen    = color.New(color.FgGreen).SprintFunc()
	fgHiGreen  = color.New(color.FgHiGreen).SprintFunc()
	fgHiBlack  = color.New(color.FgHiBlack).SprintFunc()
	fgHiYellow = color.New(color.FgYellow).SprintFunc()
)

// Results contains the list of mutant.Mutant to be reported and the time it
// took to discover and test them.
type Results struct {
	Module  string
	Mutants []*mutant.Mutant
	Elapsed time.Duration
}

type reportStatus struct {
	files map[string][]internal.Mutation

	elapsed *durafmt.Durafmt
	module  string

	tally scoring.Tally
	score scoring.Score

	kindStatistics internal.KindType
}

func newReport(results Results) (*reportStatus, bool) {
	if len(results.Mutants) == 0 {
		return nil, false
	}
	rep := &reportStatus{
		module:  results.Module,
		elapsed: durafmt.Parse(results.Elapsed).LimitFirstN(2),
		tally:   scoring.FromMutants(results.Mutants),
	}
	rep.files = make(map[string][]internal.Mutation)
	for _, m := range results.Mutants {
		pos := m.Position()
		rep.files[pos.Filename] = append(rep.files[pos.Filename], internal.Mutation{
			Line:          pos.Line,
			Column:        pos.Column,
			Type:          string(m.Kind()),
			Status:        m.Status().String(),
			KillingTests:  testIDsToStrings(m.KillingTests()),
			CoveringTests: testIDsToStrings(m.CoveringTests()),
		})

		reportKind(m, rep)
	}
	rep.score = scoring.Compute(rep.tally)

	return rep, true
}

func testIDsToStrings(ids []mutant.TestID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}

	return out
}

func reportKind(m *mutant.Mutant, rep *reportStatus) {
	switch m.Kind() {
	case mutant.KindArithmeticOp:
		rep.kindStatistics.ArithmeticOp++
	case mutant.KindConditionalsOp:
		rep.kindStatistics.ConditionalsOp++
	case mutant.KindUpdate:
		rep.kindStatistics.Update++
	case mutant.KindCheckedRemoval:
		rep.kindStatistics.CheckedRemoval++
	case mutant.KindBoolean:
		rep.kindStatistics.Boolean++
	case mutant.KindString:
		rep.kindStatistics.String++
	case mutant.KindInvertLogical:
		rep.kindStatistics.InvertLogical++
	case mutant.KindInvertNegatives:
		rep.kindStatistics.InvertNegatives++
	case mutant.KindBitwiseOp:
		rep.kindStatistics.BitwiseOp++
	case mutant.KindAssignmentOp:
		rep.kindStatistics.AssignmentOp++
	case mutant.KindLoopControl:
		rep.kindStatistics.LoopControl++
	case mutant.KindNullConditional:
		rep.kindStatistics.NullConditional++
	case mutant.KindCollectionInit:
		rep.kindStatistics.CollectionInit++
	case mutant.KindCallSwap:
		rep.kindStatistics.CallSwap++
	}
}

func (*reportStatus) isDryRun() bool {
	return configuration.Get[bool](configuration.UnleashDryRunKey)
}

func (r *reportStatus) reportFindings() {
	if r.isDryRun() {
		r.dryRunReport()
	} else {
		r.fullRunReport()
	}
	r.fileReport()
}

func (r *reportStatus) fileReport() {
	if output := configuration.Get[string](configuration.UnleashOutputKey); output != "" {
		files := make([]internal.OutputFile, 0, len(r.files))
		for fName, mutations := range r.files {
			of := internal.OutputFile{Filename: fName}
			of.Mutations = append(of.Mutations, mutations...)
			files = append(files, of)
		}

		result := internal.OutputResult{
			GoModule:          r.module,
			TestEfficacy:      r.score.Efficacy,
			MutationsCoverage: r.score.Coverage,
			MutantsTotal:      r.tally.Killed + r.tally.Survived + r.tally.TimedOut + r.tally.NotCovered,
			MutantsKilled:     r.tally.Killed,
			MutantsSurvived:   r.tally.Survived,
			MutantsTimedOut:   r.tally.TimedOut,
			MutantsNotCovered: r.tally.NotCovered,
			MutantsIgnored:    r.tally.Ignored,
			ElapsedTime:       r.elapsed.Duration().Seconds(),
			KindStatistics:    r.kindStatistics,
			Files:             files,
		}

		jsonResult, _ := json.Marshal(result)
		f, err := os.Create(output)
		if err != nil {
			log.Errorf("impossible to write file: %s\n", err)

			return
		}
		defer func(f *os.File) {
			_ = f.Close()
		}(f)
		if _, err := f.Write(jsonResult); err != nil {
			log.Errorf("impossible to write file: %s\n", err)
		}
	}
}

func (r *reportStatus) dryRunReport() {
	notCovered := fgHiYellow(r.tally.NotCovered)
	log.Infoln("")
	log.Infof("Dry run completed in %s\n", r.elapsed.String())
	log.Infof("Not covered: %s\n", notCovered)
	log.Infof("Mutant coverage: %.2f%%\n", r.score.Coverage)
}

func (r *reportStatus) fullRunReport() {
	killed := fgHiGreen(r.tally.Killed)
	survived := fgRed(r.tally.Survived)
	timedOut := fgGreen(r.tally.TimedOut)
	compileError := fgHiBlack(r.tally.CompileError)
	notCovered := fgHiYellow(r.tally.NotCovered)
	log.Infoln("")
	log.Infof("Mutation testing completed in %s\n", r.elapsed.String())
	log.Infof("Killed: %s, Survived: %s, Not covered: %s\n", killed, survived, notCovered)
	log.Infof("Timed out: %s, Compile error: %s\n", timedOut, compileError)
	log.Infof("Test efficacy: %.2f%%\n", r.score.Efficacy)
	log.Infof("Mutant coverage: %.2f%%\n", r.score.Coverage)
}

// Do generates the report of the Results received, then assesses it against
// the configured thresholds via internal/scoring.
func Do(results Results) error {
	rep, ok := newReport(results)
	if !ok {
		log.Infoln("\nNo results to report.")

		return nil
	}
	rep.reportFindings()

	return scoring.Assess(rep.score)
}

// Mutant logs a single mutant.Mutant.
// It reports the mutant's Status, Kind and its position. This function
// uses the log package to write to the chosen io.Writer, so it is
// necessary to call log.Init before the report generation.
func Mutant(m *mutant.Mutant) {
	status := m.Status().String()
	switch m.Status() {
	case mutant.Killed:
		status = fgHiGreen(status)
	case mutant.Survived:
		status = fgRed(status)
	case mutant.NoCoverage:
		status = fgHiYellow(status)
	case mutant.Timeout:
		status = fgGreen(status)
	case mutant.CompileError, mutant.Ignored:
		status = fgHiBlack(status)
	}
	log.Infof("%s%s %s at %s\n", padding(m.Status()), status, m.Kind(), m.Position())
}

func padding(s mutant.Status) string {
	var pad string
	padLen := 14 - len(s.String())
	for i := 0; i < padLen; i++ {
		pad += " "
	}

	return pad
}
