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

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mutanet/mutanet/cmd/internal/flags"
	"github.com/mutanet/mutanet/internal/compiler"
	"github.com/mutanet/mutanet/internal/configuration"
	"github.com/mutanet/mutanet/internal/diff"
	"github.com/mutanet/mutanet/internal/engine"
	"github.com/mutanet/mutanet/internal/exclusion"
	"github.com/mutanet/mutanet/internal/gofrontend"
	"github.com/mutanet/mutanet/internal/gomodule"
	"github.com/mutanet/mutanet/internal/log"
	"github.com/mutanet/mutanet/internal/mutant"
	"github.com/mutanet/mutanet/internal/report"
	"github.com/mutanet/mutanet/internal/scheduler"
	"github.com/mutanet/mutanet/internal/testplatform"
	"github.com/mutanet/mutanet/internal/workdir"
)

type mutateCmd struct {
	cmd *cobra.Command
}

const (
	commandName = "mutate"

	paramBuildTags          = "tags"
	paramDryRun             = "dry-run"
	paramOutput             = "output"
	paramLevel              = "level"
	paramSince              = "since"
	paramExcludeFiles       = "exclude-files"
	paramIntegrationMode    = "integration"
	paramTestCPU            = "test-cpu"
	paramWorkers            = "workers"
	paramTimeoutCoefficient = "timeout-coefficient"

	// Thresholds.
	paramThresholdEfficacy  = "threshold-efficacy"
	paramThresholdMCoverage = "threshold-mcover"

	mutatePkg = "./..."
)

func newMutateCmd(ctx context.Context) (*mutateCmd, error) {
	cmd := &cobra.Command{
		Use:     fmt.Sprintf("%s [path]", commandName),
		Aliases: []string{"run", "m"},
		Args:    cobra.MaximumNArgs(1),
		Short:   "Find and test mutants in a Go module",
		Long:    mutateLongExplainer(),
		RunE:    runMutate(ctx),
	}

	if err := setMutateFlagsOnCmd(cmd); err != nil {
		return nil, err
	}

	return &mutateCmd{cmd: cmd}, nil
}

func mutateLongExplainer() string {
	return heredoc.Doc(`
		Mutates a Go module and runs its test suite against each mutation. It
		works by placing every supported mutation behind a runtime switch,
		compiling the instrumented tree once, and dispatching the test suite
		once per mutant, scoped to only the tests a coverage pass found
		covering it.

		In 'dry-run' mode, mutate only performs the analysis of the source
		code and reports where mutations would be placed, without compiling
		or running any test.

		Thresholds are configurable quality gates that make mutanet exit with
		an error if those values are not met. Efficacy is the percent of
		KILLED + TIMED OUT mutants over the total KILLED, TIMED OUT and
		SURVIVED mutants. Mutant coverage is the percent of KILLED + TIMED OUT
		+ SURVIVED mutants over those plus the NO COVERAGE mutants.
	`)
}

func runMutate(ctx context.Context) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		log.Infoln("Starting...")
		path, _ := os.Getwd()
		if len(args) > 0 {
			path = args[0]
		}
		mod, err := gomodule.Init(path)
		if err != nil {
			return fmt.Errorf("not in a Go module: %w", err)
		}

		workDir, err := os.MkdirTemp(os.TempDir(), "mutanet-")
		if err != nil {
			return fmt.Errorf("impossible to create the workdir: %w", err)
		}
		defer mutateCleanUp(workDir)

		wg := &sync.WaitGroup{}
		wg.Add(1)
		cancelled := false
		var results report.Results
		go runWithCancel(ctx, wg, func(c context.Context) {
			results, err = runMutation(c, mod, workDir)
		}, func() {
			cancelled = true
		})
		wg.Wait()
		if err != nil {
			return err
		}
		if cancelled {
			return nil
		}

		return report.Do(results)
	}
}

func mutateCleanUp(wd string) {
	if err := os.RemoveAll(wd); err != nil {
		log.Errorf("impossible to remove temporary folder: %s\n\t%s", err, wd)
	}
}

// runMutation drives the full pipeline: provision a working copy, place
// every eligible mutation (component B, via the engine), compile the
// instrumented tree once (component D), and - unless this is a dry run -
// run the coverage pass and dispatch every live mutant against its
// covering tests (component F).
func runMutation(ctx context.Context, mod gomodule.GoModule, workDir string) (report.Results, error) {
	start := time.Now()

	excl, err := exclusion.New()
	if err != nil {
		return report.Results{}, fmt.Errorf("failed to build exclusion rules: %w", err)
	}
	d, err := diff.New()
	if err != nil {
		return report.Results{}, fmt.Errorf("failed to gather diff: %w", err)
	}
	level, err := mutant.ParseLevel(configuration.Get[string](configuration.UnleashLevelKey))
	if err != nil {
		return report.Results{}, fmt.Errorf("invalid mutation level: %w", err)
	}

	wdDealer := workdir.NewCachedDealer(workDir, mod.Root)
	defer wdDealer.Clean()

	copyRoot, err := wdDealer.Get("mutate")
	if err != nil {
		return report.Results{}, fmt.Errorf("failed to provision the working copy: %w", err)
	}

	log.Infoln("Analysing code and placing mutations...")
	e := engine.New(copyRoot, mod, engine.CodeData{Diff: d, Exclusion: excl}, level)
	result, err := e.Run(ctx)
	if err != nil {
		return report.Results{}, fmt.Errorf("failed to place mutations: %w", err)
	}

	mutants := filterEnabledKinds(result.Mutants)
	mutantsByID := make(map[mutant.ID]*mutant.Mutant, len(mutants))
	for _, m := range mutants {
		mutantsByID[m.ID()] = m
	}

	log.Infoln("Compiling instrumented module...")
	loop := compiler.New(gofrontend.New())
	if err := loop.Run(result.FileSet, result.Files, result.Placements, mutantsByID, copyRoot); err != nil {
		var unrecoverable *compiler.Unrecoverable
		if isUnrecoverable(err, &unrecoverable) {
			return report.Results{}, fmt.Errorf("instrumented module does not compile: %w", err)
		}

		return report.Results{}, err
	}

	if configuration.Get[bool](configuration.UnleashDryRunKey) {
		return report.Results{Module: mod.Name, Mutants: mutants, Elapsed: time.Since(start)}, nil
	}

	buildTags := configuration.Get[string](configuration.UnleashTagsKey)
	testCPU := configuration.Get[int](configuration.UnleashTestCPUKey)
	platform := testplatform.New(mod, buildTags, testCPU)
	sched := scheduler.New(platform)

	log.Infoln("Gathering coverage...")
	matrix, err := sched.CoverageRun(ctx, copyRoot, mutatePkg)
	if err != nil {
		return report.Results{}, fmt.Errorf("failed to gather coverage: %w", err)
	}

	runnable := runnableMutants(mutants)
	log.Infof("Testing %d mutants...\n", len(runnable))
	workers := configuration.Get[int](configuration.UnleashWorkersKey)
	if err := sched.Dispatch(ctx, copyRoot, mutatePkg, runnable, matrix, workers); err != nil {
		return report.Results{}, fmt.Errorf("failed to dispatch mutants: %w", err)
	}

	return report.Results{Module: mod.Name, Mutants: mutants, Elapsed: time.Since(start)}, nil
}

// filterEnabledKinds drops every mutant whose KindTag is disabled in
// configuration, marking it Ignored instead of simply omitting it, so it
// still shows up in the Ignored tally.
func filterEnabledKinds(mutants []*mutant.Mutant) []*mutant.Mutant {
	out := make([]*mutant.Mutant, 0, len(mutants))
	for _, m := range mutants {
		if m.Status() != mutant.Ignored && !configuration.Get[bool](configuration.MutantTypeEnabledKey(m.Kind())) {
			m.SetStatus(mutant.Ignored, "mutant kind disabled by configuration")
		}
		out = append(out, m)
	}

	return out
}

// runnableMutants returns the subset of mutants the compile/rollback loop
// did not already resolve to a terminal Status (Ignored, CompileError).
func runnableMutants(mutants []*mutant.Mutant) []*mutant.Mutant {
	out := make([]*mutant.Mutant, 0, len(mutants))
	for _, m := range mutants {
		if m.Status() == mutant.Pending {
			out = append(out, m)
		}
	}

	return out
}

func isUnrecoverable(err error, target **compiler.Unrecoverable) bool {
	u, ok := err.(*compiler.Unrecoverable)
	if ok {
		*target = u
	}

	return ok
}

func setMutateFlagsOnCmd(cmd *cobra.Command) error {
	cmd.Flags().SortFlags = false
	cmd.Flags().SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		from := []string{".", "_"}
		to := "-"
		for _, sep := range from {
			name = strings.ReplaceAll(name, sep, to)
		}

		return pflag.NormalizedName(name)
	})

	fls := []*flags.Flag{
		{Name: paramDryRun, CfgKey: configuration.UnleashDryRunKey, Shorthand: "d", DefaultV: false, Usage: "find mutations but do not execute tests"},
		{Name: paramBuildTags, CfgKey: configuration.UnleashTagsKey, Shorthand: "t", DefaultV: "", Usage: "a comma-separated list of build tags"},
		{Name: paramOutput, CfgKey: configuration.UnleashOutputKey, Shorthand: "o", DefaultV: "", Usage: "set the output file for machine readable results"},
		{Name: paramLevel, CfgKey: configuration.UnleashLevelKey, Shorthand: "l", DefaultV: "basic", Usage: "the mutation level: basic, standard, advanced, or complete"},
		{Name: paramSince, CfgKey: configuration.UnleashDiffRef, DefaultV: "", Usage: "only mutate lines changed since this git ref"},
		{Name: paramExcludeFiles, CfgKey: configuration.UnleashExcludeFiles, DefaultV: "", Usage: "a comma-separated list of regex patterns for files to exclude"},
		{Name: paramIntegrationMode, CfgKey: configuration.UnleashIntegrationMode, Shorthand: "i", DefaultV: false, Usage: "halve the engine's file-mutation worker pool, for resource-heavy full-suite runs"},
		{Name: paramThresholdEfficacy, CfgKey: configuration.UnleashThresholdEfficacyKey, DefaultV: float64(0), Usage: "threshold for code-efficacy percent"},
		{Name: paramThresholdMCoverage, CfgKey: configuration.UnleashThresholdMCoverageKey, DefaultV: float64(0), Usage: "threshold for mutant-coverage percent"},
		{Name: paramWorkers, CfgKey: configuration.UnleashWorkersKey, DefaultV: 0, Usage: "the number of concurrent dispatch invocations to use"},
		{Name: paramTestCPU, CfgKey: configuration.UnleashTestCPUKey, DefaultV: 0, Usage: "the number of CPUs to allow each test run to use"},
		{Name: paramTimeoutCoefficient, CfgKey: configuration.UnleashTimeoutCoefficientKey, DefaultV: 0, Usage: "the coefficient by which the adaptive timeout is increased"},
	}

	for _, f := range fls {
		if err := flags.Set(cmd, f); err != nil {
			return err
		}
	}

	return setMutantKindFlags(cmd)
}

// setMutantKindFlags adds one enable/disable flag per mutant.KindTag, the
// Go-idiomatic stand-in for an attribute-based mutation-kind toggle.
func setMutantKindFlags(cmd *cobra.Command) error {
	for _, kind := range mutant.AllKinds() {
		param := kebabCase(string(kind))
		usage := fmt.Sprintf("enable %q mutants", kind)
		confKey := configuration.MutantTypeEnabledKey(kind)

		err := flags.Set(cmd, &flags.Flag{
			Name:     param,
			CfgKey:   confKey,
			DefaultV: configuration.IsDefaultEnabled(kind),
			Usage:    usage,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// kebabCase turns a PascalCase KindTag such as "ArithmeticOp" into
// "arithmetic-op".
func kebabCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte('-')
		}
		b.WriteRune(unicode.ToLower(r))
	}

	return b.String()
}
