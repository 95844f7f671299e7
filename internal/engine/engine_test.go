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

package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/mutanet/mutanet/internal/engine"
	"github.com/mutanet/mutanet/internal/exclusion"
	"github.com/mutanet/mutanet/internal/gomodule"
	"github.com/mutanet/mutanet/internal/mutant"
)

const sampleSource = `package sample

var initialised = true

func Pick(b bool) bool {
	if b {
		return true
	}

	return false
}

// Code generated by mockery. DO NOT EDIT.
`

func writeModule(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	return dir
}

func TestRun_placesMutationsAndTracksStatics(t *testing.T) {
	dir := writeModule(t, map[string]string{
		"sample.go": `package sample

var initialised = true

func Pick(b bool) bool {
	if b {
		return true
	}

	return false
}
`,
	})

	mod := gomodule.GoModule{Name: "example.com/sample", Root: dir}
	e := engine.New(dir, mod, engine.CodeData{}, mutant.Complete)

	result, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Mutants) == 0 {
		t.Fatal("expected at least one mutant")
	}
	if len(result.Placements) == 0 {
		t.Fatal("expected at least one placement")
	}

	var sawStatic, sawDynamic bool
	for _, m := range result.Mutants {
		if m.Status() == mutant.Ignored {
			continue
		}
		if m.IsStaticCovering() {
			sawStatic = true
		} else {
			sawDynamic = true
		}
	}
	if !sawStatic {
		t.Error("expected a statically-covering mutant from the package-level var")
	}
	if !sawDynamic {
		t.Error("expected a dynamically-covering mutant from inside the function body")
	}
}

func TestRun_skipsGeneratedFiles(t *testing.T) {
	dir := writeModule(t, map[string]string{
		"generated.go": sampleSource,
	})

	mod := gomodule.GoModule{Name: "example.com/sample", Root: dir}
	e := engine.New(dir, mod, engine.CodeData{}, mutant.Complete)

	result, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Mutants) != 0 {
		t.Errorf("expected generated file to be skipped, got %d mutants", len(result.Mutants))
	}
}

func TestRun_honoursIgnoreMarker(t *testing.T) {
	dir := writeModule(t, map[string]string{
		"sample.go": `package sample

func Pick(b bool) bool {
	//mutanet:ignore
	if b {
		return true
	}

	return false
}
`,
	})

	mod := gomodule.GoModule{Name: "example.com/sample", Root: dir}
	e := engine.New(dir, mod, engine.CodeData{}, mutant.Complete)

	result, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sawIgnoredInsideGuard, sawLiveOutsideGuard bool
	for _, m := range result.Mutants {
		switch m.Position().Line {
		case 6: // `return true` inside the marked if-block
			if m.Status() == mutant.Ignored {
				sawIgnoredInsideGuard = true
			}
		case 9: // `return false` outside the marked if-block
			if m.Status() != mutant.Ignored {
				sawLiveOutsideGuard = true
			}
		}
	}
	if !sawIgnoredInsideGuard {
		t.Error("expected the mutant inside the marked if-block to be Ignored")
	}
	if !sawLiveOutsideGuard {
		t.Error("expected the mutant outside the marked if-block to survive the ignore filter")
	}
}

func TestRun_honoursExclusionRules(t *testing.T) {
	dir := writeModule(t, map[string]string{
		"excluded/sample.go": `package excluded

var initialised = true
`,
	})

	mod := gomodule.GoModule{Name: "example.com/sample", Root: dir}
	rules := exclusion.Rules{regexp.MustCompile(`^excluded/`)}
	e := engine.New(dir, mod, engine.CodeData{Exclusion: rules}, mutant.Complete)

	result, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Mutants) != 0 {
		t.Errorf("expected excluded package to yield no mutants, got %d", len(result.Mutants))
	}
}

func TestRun_respectsLevel(t *testing.T) {
	dir := writeModule(t, map[string]string{
		"sample.go": `package sample

var initialised = true
`,
	})

	mod := gomodule.GoModule{Name: "example.com/sample", Root: dir}
	e := engine.New(dir, mod, engine.CodeData{}, mutant.Basic)

	result, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, m := range result.Mutants {
		t.Errorf("expected no mutants at Basic level for a boolean literal, got %s", m.Kind())
	}
}
