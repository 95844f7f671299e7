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

package coverage_test

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mutanet/mutanet/internal/coverage"
	"github.com/mutanet/mutanet/internal/gomodule"
)

type commandHolder struct {
	events []struct {
		command string
		args    []string
	}
}

func TestCoverageRun_invokesGoTest(t *testing.T) {
	testCases := []struct {
		name     string
		callPath string
		wantPath string
	}{
		{name: "from root", callPath: ".", wantPath: "./..."},
		{name: "from folder", callPath: "test/pkg", wantPath: "./test/pkg/..."},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			workDir := t.TempDir()
			writeCoverageFixture(t, filepath.Join(workDir, "coverage"))

			holder := &commandHolder{}
			mod := gomodule.GoModule{Name: "example.com", Root: ".", CallingDir: tc.callPath}
			cov := coverage.NewWithCmd(fakeExecCommandSuccess(holder), workDir, mod)

			if _, err := cov.Run(); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(holder.events) != 2 {
				t.Fatalf("expected two commands to be executed, got %d", len(holder.events))
			}
			secondGot := fmt.Sprintf("go %s", strings.Join(holder.events[1].args, " "))
			secondWant := fmt.Sprintf("go test -cover -coverprofile %s/coverage %s", workDir, tc.wantPath)
			if !cmp.Equal(secondGot, secondWant) {
				t.Errorf("%s", cmp.Diff(secondGot, secondWant))
			}
		})
	}
}

func TestCoverageRun_failsOnDownloadOrTest(t *testing.T) {
	mod := gomodule.GoModule{Name: "example.com", Root: ".", CallingDir: "."}

	t.Run("failure of: go mod download", func(t *testing.T) {
		cov := coverage.NewWithCmd(fakeExecCommandFailure(0), t.TempDir(), mod)
		if _, err := cov.Run(); err == nil {
			t.Error("expected run to report an error")
		}
	})

	t.Run("failure of: go test", func(t *testing.T) {
		cov := coverage.NewWithCmd(fakeExecCommandFailure(1), t.TempDir(), mod)
		if _, err := cov.Run(); err == nil {
			t.Error("expected run to report an error")
		}
	})
}

func TestCoverageRun_parsesProfile(t *testing.T) {
	workDir := t.TempDir()
	writeCoverageFixture(t, filepath.Join(workDir, "coverage"))

	mod := gomodule.GoModule{Name: "example.com", Root: ".", CallingDir: "."}
	cov := coverage.NewWithCmd(fakeExecCommandSuccess(nil), workDir, mod)

	got, err := cov.Run()
	if err != nil {
		t.Fatal(err)
	}
	want := coverage.Profile{
		"file1.go": {{StartLine: 47, StartCol: 2, EndLine: 48, EndCol: 16}},
	}
	if !cmp.Equal(got.Profile, want) {
		t.Error(cmp.Diff(got.Profile, want))
	}
}

func writeCoverageFixture(t *testing.T, path string) {
	t.Helper()
	content := "mode: set\n" +
		"example.com/file1.go:47.2,48.16 1 1\n" +
		"example.com/file1.go:60.2,61.16 1 0\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write coverage fixture: %v", err)
	}
}

type execContext = func(name string, args ...string) *exec.Cmd

func fakeExecCommandSuccess(got *commandHolder) execContext {
	return func(command string, args ...string) *exec.Cmd {
		if got != nil {
			got.events = append(got.events, struct {
				command string
				args    []string
			}{command: command, args: args})
		}
		cs := []string{"-test.run=TestCoverageProcessSuccess", "--", command}
		cs = append(cs, args...)
		// #nosec G204 - test helper process, not production code.
		cmd := exec.Command(os.Args[0], cs...)
		cmd.Env = []string{"GO_TEST_PROCESS=1"}

		return cmd
	}
}

func fakeExecCommandFailure(failAt int) execContext {
	var executed int

	return func(command string, args ...string) *exec.Cmd {
		cs := []string{"-test.run=TestCoverageProcessSuccess", "--", command}
		if executed == failAt {
			cs = []string{"-test.run=TestCoverageProcessFailure", "--", command}
		}
		cs = append(cs, args...)
		// #nosec G204 - test helper process, not production code.
		cmd := exec.Command(os.Args[0], cs...)
		cmd.Env = []string{"GO_TEST_PROCESS=1"}
		executed++

		return cmd
	}
}

func TestCoverageProcessSuccess(_ *testing.T) {
	if os.Getenv("GO_TEST_PROCESS") != "1" {
		return
	}
	os.Exit(0) // skipcq: RVV-A0003
}

func TestCoverageProcessFailure(_ *testing.T) {
	if os.Getenv("GO_TEST_PROCESS") != "1" {
		return
	}
	os.Exit(1) // skipcq: RVV-A0003
}
