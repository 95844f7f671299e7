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

package coverage

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/tools/cover"

	"github.com/mutanet/mutanet/internal/configuration"
	"github.com/mutanet/mutanet/internal/gomodule"
	"github.com/mutanet/mutanet/internal/log"
)

// Result is the outcome of a coarse coverage pre-pass: which source blocks
// any test reaches at all, and how long gathering that took. The engine
// does not consult it: mutations are placed whether or not their line
// appears in the profile.
type Result struct {
	Profile Profile
	Elapsed time.Duration
}

// Coverage runs `go test -coverprofile` over the module and parses the
// resulting profile.
type Coverage struct {
	cmdContext execContext
	workDir    string
	mod        gomodule.GoModule
	fileName   string
}

type execContext = func(name string, args ...string) *exec.Cmd

// New instantiates a Coverage using exec.Command as its execContext.
func New(workDir string, mod gomodule.GoModule) Coverage {
	return NewWithCmd(exec.Command, workDir, mod)
}

// NewWithCmd instantiates a Coverage given a custom execContext, used in
// tests to avoid shelling out to the real go tool.
func NewWithCmd(cmdContext execContext, workDir string, mod gomodule.GoModule) Coverage {
	return Coverage{
		cmdContext: cmdContext,
		workDir:    workDir,
		mod:        mod,
		fileName:   "coverage",
	}
}

// Run downloads the module's dependencies, then runs the test suite with
// coverage enabled and parses the result into a Result.
func (c Coverage) Run() (Result, error) {
	log.Infoln("Gathering coverage data...")
	start := time.Now()

	if err := c.downloadDependencies(); err != nil {
		return Result{}, fmt.Errorf("impossible to download dependencies: %w", err)
	}
	if err := c.execute(); err != nil {
		return Result{}, fmt.Errorf("impossible to execute coverage: %w", err)
	}

	profile, err := c.getProfile()
	if err != nil {
		return Result{}, fmt.Errorf("an error occurred while generating coverage profile: %w", err)
	}

	return Result{Profile: profile, Elapsed: time.Since(start)}, nil
}

func (c Coverage) downloadDependencies() error {
	cmd := c.cmdContext("go", "mod", "download")
	cmd.Dir = c.mod.Root
	cmd.Stderr = os.Stderr

	return cmd.Run()
}

func (c Coverage) execute() error {
	args := []string{"test"}
	if tags := configuration.Get[string](configuration.UnleashTagsKey); tags != "" {
		args = append(args, "-tags", tags)
	}
	if pkg := configuration.Get[string](configuration.UnleashCoverPkgKey); pkg != "" {
		args = append(args, "-coverpkg", pkg)
	}
	args = append(args, "-cover", "-coverprofile", c.filePath(), c.testPath())

	cmd := c.cmdContext("go", args...)
	cmd.Dir = c.mod.Root
	cmd.Stderr = os.Stderr

	return cmd.Run()
}

func (c Coverage) testPath() string {
	if configuration.Get[bool](configuration.UnleashIntegrationMode) {
		return "./..."
	}
	dir := strings.TrimSuffix(c.mod.CallingDir, "/")
	if dir == "" || dir == "." {
		return "./..."
	}

	return fmt.Sprintf("./%s/...", dir)
}

func (c Coverage) filePath() string {
	return fmt.Sprintf("%s/%s", c.workDir, c.fileName)
}

func (c Coverage) getProfile() (Profile, error) {
	f, err := os.Open(c.filePath())
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	return c.parse(f)
}

func (c Coverage) parse(data io.Reader) (Profile, error) {
	profiles, err := cover.ParseProfilesFromReader(data)
	if err != nil {
		return nil, err
	}
	result := make(Profile)
	for _, p := range profiles {
		for _, b := range p.Blocks {
			if b.Count == 0 {
				continue
			}
			fn := strings.TrimPrefix(p.FileName, c.mod.Name+"/")
			result[fn] = append(result[fn], Block{
				StartLine: b.StartLine,
				StartCol:  b.StartCol,
				EndLine:   b.EndLine,
				EndCol:    b.EndCol,
			})
		}
	}

	return result, nil
}
