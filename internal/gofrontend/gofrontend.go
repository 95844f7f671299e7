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

// Package gofrontend is the language-frontend collaborator: it wraps
// go/parser for reading source into an AST, and the go build tool for
// turning an instrumented tree back into a binary. Nothing downstream of
// this package should import go/parser or os/exec directly - every other
// compiler-facing concern goes through here.
package gofrontend

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"os"
	"os/exec"
	"regexp"
	"strconv"
)

// Parse reads the Go source at path into an *ast.File, preserving comments
// (mutators rely on them for the //mutanet:ignore marker) and positions
// (the placer and diagnostic mapper both need accurate spans).
func Parse(fset *token.FileSet, path string) (*ast.File, error) {
	return parser.ParseFile(fset, path, nil, parser.ParseComments)
}

// Render prints file back to Go source, byte for byte reproducible given
// the same *ast.File, the way the teacher's writeMutatedFile does.
func Render(fset *token.FileSet, file *ast.File) ([]byte, error) {
	var buf bytes.Buffer
	cfg := printer.Config{Mode: printer.UseSpaces | printer.TabIndent, Tabwidth: 8}
	if err := cfg.Fprint(&buf, fset, file); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// execContext matches exec.Command's signature, overridable in tests.
type execContext = func(name string, args ...string) *exec.Cmd

// Diagnostic is one `file:line:col: message` line emitted by a failed
// build.
type Diagnostic struct {
	File    string
	Line    int
	Col     int
	Message string
}

var diagnosticPattern = regexp.MustCompile(`^(.+\.go):(\d+):(\d+): (.+)$`)

// Compiler invokes `go build` over a workdir-provisioned module copy.
type Compiler struct {
	execContext execContext
}

// New builds a Compiler using exec.Command.
func New() Compiler {
	return Compiler{execContext: exec.Command}
}

// WithExecContext overrides the Compiler's process launcher, for tests.
func (c Compiler) WithExecContext(e execContext) Compiler {
	c.execContext = e

	return c
}

// Compile runs `go build ./...` in dir. On success it returns (nil, nil).
// On a build failure it returns the parsed diagnostics and a non-nil
// error; the caller maps each diagnostic's position back to the
// offending placement.
func (c Compiler) Compile(dir string) ([]Diagnostic, error) {
	cmd := c.execContext("go", "build", "./...")
	cmd.Dir = dir

	out, err := cmd.CombinedOutput()
	if err == nil {
		return nil, nil
	}

	var exitErr *exec.ExitError
	if !isExitError(err, &exitErr) {
		return nil, fmt.Errorf("failed to invoke go build: %w", err)
	}

	return parseDiagnostics(out), fmt.Errorf("build failed: %w", err)
}

// BuildTest compiles an instrumented test binary for pkg into outPath,
// via `go test -c`, the step that turns the surviving instrumented tree
// into the artifact the scheduler dispatches against.
func (c Compiler) BuildTest(dir, pkg, outPath string) error {
	cmd := c.execContext("go", "test", "-c", "-o", outPath, pkg)
	cmd.Dir = dir

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to build instrumented test binary: %w: %s", err, out)
	}

	return nil
}

func parseDiagnostics(out []byte) []Diagnostic {
	var diags []Diagnostic
	for _, line := range splitLines(out) {
		m := diagnosticPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		lineNo, _ := strconv.Atoi(m[2])
		col, _ := strconv.Atoi(m[3])
		diags = append(diags, Diagnostic{File: m[1], Line: lineNo, Col: col, Message: m[4]})
	}

	return diags
}

func splitLines(b []byte) []string {
	var lines []string
	start := 0
	for i, c := range b {
		if c == '\n' {
			lines = append(lines, string(b[start:i]))
			start = i + 1
		}
	}
	if start < len(b) {
		lines = append(lines, string(b[start:]))
	}

	return lines
}

func isExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if ok {
		*target = ee
	}

	return ok
}

// WriteFile writes content to path, the final step of rendering an
// instrumented file into a workdir copy.
func WriteFile(path string, content []byte) error {
	return os.WriteFile(path, content, 0o644)
}
