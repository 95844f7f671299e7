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
	"go/token"
	"testing"

	"github.com/mutanet/mutanet/internal/configuration"
	"github.com/mutanet/mutanet/internal/mutant"
)

func TestMutate(t *testing.T) {
	c, err := newMutateCmd(context.Background())
	if err != nil {
		t.Fatal("newMutateCmd should not fail")
	}
	cmd := c.cmd

	if cmd.Name() != "mutate" {
		t.Errorf("expected 'mutate', got %q", cmd.Name())
	}

	flags := cmd.Flags()

	testCases := []struct {
		name      string
		shorthand string
		flagType  string
		defValue  string
	}{
		{name: "dry-run", shorthand: "d", flagType: "bool", defValue: "false"},
		{name: "tags", shorthand: "t", flagType: "string", defValue: ""},
		{name: "output", shorthand: "o", flagType: "string", defValue: ""},
		{name: "level", shorthand: "l", flagType: "string", defValue: "basic"},
		{name: "since", flagType: "string", defValue: ""},
		{name: "exclude-files", flagType: "string", defValue: ""},
		{name: "integration", shorthand: "i", flagType: "bool", defValue: "false"},
		{name: "threshold-efficacy", flagType: "float64", defValue: "0"},
		{name: "threshold-mcover", flagType: "float64", defValue: "0"},
		{name: "workers", flagType: "int", defValue: "0"},
		{name: "test-cpu", flagType: "int", defValue: "0"},
		{name: "timeout-coefficient", flagType: "int", defValue: "0"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			f := flags.Lookup(tc.name)
			if f == nil {
				t.Fatalf("expected flag %q to be registered", tc.name)
			}
			if tc.shorthand != "" && f.Shorthand != tc.shorthand {
				t.Errorf("expected %q to have shorthand %q, got %q", tc.name, tc.shorthand, f.Shorthand)
			}
			if f.Value.Type() != tc.flagType {
				t.Errorf("expected %q to be type %q, got %q", tc.name, tc.flagType, f.Value.Type())
			}
			if f.DefValue != tc.defValue {
				t.Errorf("expected %q to have default value %q, got %q", tc.name, tc.defValue, f.DefValue)
			}
		})
	}

	for _, kind := range mutant.AllKinds() {
		name := kebabCase(string(kind))
		kf := flags.Lookup(name)
		if kf == nil {
			t.Errorf("expected to have flag for mutant kind: %s", kind)

			continue
		}
		if kf.Value.Type() != "bool" {
			t.Errorf("expected %q to be a %q, got %q", name, "bool", kf.Value.Type())
		}
		wantDef := fmt.Sprintf("%v", configuration.IsDefaultEnabled(kind))
		if kf.DefValue != wantDef {
			t.Errorf("expected %q to have default %q, got %q", name, wantDef, kf.DefValue)
		}
	}
}

func TestKebabCase(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{in: "ArithmeticOp", want: "arithmetic-op"},
		{in: "Boolean", want: "boolean"},
		{in: "NullConditional", want: "null-conditional"},
	}
	for _, tc := range testCases {
		if got := kebabCase(tc.in); got != tc.want {
			t.Errorf("kebabCase(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRunnableMutants(t *testing.T) {
	pos := token.Position{Filename: "f.go", Line: 1}
	pending := mutant.New(0, mutant.KindBoolean, "f.go", pos)
	ignored := mutant.New(1, mutant.KindBoolean, "f.go", pos)
	ignored.SetStatus(mutant.Ignored, "test")

	out := runnableMutants([]*mutant.Mutant{pending, ignored})
	if len(out) != 1 || out[0] != pending {
		t.Errorf("expected only the pending mutant to survive, got %d", len(out))
	}
}
