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

package main

import (
	"fmt"
	"runtime"
	"testing"
)

func TestBuildVersion(t *testing.T) {
	platform := fmt.Sprintf(" %s/%s", runtime.GOOS, runtime.GOARCH)
	testCases := []struct {
		name    string
		version string
		want    string
	}{
		{
			name: "empty version",
			want: platform,
		},
		{
			name:    "version set",
			version: "1.2.3",
			want:    "1.2.3" + platform,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := buildVersion(tc.version)
			if got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
