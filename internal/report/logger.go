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

// Package report formats and outputs mutation testing results.
package report

import (
	"errors"

	"github.com/mutanet/mutanet/internal/configuration"
	"github.com/mutanet/mutanet/internal/log"
	"github.com/mutanet/mutanet/internal/mutant"
)

// Filter maps mutant statuses to filter which mutants are logged.
type Filter = map[mutant.Status]struct{}

// ErrInvalidFilter is returned when an invalid status filter string is provided.
var ErrInvalidFilter = errors.New("invalid statuses filter, only 'icnkts' letters allowed")

// MutantLogger prints mutant statuses based on filter and verbosity flags.
type MutantLogger struct {
	Filter
}

// NewLogger creates a new MutantLogger with filters from configuration.
func NewLogger() MutantLogger {
	outputStatuses := configuration.Get[string](configuration.UnleashOutputStatusesKey)
	f, err := ParseFilter(outputStatuses)
	if err != nil {
		log.Infof("output-statuses filter not applied: %s\n", err)
	}

	return MutantLogger{
		Filter: f,
	}
}

// Mutant logs a mutant if it passes the filter.
func (l MutantLogger) Mutant(m *mutant.Mutant) {
	if l.Filter == nil {
		Mutant(m)

		return
	}

	if _, ok := l.Filter[m.Status()]; ok {
		Mutant(m)
	}
}

// ParseFilter parses a status filter string into a Filter map.
// Valid characters are 'icnkts' representing, in order, Ignored,
// CompileError, NoCoverage, Killed, Timeout and Survived.
func ParseFilter(s string) (Filter, error) {
	if s == "" {
		return nil, nil
	}

	result := Filter{}

	for _, r := range s {
		switch r {
		case 'i':
			result[mutant.Ignored] = struct{}{}
		case 'c':
			result[mutant.CompileError] = struct{}{}
		case 'n':
			result[mutant.NoCoverage] = struct{}{}
		case 'k':
			result[mutant.Killed] = struct{}{}
		case 't':
			result[mutant.Timeout] = struct{}{}
		case 's':
			result[mutant.Survived] = struct{}{}
		default:
			return nil, ErrInvalidFilter
		}
	}

	return result, nil
}
