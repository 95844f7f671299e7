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

package configuration

import (
	"github.com/mutanet/mutanet/internal/mutant"
)

var mutationEnabled = map[mutant.KindTag]bool{
	mutant.KindArithmeticOp:    true,
	mutant.KindConditionalsOp:  true,
	mutant.KindUpdate:          true,
	mutant.KindInvertLogical:   false,
	mutant.KindInvertNegatives: true,
	mutant.KindLoopControl:     true,
	mutant.KindBoolean:         false,
	mutant.KindString:          false,
	mutant.KindBitwiseOp:       false,
	mutant.KindAssignmentOp:    false,
	mutant.KindCheckedRemoval:  false,
	mutant.KindNullConditional: false,
	mutant.KindCollectionInit:  false,
	mutant.KindCallSwap:        false,
}

// IsDefaultEnabled returns the default enabled/disabled state of the given
// mutator kind. It gets the state from the table above, which must be kept
// up to date when adding new mutator kinds.
func IsDefaultEnabled(kind mutant.KindTag) bool {
	return mutationEnabled[kind]
}
