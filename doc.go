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

/*
Mutanet is a mutation testing tool for Go.

Unlike a per-mutant rewrite-and-recompile engine, mutanet places every
candidate mutation behind a runtime switch and compiles the whole
instrumented tree exactly once. A coverage pass then tells it which test
hits which mutant id, so the dispatch phase only ever runs a mutant
against the handful of tests that can actually catch it.

Usage

To execute a mutation test run, from the root of a Go module execute:

	$ mutanet mutate

If the Go test run needs build tags, they can be passed along:

	$ mutanet mutate --tags "tag1,tag2"

To perform the analysis without actually running the tests:

	$ mutanet mutate --dry-run

Mutanet will report each mutation as:
  - PENDING: In dry-run mode, a mutation that compiled and could be tested.
  - NO COVERAGE: A mutation no test exercises; it will not be tested.
  - KILLED: The mutation has been caught by the test suite.
  - SURVIVED: The mutation hasn't been caught by the test suite.
  - TIMED OUT: The tests timed out while testing the mutation.
  - COMPILE ERROR: The mutation made the instrumented tree fail to build.
  - IGNORED: The mutation will not be tested: it sits under a
    //mutanet:ignore marker, outside the requested diff range, or at a site
    that cannot be wrapped, or its kind is disabled in configuration.
    Files matched by an exclusion rule yield no mutations at all.

Configuration

Mutanet uses Viper (https://github.com/spf13/viper) for configuration. The
options can be passed in the following ways, each taking precedence over
the following in the list:

  - specific command flags
  - environment variables
  - configuration file

The environment variables must be set with the following syntax:

	MUTANET_UNLEASH_<FLAG NAME>

in which every dash in the option name must be replaced with an
underscore.

Example:

	$ MUTANET_UNLEASH_DRY_RUN=true mutanet mutate

The configuration file must be named .mutanet.yaml and must be in the
following format:

	unleash:
	  dry-run: false
	  tags: ...

and can be placed in one of the following folders, in order:

  - /etc/mutanet (not on Windows)
  - $XDG_CONFIG_HOME/mutanet/mutanet ($XDG_CONFIG_HOME defaults to ~/.config)
  - $HOME/.mutanet
  - the root of the Go module
  - the current folder
*/
package mutanet
