/*
 * Copyright (c) Marco Tusa 2021 - present
 *                     GNU GENERAL PUBLIC LICENSE
 *                        Version 3, 29 June 2007
 *
 *  Copyright (C) 2007 Free Software Foundation, Inc. <https://fsf.org/>
 *  Everyone is permitted to copy and distribute verbatim copies
 *  of this license document, but changing it is not allowed.
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

package RemoteExecution

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

// ****************  TESTS **********************************

func TestShellQuote(t *testing.T) {
	var tests = []quoteRule{}

	tests = rulesTestShellQuote()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shellQuote(tt.in); got != tt.want {
				t.Errorf(" %s shellQuote() = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestCommandSpec_CommandLine(t *testing.T) {
	commandSpec := CommandSpec{
		Program: "/usr/bin/pt-online-schema-change",
		Args:    []string{"--alter", "add column more_data varchar(50)", "--execute"},
	}

	want := "/usr/bin/pt-online-schema-change --alter 'add column more_data varchar(50)' --execute"
	if got := commandSpec.CommandLine(); got != want {
		t.Errorf(" CommandLine() = %v, want %v", got, want)
	}
}

func TestCommandSpec_IsSuccess(t *testing.T) {
	var tests = []successRule{}

	tests = rulesTestIsSuccess()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			commandSpec := CommandSpec{SuccessCodes: tt.successCodes}
			if got := commandSpec.IsSuccess(tt.exitCode); got != tt.want {
				t.Errorf(" %s IsSuccess() = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestCommandReturn_TimedOut(t *testing.T) {
	commandReturn := CommandReturn{ExitCode: TimeoutExitCode}
	if !commandReturn.TimedOut() {
		t.Errorf(" TimedOut() = false, want true for exit code %d", TimeoutExitCode)
	}
	commandReturn.ExitCode = 1
	if commandReturn.TimedOut() {
		t.Errorf(" TimedOut() = true, want false for exit code 1")
	}
}

func TestRunProcess(t *testing.T) {
	var tests = []processRule{}

	tests = rulesTestRunProcess()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := runProcess("db1001.example.org:3306", tt.program, tt.args, tt.timeOut)
			if got.ExitCode != tt.wantExit {
				t.Errorf(" %s runProcess() exit = %v, want %v", tt.name, got.ExitCode, tt.wantExit)
			}
			if got.Stdout != tt.wantStdout {
				t.Errorf(" %s runProcess() stdout = %v, want %v", tt.name, got.Stdout, tt.wantStdout)
			}
			if strings.Contains(got.Stderr, TimeoutMarker) != tt.wantMarker {
				t.Errorf(" %s runProcess() stderr = %v, marker expected %v", tt.name, got.Stderr, tt.wantMarker)
			}
			if got.TimedOut() != tt.wantMarker {
				t.Errorf(" %s runProcess() TimedOut() = %v, want %v", tt.name, got.TimedOut(), tt.wantMarker)
			}
			if got.HostDns != "db1001.example.org:3306" {
				t.Errorf(" %s runProcess() host = %v, want db1001.example.org:3306", tt.name, got.HostDns)
			}
		})
	}
}

func TestRunProcess_StartFailureReportsTheError(t *testing.T) {
	got := runProcess("db1001.example.org:3306", "/this/binary/does/not/exist", []string{}, 5*time.Second)
	if got.ExitCode != StartFailureExitCode {
		t.Errorf(" runProcess() exit = %v, want %v", got.ExitCode, StartFailureExitCode)
	}
	if got.Stderr == "" {
		t.Errorf(" runProcess() stderr is empty, want the start error")
	}
}

func TestLocalExecutionImpl_Execute(t *testing.T) {
	executor := testLocalExecutorFactory()
	commandSpec := testCommandSpecFactory("printf local")

	results, err := executor.Execute([]string{"db1001.example.org:3306"}, commandSpec)
	if err != nil {
		t.Errorf(" Execute() error = %v, want nil", err)
	}
	got, found := results["db1001.example.org:3306"]
	if !found {
		t.Errorf(" Execute() returned no result for the target")
	}
	if got.ExitCode != 0 || got.Stdout != "local" {
		t.Errorf(" Execute() = %v / %v, want 0 / local", got.ExitCode, got.Stdout)
	}
}

func TestLocalExecutionImpl_ExecuteTargetCount(t *testing.T) {
	var tests = []targetsRule{}

	executor := testLocalExecutorFactory()
	commandSpec := testCommandSpecFactory("printf local")
	tests = rulesTestLocalTargets()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executor.Execute(tt.targets, commandSpec)
			_, isInvalidTarget := err.(*InvalidTargetError)
			if isInvalidTarget != tt.wantErr {
				t.Errorf(" %s Execute() error = %v, invalid target expected %v", tt.name, err, tt.wantErr)
			}
		})
	}
}

func TestFleetExecutionImpl_Execute(t *testing.T) {
	executor := testFleetExecutorFactory()
	commandSpec := testCommandSpecFactory("printf fleet")
	targets := []string{"db1001.example.org:3306", "db1002.example.org:3306", "db1003.example.org:3306"}

	results, err := executor.Execute(targets, commandSpec)
	if err != nil {
		t.Errorf(" fleet Execute() error = %v, want nil", err)
	}
	if len(results) != len(targets) {
		t.Errorf(" fleet Execute() results = %v, want %v", len(results), len(targets))
	}

	for _, hostDns := range targets[0:2] {
		got := results[hostDns]
		if got.ExitCode != 0 || got.Stdout != "ran "+hostDns {
			t.Errorf(" fleet Execute() on %s = %v / %v, want 0 / ran %s", hostDns, got.ExitCode, got.Stdout, hostDns)
		}
	}
	//db1003 is the misbehaving one in the runner script
	got := results["db1003.example.org:3306"]
	if got.ExitCode != 5 || got.Stderr != "err3" {
		t.Errorf(" fleet Execute() on db1003 = %v / %v, want 5 / err3", got.ExitCode, got.Stderr)
	}
}

func TestFleetExecutionImpl_ExecuteRejectsEmptyTargets(t *testing.T) {
	executor := testFleetExecutorFactory()
	_, err := executor.Execute([]string{}, testCommandSpecFactory("printf fleet"))
	if _, isInvalidTarget := err.(*InvalidTargetError); !isInvalidTarget {
		t.Errorf(" fleet Execute() with no targets error = %v, want InvalidTargetError", err)
	}
}

func TestFleetExecutionImpl_buildRunnerArgs(t *testing.T) {
	executor := testFleetExecutorFactory()
	commandSpec := CommandSpec{Program: "/usr/bin/mysql", Args: []string{"-e", "select 1"}}

	got := executor.buildRunnerArgs("db1001.example.org:3306", commandSpec)
	want := []string{"-c", fleetRunnerScript, "testrunner", "db1001.example.org:3306", "/usr/bin/mysql -e 'select 1'"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf(" buildRunnerArgs() = %v, want %v", got, want)
	}
}

func TestNewExecutor(t *testing.T) {
	var tests = []backendRule{}

	tests = rulesTestNewExecutor()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executor, err := NewExecutor(testExecutionConfigFactory(tt.backend))
			if (err != nil) != tt.wantErr {
				t.Errorf(" %s NewExecutor() error = %v, error expected %v", tt.name, err, tt.wantErr)
			}
			if err == nil && executor.Name() != tt.wantName {
				t.Errorf(" %s NewExecutor() backend = %v, want %v", tt.name, executor.Name(), tt.wantName)
			}
		})
	}
}
