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
	"time"

	global "mariadb_osc_handler/internal/Global"
)

/*
This section contains all the rules for the tests by tested method
*/

type quoteRule struct {
	name string
	in   string
	want string
}

type successRule struct {
	name         string
	successCodes []int
	exitCode     int
	want         bool
}

type processRule struct {
	name       string
	program    string
	args       []string
	timeOut    time.Duration
	wantExit   int
	wantStdout string
	wantMarker bool
}

type targetsRule struct {
	name    string
	targets []string
	wantErr bool
}

type backendRule struct {
	name     string
	backend  string
	wantName string
	wantErr  bool
}

//the test runner stands in for cumin, it gets the target as $1 and the
//rendered command line as $2 exactly like the real one
const fleetRunnerScript = `case "$1" in
*db1003*) printf err3 >&2; exit 5 ;;
*) printf "ran %s" "$1" ;;
esac`

func rulesTestShellQuote() []quoteRule {
	myRules := []quoteRule{
		{"Empty argument", "", "''"},
		{"Plain flag", "--execute", "--execute"},
		{"Argument with spaces", "add column more_data varchar(50)", `'add column more_data varchar(50)'`},
		{"Argument with single quote", `default 'x'`, `'default '\''x'\'''`},
		{"Argument with shell meta", "a;b", "'a;b'"},
		{"Argument with dollar", "$HOME", "'$HOME'"},
	}
	return myRules
}

func rulesTestIsSuccess() []successRule {
	myRules := []successRule{
		{"Empty list zero succeeds", []int{}, 0, true},
		{"Empty list one fails", []int{}, 1, false},
		{"Custom list zero not listed", []int{3}, 0, false},
		{"Custom list match", []int{0, 3}, 3, true},
		{"Timeout sentinel never succeeds", []int{0}, TimeoutExitCode, false},
		{"Start failure never succeeds", []int{0}, StartFailureExitCode, false},
	}
	return myRules
}

func rulesTestRunProcess() []processRule {
	myRules := []processRule{
		{"Clean exit", "/bin/sh", []string{"-c", "printf out"}, 5 * time.Second, 0, "out", false},
		{"Real failure exit code", "/bin/sh", []string{"-c", "exit 7"}, 5 * time.Second, 7, "", false},
		{"Deadline produces the sentinel", "/bin/sh", []string{"-c", "sleep 3"}, 150 * time.Millisecond, TimeoutExitCode, "", true},
		{"Binary that cannot start", "/this/binary/does/not/exist", []string{}, 5 * time.Second, StartFailureExitCode, "", false},
	}
	return myRules
}

func rulesTestLocalTargets() []targetsRule {
	myRules := []targetsRule{
		{"Single target is accepted", []string{"db1001.example.org:3306"}, false},
		{"No target at all", []string{}, true},
		{"Two targets", []string{"db1001.example.org:3306", "db1002.example.org:3306"}, true},
	}
	return myRules
}

func rulesTestNewExecutor() []backendRule {
	myRules := []backendRule{
		{"Local backend", BackendLocal, BackendLocal, false},
		{"Fleet backend", BackendFleet, BackendFleet, false},
		{"Unknown backend", "teleport", "", true},
	}
	return myRules
}

func testExecutionConfigFactory(backend string) global.Configuration {
	config := global.Configuration{}
	config.Execution.Backend = backend
	config.Execution.RunnerPath = "/bin/sh"
	config.Execution.RunnerArgs = []string{"-c", fleetRunnerScript, "testrunner"}
	config.Execution.MaxParallel = 2
	config.Execution.CheckIntervalMs = 1
	config.Global.Debug = true
	return config
}

func testLocalExecutorFactory() *LocalExecutionImpl {
	executor := new(LocalExecutionImpl)
	executor.Init(testExecutionConfigFactory(BackendLocal))
	return executor
}

func testFleetExecutorFactory() *FleetExecutionImpl {
	executor := new(FleetExecutionImpl)
	executor.Init(testExecutionConfigFactory(BackendFleet))
	return executor
}

func testCommandSpecFactory(script string) CommandSpec {
	commandSpec := CommandSpec{
		Program:      "/bin/sh",
		Args:         []string{"-c", script},
		TimeOut:      5 * time.Second,
		SuccessCodes: []int{0},
	}
	return commandSpec
}
