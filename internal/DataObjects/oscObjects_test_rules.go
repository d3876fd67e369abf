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

package DataObjects

import (
	"time"

	global "mariadb_osc_handler/internal/Global"
	RE "mariadb_osc_handler/internal/RemoteExecution"
)

/*
This section contains all the rules for the tests by tested method
*/

const (
	testMasterDns   = "db1001.example.org:3306"
	testReplica1Dns = "db1002.example.org:3306"
	testReplica2Dns = "db1003.example.org:3306"
	testDdl         = "add column more_data varchar(50)"
)

type jobRule struct {
	name           string
	scripted       map[string][]int
	perReplica     bool
	dryRun         bool
	wantRun        bool
	wantStatus     string
	wantExitCode   int
	wantOrder      []string
	wantFailedHost string
	wantStep       string
}

type initRule struct {
	name     string
	schema   string
	table    string
	ddl      string
	topology Topology
	executor RE.Executor
	want     bool
}

type commandSpecRule struct {
	name        string
	method      string
	perReplica  bool
	dryRun      bool
	hostDns     string
	wantProgram string
	wantArgs    []string
}

type setVarsRule struct {
	name       string
	toolVars   string
	perReplica bool
	want       string
}

/*
testExecutorImpl is a scripted execution backend, per host it returns the
configured exit code sequence one attempt at a time and records every call.
Hosts without a script always succeed.
*/
type testExecutorImpl struct {
	scripted   map[string][]int
	callOrder  []string
	specs      []RE.CommandSpec
	attempts   map[string]int
	failWith   error
	dropResult bool
	onExecute  func(hostDns string)
}

func (executor *testExecutorImpl) Name() string {
	return "scripted"
}

func (executor *testExecutorImpl) Execute(targets []string, commandSpec RE.CommandSpec) (map[string]RE.CommandReturn, error) {
	if executor.failWith != nil {
		return nil, executor.failWith
	}

	hostDns := targets[0]
	executor.callOrder = append(executor.callOrder, hostDns)
	executor.specs = append(executor.specs, commandSpec)

	sequence := executor.scripted[hostDns]
	attempt := executor.attempts[hostDns]
	executor.attempts[hostDns] = attempt + 1
	exitCode := 0
	if attempt < len(sequence) {
		exitCode = sequence[attempt]
	}

	if executor.onExecute != nil {
		executor.onExecute(hostDns)
	}
	if executor.dropResult {
		return map[string]RE.CommandReturn{}, nil
	}

	results := make(map[string]RE.CommandReturn, 1)
	results[hostDns] = RE.CommandReturn{
		HostDns:   hostDns,
		ExitCode:  exitCode,
		StartedAt: time.Now(),
		Duration:  time.Millisecond,
	}
	return results, nil
}

/*
testTopologyImpl serves canned nodes and scripted lag samples, one sample per
Lag call and the last one repeats forever. A host with no script is always
a healthy zero.
*/
type testTopologyImpl struct {
	master    DataNodeImpl
	replicas  []DataNodeImpl
	lagScript map[string][]LagSample
	lagErr    map[string]error
	lagCalls  map[string]int
	closed    bool
}

func (topology *testTopologyImpl) Master() DataNodeImpl {
	return topology.master
}

func (topology *testTopologyImpl) Replicas() []DataNodeImpl {
	return topology.replicas
}

func (topology *testTopologyImpl) Lag(hostDns string) (LagSample, error) {
	call := topology.lagCalls[hostDns]
	topology.lagCalls[hostDns] = call + 1

	if err, found := topology.lagErr[hostDns]; found {
		return LagSample{HostDns: hostDns, SampledAt: time.Now()}, err
	}

	sequence := topology.lagScript[hostDns]
	if len(sequence) == 0 {
		return LagSample{HostDns: hostDns, Seconds: 0, Valid: true, SampledAt: time.Now()}, nil
	}
	if call >= len(sequence) {
		return sequence[len(sequence)-1], nil
	}
	return sequence[call], nil
}

func (topology *testTopologyImpl) CloseConnections() {
	topology.closed = true
}

func testTopologyFactory() *testTopologyImpl {
	topology := new(testTopologyImpl)
	topology.master = DataNodeImpl{Dns: testMasterDns, Host: "db1001.example.org", Port: 3306, Role: RoleMaster, Processed: true}
	topology.replicas = []DataNodeImpl{
		{Dns: testReplica1Dns, Host: "db1002.example.org", Port: 3306, Role: RoleReplica, Processed: true},
		{Dns: testReplica2Dns, Host: "db1003.example.org", Port: 3306, Role: RoleReplica, Processed: true},
	}
	topology.lagScript = make(map[string][]LagSample)
	topology.lagErr = make(map[string]error)
	topology.lagCalls = make(map[string]int)
	return topology
}

func testExecutorFactory() *testExecutorImpl {
	executor := new(testExecutorImpl)
	executor.scripted = make(map[string][]int)
	executor.attempts = make(map[string]int)
	return executor
}

//retry and lag budgets shrunk so the whole suite stays fast
func testJobConfigFactory() global.Configuration {
	config := global.Configuration{}
	config.Mariadb.User = "osc"
	config.Osc.Method = MethodPercona
	config.Osc.ToolPath = "/usr/bin/pt-online-schema-change"
	config.Osc.ClientPath = "/usr/bin/mysql"
	config.Osc.PerReplica = true
	config.Osc.CommandTimeOut = 60
	config.Osc.SuccessCodes = []int{0}
	config.Osc.TransientCodes = []int{75}
	config.Osc.RetryMaxAttempts = 3
	config.Osc.RetryBackoffMs = 1
	config.Osc.RetryBackoffMaxMs = 4
	config.Osc.MaxReplicaLag = 10
	config.Osc.LagWaitBudget = 1
	config.Osc.LagCheckIntervalMs = 1
	return config
}

func testJobFactory(config global.Configuration, topology Topology, executor RE.Executor, dryRun bool) *SchemaChangeJobImpl {
	job := new(SchemaChangeJobImpl)
	job.Init(config, topology, executor, "test", "tbtest", testDdl, dryRun)
	return job
}

func rulesTestJobRun() []jobRule {
	myRules := []jobRule{
		{"All hosts clean", map[string][]int{}, true, false, true, JobStateSucceeded, 0,
			[]string{testReplica1Dns, testReplica2Dns, testMasterDns}, "", ""},
		{"Master only without per replica", map[string][]int{}, false, false, true, JobStateSucceeded, 0,
			[]string{testMasterDns}, "", ""},
		{"Transient then clean", map[string][]int{testReplica1Dns: {75, 0}}, true, false, true, JobStateSucceeded, 0,
			[]string{testReplica1Dns, testReplica1Dns, testReplica2Dns, testMasterDns}, "", ""},
		{"Transient to the very end", map[string][]int{testReplica1Dns: {75, 75, 75}}, true, false, false, JobStateFailed, 1,
			[]string{testReplica1Dns, testReplica1Dns, testReplica1Dns}, testReplica1Dns, FailureStepCommand},
		{"Non retryable stops on the spot", map[string][]int{testReplica2Dns: {1}}, true, false, false, JobStateFailed, 1,
			[]string{testReplica1Dns, testReplica2Dns}, testReplica2Dns, FailureStepCommand},
		{"Timeout sentinel is transient", map[string][]int{testReplica1Dns: {RE.TimeoutExitCode, RE.TimeoutExitCode, RE.TimeoutExitCode}}, true, false, false, JobStateFailed, 1,
			[]string{testReplica1Dns, testReplica1Dns, testReplica1Dns}, testReplica1Dns, FailureStepCommand},
		{"Dry run still runs the tool", map[string][]int{}, true, true, true, JobStateSucceeded, 0,
			[]string{testReplica1Dns, testReplica2Dns, testMasterDns}, "", ""},
	}
	return myRules
}

func rulesTestJobInit(topology Topology, executor RE.Executor) []initRule {
	myRules := []initRule{
		{"Complete request", "test", "tbtest", testDdl, topology, executor, true},
		{"Missing schema", "", "tbtest", testDdl, topology, executor, false},
		{"Missing table", "test", "", testDdl, topology, executor, false},
		{"Missing ddl", "test", "tbtest", "", topology, executor, false},
		{"Missing topology", "test", "tbtest", testDdl, nil, executor, false},
		{"Missing executor", "test", "tbtest", testDdl, topology, nil, false},
	}
	return myRules
}

func rulesTestBuildCommandSpec() []commandSpecRule {
	myRules := []commandSpecRule{
		{"Percona execute on replica", MethodPercona, true, false, testReplica1Dns,
			"/usr/bin/pt-online-schema-change",
			[]string{"--alter", testDdl, "--no-version-check", "--max-lag", "10",
				"--set-vars", "sql_log_bin=0", "--execute",
				"D=test,t=tbtest,h=db1002.example.org,P=3306,u=osc"}},
		{"Percona dry run", MethodPercona, true, true, testReplica1Dns,
			"/usr/bin/pt-online-schema-change",
			[]string{"--alter", testDdl, "--no-version-check", "--max-lag", "10",
				"--set-vars", "sql_log_bin=0", "--dry-run",
				"D=test,t=tbtest,h=db1002.example.org,P=3306,u=osc"}},
		{"Percona without per replica", MethodPercona, false, false, testMasterDns,
			"/usr/bin/pt-online-schema-change",
			[]string{"--alter", testDdl, "--no-version-check", "--max-lag", "10",
				"--execute", "D=test,t=tbtest,h=db1001.example.org,P=3306,u=osc"}},
		{"Ddl on replica", MethodDdl, true, false, testReplica1Dns,
			"/usr/bin/mysql",
			[]string{"-h", "db1002.example.org", "-P", "3306", "-u", "osc",
				"-e", "SET SESSION sql_log_bin=0; ALTER TABLE test.tbtest " + testDdl}},
		{"Ddl replicating from the master", MethodDdl, false, false, testMasterDns,
			"/usr/bin/mysql",
			[]string{"-h", "db1001.example.org", "-P", "3306", "-u", "osc",
				"-e", "ALTER TABLE test.tbtest " + testDdl}},
		{"Ddl host without port", MethodDdl, false, false, "db1001.example.org",
			"/usr/bin/mysql",
			[]string{"-h", "db1001.example.org", "-u", "osc",
				"-e", "ALTER TABLE test.tbtest " + testDdl}},
	}
	return myRules
}

func rulesTestBuildSetVars() []setVarsRule {
	myRules := []setVarsRule{
		{"Per replica only", "", true, "sql_log_bin=0"},
		{"Nothing at all", "", false, ""},
		{"Sorted variables after the binlog switch", "wait_timeout=10000;lock_wait_timeout=60", true,
			"sql_log_bin=0,lock_wait_timeout=60,wait_timeout=10000"},
		{"Sorted variables alone", "wait_timeout=10000;lock_wait_timeout=60", false,
			"lock_wait_timeout=60,wait_timeout=10000"},
	}
	return myRules
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
