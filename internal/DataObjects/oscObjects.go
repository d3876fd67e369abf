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
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	global "mariadb_osc_handler/internal/Global"
	RE "mariadb_osc_handler/internal/RemoteExecution"
)

const (
	JobStatePending   = "pending"
	JobStateRunning   = "running"
	JobStateSucceeded = "succeeded"
	JobStateFailed    = "failed"
	JobStateAborted   = "aborted"
)

const (
	HostStatePending   = "pending"
	HostStateRunning   = "running"
	HostStateSucceeded = "succeeded"
	HostStateFailed    = "failed"
)

const (
	FailureStepCommand = "command"
	FailureStepLagWait = "lag-wait"
)

const (
	MethodPercona = "percona"
	MethodDdl     = "ddl"
)

/*
TimeoutError marks an exhausted budget, either a command that kept hitting
its hard deadline or a lag wait that burned the whole allowance.
*/
type TimeoutError struct {
	HostDns       string
	Phase         string
	BudgetSeconds int
}

func (timeoutError *TimeoutError) Error() string {
	return fmt.Sprintf("host %s exhausted the %s budget of %d seconds", timeoutError.HostDns, timeoutError.Phase, timeoutError.BudgetSeconds)
}

//TransientCommandFailure is a retryable exit code that survived every allowed attempt
type TransientCommandFailure struct {
	HostDns  string
	ExitCode int
	Attempts int
}

func (transientFailure *TransientCommandFailure) Error() string {
	return fmt.Sprintf("host %s still fails with transient exit code %d after %d attempts", transientFailure.HostDns, transientFailure.ExitCode, transientFailure.Attempts)
}

//NonRetryableCommandFailure is an exit code outside both the success and the transient list
type NonRetryableCommandFailure struct {
	HostDns  string
	ExitCode int
}

func (nonRetryable *NonRetryableCommandFailure) Error() string {
	return fmt.Sprintf("host %s failed with non retryable exit code %d", nonRetryable.HostDns, nonRetryable.ExitCode)
}

type SchemaChange interface {
	Init(config global.Configuration, topology Topology, executor RE.Executor, schema string, table string, ddl string, dryRun bool) bool
	Run() bool
	RequestAbort()
	AbortRequested() bool
	ExitCode() int
}

/*
SchemaChangeJobImpl walks one DDL over the section, replicas first in
inventory order and the master always last. One host at a time, a lag gate
between hosts, fail fast on the first final failure.
State goes pending > running > succeeded | failed | aborted and never back.
*/
type SchemaChangeJobImpl struct {
	JobId  string
	Schema string
	Table  string
	Ddl    string
	DryRun bool

	Method     string
	ToolPath   string
	ClientPath string
	ToolVars   string
	ExtraArgs  []string
	PerReplica bool
	User       string

	CommandTimeOut     int
	SuccessCodes       []int
	TransientCodes     []int
	RetryMaxAttempts   int
	RetryBackoffMs     int
	RetryBackoffMaxMs  int
	MaxReplicaLag      int
	LagWaitBudget      int
	LagCheckIntervalMs int

	topology Topology
	executor RE.Executor

	Status        string
	HostStatus    map[string]string
	HostAttempts  map[string]int
	HostResults   map[string][]RE.CommandReturn
	FailedHostDns string
	FailureStep   string
	FailureError  error
	StartedAt     time.Time
	EndedAt       time.Time

	hostOrder []string
	hostRole  map[string]string

	abortLock      sync.Mutex
	abortRequested bool
}

func (job *SchemaChangeJobImpl) Init(config global.Configuration, topology Topology, executor RE.Executor, schema string, table string, ddl string, dryRun bool) bool {
	if schema == "" || table == "" || ddl == "" {
		log.Error("A schema change needs schema, table and ddl, got schema: '", schema, "' table: '", table, "' ddl: '", ddl, "'")
		return false
	}
	if topology == nil || executor == nil {
		log.Error("A schema change job needs a topology and an execution backend")
		return false
	}

	job.JobId = uuid.New().String()
	job.Schema = schema
	job.Table = table
	job.Ddl = ddl
	job.DryRun = dryRun

	job.Method = config.Osc.Method
	job.ToolPath = config.Osc.ToolPath
	job.ClientPath = config.Osc.ClientPath
	job.ToolVars = config.Osc.ToolVars
	job.ExtraArgs = config.Osc.ExtraArgs
	job.PerReplica = config.Osc.PerReplica
	job.User = config.Mariadb.User

	job.CommandTimeOut = config.Osc.CommandTimeOut
	job.SuccessCodes = config.Osc.SuccessCodes
	job.TransientCodes = config.Osc.TransientCodes
	job.RetryMaxAttempts = config.Osc.RetryMaxAttempts
	job.RetryBackoffMs = config.Osc.RetryBackoffMs
	job.RetryBackoffMaxMs = config.Osc.RetryBackoffMaxMs
	job.MaxReplicaLag = config.Osc.MaxReplicaLag
	job.LagWaitBudget = config.Osc.LagWaitBudget
	job.LagCheckIntervalMs = config.Osc.LagCheckIntervalMs

	job.topology = topology
	job.executor = executor

	job.Status = JobStatePending
	job.buildPlan()
	log.Info("Schema change job ", job.JobId, " ready: ", job.describe(), " on #", len(job.hostOrder), " hosts via ", executor.Name())
	return true
}

//replicas first in inventory order, the master always last. Without the per
//replica mode the change runs once on the master and replicates by itself
func (job *SchemaChangeJobImpl) buildPlan() {
	replicas := job.topology.Replicas()
	master := job.topology.Master()

	planned := make([]string, 0, len(replicas)+1)
	job.hostRole = make(map[string]string, len(replicas)+1)
	if job.PerReplica {
		for _, replica := range replicas {
			planned = append(planned, replica.Dns)
			job.hostRole[replica.Dns] = RoleReplica
		}
	}
	planned = append(planned, master.Dns)
	job.hostRole[master.Dns] = RoleMaster

	job.hostOrder = planned
	job.HostStatus = make(map[string]string, len(planned))
	job.HostAttempts = make(map[string]int, len(planned))
	job.HostResults = make(map[string][]RE.CommandReturn, len(planned))
	for _, hostDns := range planned {
		job.HostStatus[hostDns] = HostStatePending
	}
}

/*
Run drives the whole job. It can be called once, a job that already ran
stays in its final state. An abort request is honored at host boundaries
only, the host in flight always completes.
*/
func (job *SchemaChangeJobImpl) Run() bool {
	if job.Status != JobStatePending {
		log.Error("Job ", job.JobId, " cannot run from state ", job.Status)
		return false
	}
	if global.Performance {
		global.SetPerformanceObj("schema_change", true, log.InfoLevel)
	}
	job.Status = JobStateRunning
	job.StartedAt = time.Now()
	log.Info("Job ", job.JobId, " started, plan: ", strings.Join(job.hostOrder, ", "))

	for position, hostDns := range job.hostOrder {
		if job.AbortRequested() {
			job.finish(JobStateAborted)
			log.Warning("Job ", job.JobId, " aborted before host ", hostDns, ", remaining hosts untouched")
			return false
		}

		if !job.runHost(hostDns) {
			job.finish(JobStateFailed)
			return false
		}

		//lag gate between hosts, nothing left to wait for after the last one
		if position < len(job.hostOrder)-1 && !job.DryRun {
			if !job.waitForReplicaConvergence(hostDns) {
				job.finish(JobStateFailed)
				return false
			}
		}
	}

	job.finish(JobStateSucceeded)
	return true
}

/*
runHost runs the schema change command on one host honoring the retry
policy. The execution backend never retries by itself, attempts are counted
only here. A timeout sentinel counts as transient, any exit code outside
the success and the transient list ends the job on the spot.
*/
func (job *SchemaChangeJobImpl) runHost(hostDns string) bool {
	job.HostStatus[hostDns] = HostStateRunning
	commandSpec := job.buildCommandSpec(hostDns)

	if job.DryRun && job.Method == MethodDdl {
		//nothing to run, the plain client has no dry run of its own
		log.Info("Dry run on ", hostDns, " would execute: ", commandSpec.CommandLine())
		job.HostStatus[hostDns] = HostStateSucceeded
		return true
	}

	backoff := time.Duration(job.RetryBackoffMs) * time.Millisecond
	maxBackoff := time.Duration(job.RetryBackoffMaxMs) * time.Millisecond

	var lastReturn RE.CommandReturn
	for attempt := 1; attempt <= job.RetryMaxAttempts; attempt++ {
		job.HostAttempts[hostDns] = attempt
		log.Info("Job ", job.JobId, " host ", hostDns, " attempt #", attempt, " of ", job.RetryMaxAttempts)

		results, err := job.executor.Execute([]string{hostDns}, commandSpec)
		if err != nil {
			//a target mismatch does not get better by retrying
			job.failHost(hostDns, err)
			return false
		}
		commandReturn, found := results[hostDns]
		if !found {
			job.failHost(hostDns, fmt.Errorf("execution backend %s returned no result for host %s", job.executor.Name(), hostDns))
			return false
		}
		lastReturn = commandReturn
		job.HostResults[hostDns] = append(job.HostResults[hostDns], commandReturn)

		if commandSpec.IsSuccess(commandReturn.ExitCode) {
			job.HostStatus[hostDns] = HostStateSucceeded
			log.Info("Job ", job.JobId, " host ", hostDns, " succeeded with exit code ", commandReturn.ExitCode, " in ", commandReturn.Duration)
			return true
		}

		if !job.isTransient(commandReturn) {
			job.failHost(hostDns, &NonRetryableCommandFailure{HostDns: hostDns, ExitCode: commandReturn.ExitCode})
			logStderr(hostDns, commandReturn)
			return false
		}

		log.Warning("Job ", job.JobId, " host ", hostDns, " failed with transient exit code ", commandReturn.ExitCode)
		if attempt < job.RetryMaxAttempts {
			log.Info("Job ", job.JobId, " host ", hostDns, " retry in ", backoff)
			time.Sleep(backoff)
			backoff = backoff * 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}

	//transient to the very end
	if lastReturn.TimedOut() {
		job.failHost(hostDns, &TimeoutError{HostDns: hostDns, Phase: FailureStepCommand, BudgetSeconds: job.CommandTimeOut})
	} else {
		job.failHost(hostDns, &TransientCommandFailure{HostDns: hostDns, ExitCode: lastReturn.ExitCode, Attempts: job.RetryMaxAttempts})
	}
	logStderr(hostDns, lastReturn)
	return false
}

/*
waitForReplicaConvergence holds the job between two hosts until every
replica of the section is back under the lag threshold. An invalid sample
(NULL lag, stopped threads, unreachable host) never passes the gate and a
lag we cannot read at all is handled the same fail safe way. A budget
exhausted counts as transient, the whole wait runs again under the command
retry policy before the job gives up. A zero budget means one single check
per attempt.
*/
func (job *SchemaChangeJobImpl) waitForReplicaConvergence(afterHostDns string) bool {
	backoff := time.Duration(job.RetryBackoffMs) * time.Millisecond
	maxBackoff := time.Duration(job.RetryBackoffMaxMs) * time.Millisecond

	log.Info("Job ", job.JobId, " waiting for replica convergence after ", afterHostDns,
		" (max lag ", job.MaxReplicaLag, "s, budget ", job.LagWaitBudget, "s)")

	laggardDns := ""
	var lagError error
	for attempt := 1; attempt <= job.RetryMaxAttempts; attempt++ {
		converged, aborted, roundLaggardDns, roundError := job.pollReplicaLag()
		if aborted {
			//the abort check at the top of the host loop takes it from here
			return true
		}
		if converged {
			log.Info("Job ", job.JobId, " replicas converged")
			return true
		}
		laggardDns = roundLaggardDns
		lagError = roundError

		log.Warning("Job ", job.JobId, " replicas still behind after ", job.LagWaitBudget,
			"s, laggard ", laggardDns, ", attempt #", attempt, " of ", job.RetryMaxAttempts)
		if attempt < job.RetryMaxAttempts {
			time.Sleep(backoff)
			backoff = backoff * 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}

	if lagError != nil {
		job.failLagWait(laggardDns, lagError)
		return false
	}
	job.failLagWait(laggardDns, &TimeoutError{HostDns: laggardDns, Phase: FailureStepLagWait, BudgetSeconds: job.LagWaitBudget})
	return false
}

/*
pollReplicaLag burns one wait budget polling every replica, the first
round with all of them healthy wins. The last blocking replica and, when
the block was an unreadable lag, its error come back with the verdict.
*/
func (job *SchemaChangeJobImpl) pollReplicaLag() (bool, bool, string, error) {
	interval := time.Duration(job.LagCheckIntervalMs) * time.Millisecond
	deadline := time.Now().Add(time.Duration(job.LagWaitBudget) * time.Second)

	laggardDns := ""
	var lagError error
	for {
		if job.AbortRequested() {
			return false, true, "", nil
		}

		laggardDns = ""
		lagError = nil
		converged := true
		for _, replica := range job.topology.Replicas() {
			lagSample, err := job.topology.Lag(replica.Dns)
			if err != nil {
				//fail safe, a lag we cannot read is a lag we cannot trust
				converged = false
				laggardDns = replica.Dns
				lagError = err
				log.Warning("Cannot read the lag of ", replica.Dns, ": ", err)
				break
			}
			if !lagSample.IsHealthy(float64(job.MaxReplicaLag)) {
				converged = false
				laggardDns = replica.Dns
				if lagSample.Valid {
					log.Debug("Replica ", replica.Dns, " lag ", lagSample.Seconds, "s is above threshold ", job.MaxReplicaLag, "s")
				} else {
					log.Debug("Replica ", replica.Dns, " lag sample is invalid")
				}
				break
			}
		}
		if converged {
			return true, false, "", nil
		}
		if time.Now().After(deadline) {
			return false, false, laggardDns, lagError
		}
		time.Sleep(interval)
	}
}

/*
buildCommandSpec renders the method into the actual command for one host.
percona:
	pt-online-schema-change --alter <ddl> ... D=<schema>,t=<table>,h=<host>,P=<port>,u=<user>
ddl:
	mysql -h <host> -P <port> -u <user> -e "SET SESSION sql_log_bin=0; ALTER TABLE ..."
The password never lands on a command line, the tools read it from the
usual option files on the target host.
*/
func (job *SchemaChangeJobImpl) buildCommandSpec(hostDns string) RE.CommandSpec {
	host, port := splitDns(hostDns)
	var program string
	var args []string

	switch job.Method {
	case MethodDdl:
		program = job.ClientPath
		statement := "ALTER TABLE " + job.Schema + "." + job.Table + " " + job.Ddl
		if job.PerReplica {
			statement = "SET SESSION sql_log_bin=0; " + statement
		}
		args = []string{"-h", host}
		if port != "" {
			args = append(args, "-P", port)
		}
		if job.User != "" {
			args = append(args, "-u", job.User)
		}
		args = append(args, job.ExtraArgs...)
		args = append(args, "-e", statement)

	default:
		program = job.ToolPath
		args = []string{"--alter", job.Ddl, "--no-version-check", "--max-lag", strconv.Itoa(job.MaxReplicaLag)}
		if setVars := job.buildSetVars(); setVars != "" {
			args = append(args, "--set-vars", setVars)
		}
		if job.DryRun {
			args = append(args, "--dry-run")
		} else {
			args = append(args, "--execute")
		}
		args = append(args, job.ExtraArgs...)

		dsn := "D=" + job.Schema + ",t=" + job.Table + ",h=" + host
		if port != "" {
			dsn = dsn + ",P=" + port
		}
		if job.User != "" {
			dsn = dsn + ",u=" + job.User
		}
		args = append(args, dsn)
	}

	return RE.CommandSpec{
		Program:      program,
		Args:         args,
		TimeOut:      time.Duration(job.CommandTimeOut) * time.Second,
		SuccessCodes: job.SuccessCodes,
	}
}

//pt-osc wants one comma separated --set-vars argument, the config carries
//the variables in the usual "var1=value1;var2=value2" form
func (job *SchemaChangeJobImpl) buildSetVars() string {
	variables := global.FromStringToMAp(job.ToolVars, ";")
	names := make([]string, 0, len(variables))
	for name := range variables {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	rendered := make([]string, 0, len(names)+1)
	if job.PerReplica {
		rendered = append(rendered, "sql_log_bin=0")
	}
	for _, name := range names {
		rendered = append(rendered, name+"="+variables[name])
	}
	return strings.Join(rendered, ",")
}

func (job *SchemaChangeJobImpl) isTransient(commandReturn RE.CommandReturn) bool {
	if commandReturn.TimedOut() {
		return true
	}
	return global.ContainsInt(job.TransientCodes, commandReturn.ExitCode)
}

func (job *SchemaChangeJobImpl) failHost(hostDns string, failure error) {
	job.HostStatus[hostDns] = HostStateFailed
	job.FailedHostDns = hostDns
	job.FailureStep = FailureStepCommand
	job.FailureError = failure
	log.Error("Job ", job.JobId, " host ", hostDns, " failed during ", FailureStepCommand, ": ", failure)
}

//the laggard keeps its command state, only the job level failure points at it
func (job *SchemaChangeJobImpl) failLagWait(laggardDns string, failure error) {
	job.FailedHostDns = laggardDns
	job.FailureStep = FailureStepLagWait
	job.FailureError = failure
	log.Error("Job ", job.JobId, " lag wait failed on host ", laggardDns, ": ", failure)
}

func (job *SchemaChangeJobImpl) finish(state string) {
	job.Status = state
	job.EndedAt = time.Now()
	if global.Performance {
		global.SetPerformanceObj("schema_change", false, log.InfoLevel)
	}
	log.Info("Job ", job.JobId, " finished as ", state, " in ", job.EndedAt.Sub(job.StartedAt))
}

//RequestAbort flags the job, the host in flight completes and everything after stays untouched
func (job *SchemaChangeJobImpl) RequestAbort() {
	job.abortLock.Lock()
	defer job.abortLock.Unlock()
	if !job.abortRequested {
		job.abortRequested = true
		log.Warning("Job ", job.JobId, " abort requested, will stop at the next host boundary")
	}
}

func (job *SchemaChangeJobImpl) AbortRequested() bool {
	job.abortLock.Lock()
	defer job.abortLock.Unlock()
	return job.abortRequested
}

//process exit code contract: 0 succeeded, 1 failed, 2 aborted
func (job *SchemaChangeJobImpl) ExitCode() int {
	switch job.Status {
	case JobStateSucceeded:
		return 0
	case JobStateAborted:
		return 2
	default:
		return 1
	}
}

func (job *SchemaChangeJobImpl) describe() string {
	mode := "execute"
	if job.DryRun {
		mode = "dry-run"
	}
	return fmt.Sprintf("%s ALTER TABLE %s.%s %s [%s]", mode, job.Schema, job.Table, job.Ddl, job.Method)
}

func splitDns(hostDns string) (string, string) {
	host, port, err := net.SplitHostPort(hostDns)
	if err != nil {
		return hostDns, ""
	}
	return host, port
}

func logStderr(hostDns string, commandReturn RE.CommandReturn) {
	stderr := strings.TrimSpace(commandReturn.Stderr)
	if stderr != "" {
		log.Error("Host ", hostDns, " stderr: ", stderr)
	}
}
