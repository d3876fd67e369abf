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
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	global "mariadb_osc_handler/internal/Global"
)

const (
	BackendLocal = "local"
	BackendFleet = "fleet"

	// TimeoutExitCode cannot collide with a real process exit code (0-255)
	TimeoutExitCode      = -124
	StartFailureExitCode = -1

	TimeoutMarker = "[COMMAND TIMEOUT]"
)

/*
CommandSpec describes one command to run on the targets, how long it may take
and which exit codes count as success.
*/
type CommandSpec struct {
	Program      string
	Args         []string
	TimeOut      time.Duration
	SuccessCodes []int
}

func (commandSpec CommandSpec) IsSuccess(exitCode int) bool {
	if len(commandSpec.SuccessCodes) == 0 {
		return exitCode == 0
	}
	return global.ContainsInt(commandSpec.SuccessCodes, exitCode)
}

// CommandLine renders program and arguments as a single shell safe string for the runner
func (commandSpec CommandSpec) CommandLine() string {
	parts := make([]string, 0, len(commandSpec.Args)+1)
	parts = append(parts, shellQuote(commandSpec.Program))
	for _, argument := range commandSpec.Args {
		parts = append(parts, shellQuote(argument))
	}
	return strings.Join(parts, " ")
}

/*
CommandReturn is the outcome of one command on one target.
StartedAt and Duration are populated also when the command never ran.
*/
type CommandReturn struct {
	HostDns   string
	ExitCode  int
	Stdout    string
	Stderr    string
	StartedAt time.Time
	Duration  time.Duration
}

func (commandReturn CommandReturn) TimedOut() bool {
	return commandReturn.ExitCode == TimeoutExitCode
}

/*
Executor runs one CommandSpec against a set of targets and returns the
per host outcome. Implementations never retry, the caller owns the retry policy.
*/
type Executor interface {
	Name() string
	Execute(targets []string, commandSpec CommandSpec) (map[string]CommandReturn, error)
}

type InvalidTargetError struct {
	Backend string
	Targets int
}

func (invalidTarget *InvalidTargetError) Error() string {
	return fmt.Sprintf("execution backend %s cannot run against %d targets", invalidTarget.Backend, invalidTarget.Targets)
}

// NewExecutor picks the implementation declared in the execution section
func NewExecutor(config global.Configuration) (Executor, error) {
	switch config.Execution.Backend {
	case BackendLocal:
		executor := new(LocalExecutionImpl)
		if !executor.Init(config) {
			return nil, fmt.Errorf("cannot initialize the %s execution backend", BackendLocal)
		}
		return executor, nil
	case BackendFleet:
		executor := new(FleetExecutionImpl)
		if !executor.Init(config) {
			return nil, fmt.Errorf("cannot initialize the %s execution backend", BackendFleet)
		}
		return executor, nil
	default:
		return nil, fmt.Errorf("unsupported execution backend %s", config.Execution.Backend)
	}
}

/*
runProcess runs one local process with a hard deadline and translates the
outcome into a CommandReturn. A deadline hit becomes the timeout sentinel
exit code plus a marker on stderr, a binary that cannot start becomes
StartFailureExitCode with the error on stderr.
*/
func runProcess(hostDns string, program string, args []string, timeOut time.Duration) CommandReturn {
	ctx, cancel := context.WithTimeout(context.Background(), timeOut)
	defer cancel()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command := exec.CommandContext(ctx, program, args...)
	command.Stdout = &stdout
	command.Stderr = &stderr

	log.Debug("Executing on host ", hostDns, ": ", program, " ", strings.Join(args, " "))
	startedAt := time.Now()
	err := command.Run()
	duration := time.Since(startedAt)

	commandReturn := CommandReturn{
		HostDns:   hostDns,
		ExitCode:  0,
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		StartedAt: startedAt,
		Duration:  duration,
	}

	if ctx.Err() == context.DeadlineExceeded {
		commandReturn.ExitCode = TimeoutExitCode
		commandReturn.Stderr = appendStderrMarker(commandReturn.Stderr, TimeoutMarker)
		log.Warning("Command on host ", hostDns, " killed after ", timeOut, " timeout")
		return commandReturn
	}

	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			commandReturn.ExitCode = exitError.ExitCode()
		} else {
			commandReturn.ExitCode = StartFailureExitCode
			commandReturn.Stderr = appendStderrMarker(commandReturn.Stderr, err.Error())
			log.Error("Cannot start command on host ", hostDns, ": ", err)
		}
	}
	return commandReturn
}

func appendStderrMarker(stderr string, marker string) string {
	if stderr == "" {
		return marker
	}
	return strings.TrimRight(stderr, "\n") + "\n" + marker
}

func shellQuote(argument string) string {
	if argument == "" {
		return "''"
	}
	if !strings.ContainsAny(argument, " \t\n\"'`$\\|&;()<>*?[]{}#~") {
		return argument
	}
	return "'" + strings.ReplaceAll(argument, "'", `'\''`) + "'"
}
