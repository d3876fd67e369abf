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
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	global "mariadb_osc_handler/internal/Global"
)

/*
FleetExecutionImpl fans the command out through an external remote execution
runner (cumin by default), one runner process per target with at most
MaxParallel in flight. The runner is invoked as:
	runnerPath runnerArgs... <target> '<command line>'
*/
type FleetExecutionImpl struct {
	RunnerPath      string
	RunnerArgs      []string
	MaxParallel     int
	CheckIntervalMs int
	Debug           bool
}

func (fleetExecution *FleetExecutionImpl) Init(config global.Configuration) bool {
	fleetExecution.RunnerPath = config.Execution.RunnerPath
	fleetExecution.RunnerArgs = config.Execution.RunnerArgs
	fleetExecution.MaxParallel = config.Execution.MaxParallel
	fleetExecution.CheckIntervalMs = config.Execution.CheckIntervalMs
	fleetExecution.Debug = config.Global.Debug

	if fleetExecution.RunnerPath == "" {
		log.Error("Fleet execution backend requires a runner, RunnerPath is empty")
		return false
	}
	if !global.CheckIfPathExists(fleetExecution.RunnerPath) {
		log.Warning("Runner binary not found at ", fleetExecution.RunnerPath, " I will trust PATH resolution")
	}
	log.Debug("Fleet execution backend ready, runner: ", fleetExecution.RunnerPath)
	return true
}

func (fleetExecution *FleetExecutionImpl) Name() string {
	return BackendFleet
}

/*
Execute runs the command on every target in parallel. Workers pull targets
from a channel so the number of in flight runner processes never exceeds
MaxParallel, results land in a lock guarded map keyed by target.
*/
func (fleetExecution *FleetExecutionImpl) Execute(targets []string, commandSpec CommandSpec) (map[string]CommandReturn, error) {
	if len(targets) < 1 {
		return nil, &InvalidTargetError{Backend: BackendFleet, Targets: len(targets)}
	}

	results := newCommandReturnMap()
	targetChannel := make(chan string, len(targets))
	for _, hostDns := range targets {
		targetChannel <- hostDns
	}
	close(targetChannel)

	workers := fleetExecution.MaxParallel
	if workers > len(targets) {
		workers = len(targets)
	}

	var waitingGroup global.MyWaitGroup
	for i := 0; i < workers; i++ {
		waitingGroup.IncreaseCounter()
		go fleetExecution.runWorker(targetChannel, commandSpec, results, &waitingGroup)
	}
	log.Debug("Fleet execution started with #", workers, " workers for #", len(targets), " targets")

	//each worker handles at most one full command timeout per wave of targets,
	//runProcess kills anything that lingers so this loop always terminates
	waves := (len(targets) + workers - 1) / workers
	maxWait := commandSpec.TimeOut*time.Duration(waves) + 5*time.Second
	start := time.Now()
	for time.Since(start) < maxWait {
		time.Sleep(time.Duration(fleetExecution.CheckIntervalMs) * time.Millisecond)
		if waitingGroup.ReportCounter() == 0 {
			break
		}
	}
	if waitingGroup.ReportCounter() > 0 {
		log.Warning("Fleet execution still has #", waitingGroup.ReportCounter(), " workers running after ", maxWait)
	}
	log.Debug("Fleet execution done in ", time.Since(start))

	return results.CloneMap(), nil
}

func (fleetExecution *FleetExecutionImpl) runWorker(targetChannel chan string, commandSpec CommandSpec, results *commandReturnMap, wg *global.MyWaitGroup) int {
	for hostDns := range targetChannel {
		runnerArgs := fleetExecution.buildRunnerArgs(hostDns, commandSpec)
		results.Store(hostDns, runProcess(hostDns, fleetExecution.RunnerPath, runnerArgs, commandSpec.TimeOut))
	}
	wg.DecreaseCounter()
	log.Debug("Fleet worker done, still running #", wg.ReportCounter())
	return 0
}

func (fleetExecution *FleetExecutionImpl) buildRunnerArgs(hostDns string, commandSpec CommandSpec) []string {
	runnerArgs := make([]string, 0, len(fleetExecution.RunnerArgs)+2)
	runnerArgs = append(runnerArgs, fleetExecution.RunnerArgs...)
	runnerArgs = append(runnerArgs, hostDns, commandSpec.CommandLine())
	return runnerArgs
}

type commandReturnMap struct {
	sync.RWMutex
	internal map[string]CommandReturn
}

func newCommandReturnMap() *commandReturnMap {
	return &commandReturnMap{
		internal: make(map[string]CommandReturn),
	}
}

func (rm *commandReturnMap) Load(key string) (value CommandReturn, ok bool) {
	rm.RLock()
	defer rm.RUnlock()
	result, ok := rm.internal[key]
	return result, ok
}

func (rm *commandReturnMap) Store(key string, value CommandReturn) {
	rm.Lock()
	defer rm.Unlock()
	rm.internal[key] = value
}

func (rm *commandReturnMap) CloneMap() map[string]CommandReturn {
	rm.RLock()
	defer rm.RUnlock()
	exposed := make(map[string]CommandReturn, len(rm.internal))
	for key, value := range rm.internal {
		exposed[key] = value
	}
	return exposed
}
