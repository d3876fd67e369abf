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
	log "github.com/sirupsen/logrus"
	global "mariadb_osc_handler/internal/Global"
)

/*
LocalExecutionImpl runs the command as a child process on the machine the
handler itself runs on. It accepts exactly one target, the target name is
only used to key the result.
*/
type LocalExecutionImpl struct {
	Debug bool
}

func (localExecution *LocalExecutionImpl) Init(config global.Configuration) bool {
	localExecution.Debug = config.Global.Debug
	log.Debug("Local execution backend ready")
	return true
}

func (localExecution *LocalExecutionImpl) Name() string {
	return BackendLocal
}

func (localExecution *LocalExecutionImpl) Execute(targets []string, commandSpec CommandSpec) (map[string]CommandReturn, error) {
	if len(targets) != 1 {
		return nil, &InvalidTargetError{Backend: BackendLocal, Targets: len(targets)}
	}

	hostDns := targets[0]
	results := make(map[string]CommandReturn, 1)
	results[hostDns] = runProcess(hostDns, commandSpec.Program, commandSpec.Args, commandSpec.TimeOut)
	return results, nil
}
