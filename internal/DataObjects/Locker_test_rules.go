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
	"os"
	"time"

	global "mariadb_osc_handler/internal/Global"
)

/*
This section contains all the rules for the tests by tested method
*/

type fileLockRule struct {
	name     string
	pidTest  int
	timeTest int64
	evaluate bool
	want     bool
}

//a pid far above any real pid_max, nothing can be running there
const testDeadPid = 99999999

func testFileLockFactory(fullPath string) FileLockImp {
	flLock := FileLockImp{
		flPid:          os.Getpid(),
		flFullPath:     fullPath,
		flTimeCreation: time.Now().UnixNano(),
		flTimeout:      60,
	}
	return flLock
}

func testLockerConfigFactory(lockPath string) *global.Configuration {
	config := new(global.Configuration)
	config.Global.LockFilePath = lockPath
	config.Global.LockFileTimeout = 60
	config.Global.LockClusterTimeout = 10
	return config
}

//seeds a lock file exactly the way SetLock writes one
func testSeedLockFile(fullPath string, pid int, lockTime int64) bool {
	seed := FileLockImp{
		flPid:          pid,
		flFullPath:     fullPath,
		flTimeCreation: lockTime,
		flTimeout:      60,
	}
	return seed.SetLock()
}

func rulesTestFileLock(flTimeCreation int64) []fileLockRule {
	/*
		the evaluating lock carries flTimeCreation as its own clock, so ten
		seconds of age stays well within the 60 seconds timeout and seventy
		seconds is past it. The parent of the test process is alive for sure.
	*/
	myRules := []fileLockRule{
		{"File Locker not to process", testDeadPid, flTimeCreation - 10000000000, false, false},
		{"File Locker same pid", os.Getpid(), flTimeCreation - 10000000000, true, false},
		{"File Locker pid is long gone", testDeadPid, flTimeCreation - 10000000000, true, true},
		{"File Locker pid alive lock young", os.Getppid(), flTimeCreation - 10000000000, true, false},
		{"File Locker pid alive lock stale", os.Getppid(), flTimeCreation - 70000000000, true, true},
	}
	return myRules
}
