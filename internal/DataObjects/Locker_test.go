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
	"testing"
	"time"
)

// ****************  TESTS **********************************

/* Tests for FileLockImp [start] */
func TestFileLockImp_EvaluateFileLockForRemoval(t *testing.T) {
	//log.SetLevel(log.DebugLevel)
	flLock := testFileLockFactory("/tmp/locktest.lock")

	var tests = []fileLockRule{}
	tests = rulesTestFileLock(flLock.flTimeCreation)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := flLock.EvaluateFileLockForRemoval(tt.evaluate, tt.pidTest, tt.timeTest); got != tt.want {
				t.Errorf(" %s EvaluateFileLockForRemoval() = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestFileLockImp_SetLock(t *testing.T) {
	fullPath := t.TempDir() + string(os.PathSeparator) + "mariadb_osc_handler_s1.lock"
	flLock := testFileLockFactory(fullPath)

	if got := flLock.SetLock(); got != true {
		t.Errorf(" SetLock() on a fresh path = %v, want true", got)
	}
	if !flLock.flIsActive {
		t.Errorf(" SetLock() left flIsActive = false, want true")
	}

	exists, lockPid, lockTime := flLock.CheckLockFIleExists()
	if !exists || lockPid != os.Getpid() || lockTime != flLock.flTimeCreation {
		t.Errorf(" CheckLockFIleExists() = %v %v %v, want true %v %v",
			exists, lockPid, lockTime, os.Getpid(), flLock.flTimeCreation)
	}
}

func TestFileLockImp_SetLockOverwritesAnAbandonedLock(t *testing.T) {
	fullPath := t.TempDir() + string(os.PathSeparator) + "mariadb_osc_handler_s1.lock"
	if !testSeedLockFile(fullPath, testDeadPid, time.Now().UnixNano()) {
		t.Errorf(" could not seed the abandoned lock file")
	}

	flLock := testFileLockFactory(fullPath)
	if got := flLock.SetLock(); got != true {
		t.Errorf(" SetLock() over a dead owner = %v, want true", got)
	}
	_, lockPid, _ := flLock.CheckLockFIleExists()
	if lockPid != os.Getpid() {
		t.Errorf(" CheckLockFIleExists() pid = %v, want %v", lockPid, os.Getpid())
	}
}

func TestFileLockImp_SetLockRespectsALiveLock(t *testing.T) {
	fullPath := t.TempDir() + string(os.PathSeparator) + "mariadb_osc_handler_s1.lock"
	if !testSeedLockFile(fullPath, os.Getppid(), time.Now().UnixNano()) {
		t.Errorf(" could not seed the live lock file")
	}

	flLock := testFileLockFactory(fullPath)
	if got := flLock.SetLock(); got != false {
		t.Errorf(" SetLock() against a live owner = %v, want false", got)
	}
}

/* Tests for FileLockImp [end] */

/* Tests for LockerImpl [start] */
func TestLockerImpl_Init(t *testing.T) {
	lockPath := t.TempDir()
	config := testLockerConfigFactory(lockPath)
	topology := testTopologyImplFactory()

	locker := new(LockerImpl)
	if got := locker.Init(config, topology, "test", "tbtest"); got != true {
		t.Errorf(" Init() = %v, want true", got)
	}
	if locker.FileLock != "mariadb_osc_handler_s1.lock" {
		t.Errorf(" Init() FileLock = %v, want mariadb_osc_handler_s1.lock", locker.FileLock)
	}
	if locker.ClusterLockId != "mariadb_osc_test_tbtest" {
		t.Errorf(" Init() ClusterLockId = %v, want mariadb_osc_test_tbtest", locker.ClusterLockId)
	}

	flLock := locker.GetFileLock()
	if flLock.flPid != os.Getpid() || flLock.flTimeout != config.Global.LockFileTimeout {
		t.Errorf(" Init() file lock pid/timeout = %v/%v, want %v/%v",
			flLock.flPid, flLock.flTimeout, os.Getpid(), config.Global.LockFileTimeout)
	}
	if flLock.flFullPath != lockPath+string(os.PathSeparator)+locker.FileLock {
		t.Errorf(" Init() file lock path = %v, want %v", flLock.flFullPath, lockPath+string(os.PathSeparator)+locker.FileLock)
	}
}

func TestLockerImpl_SetLockFileNeedsAName(t *testing.T) {
	locker := new(LockerImpl)
	if got := locker.SetLockFile(); got != false {
		t.Errorf(" SetLockFile() without a name = %v, want false", got)
	}
}

func TestLockerImpl_FileLockRoundTrip(t *testing.T) {
	config := testLockerConfigFactory(t.TempDir())
	topology := testTopologyImplFactory()

	locker := new(LockerImpl)
	locker.Init(config, topology, "test", "tbtest")
	if got := locker.SetLockFile(); got != true {
		t.Errorf(" SetLockFile() = %v, want true", got)
	}
	if !locker.IsFileLocked {
		t.Errorf(" SetLockFile() left IsFileLocked = false, want true")
	}

	//same section on the same host, the second run must be turned away
	second := new(LockerImpl)
	second.Init(config, topology, "test", "tbtest")
	if got := second.SetLockFile(); got != false {
		t.Errorf(" SetLockFile() on a locked section = %v, want false", got)
	}

	if got := locker.RemoveLockFile(); got != true {
		t.Errorf(" RemoveLockFile() = %v, want true", got)
	}
	if locker.IsFileLocked {
		t.Errorf(" RemoveLockFile() left IsFileLocked = true, want false")
	}
	if got := second.SetLockFile(); got != true {
		t.Errorf(" SetLockFile() after the removal = %v, want true", got)
	}
	second.RemoveLockFile()
}

/* Tests for LockerImpl [end] */
