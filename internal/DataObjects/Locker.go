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
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"syscall"

	log "github.com/sirupsen/logrus"
	global "mariadb_osc_handler/internal/Global"
	SQLMariadb "mariadb_osc_handler/internal/Sql/Mariadb"

	"os"
	"strconv"
	"time"
)

type Locker interface {
	Init(config *global.Configuration, topology *TopologyImpl, schema string, table string) bool
	SetLockFile() bool
	RemoveLockFile() bool
	ClusterLock() bool
	ClusterUnlock() bool
	StoreFileLock(fileLock *FileLockImp)
	GetFileLock() FileLockImp
}

type FileLock interface {
	SetLock() bool
	CheckLockFIleExists() (bool, int, int64)
	EvaluateFileLockForRemoval(evaluate bool, localPID int, localTime int64) bool
}

type FileLockImp struct {
	flPid          int
	flFullPath     string
	flTimeCreation int64
	flTimeout      int64
	flIsActive     bool
}

// This function will check for existing lock file and get data from it
func (flLocker *FileLockImp) CheckLockFIleExists() (bool, int, int64) {
	var localPID int
	var localTime int64

	if _, err := os.Stat(flLocker.flFullPath); err == nil {
		f, err := os.Open(flLocker.flFullPath)
		if err != nil {
			log.Error("Open file error: ", err)
			return false, 0, 0
		}
		//close the file at the end of the program
		defer f.Close()

		// read the file line by line using scanner
		scanner := bufio.NewScanner(f)

		loop := 1
		for scanner.Scan() {
			if loop == 1 {
				s := scanner.Text()[4:len(scanner.Text())]
				localPID, err = strconv.Atoi(s)
				if err != nil {
					log.Warningf("Conversion error in PID %s", err.Error())
				}
				loop++
			} else {
				s := scanner.Text()[5:len(scanner.Text())]
				localTime, err = strconv.ParseInt(s, 10, 64)
				if err != nil {
					log.Warningf("Conversion error in Time %s", err.Error())
				}
			}
		}
		if err := scanner.Err(); err != nil {
			log.Error(err)
			return false, 0, 0
		}

		return true, localPID, localTime
	}
	return false, 0, 0
}

/*
will check if PID is still valid (running process) and if not, if the time
passed exceeded the lock removal rule.
If the lock file is to be removed/overridden then is true otherwise is false.
*/
func (flLocker *FileLockImp) EvaluateFileLockForRemoval(evaluate bool, localPID int, localTime int64) bool {

	//if no file to evaluate we just go on
	if !evaluate {
		return false
	}

	// IF the PID we retrieve is the same of the current application then
	// the lock belongs to this very run and we should not touch it
	if flLocker.flPid == localPID {
		return false
	}

	//get the process and check the status
	process, err := os.FindProcess(localPID)
	if err != nil {
		log.Warningf(" Not able to retrieve informations for process %d. We assume lock is expired and process is long gone.", localPID)
		//we assume PID is invalid as such we can remove the lock
		return true
	}

	//signal 0 only probes the process, an error means the owner is gone
	if err := process.Signal(syscall.Signal(0)); err != nil {
		log.Warningf(" Process %d holding the lock is gone (%v). We can remove the lock safely.", localPID, err)
		return true
	}

	//the PID answers but PIDs get recycled, a lock older than the timeout
	//cannot belong to a run that is still legitimately going
	//convert nanoseconds to seconds
	lockTime := (flLocker.flTimeCreation - localTime) / 1000000000

	if lockTime > flLocker.flTimeout {
		log.Warningf("Lock timeout is set to %d seconds, the lock is %d seconds old, so we can remove the lock safely", flLocker.flTimeout, lockTime)
		return true
	}
	log.Warningf("Process %d still holds the lock since %d seconds (timeout %d seconds), we cannot remove the lock safely", localPID, lockTime, flLocker.flTimeout)

	return false
}

func (flLocker *FileLockImp) SetLock() bool {
	var toRemove bool

	if _, err := os.Stat(flLocker.flFullPath); err == nil {
		toRemove = flLocker.EvaluateFileLockForRemoval(flLocker.CheckLockFIleExists())
	}

	if _, err := os.Stat(flLocker.flFullPath); err == nil && !toRemove {
		log.Errorf("A lock file named: %s  already exists.\n If this is a refuse of a dirty execution remove it manually to have the handler able to run\n", flLocker.flFullPath)
		fmt.Printf("A lock file named: %s  already exists.\n If this is a refuse of a dirty execution remove it manually to have the handler able to run\n", flLocker.flFullPath)
		return false
	} else {
		sampledata := []string{"PID:" + strconv.Itoa(flLocker.flPid),
			"Time:" + strconv.FormatInt(flLocker.flTimeCreation, 10),
		}

		file, err := os.OpenFile(flLocker.flFullPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)

		if err != nil {
			log.Error(fmt.Sprintf("failed creating lock file: %s", err.Error()))
			return false
		}

		datawriter := bufio.NewWriter(file)

		for _, data := range sampledata {
			_, _ = datawriter.WriteString(data + "\n")
		}

		datawriter.Flush()
		file.Close()
		flLocker.flIsActive = true
	}

	return true
}

func (flLocker *FileLockImp) init(pid int) bool {
	if pid > 0 {
		flLocker.flPid = pid
		return true
	} else {
		return false
	}

}

type (
	//LockerImpl guards one run of the handler, a file lock keeps a second
	//invocation for the same section off this host, the advisory lock on the
	//master keeps a concurrent schema change off the same table from anywhere
	LockerImpl struct {
		myConfig           *global.Configuration
		SectionName        string
		FileLock           string
		FileLockPath       string
		ClusterLockId      string
		IsClusterLocked    bool
		IsFileLocked       bool
		LockFileTimeout    int64
		LockClusterTimeout int64
		flLock             FileLockImp
		topology           *TopologyImpl
		lockConnection     *sql.Conn
	}
)

//Initialize the locker
func (locker *LockerImpl) Init(config *global.Configuration, topology *TopologyImpl, schema string, table string) bool {
	locker.myConfig = config
	locker.topology = topology
	locker.SectionName = topology.SectionName
	locker.FileLockPath = config.Global.LockFilePath
	locker.LockFileTimeout = config.Global.LockFileTimeout
	locker.LockClusterTimeout = config.Global.LockClusterTimeout

	// one run per section on this host, one schema change per table on the cluster
	locker.FileLock = "mariadb_osc_handler_" + locker.SectionName + ".lock"
	locker.ClusterLockId = "mariadb_osc_" + schema + "_" + table

	flLocker := new(FileLockImp)
	flLocker.init(os.Getpid())
	flLocker.flFullPath = locker.FileLockPath + string(os.PathSeparator) + locker.FileLock
	flLocker.flTimeCreation = time.Now().UnixNano()
	flLocker.flTimeout = locker.LockFileTimeout
	locker.StoreFileLock(flLocker)

	log.Info("LockerImpl initialized, file lock: ", flLocker.flFullPath, ", cluster lock: ", locker.ClusterLockId)
	return true
}

func (locker *LockerImpl) StoreFileLock(flLockIn *FileLockImp) {
	if flLockIn != nil {
		locker.flLock = *flLockIn
	}
}

func (locker *LockerImpl) GetFileLock() FileLockImp {
	return locker.flLock
}

func (locker *LockerImpl) SetLockFile() bool {
	if locker.FileLock == "" {
		log.Error("Lock Filename is invalid (empty) ")
		return false
	}
	if !locker.flLock.SetLock() {
		return false
	}
	locker.IsFileLocked = true
	return true
}

func (locker *LockerImpl) RemoveLockFile() bool {
	e := os.Remove(locker.FileLockPath + string(os.PathSeparator) + locker.FileLock)
	if e != nil {
		log.Errorf("Cannot remove lock file: %s", e)
		return false
	}
	locker.IsFileLocked = false
	return true
}

/*
ClusterLock takes the advisory lock for this schema and table on the master.
GET_LOCK is session scoped so the lock lives on a dedicated connection that
stays reserved until ClusterUnlock.
*/
func (locker *LockerImpl) ClusterLock() bool {
	if global.Performance {
		global.SetPerformanceObj("Cluster lock", true, log.InfoLevel)
	}
	master := locker.topology.Master()
	if master.Connection == nil || master.NodeTCPDown {
		log.Error("Cannot take the cluster lock, master ", master.Dns, " is not reachable")
		if global.Performance {
			global.SetPerformanceObj("Cluster lock", false, log.InfoLevel)
		}
		return false
	}

	ctx := context.Background()
	connection, err := master.Connection.Conn(ctx)
	if err != nil {
		log.Error("Cannot reserve a connection on master ", master.Dns, " for the cluster lock: ", err)
		if global.Performance {
			global.SetPerformanceObj("Cluster lock", false, log.InfoLevel)
		}
		return false
	}
	locker.lockConnection = connection

	var acquired int
	err = connection.QueryRowContext(ctx, SQLMariadb.Dml_get_lock, locker.ClusterLockId, locker.LockClusterTimeout).Scan(&acquired)
	if err != nil {
		log.Error("Cannot take the cluster lock ", locker.ClusterLockId, " on master ", master.Dns, ": ", err)
		locker.closeLockConnection()
		if global.Performance {
			global.SetPerformanceObj("Cluster lock", false, log.InfoLevel)
		}
		return false
	}
	if acquired != 1 {
		log.Error(fmt.Sprintf("Another run holds the cluster lock %s on master %s, gave up after %d seconds", locker.ClusterLockId, master.Dns, locker.LockClusterTimeout))
		locker.closeLockConnection()
		if global.Performance {
			global.SetPerformanceObj("Cluster lock", false, log.InfoLevel)
		}
		return false
	}

	locker.IsClusterLocked = true
	if global.Performance {
		global.SetPerformanceObj("Cluster lock", false, log.InfoLevel)
	}
	log.Info("Cluster lock ", locker.ClusterLockId, " acquired on master ", master.Dns)
	return true
}

func (locker *LockerImpl) ClusterUnlock() bool {
	if !locker.IsClusterLocked || locker.lockConnection == nil {
		return true
	}
	var released sql.NullInt64
	err := locker.lockConnection.QueryRowContext(context.Background(), SQLMariadb.Dml_release_lock, locker.ClusterLockId).Scan(&released)
	if err != nil {
		//closing the session releases the lock anyway
		log.Warning("Cannot release the cluster lock ", locker.ClusterLockId, ": ", err)
	}
	locker.closeLockConnection()
	locker.IsClusterLocked = false
	log.Info("Cluster lock ", locker.ClusterLockId, " released")
	return true
}

func (locker *LockerImpl) closeLockConnection() {
	if locker.lockConnection != nil {
		locker.lockConnection.Close()
		locker.lockConnection = nil
	}
}
