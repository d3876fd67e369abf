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
	"reflect"
	"strings"
	"testing"

	global "mariadb_osc_handler/internal/Global"
)

// ****************  TESTS **********************************

func TestBuildJobReport_RequiresFinalState(t *testing.T) {
	job := testJobFactory(testJobConfigFactory(), testTopologyFactory(), testExecutorFactory(), false)

	_, err := BuildJobReport(job)
	incomplete, isIncomplete := err.(*IncompleteJobError)
	if !isIncomplete {
		t.Errorf(" BuildJobReport() on a pending job error = %v, want IncompleteJobError", err)
	} else if incomplete.Status != JobStatePending {
		t.Errorf(" BuildJobReport() error status = %v, want %v", incomplete.Status, JobStatePending)
	}
}

func TestBuildJobReport(t *testing.T) {
	config := testJobConfigFactory()
	topology := testTopologyFactory()
	executor := testExecutorFactory()
	//db1003 dies on a non retryable code after db1002 already made it
	executor.scripted = map[string][]int{testReplica2Dns: {1}}
	job := testJobFactory(config, topology, executor, false)
	job.Run()

	report, err := BuildJobReport(job)
	if err != nil {
		t.Errorf(" BuildJobReport() error = %v, want nil", err)
	}
	if report.JobId != job.JobId || report.Status != JobStateFailed {
		t.Errorf(" BuildJobReport() = %v / %v, want %v / %v", report.JobId, report.Status, job.JobId, JobStateFailed)
	}
	if report.FailedHostDns != testReplica2Dns || report.FailureStep != FailureStepCommand {
		t.Errorf(" BuildJobReport() failure = %v at %v, want %v at %v", report.FailedHostDns, report.FailureStep, testReplica2Dns, FailureStepCommand)
	}
	if len(report.Hosts) != 3 {
		t.Errorf(" BuildJobReport() hosts = %v, want 3", len(report.Hosts))
	}

	first := report.Hosts[0]
	if first.HostDns != testReplica1Dns || first.Status != HostStateSucceeded || first.Attempts != 1 || first.ExitCode != 0 || first.Failure != "" {
		t.Errorf(" BuildJobReport() first host = %+v, want %s succeeded in 1 attempt", first, testReplica1Dns)
	}
	second := report.Hosts[1]
	if second.HostDns != testReplica2Dns || second.Status != HostStateFailed || second.ExitCode != 1 || second.Failure == "" {
		t.Errorf(" BuildJobReport() second host = %+v, want %s failed with exit 1", second, testReplica2Dns)
	}
	last := report.Hosts[2]
	if last.HostDns != testMasterDns || last.Status != HostStatePending || last.Attempts != 0 {
		t.Errorf(" BuildJobReport() last host = %+v, want %s still pending", last, testMasterDns)
	}

	//reporting is a pure read, a second build gives the very same report
	again, err := BuildJobReport(job)
	if err != nil {
		t.Errorf(" second BuildJobReport() error = %v, want nil", err)
	}
	if !reflect.DeepEqual(report, again) {
		t.Errorf(" BuildJobReport() twice = %+v and %+v, want identical", report, again)
	}
}

func TestJobReport_Render(t *testing.T) {
	job := testJobFactory(testJobConfigFactory(), testTopologyFactory(), testExecutorFactory(), false)
	job.Run()

	report, err := BuildJobReport(job)
	if err != nil {
		t.Errorf(" BuildJobReport() error = %v, want nil", err)
	}

	text := report.Render()
	for _, fragment := range []string{job.JobId, "test.tbtest", JobStateSucceeded, testMasterDns} {
		if !strings.Contains(text, fragment) {
			t.Errorf(" Render() = %v, want it to mention %v", text, fragment)
		}
	}
}

func TestBuildTopologyReport(t *testing.T) {
	topology := testTopologyImplFactory()
	if !topology.buildNodes(testInventorySectionFactory()) {
		t.Errorf(" buildNodes() failed on a valid section")
	}
	//mark the master as seen and writable, leave the replicas untouched
	master, _ := topology.Nodes.Load(testMasterDns)
	master.Processed = true
	master.ReadOnly = false
	master.Version = "10.6.14-MariaDB"
	topology.Nodes.Store(testMasterDns, master)
	down, _ := topology.Nodes.Load(testReplica2Dns)
	down.NodeTCPDown = true
	topology.Nodes.Store(testReplica2Dns, down)

	report := BuildTopologyReport(topology, 10)
	if report.Healthy {
		t.Errorf(" BuildTopologyReport() healthy = true, want false with unreachable replicas")
	}
	if len(report.Nodes) != 3 {
		t.Errorf(" BuildTopologyReport() nodes = %v, want 3", len(report.Nodes))
	}

	//the master comes first
	if report.Nodes[0].HostDns != testMasterDns || !report.Nodes[0].Healthy {
		t.Errorf(" BuildTopologyReport() master = %+v, want %s healthy", report.Nodes[0], testMasterDns)
	}
	//db1002 answers nothing so its lag sample cannot be valid
	if report.Nodes[1].LagValid || report.Nodes[1].Healthy {
		t.Errorf(" BuildTopologyReport() silent replica = %+v, want no lag and not healthy", report.Nodes[1])
	}
	if report.Nodes[2].Reachable {
		t.Errorf(" BuildTopologyReport() down replica = %+v, want unreachable", report.Nodes[2])
	}

	text := report.Render()
	for _, fragment := range []string{"NOT healthy", "KO unreachable", "n/a"} {
		if !strings.Contains(text, fragment) {
			t.Errorf(" Render() = %v, want it to mention %v", text, fragment)
		}
	}
}

func TestBuildTopologyReport_MasterVerdicts(t *testing.T) {
	//a master only section is healthy exactly when the master can take writes
	section := global.InventorySection{
		Name:  "s2",
		Hosts: []global.InventoryHost{testInventoryHostFactory("db2001.example.org", 3306, RoleMaster)},
	}

	topology := testTopologyImplFactory()
	if !topology.buildNodes(section) {
		t.Errorf(" buildNodes() failed on a valid section")
	}
	master, _ := topology.Nodes.Load("db2001.example.org:3306")
	master.Processed = true
	topology.Nodes.Store("db2001.example.org:3306", master)

	report := BuildTopologyReport(topology, 10)
	if !report.Healthy {
		t.Errorf(" BuildTopologyReport() healthy = false, want true for a writable master")
	}

	//a master in read_only would reject the ddl
	master.ReadOnly = true
	topology.Nodes.Store("db2001.example.org:3306", master)
	report = BuildTopologyReport(topology, 10)
	if report.Healthy {
		t.Errorf(" BuildTopologyReport() healthy = true, want false for a read_only master")
	}
}
