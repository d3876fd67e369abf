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
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//IncompleteJobError rejects reporting on a job that has not reached a final state
type IncompleteJobError struct {
	JobId  string
	Status string
}

func (incomplete *IncompleteJobError) Error() string {
	return fmt.Sprintf("job %s is still %s, the report needs a final state", incomplete.JobId, incomplete.Status)
}

type HostReport struct {
	HostDns   string
	Role      string
	Status    string
	Attempts  int
	ExitCode  int
	StartedAt time.Time
	Duration  time.Duration
	Failure   string
}

type JobReport struct {
	JobId         string
	Schema        string
	Table         string
	Ddl           string
	Method        string
	DryRun        bool
	Status        string
	StartedAt     time.Time
	TotalDuration time.Duration
	FailedHostDns string
	FailureStep   string
	FailureError  string
	Hosts         []HostReport
}

/*
BuildJobReport flattens one finished job into a report. It only reads the
job state so calling it twice on the same job gives the same report, a job
that is still pending or running gets an IncompleteJobError instead.
*/
func BuildJobReport(job *SchemaChangeJobImpl) (JobReport, error) {
	switch job.Status {
	case JobStateSucceeded, JobStateFailed, JobStateAborted:
	default:
		return JobReport{}, &IncompleteJobError{JobId: job.JobId, Status: job.Status}
	}

	report := JobReport{
		JobId:         job.JobId,
		Schema:        job.Schema,
		Table:         job.Table,
		Ddl:           job.Ddl,
		Method:        job.Method,
		DryRun:        job.DryRun,
		Status:        job.Status,
		StartedAt:     job.StartedAt,
		TotalDuration: job.EndedAt.Sub(job.StartedAt),
		FailedHostDns: job.FailedHostDns,
		FailureStep:   job.FailureStep,
		Hosts:         make([]HostReport, 0, len(job.hostOrder)),
	}
	if job.FailureError != nil {
		report.FailureError = job.FailureError.Error()
	}

	for _, hostDns := range job.hostOrder {
		hostReport := HostReport{
			HostDns:  hostDns,
			Role:     job.hostRole[hostDns],
			Status:   job.HostStatus[hostDns],
			Attempts: job.HostAttempts[hostDns],
		}
		if results := job.HostResults[hostDns]; len(results) > 0 {
			lastReturn := results[len(results)-1]
			hostReport.ExitCode = lastReturn.ExitCode
			hostReport.StartedAt = lastReturn.StartedAt
			hostReport.Duration = lastReturn.Duration
		}
		if job.FailedHostDns == hostDns && report.FailureError != "" {
			hostReport.Failure = report.FailureError
		}
		report.Hosts = append(report.Hosts, hostReport)
	}
	return report, nil
}

func (report JobReport) Render() string {
	printer := message.NewPrinter(language.English)
	var builder strings.Builder

	mode := "execute"
	if report.DryRun {
		mode = "dry-run"
	}
	builder.WriteString(printer.Sprintf("Job %s %s ALTER TABLE %s.%s %s [%s]\n",
		report.JobId, mode, report.Schema, report.Table, report.Ddl, report.Method))
	builder.WriteString(printer.Sprintf("Status: %s, total time %s\n", report.Status, report.TotalDuration))
	if report.FailureError != "" {
		builder.WriteString(printer.Sprintf("Failure at step %s on host %s: %s\n",
			report.FailureStep, report.FailedHostDns, report.FailureError))
	}
	builder.WriteString("Hosts:\n")
	for _, hostReport := range report.Hosts {
		line := printer.Sprintf("\t%s [%s] %s", hostReport.HostDns, hostReport.Role, hostReport.Status)
		if hostReport.Attempts > 0 {
			line = line + printer.Sprintf(" attempts=%d exit=%d time=%s", hostReport.Attempts, hostReport.ExitCode, hostReport.Duration)
		}
		if hostReport.Failure != "" {
			line = line + printer.Sprintf(" failure=%s", hostReport.Failure)
		}
		builder.WriteString(line + "\n")
	}
	return builder.String()
}

type TopologyNodeReport struct {
	HostDns      string
	Role         string
	Version      string
	ReadOnly     bool
	BinlogFormat string
	Reachable    bool
	LagValid     bool
	LagSeconds   float64
	Healthy      bool
}

type TopologyReport struct {
	SectionName string
	MaxLag      int
	Nodes       []TopologyNodeReport
	Healthy     bool
}

/*
BuildTopologyReport is the check mode backend, one verdict per host against
the configured lag threshold. The master is healthy when reachable and
writable, a replica when reachable and within the lag threshold.
*/
func BuildTopologyReport(topology *TopologyImpl, maxLagSeconds int) TopologyReport {
	report := TopologyReport{
		SectionName: topology.SectionName,
		MaxLag:      maxLagSeconds,
		Healthy:     true,
	}

	nodes := make([]DataNodeImpl, 0, len(topology.replicaOrder)+1)
	nodes = append(nodes, topology.Master())
	nodes = append(nodes, topology.Replicas()...)

	for _, node := range nodes {
		nodeReport := TopologyNodeReport{
			HostDns:      node.Dns,
			Role:         node.Role,
			Version:      node.Version,
			ReadOnly:     node.ReadOnly,
			BinlogFormat: node.BinlogFormat,
			Reachable:    node.Processed && !node.NodeTCPDown,
		}
		lagSample, err := topology.Lag(node.Dns)
		if err == nil && lagSample.Valid {
			nodeReport.LagValid = true
			nodeReport.LagSeconds = lagSample.Seconds
		}
		if node.Role == RoleMaster {
			//a master in read_only would reject the very DDL we are here to run
			nodeReport.Healthy = nodeReport.Reachable && !node.ReadOnly
		} else {
			nodeReport.Healthy = nodeReport.Reachable && nodeReport.LagValid && lagSample.IsHealthy(float64(maxLagSeconds))
		}
		if !nodeReport.Healthy {
			report.Healthy = false
		}
		report.Nodes = append(report.Nodes, nodeReport)
	}
	return report
}

func (report TopologyReport) Render() string {
	printer := message.NewPrinter(language.English)
	var builder strings.Builder

	verdict := "healthy"
	if !report.Healthy {
		verdict = "NOT healthy"
	}
	builder.WriteString(printer.Sprintf("Section %s is %s (max replica lag %ds)\n", report.SectionName, verdict, report.MaxLag))
	for _, nodeReport := range report.Nodes {
		lag := "n/a"
		if nodeReport.LagValid {
			lag = printer.Sprintf("%.1fs", nodeReport.LagSeconds)
		}
		readOnly := "off"
		if nodeReport.ReadOnly {
			readOnly = "on"
		}
		state := "ok"
		if !nodeReport.Healthy {
			state = "KO"
			if !nodeReport.Reachable {
				state = "KO unreachable"
			}
		}
		builder.WriteString(printer.Sprintf("\t%s [%s] version=%s read_only=%s binlog_format=%s lag=%s %s\n",
			nodeReport.HostDns, nodeReport.Role, nodeReport.Version, readOnly, nodeReport.BinlogFormat, lag, state))
	}
	return builder.String()
}
