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

package Global

import "fmt"

type HelpText struct {
	inParams  [8]string
	license   string
	helpShort string
}

func (help *HelpText) Init() {
	help.inParams = [8]string{"configfile", "configPath", "schema", "table", "ddl", "section", "dryrun", "check"}
}
func (help *HelpText) PrintLicense() {
	fmt.Println(help.GetHelpText())
}

func (help *HelpText) GetHelpText() string {
	helpText := `mariadb_osc_handler

Parameters for the executable --configfile <file name> --configpath <full path> --schema <db> --table <table> --ddl "<alter clause>" --section <inventory section> --dryrun --check --version --help

Run one online schema change against every host of an inventory section, replicas first and the master last,
or report the replication topology health with --check.

Exit codes:
	0 : schema change completed on all planned hosts (or --check found the section healthy)
	1 : schema change failed (command failure, lag wait exhausted or unhealthy topology with --check)
	2 : schema change aborted on request, remaining hosts untouched
	3 : startup error (bad config, bad inventory, lock held by another run)

Parameters in the config file:
Global:
	logLevel = "info"
	logTarget = "stdout" #stdout | file
	logFile = "/var/log/mariadb_osc_handler.log"
	performance = false
	lockfilepath = "/tmp"
	loglevel : [info] Define the log level to be used
	logTarget : [stdout] Can be either a file or stdout
	logFile : In case file for loging define the target
	performance : [false] Report the time spent in the main phases at the end of the run
	lockfilepath : [/tmp] Where the local lock file is written, one file per inventory section
	lockclustertimeout : [10] Seconds to wait for the advisory lock on the master before giving up
mariadbcluster
	user : [] User able to connect to the MariaDB backends
	password : [] Password (can also come from MARIADB_OSC_PASSWORD, see below)
	port : [3306] Port used when the inventory entry does not carry one
	connecttimeout : [1] Connect timeout in seconds for the backend connections
	checktimeout : [4000] This is one of the most important settings. When checking the backend node (MariaDB), it is possible that the node will not be able to answer in a consistent amount of time, due the different level of load. If this exceeds the Timeout, a warning will be printed in the log, and the node will not be processed.
	inventoryfile : [] YAML file describing the sections and their hosts (see below)
	section : [] Default inventory section when --section is not passed
	usessl : [false] Use SSL to connect to the backends
	sslclient : "client-cert.pem" In case of use of SSL for backend we need to be able to use the right credential
	sslkey : "client-key.pem" In case of use of SSL for backend we need to be able to use the right credential
	sslca : "ca.pem" In case of use of SSL for backend we need to be able to use the right credential
	sslcertificatepath : ["/full-path/ssl_test"] Full path for the SSL certificates
osc
	method : [percona] percona runs pt-online-schema-change, ddl runs a plain ALTER through the client
	toolpath : [/usr/bin/pt-online-schema-change] Path of the pt-osc binary on the target hosts
	clientpath : [/usr/bin/mysql] Path of the mysql client used by the ddl method
	toolvars : [] Extra session variables for pt-osc as "var1=value1;var2=value2"
	extraargs : [] Additional raw arguments appended to the tool command line
	perreplica : [false] Run the change host by host with sql_log_bin=0 instead of once on the master
	commandtimeout : [86400] Seconds a single host command may run before it is killed
	successcodes : [0] Exit codes of the tool that mean success
	transientcodes : [75] Exit codes worth a retry on the same host
	retrymaxattempts : [3] Attempts per host before the failure becomes final
	retrybackoffms : [5000] First backoff between attempts, doubled each retry
	retrybackoffmaxms : [60000] Backoff ceiling
	maxreplicalag : [10] Seconds of lag a replica may carry and still be considered in sync
	lagwaitbudget : [300] Seconds to wait for all replicas to converge between hosts
	lagcheckintervalms : [2000] Pause between lag polls while waiting
execution
	backend : [local] local runs the command on this machine for a single target, fleet goes through the runner
	runnerpath : [/usr/bin/cumin] Remote execution runner used by the fleet backend
	runnerargs : ["--force", "-o", "txt"] Arguments always passed to the runner before target and command
	maxparallel : [10] Upper bound of concurrent runner invocations
	checkintervalms : [10] Polling interval while waiting for the in flight commands

Credentials from the environment:
	MARIADB_OSC_USER and MARIADB_OSC_PASSWORD override user and password from the config file.
	A .env file in the working directory is honoured as well, real environment wins.

Example of inventory file:
	sections:
	  - name: s1
	    hosts:
	      - host: db1001.example.org
	        port: 3306
	        role: master
	      - host: db1002.example.org
	        port: 3306
	        role: replica
	      - host: db1003.example.org
	        port: 3306
	        role: replica

Example of a run:
	mariadb_osc_handler --configfile=config.toml --configpath=/etc/mariadb_osc_handler \
		--section=s1 --schema=enwiki --table=revision --ddl="ADD COLUMN rev_flags TINYINT NOT NULL DEFAULT 0"

	Add --dryrun first. The percona method then runs pt-online-schema-change with --dry-run on the
	same hosts in the same order, the ddl method only prints what it would execute. No lag gating
	is applied in a dry run.
`
	return helpText
}
