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

package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	log "github.com/sirupsen/logrus"
	DO "mariadb_osc_handler/internal/DataObjects"
	global "mariadb_osc_handler/internal/Global"
	RE "mariadb_osc_handler/internal/RemoteExecution"
)

var mariadbOscHandlerVersion = "1.0.0"

/*
Main function must contain only initial parameter, log system init and main object init
Exit codes: 0 succeeded, 1 failed, 2 aborted, 3 startup error
*/
func main() {
	//global setup of basic parameters
	const (
		Separator = string(os.PathSeparator)
	)

	var configFile string
	var configPath string
	var schema string
	var table string
	var ddl string
	var section string
	var dryRun bool
	var checkMode bool
	locker := new(DO.LockerImpl)

	//initialize help
	help := new(global.HelpText)
	help.Init()

	// By default performance collection is disabled
	global.Performance = false

	//return version and exit
	if len(os.Args) > 1 &&
		os.Args[1] == "--version" {
		fmt.Println("MariaDB OSC Handler Version: ", mariadbOscHandlerVersion)
		exitWithCode(0)
	}

	//Manage config and parameters from conf file [start]
	flag.StringVar(&configFile, "configfile", "", "Config file name for the script")
	flag.StringVar(&configPath, "configpath", "", "Config file path")
	flag.StringVar(&schema, "schema", "", "Schema holding the table to change")
	flag.StringVar(&table, "table", "", "Table the DDL applies to")
	flag.StringVar(&ddl, "ddl", "", "Alter clause to run, without the ALTER TABLE prefix")
	flag.StringVar(&section, "section", "", "Inventory section to run against, wins over the config file")
	flag.BoolVar(&dryRun, "dryrun", false, "Walk all the hosts without changing anything")
	flag.BoolVar(&checkMode, "check", false, "Only report the topology health for the section")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "\n%s\n", help.GetHelpText())
	}
	flag.Parse()

	//check for current params
	if len(os.Args) < 2 || configFile == "" {
		fmt.Println("You must at least pass the --configfile=xxx parameter ")
		exitWithCode(3)
	}
	var currPath, err = os.Getwd()

	if configPath != "" {
		if configPath[len(configPath)-1:] == Separator {
			currPath = configPath
		} else {
			currPath = configPath + Separator
		}
	} else {
		currPath = currPath + Separator + "config" + Separator
	}

	if err != nil {
		fmt.Print("Problem loading the config")
		exitWithCode(3)
	}

	//Return our full configuration from file
	var config = global.GetConfig(currPath + configFile)

	//the command line wins over the config file
	if section != "" {
		config.Mariadb.Section = section
	}

	//Let us do a sanity check on the configuration to prevent most obvious issues and normalize some params
	if !config.SanityCheck() {
		exitWithCode(3)
	}

	//initialize the log system
	if !global.InitLog(config) {
		fmt.Println("Not able to initialize log system exiting")
		exitWithCode(3)
	}

	//should we track performance or not
	global.Performance = config.Global.Performance

	//initialize performance collection if requested
	if global.Performance {
		global.PerformanceMapOrdered = global.NewOrderedMap()
		global.SetPerformanceObj("main", true, log.ErrorLevel)
	}

	/*
		main game starts here, every mode needs the topology of the section
	*/
	topology := new(DO.TopologyImpl)
	if !topology.Init(config, config.Mariadb.Section) {
		log.Error("Cannot initialize the topology for section ", config.Mariadb.Section)
		exitWithCode(3)
	}

	if checkMode {
		runCheck(topology, config)
	}

	if schema == "" || table == "" || ddl == "" {
		fmt.Println("You must pass --schema, --table and --ddl to run a schema change ")
		topology.CloseConnections()
		exitWithCode(3)
	}

	//Initialize the locker
	if !locker.Init(&config, topology, schema, table) {
		log.Error("Cannot initialize LockerImpl")
		topology.CloseConnections()
		exitWithCode(3)
	}

	//set the locker on file
	if !locker.SetLockFile() {
		fmt.Println("Cannot create a lock, exit")
		topology.CloseConnections()
		exitWithCode(3)
	}

	//no two schema changes on the same table from anywhere in the fleet
	if !locker.ClusterLock() {
		locker.RemoveLockFile()
		topology.CloseConnections()
		exitWithCode(3)
	}

	executor, err := RE.NewExecutor(config)
	if err != nil {
		log.Error("Cannot initialize the execution backend: ", err)
		cleanUp(locker, topology)
		exitWithCode(3)
	}

	job := new(DO.SchemaChangeJobImpl)
	if !job.Init(config, topology, executor, schema, table, ddl, dryRun) {
		log.Error("Cannot initialize the schema change job")
		cleanUp(locker, topology)
		exitWithCode(3)
	}

	//a polite ctrl+c stops at the next host boundary, the host in flight completes
	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		receivedSignal := <-signalChannel
		log.Warning("Received signal ", receivedSignal, ", requesting abort")
		job.RequestAbort()
	}()

	job.Run()

	jobReport, reportError := DO.BuildJobReport(job)
	if reportError != nil {
		log.Error("Cannot build the job report: ", reportError)
	} else {
		fmt.Print(jobReport.Render())
	}

	/*
		Final cleanup
	*/
	cleanUp(locker, topology)

	if global.Performance {
		global.SetPerformanceObj("main", false, log.ErrorLevel)
		global.ReportPerformance()
	}

	exitWithCode(job.ExitCode())
}

//check mode never runs a DDL, it reads the section and reports
func runCheck(topology *DO.TopologyImpl, config global.Configuration) {
	topologyReport := DO.BuildTopologyReport(topology, config.Osc.MaxReplicaLag)
	fmt.Print(topologyReport.Render())
	topology.CloseConnections()

	if global.Performance {
		global.SetPerformanceObj("main", false, log.ErrorLevel)
		global.ReportPerformance()
	}
	exitWithCode(global.Bool2int(!topologyReport.Healthy))
}

func cleanUp(locker *DO.LockerImpl, topology *DO.TopologyImpl) {
	//the advisory lock needs the master connection, release it before closing
	locker.ClusterUnlock()
	topology.CloseConnections()
	locker.RemoveLockFile()
}

func exitWithCode(errorCode int) {
	log.Debug("Exiting execution with code ", errorCode)
	os.Exit(errorCode)
}
