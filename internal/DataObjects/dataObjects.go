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
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"fmt"
	"io/ioutil"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	log "github.com/sirupsen/logrus"
	global "mariadb_osc_handler/internal/Global"
	SQLMariadb "mariadb_osc_handler/internal/Sql/Mariadb"
)

const (
	RoleMaster  = "master"
	RoleReplica = "replica"
)

/*
Topology is what the schema change job consumes from the section, the
concrete implementation reads a MariaDB replication tree through the
inventory plus the backends themselves.
*/
type Topology interface {
	Master() DataNodeImpl
	Replicas() []DataNodeImpl
	Lag(hostDns string) (LagSample, error)
	CloseConnections()
}

type DataNode interface {
	GetConnection() bool
	CloseConnection() bool
	getNodeInternalInformation(dml string) map[string]string
	getNodeTable(dml string) ([]map[string]sql.NullString, bool)
	getInfo(wg *global.MyWaitGroup, topology *TopologyImpl) int
	setParameters()
}

/*
TopologyImpl holds the nodes of one inventory section.
The replica order follows the inventory file, the master is kept aside so the
job can always schedule it last.
*/
type TopologyImpl struct {
	SectionName    string
	Nodes          *SyncMap
	User           string
	Password       string
	DefaultPort    int
	ConnectTimeOut int
	CheckTimeout   int
	UseSsl         bool
	Ssl            *SslCertificates
	Debug          bool
	masterDns      string
	replicaOrder   []string
	roleLock       sync.Mutex
}

type DataNodeImpl struct {
	Dns            string
	Host           string
	Port           int
	Role           string
	Section        string
	User           string
	Password       string
	UseSsl         bool
	Ssl            *SslCertificates
	Connection     *sql.DB
	ConnectTimeOut int
	NodeTCPDown    bool
	Processed      bool
	Variables      map[string]string
	Version        string
	ReadOnly       bool
	BinlogFormat   string
	LogBin         bool
	ServerId       int
}

type SslCertificates struct {
	sslClient          string
	sslKey             string
	sslCa              string
	sslCertificatePath string
}

/*
LagSample is one reading of Seconds_Behind_Master for one host.
A NULL lag or a host that cannot answer gives Valid false, such a sample is
never healthy and never zero.
*/
type LagSample struct {
	HostDns   string
	Seconds   float64
	Valid     bool
	SampledAt time.Time
}

func (lagSample LagSample) IsHealthy(maxLagSeconds float64) bool {
	return lagSample.Valid && lagSample.Seconds <= maxLagSeconds
}

//LagParseError reports a Seconds_Behind_Master value we could not turn into a number
type LagParseError struct {
	HostDns  string
	RawValue string
}

func (lagParse *LagParseError) Error() string {
	return fmt.Sprintf("cannot parse replication lag for host %s from value '%s'", lagParse.HostDns, lagParse.RawValue)
}

type SyncMap struct {
	sync.RWMutex
	internal map[string]DataNodeImpl
}

/*===============================================================
Methods
*/

func (topology *TopologyImpl) Init(config global.Configuration, sectionName string) bool {
	if global.Performance {
		global.SetPerformanceObj("topology_init", true, log.InfoLevel)
	}
	topology.SectionName = sectionName
	topology.User = config.Mariadb.User
	topology.Password = config.Mariadb.Password
	topology.DefaultPort = config.Mariadb.Port
	topology.ConnectTimeOut = config.Mariadb.ConnectTimeOut
	topology.CheckTimeout = config.Mariadb.CheckTimeOut
	topology.UseSsl = config.Mariadb.UseSsl
	topology.Debug = config.Global.Debug
	if topology.UseSsl {
		topology.Ssl = &SslCertificates{
			sslClient:          config.Mariadb.SslClient,
			sslKey:             config.Mariadb.SslKey,
			sslCa:              config.Mariadb.SslCa,
			sslCertificatePath: config.Mariadb.SslcertificatePath,
		}
	}

	inventory, err := global.LoadInventory(config.Mariadb.InventoryFile)
	if err != nil {
		log.Error("Cannot load the inventory file ", config.Mariadb.InventoryFile, ": ", err)
		return false
	}
	section, found := inventory.GetSection(sectionName)
	if !found {
		log.Error("Section ", sectionName, " is not present in the inventory ", config.Mariadb.InventoryFile)
		return false
	}

	if !topology.buildNodes(section) {
		return false
	}
	if !topology.getNodesInfo() {
		return false
	}
	topology.crossCheckReplicaInventory()

	if global.Performance {
		global.SetPerformanceObj("topology_init", false, log.InfoLevel)
	}
	log.Info("Topology for section ", sectionName, " ready, master: ", topology.masterDns, ", replicas: #", len(topology.replicaOrder))
	return true
}

/*
buildNodes maps the inventory section into data nodes. No connection is
opened here, this must stay usable in isolation.
*/
func (topology *TopologyImpl) buildNodes(section global.InventorySection) bool {
	topology.Nodes = NewNodeMap()
	topology.masterDns = ""
	topology.replicaOrder = make([]string, 0, len(section.Hosts))

	for _, inventoryHost := range section.Hosts {
		port := inventoryHost.Port
		if port == 0 {
			port = topology.DefaultPort
		}
		node := DataNodeImpl{
			Dns:            net.JoinHostPort(inventoryHost.Host, strconv.Itoa(port)),
			Host:           inventoryHost.Host,
			Port:           port,
			Role:           inventoryHost.Role,
			Section:        section.Name,
			User:           topology.User,
			Password:       topology.Password,
			UseSsl:         topology.UseSsl,
			Ssl:            topology.Ssl,
			ConnectTimeOut: topology.ConnectTimeOut,
		}

		switch node.Role {
		case RoleMaster:
			topology.masterDns = node.Dns
		case RoleReplica:
			topology.replicaOrder = append(topology.replicaOrder, node.Dns)
		default:
			log.Error("Node ", node.Dns, " carries the unknown role ", node.Role)
			return false
		}
		topology.Nodes.Store(node.Dns, node)
	}

	if topology.masterDns == "" {
		log.Error("Section ", section.Name, " has no master, cannot continue")
		return false
	}
	return true
}

//this method is used to parallelize the information retrieval from the data nodes
func (topology *TopologyImpl) getNodesInfo() bool {
	if global.Performance {
		global.SetPerformanceObj("Get_Nodes_Info", true, log.InfoLevel)
	}
	var waitingGroup global.MyWaitGroup

	// Process the check by node
	for key, node := range topology.Nodes.ExposeMap() {
		waitingGroup.IncreaseCounter()
		// Here we go for parallelization but with a timeout as for configuration *** CheckTimeout ***
		go node.getInfo(&waitingGroup, topology)

		if log.GetLevel() == log.DebugLevel {
			log.Debug("Retrieving information from node: ", key)
		}
	}
	log.Debug(fmt.Sprintf("waitingGroup composed by : #%d nodes", waitingGroup.ReportCounter()))

	start := time.Now().UnixNano()
	for i := 0; i < topology.CheckTimeout; i++ {
		time.Sleep(1 * time.Millisecond)

		if waitingGroup.ReportCounter() == 0 {
			break
		}
	}
	end := time.Now().UnixNano()
	timems := (end - start) / 1000000
	log.Debug("time taken : ", timems, " ms; checkTimeOut : ", topology.CheckTimeout, " ms")
	if int(timems) > topology.CheckTimeout {
		log.Warning("CheckTimeout exceeded try to increase it above the execution time : ", timems)
		if waitingGroup.ReportCounter() > 0 {
			log.Debug("waitingGroup composed by [after loop]: #", waitingGroup.ReportCounter())
		}
	}
	if global.Performance {
		global.SetPerformanceObj("Get_Nodes_Info", false, log.InfoLevel)
	}
	return true
}

/*
The master knows which hosts replicate from it, the inventory says which
hosts should. Disagreement is worth a warning but the inventory stays
authoritative.
*/
func (topology *TopologyImpl) crossCheckReplicaInventory() {
	master, found := topology.Nodes.Load(topology.masterDns)
	if !found || master.NodeTCPDown || master.Connection == nil {
		log.Warning("Cannot cross check the inventory, master ", topology.masterDns, " is not reachable")
		return
	}

	rows, ok := master.getNodeTable(SQLMariadb.Dml_show_slave_hosts)
	if !ok {
		log.Warning("Cannot read the registered replicas from master ", master.Dns)
		return
	}
	registered := make(map[string]bool, len(rows))
	for _, row := range rows {
		host := row["Host"].String
		if host == "" {
			continue
		}
		registered[net.JoinHostPort(host, row["Port"].String)] = true
	}

	for _, replicaDns := range topology.replicaOrder {
		if !registered[replicaDns] {
			log.Warning("Replica ", replicaDns, " is in the inventory but not registered on master ", master.Dns)
		}
	}
	for registeredDns := range registered {
		if _, found := topology.Nodes.Load(registeredDns); !found {
			log.Warning("Host ", registeredDns, " replicates from master ", master.Dns, " but is not in the inventory section ", topology.SectionName)
		}
	}
}

func (topology *TopologyImpl) Master() DataNodeImpl {
	master, _ := topology.Nodes.Load(topology.masterDns)
	return master
}

//Replicas returns the replica nodes in inventory order
func (topology *TopologyImpl) Replicas() []DataNodeImpl {
	replicas := make([]DataNodeImpl, 0, len(topology.replicaOrder))
	for _, replicaDns := range topology.replicaOrder {
		if replica, found := topology.Nodes.Load(replicaDns); found {
			replicas = append(replicas, replica)
		}
	}
	return replicas
}

/*
PromoteReplica swaps the roles so the given replica becomes the master of the
section and the demoted master takes its slot in the replica order. Only the
model changes here, moving the actual replication is up to the failover
tooling. Role updates serialize on the topology, reads do not.
*/
func (topology *TopologyImpl) PromoteReplica(hostDns string) error {
	topology.roleLock.Lock()
	defer topology.roleLock.Unlock()

	promoted, found := topology.Nodes.Load(hostDns)
	if !found {
		return fmt.Errorf("host %s is not part of section %s", hostDns, topology.SectionName)
	}
	if hostDns == topology.masterDns {
		return fmt.Errorf("host %s is already the master of section %s", hostDns, topology.SectionName)
	}

	demoted, _ := topology.Nodes.Load(topology.masterDns)
	demoted.Role = RoleReplica
	promoted.Role = RoleMaster

	for position, replicaDns := range topology.replicaOrder {
		if replicaDns == hostDns {
			topology.replicaOrder[position] = demoted.Dns
			break
		}
	}
	topology.Nodes.Store(demoted.Dns, demoted)
	topology.Nodes.Store(promoted.Dns, promoted)
	topology.masterDns = promoted.Dns

	log.Warning("Host ", promoted.Dns, " is now the master of section ", topology.SectionName, ", previous master ", demoted.Dns, " demoted to replica")
	return nil
}

/*
Lag returns one lag sample for one host of the section.
The master is never behind itself so it gets a valid zero sample without
touching the backend. A replica that cannot answer, has no replication
running or reports a NULL Seconds_Behind_Master produces an invalid sample.
*/
func (topology *TopologyImpl) Lag(hostDns string) (LagSample, error) {
	node, found := topology.Nodes.Load(hostDns)
	sampledAt := time.Now()
	if !found {
		return LagSample{HostDns: hostDns, SampledAt: sampledAt}, fmt.Errorf("host %s is not part of section %s", hostDns, topology.SectionName)
	}
	if node.Dns == topology.masterDns {
		return LagSample{HostDns: hostDns, Seconds: 0, Valid: true, SampledAt: sampledAt}, nil
	}
	if node.NodeTCPDown || node.Connection == nil {
		return LagSample{HostDns: hostDns, SampledAt: sampledAt}, nil
	}

	rows, ok := node.getNodeTable(SQLMariadb.Dml_show_slave_status)
	if !ok || len(rows) < 1 {
		//no row at all means replication is not even configured on this host
		return LagSample{HostDns: hostDns, SampledAt: sampledAt}, nil
	}
	slaveStatus := rows[0]

	ioRunning := slaveStatus["Slave_IO_Running"].String
	sqlRunning := slaveStatus["Slave_SQL_Running"].String
	if !strings.EqualFold(ioRunning, "Yes") || !strings.EqualFold(sqlRunning, "Yes") {
		log.Debug("Replication threads not running on ", hostDns, " io: ", ioRunning, " sql: ", sqlRunning)
		return LagSample{HostDns: hostDns, SampledAt: sampledAt}, nil
	}

	return parseSecondsBehindMaster(hostDns, slaveStatus["Seconds_Behind_Master"], sampledAt)
}

func (topology *TopologyImpl) CloseConnections() {
	for _, node := range topology.Nodes.ExposeMap() {
		node.CloseConnection()
	}
}

func parseSecondsBehindMaster(hostDns string, rawValue sql.NullString, sampledAt time.Time) (LagSample, error) {
	lagSample := LagSample{HostDns: hostDns, SampledAt: sampledAt}
	if !rawValue.Valid {
		return lagSample, nil
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(rawValue.String), 64)
	if err != nil {
		return lagSample, &LagParseError{HostDns: hostDns, RawValue: rawValue.String}
	}
	lagSample.Seconds = seconds
	lagSample.Valid = true
	return lagSample, nil
}

// *** DATA NODE SECTION =============================================

/*this method is used to assign a connection to a MariaDB node
return true if successful in any other case false
*/
func (node *DataNodeImpl) GetConnection() bool {
	if global.Performance {
		global.SetPerformanceObj("node_connection_"+node.Dns, true, log.DebugLevel)
	}
	//user:password@tcp([de:ad:be:ef::ca:fe]:3306)/?timeout=1s
	attributes := "?timeout=" + strconv.Itoa(node.ConnectTimeOut) + "s"

	if node.UseSsl {
		if node.Ssl == nil {
			attributes = attributes + "&tls=skip-verify"
		} else if node.Ssl.sslCertificatePath != "" {
			ca := node.Ssl.sslCertificatePath + global.Separator + node.Ssl.sslCa
			client := node.Ssl.sslCertificatePath + global.Separator + node.Ssl.sslClient
			key := node.Ssl.sslCertificatePath + global.Separator + node.Ssl.sslKey

			rootCertPool := x509.NewCertPool()
			pem, err := ioutil.ReadFile(ca)
			if err != nil {
				log.Error(err, " While trying to connect to node (CA certificate) ", node.Dns)
				return false
			}
			if ok := rootCertPool.AppendCertsFromPEM(pem); !ok {
				log.Error(err, " While trying to connect to node (PEM certificate) ", node.Dns)
				return false
			}
			clientCert := make([]tls.Certificate, 0, 1)
			certs, err := tls.LoadX509KeyPair(client, key)
			if err != nil {
				log.Error(err, " While trying to connect to node (Key certificate) ", node.Dns)
				return false
			}
			clientCert = append(clientCert, certs)
			mysql.RegisterTLSConfig("custom", &tls.Config{
				RootCAs:      rootCertPool,
				Certificates: clientCert,
			})
			attributes = attributes + "&tls=custom"
		} else {
			attributes = attributes + "&tls=skip-verify"
		}
	}

	db, err := sql.Open("mysql", node.User+":"+node.Password+"@tcp("+net.JoinHostPort(node.Host, strconv.Itoa(node.Port))+")/"+attributes)
	node.Connection = db
	// if there is an error opening the connection, handle it
	if err != nil {
		log.Error(err.Error())
		return false
	}

	// Open doesn't open a connection. Validate DSN data:
	err = db.Ping()
	if err != nil {
		log.Error(err.Error())
		node.NodeTCPDown = true
		return false
	}
	node.NodeTCPDown = false

	if global.Performance {
		global.SetPerformanceObj("node_connection_"+node.Dns, false, log.DebugLevel)
	}
	return true
}

/*this method is call to close the connection to a MariaDB node
return true if successful in any other case false
*/
func (node *DataNodeImpl) CloseConnection() bool {
	if node.Connection != nil {
		err := node.Connection.Close()
		if err != nil {
			log.Error(err.Error())
			return false
		}
		return true
	}
	return false
}

func (node *DataNodeImpl) getNodeInternalInformation(dml string) map[string]string {
	recordset, err := node.Connection.Query(dml)
	if err != nil {
		log.Error(err.Error())
		return nil
	}

	variables := make(map[string]string)
	var varName string
	var varValue string
	for recordset.Next() {
		recordset.Scan(&varName,
			&varValue)
		variables[varName] = varValue
	}

	return variables
}

/*
getNodeTable reads a whole resultset into a slice of column name to value
maps. SHOW SLAVE STATUS and SHOW SLAVE HOSTS have wide, version dependent
layouts, scanning by column name keeps us away from positional surprises.
*/
func (node *DataNodeImpl) getNodeTable(dml string) ([]map[string]sql.NullString, bool) {
	recordset, err := node.Connection.Query(dml)
	if err != nil {
		log.Error(err.Error())
		return nil, false
	}
	defer recordset.Close()

	columns, err := recordset.Columns()
	if err != nil {
		log.Error(err.Error())
		return nil, false
	}

	rows := make([]map[string]sql.NullString, 0)
	for recordset.Next() {
		values := make([]sql.NullString, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := recordset.Scan(pointers...); err != nil {
			log.Error(err.Error())
			return nil, false
		}
		row := make(map[string]sql.NullString, len(columns))
		for i, columnName := range columns {
			row[columnName] = values[i]
		}
		rows = append(rows, row)
	}
	return rows, true
}

func (node DataNodeImpl) getInfo(wg *global.MyWaitGroup, topology *TopologyImpl) int {
	if global.Performance {
		global.SetPerformanceObj(fmt.Sprintf("Get info for node %s", node.Dns), true, log.DebugLevel)
	}
	// Get the connection
	if !node.GetConnection() {
		node.NodeTCPDown = true
	}
	/*
		if connection is functioning we try to get the info
		Otherwise we go on and set node as NOT processed
	*/
	if !node.NodeTCPDown {
		node.Variables = node.getNodeInternalInformation(SQLMariadb.Dml_get_variables)
		node.Processed = true

		//set the specific monitoring parameters
		node.setParameters()
		if global.Performance {
			global.SetPerformanceObj(fmt.Sprintf("Get info for node %s", node.Dns), false, log.DebugLevel)
		}
	} else {
		node.Processed = false
		log.Warn("Cannot load information (variables) for node: ", node.Dns)
	}

	//the connection stays open on purpose, lag polling and the cluster lock reuse it
	topology.Nodes.Store(node.Dns, node)
	log.Debug("node ", node.Dns, " done")

	//We decrease the counter running go routines
	wg.DecreaseCounter()
	log.Debug(fmt.Sprintf("waitingGroup decreased by node %s, now contains #%d", node.Dns, wg.ReportCounter()))
	return 0
}

//here we set and normalize the parameters coming from the global variables
func (node *DataNodeImpl) setParameters() {
	node.Version = node.Variables["version"]
	node.ReadOnly = global.ToBool(node.Variables["read_only"], "on")
	node.BinlogFormat = node.Variables["binlog_format"]
	node.LogBin = global.ToBool(node.Variables["log_bin"], "on")
	node.ServerId = global.ToInt(node.Variables["server_id"])
}

// Sync Map

func NewNodeMap() *SyncMap {
	return &SyncMap{
		internal: make(map[string]DataNodeImpl),
	}
}

func (rm *SyncMap) Load(key string) (value DataNodeImpl, ok bool) {
	rm.RLock()
	defer rm.RUnlock()
	result, ok := rm.internal[key]
	return result, ok
}

func (rm *SyncMap) Store(key string, value DataNodeImpl) {
	rm.Lock()
	defer rm.Unlock()
	rm.internal[key] = value
}

func (rm *SyncMap) ExposeMap() map[string]DataNodeImpl {
	return rm.internal
}
