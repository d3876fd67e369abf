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

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"github.com/Tusamarco/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

/*
Here we have the references objects and methods to deal with the configuration file
Configuration is written in toml using the libraries found in: github.com/Tusamarco/toml
Configuration file has 4 main section:
	[mariadbcluster]
		...
	[osc]
		...
	[execution]
		...
	[Global]
		...
*/

//Main structure working as container for the configuration sections
type Configuration struct {
	Mariadb   MariadbCluster  `toml:"mariadbcluster"`
	Osc       OscTool         `toml:"osc"`
	Execution Execution       `toml:"execution"`
	Global    GlobalScheduler `toml:"Global"`
}

//MariaDB fleet configuration class
type MariadbCluster struct {
	User               string
	Password           string
	Port               int `validate:"min=1,max=65535"`
	ConnectTimeOut     int `validate:"min=1"`
	CheckTimeOut       int `validate:"min=1"`
	InventoryFile      string
	Section            string
	UseSsl             bool
	SslClient          string
	SslKey             string
	SslCa              string
	SslcertificatePath string
}

//Schema change tool configuration class
type OscTool struct {
	Method             string `validate:"oneof=percona ddl"`
	ToolPath           string
	ClientPath         string
	ToolVars           string
	ExtraArgs          []string
	PerReplica         bool
	CommandTimeOut     int `validate:"min=1"`
	SuccessCodes       []int
	TransientCodes     []int
	RetryMaxAttempts   int `validate:"min=1"`
	RetryBackoffMs     int `validate:"min=0"`
	RetryBackoffMaxMs  int `validate:"min=0"`
	MaxReplicaLag      int `validate:"min=0"`
	LagWaitBudget      int `validate:"min=0"`
	LagCheckIntervalMs int `validate:"min=1"`
}

//Remote execution backend configuration class
type Execution struct {
	Backend         string `validate:"oneof=local fleet"`
	RunnerPath      string
	RunnerArgs      []string
	MaxParallel     int `validate:"min=1"`
	CheckIntervalMs int `validate:"min=1"`
}

//Global scheduler conf
type GlobalScheduler struct {
	Debug              bool
	LogLevel           string `validate:"oneof=debug info warning error"`
	LogTarget          string `validate:"oneof=stdout file"`
	LogFile            string //"/tmp/mariadb_osc_handler.log"
	Performance        bool
	LockFilePath       string
	LockFileTimeout    int64
	LockClusterTimeout int64
}

var validate = validator.New()

func (conf *Configuration) fillDefaults() {
	conf.Mariadb.User = "root"
	conf.Mariadb.Port = 3306
	conf.Mariadb.ConnectTimeOut = 1
	conf.Mariadb.CheckTimeOut = 2000

	conf.Osc.Method = "percona"
	conf.Osc.ToolPath = "/usr/bin/pt-online-schema-change"
	conf.Osc.ClientPath = "/usr/bin/mysql"
	conf.Osc.PerReplica = true
	conf.Osc.CommandTimeOut = 86400
	conf.Osc.SuccessCodes = []int{0}
	conf.Osc.TransientCodes = []int{75}
	conf.Osc.RetryMaxAttempts = 3
	conf.Osc.RetryBackoffMs = 5000
	conf.Osc.RetryBackoffMaxMs = 60000
	conf.Osc.MaxReplicaLag = 10
	conf.Osc.LagWaitBudget = 300
	conf.Osc.LagCheckIntervalMs = 2000

	conf.Execution.Backend = "local"
	conf.Execution.RunnerPath = "/usr/bin/cumin"
	conf.Execution.RunnerArgs = []string{"--force", "-o", "txt"}
	conf.Execution.MaxParallel = 10
	conf.Execution.CheckIntervalMs = 10

	conf.Global.LogLevel = "info"
	conf.Global.LogTarget = "stdout"
	conf.Global.LockFilePath = "/tmp"
	//a recycled PID can only be told apart by age, keep this above the longest command run
	conf.Global.LockFileTimeout = 86400
	conf.Global.LockClusterTimeout = 10
}

//Methods to return the config as map
func GetConfig(path string) Configuration {
	var config Configuration
	config.fillDefaults()
	if _, err := toml.DecodeFile(path, &config); err != nil {
		log.Error(err)
		syscall.Exit(3)
	}
	config.applyEnvironmentOverrides()
	return config
}

//Credentials can come from the environment (or a .env file) instead of the config file,
//so the toml can be shipped without secrets
func (conf *Configuration) applyEnvironmentOverrides() {
	envFile, err := godotenv.Read()
	if err != nil {
		envFile = map[string]string{}
	}
	if value := lookupEnv("MARIADB_OSC_USER", envFile); value != "" {
		conf.Mariadb.User = value
	}
	if value := lookupEnv("MARIADB_OSC_PASSWORD", envFile); value != "" {
		conf.Mariadb.Password = value
	}
}

func lookupEnv(key string, envFile map[string]string) string {
	if value, found := os.LookupEnv(key); found {
		return value
	}
	return envFile[key]
}

func (conf *Configuration) SanityCheck() bool {
	//debug flag wins over the configured log level
	if conf.Global.Debug {
		conf.Global.LogLevel = "debug"
	}

	if err := validate.Struct(conf); err != nil {
		log.SetReportCaller(true)
		for _, fieldError := range err.(validator.ValidationErrors) {
			log.Error(fmt.Sprintf("Configuration error on field %s: failed rule '%s' (value: '%v')",
				fieldError.Namespace(), fieldError.Tag(), fieldError.Value()))
		}
		log.SetReportCaller(false)
		return false
	}

	//a code cannot be at the same time a success and a transient failure
	for _, code := range conf.Osc.TransientCodes {
		if ContainsInt(conf.Osc.SuccessCodes, code) {
			log.SetReportCaller(true)
			log.Error("Configuration error exit code ", code, " cannot be both in SuccessCodes and TransientCodes")
			return false
		}
	}

	//an explicit empty list means the operator removed the defaults by mistake
	if len(conf.Osc.SuccessCodes) == 0 {
		log.Warning("SuccessCodes is empty, no exit code could ever succeed. Resetting to [0]")
		conf.Osc.SuccessCodes = []int{0}
	}

	if conf.Osc.Method == "percona" && conf.Osc.ToolPath == "" {
		log.SetReportCaller(true)
		log.Error("Configuration error Method is 'percona' but ToolPath is empty")
		return false
	}
	if conf.Osc.Method == "ddl" && conf.Osc.ClientPath == "" {
		log.SetReportCaller(true)
		log.Error("Configuration error Method is 'ddl' but ClientPath is empty")
		return false
	}

	if conf.Mariadb.InventoryFile == "" {
		log.SetReportCaller(true)
		log.Error("Configuration error InventoryFile is empty, no topology can be built")
		return false
	}
	if !CheckIfPathExists(conf.Mariadb.InventoryFile) {
		log.SetReportCaller(true)
		log.Error(fmt.Sprintf("InventoryFile is not accessible currently set to: |%s|", conf.Mariadb.InventoryFile))
		return false
	}

	if conf.Mariadb.Section == "" {
		log.SetReportCaller(true)
		log.Error("No section given, use the Section parameter or the --section flag")
		return false
	}

	//Check for correct LockFilePath
	if conf.Global.LockFilePath == "" {
		log.Warn(fmt.Sprintf("LockFilePath is invalid. Currently set to: |%s|  I will set to /tmp/ ", conf.Global.LockFilePath))
		conf.Global.LockFilePath = "/tmp"
		if !CheckIfPathExists(conf.Global.LockFilePath) {
			log.SetReportCaller(true)
			log.Error(fmt.Sprintf("LockFilePath is not accessible currently set to: |%s|", conf.Global.LockFilePath))
			return false
		}
	}

	//check SSL path and certificates
	if conf.Mariadb.SslcertificatePath != "" {
		Separator := string(os.PathSeparator)
		log.SetReportCaller(false)
		if !CheckIfPathExists(conf.Mariadb.SslcertificatePath) {
			log.Warning(fmt.Sprintf("SSL Path is not accessible currently set to: |%s|", conf.Mariadb.SslcertificatePath))
		} else {
			if !CheckIfPathExists(conf.Mariadb.SslcertificatePath + Separator + conf.Mariadb.SslCa) {
				log.Warning(fmt.Sprintf("SSLCA Path is not accessible currently set to: |%s|", conf.Mariadb.SslcertificatePath+Separator+conf.Mariadb.SslCa))
			}
			if !CheckIfPathExists(conf.Mariadb.SslcertificatePath + Separator + conf.Mariadb.SslKey) {
				log.Warning(fmt.Sprintf("SSL Key Path is not accessible currently set to: |%s|", conf.Mariadb.SslcertificatePath+Separator+conf.Mariadb.SslKey))
			}
			if !CheckIfPathExists(conf.Mariadb.SslcertificatePath + Separator + conf.Mariadb.SslClient) {
				log.Warning(fmt.Sprintf("SSL Client Path is not accessible currently set to: |%s|", conf.Mariadb.SslcertificatePath+Separator+conf.Mariadb.SslClient))
			}
		}
	}

	return true
}

//initialize the log
func InitLog(config Configuration) bool {

	//set a consistent output for the log no matter if file or stdout
	formatter := LogFormat{}
	formatter.TimestampFormat = "2006-01-02 15:04:05"
	log.SetFormatter(&formatter)

	if strings.ToLower(config.Global.LogTarget) == "stdout" {
		log.SetOutput(os.Stdout)
	} else if strings.ToLower(config.Global.LogTarget) == "file" &&
		config.Global.LogFile != "" {
		//try to initialize the log on file if it fails it will redirect to stdout
		file, err := os.OpenFile(config.Global.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0666)
		if err == nil {
			log.SetOutput(file)
		} else {
			log.Error("Error logging to file ", err.Error())
			return false
		}
	}

	//set log severity level
	switch level := strings.ToLower(config.Global.LogLevel); level {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.ErrorLevel)
	}

	if log.GetLevel() == log.DebugLevel {
		log.Info("Go version: ", runtime.Version())
		log.Debug("Log initialized")
	}
	return true
}

type LogFormat struct {
	TimestampFormat string
}

func (f *LogFormat) Format(entry *log.Entry) ([]byte, error) {
	var b *bytes.Buffer

	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	b.WriteString("\x1b[" + strconv.Itoa(getColorByLevel(entry.Level)) + "m")
	b.WriteByte('[')
	b.WriteString(strings.ToUpper(entry.Level.String()))
	b.WriteString("]")
	b.WriteString("\x1b[0m")
	b.WriteByte(':')
	b.WriteString(entry.Time.Format(f.TimestampFormat))

	if entry.Message != "" {
		b.WriteString(" - ")
		b.WriteString(entry.Message)
	}

	if len(entry.Data) > 0 {
		b.WriteString(" || ")
	}
	for key, value := range entry.Data {
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteByte('{')
		fmt.Fprint(b, value)
		b.WriteString("}, ")
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

const (
	colorRed    = 31
	colorYellow = 33
	colorBlue   = 36
	colorGray   = 34 //37
	paniclevel  = 35
)

func getColorByLevel(level log.Level) int {
	switch level {
	case log.DebugLevel:
		return colorGray
	case log.WarnLevel:
		return colorYellow
	case log.ErrorLevel:
		return colorRed
	case log.PanicLevel, log.FatalLevel:
		return paniclevel
	default:
		return colorBlue
	}
}
