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

package Mariadb

const (
	/*
	   Retrieve main information from data nodes
	*/

	Dml_get_version     = "SELECT VERSION()"
	Dml_get_read_only   = "SELECT @@global.read_only"
	Dml_get_server_id   = "SELECT @@global.server_id"
	Dml_get_variables   = "SHOW GLOBAL VARIABLES WHERE Variable_name IN ('hostname','version','read_only','binlog_format','log_bin','server_id')"
	Dml_get_ssl_status  = "SHOW SESSION STATUS LIKE 'Ssl_cipher'"

	/*
	   Replication state
	*/

	Dml_show_slave_status = "SHOW SLAVE STATUS"
	Dml_show_slave_hosts  = "SHOW SLAVE HOSTS"
	Dml_show_master_status = "SHOW MASTER STATUS"

	/*
	   Cluster wide advisory lock for schema changes.
	   GET_LOCK returns NULL on error, 0 when another session holds the lock.
	*/

	Dml_get_lock     = "SELECT COALESCE(GET_LOCK(?,?),0)"
	Dml_release_lock = "SELECT COALESCE(RELEASE_LOCK(?),0)"

	/*
	   Target table existence check before we touch anything
	*/

	Dml_check_table = "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = ? AND table_name = ?"
)
