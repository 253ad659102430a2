// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
)

// Supported database drivers.
const (
	DriverSQLServer = "sqlserver"
	DriverPostgres  = "postgres"
	DriverMySQL     = "mysql"
	DriverSQLite    = "sqlite"
)

// DatabaseConfig holds the relational database connection used by the
// schema and query tools and by SQL ingestion.
type DatabaseConfig struct {
	// Driver is one of sqlserver, postgres, mysql or sqlite.
	Driver string `yaml:"driver" json:"driver" jsonschema:"title=Driver,enum=sqlserver,enum=postgres,enum=mysql,enum=sqlite,enum=sqlite3,default=sqlserver"`

	Host string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host,description=Server hostname (not required for SQLite)"`
	Port int    `yaml:"port,omitempty" json:"port,omitempty" jsonschema:"title=Port"`

	// Database is the database name, or the file path for SQLite.
	Database string `yaml:"database" json:"database" jsonschema:"title=Database"`

	Username string `yaml:"username,omitempty" json:"username,omitempty" jsonschema:"title=Username"`
	Password string `yaml:"password,omitempty" json:"password,omitempty" jsonschema:"title=Password"`

	// Charset applies to MySQL. SQL Server always speaks UTF-16 on the wire.
	Charset string `yaml:"charset,omitempty" json:"charset,omitempty" jsonschema:"title=Charset,default=utf8mb4"`

	// SSLMode applies to PostgreSQL.
	SSLMode string `yaml:"ssl_mode,omitempty" json:"ssl_mode,omitempty" jsonschema:"title=SSL Mode"`

	// Encrypt applies to SQL Server (true, false or disable).
	Encrypt string `yaml:"encrypt,omitempty" json:"encrypt,omitempty" jsonschema:"title=Encrypt,enum=true,enum=false,enum=disable,default=disable"`

	MaxConns int `yaml:"max_conns,omitempty" json:"max_conns,omitempty" jsonschema:"title=Max Open Connections,minimum=1,default=10"`
	MaxIdle  int `yaml:"max_idle,omitempty" json:"max_idle,omitempty" jsonschema:"title=Max Idle Connections,minimum=1,default=2"`
}

// SetDefaults applies default values to the database config.
func (c *DatabaseConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = DriverSQLServer
	}
	if c.MaxConns == 0 {
		c.MaxConns = 10
	}
	if c.MaxIdle == 0 {
		c.MaxIdle = 2
	}
	if c.Port == 0 {
		switch c.Driver {
		case DriverSQLServer:
			c.Port = 1433
		case DriverPostgres:
			c.Port = 5432
		case DriverMySQL:
			c.Port = 3306
		}
	}
	switch c.Driver {
	case DriverPostgres:
		if c.SSLMode == "" {
			c.SSLMode = "disable"
		}
	case DriverMySQL:
		if c.Charset == "" {
			c.Charset = "utf8mb4"
		}
	case DriverSQLServer:
		if c.Encrypt == "" {
			c.Encrypt = "disable"
		}
	}
}

// Validate checks the database configuration.
func (c *DatabaseConfig) Validate() error {
	switch c.Driver {
	case DriverSQLServer, DriverPostgres, DriverMySQL, DriverSQLite, "sqlite3":
	case "":
		return fmt.Errorf("driver is required")
	default:
		return fmt.Errorf("invalid driver %q (valid: sqlserver, postgres, mysql, sqlite)", c.Driver)
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if !c.IsSQLite() && c.Host == "" {
		return fmt.Errorf("host is required for %s", c.Driver)
	}
	if c.MaxConns < 0 || c.MaxIdle < 0 {
		return fmt.Errorf("max_conns and max_idle must be non-negative")
	}
	return nil
}

// IsSQLite reports whether the driver is SQLite under either name.
func (c *DatabaseConfig) IsSQLite() bool {
	return c.Driver == DriverSQLite || c.Driver == "sqlite3"
}

// DSN returns the data source name for sql.Open.
func (c *DatabaseConfig) DSN() string {
	switch c.Driver {
	case DriverSQLServer:
		u := &url.URL{
			Scheme: "sqlserver",
			Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		}
		if c.Username != "" {
			u.User = url.UserPassword(c.Username, c.Password)
		}
		q := url.Values{}
		q.Set("database", c.Database)
		if c.Encrypt != "" {
			q.Set("encrypt", c.Encrypt)
		}
		u.RawQuery = q.Encode()
		return u.String()
	case DriverPostgres:
		dsn := fmt.Sprintf("host=%s port=%d dbname=%s", c.Host, c.Port, c.Database)
		if c.Username != "" {
			dsn += fmt.Sprintf(" user=%s", c.Username)
		}
		if c.Password != "" {
			dsn += fmt.Sprintf(" password=%s", c.Password)
		}
		if c.SSLMode != "" {
			dsn += fmt.Sprintf(" sslmode=%s", c.SSLMode)
		}
		return dsn
	case DriverMySQL:
		// [username[:password]@]tcp(host:port)/dbname?params
		dsn := fmt.Sprintf("tcp(%s:%d)/%s?parseTime=true", c.Host, c.Port, c.Database)
		if c.Charset != "" {
			dsn += "&charset=" + c.Charset
		}
		if c.Username != "" {
			dsn = fmt.Sprintf("%s:%s@%s", c.Username, c.Password, dsn)
		}
		return dsn
	case DriverSQLite, "sqlite3":
		return c.Database
	default:
		return ""
	}
}

// DriverName returns the name registered with database/sql.
func (c *DatabaseConfig) DriverName() string {
	if c.IsSQLite() {
		return "sqlite3"
	}
	return c.Driver
}

// Dialect returns the normalized dialect used for query building.
func (c *DatabaseConfig) Dialect() string {
	if c.IsSQLite() {
		return DriverSQLite
	}
	return c.Driver
}
