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
	"strconv"
	"time"
)

// ServerConfig configures the chat HTTP server.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host,default=0.0.0.0"`

	// Port is the listen port.
	Port int `yaml:"port,omitempty" json:"port,omitempty" jsonschema:"title=Port,minimum=1,maximum=65535,default=8000"`

	// ModelName is the single model id advertised by /v1/models.
	ModelName string `yaml:"model_name,omitempty" json:"model_name,omitempty" jsonschema:"title=Model Name,default=lab-rag"`

	// OwnedBy is reported in the /v1/models listing.
	OwnedBy string `yaml:"owned_by,omitempty" json:"owned_by,omitempty" jsonschema:"title=Owned By,default=lab"`

	// StrictModel answers requests naming another model with a textual error.
	StrictModel bool `yaml:"strict_model,omitempty" json:"strict_model,omitempty" jsonschema:"title=Strict Model Check,default=false"`

	// ReadTimeout bounds reading a request.
	ReadTimeout time.Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty" jsonschema:"title=Read Timeout,default=30s"`

	// WriteTimeout must cover a full agent run.
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty" jsonschema:"title=Write Timeout,default=10m"`

	// CORSOrigin is sent as Access-Control-Allow-Origin.
	CORSOrigin string `yaml:"cors_origin,omitempty" json:"cors_origin,omitempty" jsonschema:"title=CORS Origin,default=*"`
}

// SetDefaults applies default values.
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.ModelName == "" {
		c.ModelName = "lab-rag"
	}
	if c.OwnedBy == "" {
		c.OwnedBy = "lab"
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Minute
	}
	if c.CORSOrigin == "" {
		c.CORSOrigin = "*"
	}
}

// Validate checks the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.ModelName == "" {
		return fmt.Errorf("model_name is required")
	}
	return nil
}

// Address returns host:port.
func (c *ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
