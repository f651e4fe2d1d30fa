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

package connector

import (
	"errors"
	"fmt"
)

// ErrNotReadOnly is returned when a query does not have a read-only shape.
var ErrNotReadOnly = errors.New("query is not read-only")

// ConfigurationError reports a malformed connector spec. It is fatal at
// construction time.
type ConfigurationError struct {
	Connector string
	Message   string
	Err       error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("connector %q: %s", e.Connector, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ExecutionError reports a connector-level failure while running a query.
type ExecutionError struct {
	Source string
	Query  string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: execute %q: %v", e.Source, e.Query, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func newConfigError(name, msg string, err error) *ConfigurationError {
	return &ConfigurationError{Connector: name, Message: msg, Err: err}
}
