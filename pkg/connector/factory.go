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
	"context"
	"errors"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/kadirpekel/contextbridge/pkg/dbpool"
)

// New builds one connector from spec. Malformed specs, including unknown
// kinds, yield a *ConfigurationError.
func New(ctx context.Context, spec Spec, pool *dbpool.Pool) (Connector, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return nil, newConfigError(spec.Name, "name is required", nil)
	}

	kind, err := ParseKind(spec.KindName())
	if err != nil {
		return nil, newConfigError(name, "invalid kind", err)
	}

	switch kind {
	case KindTabular:
		var cfg SQLConfig
		if err := decodeConfig(spec.Config, &cfg); err != nil {
			return nil, newConfigError(name, "invalid config", err)
		}
		c, err := NewSQL(ctx, name, cfg, pool)
		if err != nil {
			return nil, err
		}
		return c, nil

	case KindParameterized:
		var cfg RESTConfig
		if err := decodeConfig(spec.Config, &cfg); err != nil {
			return nil, newConfigError(name, "invalid config", err)
		}
		c, err := NewREST(name, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil

	case KindDocument:
		var cfg FilesConfig
		if err := decodeConfig(spec.Config, &cfg); err != nil {
			return nil, newConfigError(name, "invalid config", err)
		}
		c, err := NewFiles(name, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	return nil, newConfigError(name, "unhandled kind "+string(kind), nil)
}

// NewSetFromSpecs builds every connector in specs. On failure the connectors
// built so far are closed and the first error is returned.
func NewSetFromSpecs(ctx context.Context, specs []Spec, pool *dbpool.Pool) (*Set, error) {
	conns := make([]Connector, 0, len(specs))
	closeAll := func() {
		for _, c := range conns {
			_ = c.Close()
		}
	}

	for _, spec := range specs {
		c, err := New(ctx, spec, pool)
		if err != nil {
			closeAll()
			return nil, err
		}
		conns = append(conns, c)
	}

	set, err := NewSet(conns...)
	if err != nil {
		closeAll()
		return nil, err
	}
	return set, nil
}

// IsConfigurationError reports whether err is a connector spec error.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

func decodeConfig(input map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      false,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}
