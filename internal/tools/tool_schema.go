// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package tools

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/567-labs/instructor-go/pkg/instructor"
)

// requestSchema derives the JSON schema parameters of a request struct.
// Request types are fixed at build time, so a failure here is a programming
// error and panics.
func requestSchema[T any]() map[string]interface{} {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	params, err := requestSchemaFor(t)
	if err != nil {
		panic(fmt.Sprintf("tools: schema for %s: %v", t, err))
	}
	return params
}

func requestSchemaFor(t reflect.Type) (map[string]interface{}, error) {
	schema, err := instructor.NewSchema(t)
	if err != nil {
		return nil, err
	}
	for _, fn := range schema.Functions {
		if fn.Name != t.Name() {
			continue
		}
		// Round-trip through JSON so callers see plain maps, not jsonschema types.
		encoded, err := json.Marshal(fn.Parameters)
		if err != nil {
			return nil, err
		}
		params := map[string]interface{}{}
		if err := json.Unmarshal(encoded, &params); err != nil {
			return nil, err
		}
		return params, nil
	}
	return nil, fmt.Errorf("no definition named %q", t.Name())
}

// RawSchema returns a tool's parameter schema as JSON.
func RawSchema(tool *Tool) (json.RawMessage, error) {
	if tool == nil {
		return nil, ErrToolNotFound
	}
	if tool.Parameters == nil {
		return json.RawMessage(`{"type":"object"}`), nil
	}
	return json.Marshal(tool.Parameters)
}
