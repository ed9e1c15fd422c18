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

package config

import (
	"encoding/json"
	"fmt"
	"sort"
)

// SchemaJSON returns the JSON schema for the configuration file.
func SchemaJSON() string {
	return configSchemaJSON
}

// ExampleConfigJSON returns a minimal example config derived from the schema.
func ExampleConfigJSON() string {
	return exampleConfigJSON
}

func normalizeConfigJSON(data []byte) ([]byte, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	migrateLegacyConfig(raw)
	if err := validateConfigMap(raw); err != nil {
		return nil, err
	}
	return json.Marshal(raw)
}

// migrateLegacyConfig accepts the older tool_timeouts.default_ms spelling.
func migrateLegacyConfig(raw map[string]interface{}) {
	timeouts, ok := raw["tool_timeouts"].(map[string]interface{})
	if !ok {
		return
	}
	legacy, ok := timeouts["default_ms"]
	if !ok {
		return
	}
	delete(timeouts, "default_ms")
	if _, set := raw["default_timeout_ms"]; !set {
		raw["default_timeout_ms"] = legacy
	}
}

// fieldCheck validates one decoded JSON value; name is its dotted path.
type fieldCheck func(value interface{}, name string) error

var configFields = map[string]fieldCheck{
	"blocked_paths":      checkStringArray,
	"default_timeout_ms": checkNumber,
	"metrics_addr":       checkString,
	"tools": checkObject(map[string]fieldCheck{
		"allow": checkStringArray,
		"deny":  checkStringArray,
	}),
	"tool_rate_limits": checkObject(map[string]fieldCheck{
		"default_per_minute": checkNumber,
		"per_tool":           checkNumberMap,
	}),
	"tool_timeouts": checkObject(map[string]fieldCheck{
		"per_tool_ms": checkNumberMap,
	}),
	"tool_output_filters": checkObject(map[string]fieldCheck{
		"max_chars":     checkNumber,
		"strip_ansi":    checkBool,
		"strip_control": checkBool,
	}),
	"binaries": checkObject(map[string]fieldCheck{
		"ls":  checkString,
		"git": checkString,
	}),
}

func validateConfigMap(raw map[string]interface{}) error {
	return checkFields(raw, configFields, "")
}

// checkFields rejects unknown keys and runs the checks in key order so the
// reported error is deterministic.
func checkFields(section map[string]interface{}, fields map[string]fieldCheck, prefix string) error {
	keys := make([]string, 0, len(section))
	for key := range section {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		check, ok := fields[key]
		if !ok {
			return fmt.Errorf("unknown configuration field %q", prefix+key)
		}
		if err := check(section[key], prefix+key); err != nil {
			return err
		}
	}
	return nil
}

func checkObject(fields map[string]fieldCheck) fieldCheck {
	return func(value interface{}, name string) error {
		section, ok := value.(map[string]interface{})
		if !ok {
			return fmt.Errorf("%s must be an object", name)
		}
		return checkFields(section, fields, name+".")
	}
}

func checkString(value interface{}, name string) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("%s must be a string", name)
	}
	return nil
}

func checkNumber(value interface{}, name string) error {
	if _, ok := value.(float64); !ok {
		return fmt.Errorf("%s must be a number", name)
	}
	return nil
}

func checkBool(value interface{}, name string) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("%s must be a boolean", name)
	}
	return nil
}

func checkStringArray(value interface{}, name string) error {
	list, ok := value.([]interface{})
	if !ok {
		return fmt.Errorf("%s must be an array of strings", name)
	}
	for i, item := range list {
		if _, ok := item.(string); !ok {
			return fmt.Errorf("%s[%d] must be a string", name, i)
		}
	}
	return nil
}

func checkNumberMap(value interface{}, name string) error {
	section, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%s must be an object of number values", name)
	}
	for key, entry := range section {
		if err := checkNumber(entry, name+"."+key); err != nil {
			return err
		}
	}
	return nil
}

const configSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "cmdgate config",
  "type": "object",
  "properties": {
    "blocked_paths": { "type": "array", "items": { "type": "string" } },
    "default_timeout_ms": { "type": "number", "exclusiveMinimum": 0 },
    "metrics_addr": { "type": "string" },
    "tools": {
      "type": "object",
      "properties": {
        "allow": { "type": "array", "items": { "type": "string" } },
        "deny": { "type": "array", "items": { "type": "string" } }
      }
    },
    "tool_rate_limits": {
      "type": "object",
      "properties": {
        "default_per_minute": { "type": "number" },
        "per_tool": { "type": "object", "additionalProperties": { "type": "number" } }
      }
    },
    "tool_timeouts": {
      "type": "object",
      "properties": {
        "per_tool_ms": { "type": "object", "additionalProperties": { "type": "number" } }
      }
    },
    "tool_output_filters": {
      "type": "object",
      "properties": {
        "max_chars": { "type": "number" },
        "strip_ansi": { "type": "boolean" },
        "strip_control": { "type": "boolean" }
      }
    },
    "binaries": {
      "type": "object",
      "properties": {
        "ls": { "type": "string" },
        "git": { "type": "string" }
      }
    }
  },
  "additionalProperties": false
}`

const exampleConfigJSON = `{
  "blocked_paths": ["/etc/shadow", "/root/.ssh"],
  "default_timeout_ms": 180000,
  "tools": {
    "allow": ["ls_tool", "git"]
  },
  "tool_rate_limits": {
    "per_tool": { "git": 30 }
  },
  "tool_timeouts": {
    "per_tool_ms": { "git": 60000 }
  }
}`
