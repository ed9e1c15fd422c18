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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ValidationRule checks tool arguments and returns an error if invalid.
type ValidationRule func(args map[string]interface{}) error

// ChainValidation runs rules in order until the first error.
func ChainValidation(rules ...ValidationRule) ValidationRule {
	return func(args map[string]interface{}) error {
		for _, rule := range rules {
			if rule == nil {
				continue
			}
			if err := rule(args); err != nil {
				return err
			}
		}
		return nil
	}
}

// RequireStringArg ensures a string argument is present and non-empty.
func RequireStringArg(key string) ValidationRule {
	return func(args map[string]interface{}) error {
		value, ok := args[key]
		if !ok || value == nil {
			return invalidArguments("missing required argument '%s'", key)
		}
		str, ok := value.(string)
		if !ok || strings.TrimSpace(str) == "" {
			return invalidArguments("argument '%s' must be a non-empty string", key)
		}
		return nil
	}
}

// OptionalStringArg ensures key, when present, holds a string.
func OptionalStringArg(key string) ValidationRule {
	return func(args map[string]interface{}) error {
		value, ok := args[key]
		if !ok || value == nil {
			return nil
		}
		if _, ok := value.(string); !ok {
			return invalidArguments("argument '%s' must be a string", key)
		}
		return nil
	}
}

// OptionalStringListArg ensures key, when present, holds a list of strings.
func OptionalStringListArg(key string) ValidationRule {
	return func(args map[string]interface{}) error {
		value, ok := args[key]
		if !ok || value == nil {
			return nil
		}
		switch list := value.(type) {
		case []string:
			return nil
		case []interface{}:
			for i, item := range list {
				if _, ok := item.(string); !ok {
					return invalidArguments("argument '%s' item %d must be a string", key, i)
				}
			}
			return nil
		default:
			return invalidArguments("argument '%s' must be a list of strings", key)
		}
	}
}

// ParseToolArgs decodes a JSON object of arguments. Blank input is an empty
// object.
func ParseToolArgs(argsJSON string) (map[string]interface{}, error) {
	args := map[string]interface{}{}
	if strings.TrimSpace(argsJSON) == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return nil, invalidArguments("arguments are not a JSON object: %v", err)
	}
	return args, nil
}

// decodeArgs converts a loosely typed argument map into T, rejecting
// unknown fields and type mismatches.
func decodeArgs[T any](args map[string]interface{}) (T, error) {
	var out T
	if args == nil {
		args = map[string]interface{}{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return out, invalidArguments("arguments cannot be encoded: %v", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, invalidArguments("%s", describeDecodeError(err))
	}
	return out, nil
}

func describeDecodeError(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("argument '%s' must be %s, got %s", typeErr.Field, typeErr.Type.String(), typeErr.Value)
	}
	msg := err.Error()
	if strings.HasPrefix(msg, "json: unknown field ") {
		return "unknown argument " + strings.TrimPrefix(msg, "json: unknown field ")
	}
	return msg
}
