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
	"context"
	"testing"

	"github.com/sashabaranov/go-openai"
)

// BenchmarkNewRegistry measures registry construction with the built-in tools
func BenchmarkNewRegistry(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		registry := NewRegistry(DefaultConfig())
		_ = registry
	}
}

// BenchmarkGetPermission measures permission check performance
func BenchmarkGetPermission(b *testing.B) {
	registry := NewRegistry(DefaultConfig())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = registry.GetPermission(LsToolName)
	}
}

// BenchmarkExecuteRejected measures the validation path, which never spawns
func BenchmarkExecuteRejected(b *testing.B) {
	registry := NewRegistry(DefaultConfig())
	args := map[string]interface{}{"path": "/tmp; rm -rf /"}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = registry.Execute(ctx, LsToolName, args)
	}
}

// BenchmarkExecuteOpenAIToolCall measures a full ls invocation
func BenchmarkExecuteOpenAIToolCall(b *testing.B) {
	registry := NewRegistry(DefaultConfig())
	toolCall := openai.ToolCall{
		ID:   "test-call",
		Type: openai.ToolTypeFunction,
		Function: openai.FunctionCall{
			Name:      LsToolName,
			Arguments: `{"path": ".", "head": 5}`,
		},
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = registry.ExecuteOpenAIToolCall(ctx, toolCall)
	}
}
