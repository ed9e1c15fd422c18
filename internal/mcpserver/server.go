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

package mcpserver

import (
	"context"
	"io"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"cmdgate/internal/tools"
)

// Name is the server name announced during initialization.
const Name = "cmdgate"

const instructions = `Tools run a fixed set of commands without a shell.
Shell metacharacters are rejected in every argument; use grep_pattern,
invert_grep, sort, unique, head, tail and transform_order to filter output.
Results starting with "Error:" describe a rejected or failed call.`

// Server exposes the allowed registry tools over the Model Context Protocol.
type Server struct {
	registry *tools.Registry
	mcp      *server.MCPServer
	logger   zerolog.Logger
}

// New registers one MCP tool per allowed registry tool.
func New(registry *tools.Registry, version string, logger zerolog.Logger) (*Server, error) {
	s := &Server{
		registry: registry,
		logger:   logger,
		mcp: server.NewMCPServer(Name, version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
			server.WithInstructions(instructions),
		),
	}
	for _, tool := range registry.Tools() {
		raw, err := tools.RawSchema(tool)
		if err != nil {
			return nil, err
		}
		s.mcp.AddTool(mcp.NewToolWithRawSchema(tool.Name, tool.Description, raw), s.handler(tool.Name))
		logger.Debug().Str("tool", tool.Name).Msg("registered MCP tool")
	}
	return s, nil
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// ServeStdio speaks JSON-RPC over in/out until ctx is done or in is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(log.New(s.logger.With().Str("component", "mcp").Logger(), "", 0))
	s.logger.Info().Int("tools", len(s.mcp.ListTools())).Msg("serving MCP on stdio")
	return stdio.Listen(ctx, in, out)
}

func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		if args == nil && req.Params.Arguments != nil {
			return mcp.NewToolResultError("Error: tool arguments must be a JSON object"), nil
		}

		s.progress(ctx, req, 0, "started")
		result := s.registry.Execute(ctx, name, args)
		s.progress(ctx, req, 1, result.Outcome)

		if result.Outcome != tools.OutcomeSuccess {
			return mcp.NewToolResultError(result.Result), nil
		}
		return mcp.NewToolResultText(result.Result), nil
	}
}

// progress sends notifications/progress when the client asked for it.
func (s *Server) progress(ctx context.Context, req mcp.CallToolRequest, progress float64, message string) {
	if req.Params.Meta == nil || req.Params.Meta.ProgressToken == nil {
		return
	}
	srv := server.ServerFromContext(ctx)
	if srv == nil {
		return
	}
	err := srv.SendNotificationToClient(ctx, "notifications/progress", map[string]any{
		"progressToken": req.Params.Meta.ProgressToken,
		"progress":      progress,
		"total":         1,
		"message":       message,
	})
	if err != nil {
		s.logger.Debug().Err(err).Msg("progress notification not delivered")
	}
}
