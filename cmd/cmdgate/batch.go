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

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"cmdgate/internal/tools"
)

const maxBatchLine = 4 * 1024 * 1024

func newBatchCmd(opts *rootOptions) *cobra.Command {
	var parallel int
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run tool calls read as JSON lines from stdin",
		Long: `batch reads one OpenAI tool call per line, for example
  {"id":"call_1","type":"function","function":{"name":"ls_tool","arguments":"{\"path\":\"/tmp\"}"}}
and writes one tool message per line, in input order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()
			return runBatch(cmd.Context(), a.registry, cmd.InOrStdin(), cmd.OutOrStdout(), parallel, a.logger)
		},
	}
	cmd.Flags().IntVarP(&parallel, "parallel", "p", runtime.NumCPU(), "Maximum concurrent tool calls")
	return cmd
}

func readToolCalls(in io.Reader) ([]openai.ToolCall, error) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxBatchLine)

	var calls []openai.ToolCall
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var call openai.ToolCall
		if err := json.Unmarshal([]byte(line), &call); err != nil {
			return nil, fmt.Errorf("line %d: invalid tool call: %w", lineNo, err)
		}
		calls = append(calls, call)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading input: %w", err)
	}
	return calls, nil
}

func runBatch(ctx context.Context, registry *tools.Registry, in io.Reader, out io.Writer, parallel int, logger zerolog.Logger) error {
	calls, err := readToolCalls(in)
	if err != nil {
		return err
	}
	logger.Debug().Int("calls", len(calls)).Int("parallel", parallel).Msg("running batch")

	start := time.Now()
	results := make([]*tools.ToolResult, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, call := range calls {
		g.Go(func() error {
			results[i] = registry.ExecuteOpenAIToolCall(gctx, call)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	for i, result := range results {
		msg := openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Name:       result.Function,
			Content:    result.Result,
			ToolCallID: calls[i].ID,
		}
		if err := enc.Encode(msg); err != nil {
			return err
		}
	}
	logger.Info().Int("calls", len(calls)).Dur("duration", time.Since(start)).Msg("batch finished")
	return nil
}
