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
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"mvdan.cc/sh/v3/syntax"

	"cmdgate/internal/executor"
)

const (
	lsDescription  = "List a directory in long format, including hidden entries (runs `ls -al <path>`). Filter the output with grep_pattern, head, tail, sort or unique instead of shell operators."
	gitDescription = "Run an allow-listed git subcommand (status, add, commit, checkout) with arguments. Filter the output with grep_pattern, head, tail, sort or unique instead of shell operators."
)

// registerBuiltInTools registers the listing and git tools.
func registerBuiltInTools(r *Registry) {
	r.RegisterTool(&Tool{
		Name:        LsToolName,
		Description: lsDescription,
		Parameters:  requestSchema[LsRequest](),
		Validate: ChainValidation(
			OptionalStringArg("path"),
			OptionalStringArg("grep_pattern"),
			OptionalStringArg("working_dir"),
			OptionalStringListArg("transform_order"),
		),
		decode: func(args map[string]interface{}) (Request, error) {
			req, err := decodeArgs[LsRequest](args)
			if err != nil {
				return nil, err
			}
			return &req, nil
		},
	})

	r.RegisterTool(&Tool{
		Name:        GitToolName,
		Description: gitDescription,
		Parameters:  requestSchema[GitRequest](),
		Validate: ChainValidation(
			RequireStringArg("subcommand"),
			OptionalStringListArg("args"),
			OptionalStringArg("grep_pattern"),
			OptionalStringArg("working_dir"),
			OptionalStringListArg("transform_order"),
		),
		decode: func(args map[string]interface{}) (Request, error) {
			req, err := decodeArgs[GitRequest](args)
			if err != nil {
				return nil, err
			}
			return &req, nil
		},
	})
}

// run executes a built command, falling back to the in-process listing
// when the ls program is unavailable.
func (r *Registry) run(ctx context.Context, logger zerolog.Logger, tool, program string, argv []string, ectx executor.Context) executor.Result {
	if tool == LsToolName && r.config.Binaries.Ls == "" && !r.hasProgram(program) {
		logger.Debug().Str("program", program).Msg("ls not found on PATH, using in-process listing")
		return runListingFallback(ctx, argv[len(argv)-1], ectx)
	}
	logger.Info().
		Str("command", QuoteCommand(program, argv)).
		Str("working_dir", ectx.WorkingDir).
		Dur("timeout", ectx.Timeout).
		Int("env_overrides", len(ectx.Env)).
		Msg("executing")
	return r.exec.Run(ctx, program, argv, ectx)
}

// QuoteCommand renders argv as a bash-quoted line for logs.
func QuoteCommand(program string, argv []string) string {
	parts := make([]string, 0, len(argv)+1)
	for _, word := range append([]string{program}, argv...) {
		quoted, err := syntax.Quote(word, syntax.LangBash)
		if err != nil {
			quoted = strconv.Quote(word)
		}
		parts = append(parts, quoted)
	}
	return strings.Join(parts, " ")
}
