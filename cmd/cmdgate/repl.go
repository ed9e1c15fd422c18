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
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"cmdgate/internal/tools"
)

const replHelp = `Enter a tool call as: <tool> [arguments-json]
  ls_tool {"path":"/var/log","tail":5}
  git {"subcommand":"status"}
Commands: /help /tools /quit
Ctrl+C cancels a running call.`

func newReplCmd(opts *rootOptions) *cobra.Command {
	var historyFile string
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactively run tool calls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			in := cmd.InOrStdin()
			if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
				return runInteractive(cmd.Context(), a, historyFile)
			}
			return runScript(cmd.Context(), a.registry, in, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&historyFile, "history", "", "Readline history file")
	return cmd
}

type readlineAction int

const (
	readlineContinue readlineAction = iota
	readlineExit
	readlineUnhandled
)

func classifyReadlineError(line string, err error) readlineAction {
	switch {
	case err == nil:
		return readlineUnhandled
	case err == readline.ErrInterrupt:
		return readlineContinue
	case err == io.EOF:
		if strings.TrimSpace(line) == "" {
			return readlineExit
		}
		return readlineContinue
	default:
		return readlineUnhandled
	}
}

// callCanceler holds the cancel func of the call in flight, if any.
type callCanceler struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func (c *callCanceler) Set(cancel context.CancelFunc) {
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
}

func (c *callCanceler) Clear() {
	c.mu.Lock()
	c.cancel = nil
	c.mu.Unlock()
}

func (c *callCanceler) Cancel() bool {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	return true
}

// parseReplLine splits "<tool> [json]" into its parts.
func parseReplLine(line string) (name, args string, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", "", fmt.Errorf("empty input")
	}
	name, args, _ = strings.Cut(line, " ")
	args = strings.TrimSpace(args)
	if args == "" {
		args = "{}"
	}
	if !strings.HasPrefix(args, "{") {
		return "", "", fmt.Errorf("arguments must be a JSON object")
	}
	return name, args, nil
}

type replSession struct {
	registry *tools.Registry
	out      io.Writer
	canceler callCanceler
}

// handle processes one input line and reports whether to stop.
func (s *replSession) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	switch strings.ToLower(line) {
	case "":
		return false
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(s.out, replHelp)
		return false
	case "/tools":
		for _, tool := range s.registry.Tools() {
			fmt.Fprintf(s.out, "%-10s %s\n", tool.Name, firstLine(tool.Description))
		}
		return false
	}

	name, args, err := parseReplLine(line)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return false
	}

	callCtx, cancel := context.WithCancel(ctx)
	s.canceler.Set(cancel)
	result := s.registry.ExecuteJSON(callCtx, name, args)
	s.canceler.Clear()
	cancel()

	fmt.Fprintln(s.out, result.Result)
	return false
}

func runScript(ctx context.Context, registry *tools.Registry, in io.Reader, out io.Writer) error {
	session := &replSession{registry: registry, out: out}
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxBatchLine)
	for scanner.Scan() {
		if session.handle(ctx, scanner.Text()) {
			return nil
		}
	}
	return scanner.Err()
}

func runInteractive(ctx context.Context, a *app, historyFile string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "cmdgate❯ ",
		HistoryFile:     historyFile,
		AutoComplete:    newCompleter(a.registry),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	session := &replSession{registry: a.registry, out: rl.Stdout()}

	// While a call runs the terminal is in cooked mode, so Ctrl+C arrives
	// as SIGINT.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer func() {
		signal.Stop(sigCh)
		close(sigCh)
	}()
	go func() {
		for range sigCh {
			if session.canceler.Cancel() {
				a.logger.Debug().Msg("call canceled by interrupt")
			}
		}
	}()

	fmt.Fprintln(session.out, "cmdgate", version, "- /help for usage")
	for {
		line, err := rl.Readline()
		switch classifyReadlineError(line, err) {
		case readlineContinue:
			continue
		case readlineExit:
			return nil
		}
		if err != nil {
			return err
		}
		if session.handle(ctx, line) {
			return nil
		}
	}
}

// newCompleter completes slash commands and tool names.
func newCompleter(registry *tools.Registry) *readline.PrefixCompleter {
	items := []readline.PrefixCompleterInterface{
		readline.PcItem("/help"),
		readline.PcItem("/tools"),
		readline.PcItem("/quit"),
	}
	for _, tool := range registry.Tools() {
		items = append(items, readline.PcItem(tool.Name))
	}
	return readline.NewPrefixCompleter(items...)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
