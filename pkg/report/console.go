// Copyright 2025 walteh LLC
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

package report

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"github.com/walteh/dispatcherconv/pkg/ledger"
)

// 🎨 Display configuration
const (
	opIndent    = 4  // spaces to indent operation entries
	actionWidth = 10 // width for the action column
)

// 🎯 Console renders conversion progress to a terminal while mirroring every
// line into structured logs.
type Console struct {
	zlog    zerolog.Logger
	console io.Writer
	mu      sync.Mutex
}

// 🏭 NewConsole creates a console reporter writing human output to console.
func NewConsole(console io.Writer, level zerolog.Level) *Console {
	zlog := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger().Level(level)
	return &Console{
		zlog:    zlog,
		console: console,
		mu:      sync.Mutex{},
	}
}

// actionStyle maps each ledger action to its display symbol and color.
func actionStyle(action ledger.Action) (rune, color.Attribute) {
	switch action {
	case ledger.ActionAdded:
		return '✓', color.FgGreen
	case ledger.ActionDeleted, ledger.ActionRemoved:
		return '✗', color.FgRed
	case ledger.ActionRenamed:
		return '⟳', color.FgBlue
	case ledger.ActionReplaced:
		return '⟳', color.FgCyan
	case ledger.ActionWarning:
		return '!', color.FgYellow
	default:
		return '•', color.FgWhite
	}
}

// 📝 formatOperation formats one recorded operation for display.
func (c *Console) formatOperation(op ledger.Operation) string {
	symbol, symbolColor := actionStyle(op.Action)
	return fmt.Sprintf("%s%s %s %s",
		fmt.Sprintf("%*s", opIndent, ""),
		color.New(symbolColor).Sprint(string(symbol)),
		color.New(symbolColor).Sprint(fmt.Sprintf("%-*s", actionWidth, string(op.Action))),
		op.Details)
}

// 📝 LogStep prints a completed conversion step and its operations. Steps
// that performed nothing are printed as a single faint line.
func (c *Console) LogStep(step *ledger.Step) {
	c.mu.Lock()
	defer c.mu.Unlock()

	header := color.New(color.Bold).Sprint(step.Rule)
	if !step.Performed() {
		fmt.Fprintf(c.console, "%s %s\n", header, color.New(color.Faint).Sprint("• nothing to do"))
		c.zlog.Debug().Str("rule", step.Rule).Msg("step performed no operation")
		return
	}

	fmt.Fprintf(c.console, "%s %s\n", header,
		color.New(color.Faint).Sprintf("• %d operations", len(step.Operations())))
	for _, op := range step.Operations() {
		fmt.Fprintln(c.console, c.formatOperation(op))
		c.zlog.Info().
			Str("rule", step.Rule).
			Str("action", string(op.Action)).
			Str("location", op.Location).
			Msg(op.Details)
	}
}

// 📝 Header prints the run banner.
func (c *Console) Header(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	title := color.New(color.Bold, color.FgCyan).Sprint("dispatcherconv")
	fmt.Fprintf(c.console, "\n%s %s\n\n", title, color.New(color.Faint).Sprint("• "+msg))
	c.zlog.Info().Msg(msg)
}

// 📝 Success prints a success message.
func (c *Console) Success(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
	c.zlog.Info().Msg(msg)
}

// 📝 Warning prints a warning message.
func (c *Console) Warning(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.console, "⚠️ %s\n", color.New(color.FgYellow).Sprint(msg))
	c.zlog.Warn().Msg(msg)
}

// 📝 Error prints an error message.
func (c *Console) Error(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.console, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
	c.zlog.Error().Msg(msg)
}
