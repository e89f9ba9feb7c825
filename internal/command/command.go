// Package command parses the chat-style commands accepted by the daemon.
package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Kind names a command.
type Kind string

const (
	KindSwap      Kind = "swap"
	KindCondition Kind = "condition"
	KindSwapper   Kind = "swapper"
	KindLock      Kind = "lock"
	KindUnlock    Kind = "unlock"
)

// Switch is the requested state of a toggle.
type Switch int

const (
	SwitchToggle Switch = iota
	SwitchOn
	SwitchOff
)

func (s Switch) String() string {
	switch s {
	case SwitchOn:
		return "on"
	case SwitchOff:
		return "off"
	default:
		return "toggle"
	}
}

// Apply returns the new value of a toggle currently at current.
func (s Switch) Apply(current bool) bool {
	switch s {
	case SwitchOn:
		return true
	case SwitchOff:
		return false
	default:
		return !current
	}
}

// Command is a parsed command. Name is the layout for swap and the custom
// condition for condition.
type Command struct {
	Kind   Kind   `json:"kind"`
	Name   string `json:"name,omitempty"`
	Switch Switch `json:"switch"`
}

func (c Command) String() string {
	switch c.Kind {
	case KindSwap:
		return fmt.Sprintf("swap %s", c.Name)
	case KindCondition:
		return fmt.Sprintf("condition %q %s", c.Name, c.Switch)
	case KindSwapper:
		return fmt.Sprintf("swapper %s", c.Switch)
	}
	return string(c.Kind)
}

var ErrEmpty = errors.New("empty command")

var commandLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
	{Name: "Word", Pattern: `[^\s"]+`},
	{Name: "Whitespace", Pattern: `\s+`},
})

type grammar struct {
	Prefix    string           `parser:"@(\"/hudman\" | \"/hud\")?"`
	Swap      *swapClause      `parser:"( \"swap\" @@"`
	Condition *conditionClause `parser:"| \"condition\" @@"`
	Swapper   *swapperClause   `parser:"| \"swapper\" @@"`
	Lock      bool             `parser:"| @\"lock\""`
	Unlock    bool             `parser:"| @\"unlock\" )"`
}

type swapClause struct {
	Words []string `parser:"@(String | Word)+"`
}

type conditionClause struct {
	Name  string `parser:"@(String | Word)"`
	Value string `parser:"@(\"on\" | \"off\" | \"true\" | \"false\" | \"toggle\")?"`
}

type swapperClause struct {
	Value string `parser:"@(\"on\" | \"off\" | \"toggle\" | \"true\" | \"false\")?"`
}

var parser = participle.MustBuild[grammar](
	participle.Lexer(commandLexer),
	participle.Elide("Whitespace"),
	participle.Unquote("String"),
	participle.CaseInsensitive("Word"),
)

// Parse reads one command line.
func Parse(input string) (Command, error) {
	if strings.TrimSpace(input) == "" {
		return Command{}, ErrEmpty
	}
	g, err := parser.ParseString("", input)
	if err != nil {
		return Command{}, fmt.Errorf("parse command: %w", err)
	}
	switch {
	case g.Swap != nil:
		return Command{Kind: KindSwap, Name: strings.Join(g.Swap.Words, " ")}, nil
	case g.Condition != nil:
		if strings.TrimSpace(g.Condition.Name) == "" {
			return Command{}, fmt.Errorf("parse command: condition name is empty")
		}
		return Command{Kind: KindCondition, Name: g.Condition.Name, Switch: parseSwitch(g.Condition.Value)}, nil
	case g.Swapper != nil:
		return Command{Kind: KindSwapper, Switch: parseSwitch(g.Swapper.Value)}, nil
	case g.Lock:
		return Command{Kind: KindLock}, nil
	case g.Unlock:
		return Command{Kind: KindUnlock}, nil
	}
	return Command{}, fmt.Errorf("parse command: unrecognised input %q", input)
}

func parseSwitch(value string) Switch {
	switch strings.ToLower(value) {
	case "on", "true":
		return SwitchOn
	case "off", "false":
		return SwitchOff
	default:
		return SwitchToggle
	}
}

// Usage lists the accepted forms.
func Usage() []string {
	return []string{
		"swap <layout>",
		`condition "<name>" [on|off|toggle]`,
		"swapper [on|off|toggle]",
		"lock",
		"unlock",
	}
}
