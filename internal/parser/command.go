package parser

import (
	"fmt"
	"strings"
)

// Command is a chat command recognized by its literal prefix.
type Command int

const (
	CommandParse Command = iota
	CommandEval
	CommandCompile
)

var prefixes = map[Command]string{
	CommandParse:   "@parse",
	CommandEval:    "@eval",
	CommandCompile: "|compile",
}

// Prefix returns the literal that triggers the command.
func (c Command) Prefix() string {
	return prefixes[c]
}

func (c Command) String() string {
	switch c {
	case CommandParse:
		return "parse"
	case CommandEval:
		return "eval"
	case CommandCompile:
		return "compile"
	}
	return fmt.Sprintf("command(%d)", int(c))
}

// Variant selects the set of commands one runner answers to.
type Variant string

const (
	VariantParser   Variant = "parser"
	VariantCompiler Variant = "compiler"
	VariantAll      Variant = "all"
)

// Commands returns the commands enabled for the variant.
func (v Variant) Commands() ([]Command, error) {
	switch v {
	case VariantParser:
		return []Command{CommandParse, CommandEval}, nil
	case VariantCompiler:
		return []Command{CommandCompile}, nil
	case VariantAll:
		return []Command{CommandParse, CommandEval, CommandCompile}, nil
	}
	return nil, fmt.Errorf("unknown variant %q (want parser, compiler or all)", string(v))
}

// Router matches message text against a fixed set of command prefixes.
type Router struct {
	commands []Command
}

func NewRouter(commands ...Command) *Router {
	return &Router{commands: append([]Command(nil), commands...)}
}

// Match reports the command whose prefix starts text and the untrimmed
// payload that follows it. Prefixes never overlap, so at most one matches.
func (r *Router) Match(text string) (Command, string, bool) {
	for _, c := range r.commands {
		if payload, ok := strings.CutPrefix(text, c.Prefix()); ok {
			return c, payload, true
		}
	}
	return 0, "", false
}
