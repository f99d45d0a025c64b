// Package commands provides command parsing and routing for the hibiki CLI.
package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Command represents a parsed command line.
type Command struct {
	Name       string
	Subcommand string
	Args       []string
	Flags      map[string][]string
	RawText    string
}

// ErrEmptyCommand is returned by Parse when no command was given.
var ErrEmptyCommand = errors.New("empty command")

// Handler handles one command and returns the text to print.
type Handler func(ctx context.Context, cmd *Command) (string, error)

// Router routes commands to handlers.
type Router struct {
	handlers map[string]Handler
	help     map[string]string
}

// NewRouter creates a command router.
func NewRouter() *Router {
	return &Router{
		handlers: make(map[string]Handler),
		help:     make(map[string]string),
	}
}

// Register registers a handler under a "name" or "name.subcommand" key with a
// one-line usage string.
func (r *Router) Register(key, usage string, handler Handler) {
	r.handlers[key] = handler
	r.help[key] = usage
}

// Usage returns the registered usage lines, sorted by command key.
func (r *Router) Usage() string {
	keys := make([]string, 0, len(r.help))
	for k := range r.help {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "  %-18s %s\n", strings.ReplaceAll(k, ".", " "), r.help[k])
	}
	return b.String()
}

// Parse parses argv-style arguments into a command. Flags take the form
// "--name value" or "--name" (recorded as "true"); repeated flags accumulate.
func (r *Router) Parse(args []string) (*Command, error) {
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}

	cmd := &Command{
		Name:    args[0],
		Args:    []string{},
		Flags:   make(map[string][]string),
		RawText: strings.Join(args, " "),
	}

	rest := args[1:]
	if len(rest) > 0 && !strings.HasPrefix(rest[0], "-") {
		cmd.Subcommand = rest[0]
		rest = rest[1:]
	}

	for i := 0; i < len(rest); i++ {
		part := rest[i]
		if strings.HasPrefix(part, "--") {
			flagName := strings.TrimPrefix(part, "--")
			if i+1 < len(rest) && !strings.HasPrefix(rest[i+1], "--") {
				cmd.Flags[flagName] = append(cmd.Flags[flagName], rest[i+1])
				i++
			} else {
				cmd.Flags[flagName] = append(cmd.Flags[flagName], "true")
			}
		} else {
			cmd.Args = append(cmd.Args, part)
		}
	}

	return cmd, nil
}

// Route parses args and dispatches to the matching handler. "name.subcommand"
// keys win over bare "name" keys, so a command can own some subcommands and
// leave the rest to a catch-all.
func (r *Router) Route(ctx context.Context, args []string) (string, error) {
	cmd, err := r.Parse(args)
	if err != nil {
		return "", err
	}

	handlerKey := cmd.Name
	if cmd.Subcommand != "" {
		handlerKey = cmd.Name + "." + cmd.Subcommand
	}

	handler, ok := r.handlers[handlerKey]
	if !ok {
		handler, ok = r.handlers[cmd.Name]
		if !ok {
			return "", fmt.Errorf("unknown command: %s", handlerKey)
		}
	}

	return handler(ctx, cmd)
}

// GetFlag returns the last value of a flag, or defaultValue when absent.
func (c *Command) GetFlag(name, defaultValue string) string {
	if vals, ok := c.Flags[name]; ok && len(vals) > 0 {
		return vals[len(vals)-1]
	}
	return defaultValue
}

// FlagValues returns every value given for a repeatable flag.
func (c *Command) FlagValues(name string) []string {
	return c.Flags[name]
}

// HasFlag checks if a flag is present.
func (c *Command) HasFlag(name string) bool {
	_, ok := c.Flags[name]
	return ok
}

// GetArg returns an argument by index.
func (c *Command) GetArg(index int) (string, bool) {
	if index < 0 || index >= len(c.Args) {
		return "", false
	}
	return c.Args[index], true
}

// FullCommand returns the full command string.
func (c *Command) FullCommand() string {
	if c.Subcommand != "" {
		return c.Name + " " + c.Subcommand
	}
	return c.Name
}
