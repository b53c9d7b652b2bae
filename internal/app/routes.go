package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUsage reports a missing or unknown command, or missing arguments.
var ErrUsage = errors.New("invalid usage")

type command struct {
	args  string
	nargs int // minimum number of arguments
	run   func(a *App, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"put":    {args: "<file.vcf>...", nargs: 1, run: (*App).put},
	"get":    {args: "<id>...", nargs: 1, run: (*App).get},
	"delete": {args: "<id>...", nargs: 1, run: (*App).delete},
	"ctag":   {run: (*App).ctag},
}

func lookup(name string, args []string) (command, error) {
	cmd, ok := commands[name]
	if !ok {
		return command{}, fmt.Errorf("unknown command %q: %w", name, ErrUsage)
	}
	if len(args) < cmd.nargs {
		return command{}, fmt.Errorf("%s %s: %w", name, cmd.args, ErrUsage)
	}
	return cmd, nil
}

// Usage lists the supported commands.
func Usage() string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		if args := commands[name].args; args != "" {
			parts = append(parts, name+" "+args)
		} else {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}
