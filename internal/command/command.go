// Package command parses the text protocol and submits commands to the bus.
package command

import (
	"errors"
	"strconv"
	"strings"
)

// ErrMissingArgument is returned when a command has fewer arguments than requested.
var ErrMissingArgument = errors.New("missing argument")

// Command is a parsed command line. Verbs are case-sensitive and kept as sent.
type Command struct {
	Verb string
	Args []string
}

// Parse splits raw on whitespace. The first token is the verb.
func Parse(raw string) Command {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return Command{}
	}
	return Command{
		Verb: fields[0],
		Args: fields[1:],
	}
}

// Arg returns the i-th argument.
func (c Command) Arg(i int) (string, error) {
	if i < 0 || i >= len(c.Args) {
		return "", ErrMissingArgument
	}
	return c.Args[i], nil
}

// IntArg parses the i-th argument as a base 10 integer.
func (c Command) IntArg(i int) (int, error) {
	s, err := c.Arg(i)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(s)
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Verb
	}
	return c.Verb + " " + strings.Join(c.Args, " ")
}
