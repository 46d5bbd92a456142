// Copyright 2014 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package testing

import (
	"bytes"
	"context"
	"strings"

	gc "gopkg.in/check.v1"

	"github.com/juju/python-libjuju-sub000/cmd"
)

// Context returns a command context rooted in a fresh temporary
// directory, with its output captured.
func Context(c *gc.C) *cmd.Context {
	return &cmd.Context{
		Context: context.Background(),
		Dir:     c.MkDir(),
		Stdin:   &bytes.Buffer{},
		Stdout:  &bytes.Buffer{},
		Stderr:  &bytes.Buffer{},
	}
}

// Stdout returns the output captured from a context made by Context.
func Stdout(ctx *cmd.Context) string {
	return ctx.Stdout.(*bytes.Buffer).String()
}

// Stderr returns the errors captured from a context made by Context.
func Stderr(ctx *cmd.Context) string {
	return ctx.Stderr.(*bytes.Buffer).String()
}

// HelpText returns a command's formatted help text.
func HelpText(command cmd.Command) string {
	var buf strings.Builder
	cmd.PrintUsage(command, &buf)
	return buf.String()
}

// RunCommand runs the command with the given arguments in ctx and
// returns the exit code Main would.
func RunCommand(ctx *cmd.Context, com cmd.Command, args ...string) int {
	return cmd.Main(com, ctx, args)
}
