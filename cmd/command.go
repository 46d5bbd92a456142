// Copyright 2012, 2013 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"
)

// ErrSilent can be returned from Run to signal that Main should exit
// with code 1 without producing error output.
const ErrSilent = errors.ConstError("cmd: error out silently")

// Info holds everything necessary to describe a Command's intent and usage.
type Info struct {
	// Name is the Command's name.
	Name string

	// Args describes the command's expected arguments.
	Args string

	// Purpose is a short explanation of the Command's purpose.
	Purpose string

	// Doc is the long documentation for the Command.
	Doc string
}

// Usage combines Name and Args to describe the Command's intended usage.
func (i *Info) Usage() string {
	if i.Args == "" {
		return i.Name
	}
	return fmt.Sprintf("%s [options] %s", i.Name, i.Args)
}

// Context represents the run context of a Command. Command implementations
// should interpret file names relative to Dir (see AbsPath below), and
// print output and errors to Stdout and Stderr respectively.
type Context struct {
	context.Context

	Dir    string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// DefaultContext returns a Context suitable for use in non-hosted
// situations.
func DefaultContext(ctx context.Context) (*Context, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, errors.Trace(err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Context{
		Context: ctx,
		Dir:     abs,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}, nil
}

// AbsPath returns an absolute representation of path, with relative paths
// interpreted as relative to ctx.Dir.
func (ctx *Context) AbsPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(ctx.Dir, path)
}

// Command is implemented by types that interpret command-line arguments.
type Command interface {
	// Info returns information about the Command.
	Info() *Info

	// SetFlags adds command specific flags to the flag set.
	SetFlags(f *gnuflag.FlagSet)

	// Init initializes the Command before running.
	Init(args []string) error

	// Run will execute the Command as directed by the options and
	// positional arguments passed to Init.
	Run(ctx *Context) error
}

// NewFlagSet returns a FlagSet initialized for use with c.
func NewFlagSet(c Command, output io.Writer) *gnuflag.FlagSet {
	f := gnuflag.NewFlagSet(c.Info().Name, gnuflag.ContinueOnError)
	f.SetOutput(output)
	// Main prints the usage itself once it knows where it should go.
	f.Usage = func() {}
	c.SetFlags(f)
	return f
}

// PrintUsage prints usage information for c to output.
func PrintUsage(c Command, output io.Writer) {
	i := c.Info()
	fmt.Fprintf(output, "usage: %s\n", i.Usage())
	if i.Purpose != "" {
		fmt.Fprintf(output, "purpose: %s\n", i.Purpose)
	}
	f := gnuflag.NewFlagSet(i.Name, gnuflag.ContinueOnError)
	c.SetFlags(f)
	var defaults strings.Builder
	f.SetOutput(&defaults)
	f.PrintDefaults()
	if defaults.Len() > 0 {
		fmt.Fprintf(output, "\noptions:\n%s", defaults.String())
	}
	if i.Doc != "" {
		fmt.Fprintf(output, "\n%s\n", strings.TrimSpace(i.Doc))
	}
}

// ParseArgs parses args on c and passes what remains to Init. It must be
// called before c is Run.
func ParseArgs(c Command, args []string, output io.Writer) error {
	f := NewFlagSet(c, output)
	if err := f.Parse(true, args); err != nil {
		return err
	}
	return c.Init(f.Args())
}

// CheckEmpty is a utility function that returns an error if args is not empty.
func CheckEmpty(args []string) error {
	if len(args) != 0 {
		return errors.Errorf("unrecognized args: %q", args)
	}
	return nil
}

// Main runs the given Command in the supplied Context with the given
// arguments, which should not include the command name. It returns a code
// suitable for passing to os.Exit.
func Main(c Command, ctx *Context, args []string) int {
	if err := ParseArgs(c, args, io.Discard); err != nil {
		if errors.Is(err, gnuflag.ErrHelp) {
			PrintUsage(c, ctx.Stdout)
			return 0
		}
		fmt.Fprintf(ctx.Stderr, "ERROR %v\n", err)
		PrintUsage(c, ctx.Stderr)
		return 2
	}
	logger.Infof("running %s", c.Info().Name)
	if err := c.Run(ctx); err != nil {
		if errors.Is(err, ErrSilent) {
			return 1
		}
		logger.Debugf("%s command failed: %s", c.Info().Name, errors.Details(err))
		fmt.Fprintf(ctx.Stderr, "ERROR %v\n", err)
		return 1
	}
	return 0
}
