// Copyright 2012, 2013 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cmd

import (
	"encoding/json"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"gopkg.in/yaml.v3"
)

// Formatter writes an arbitrary object into a writer.
type Formatter func(writer io.Writer, value any) error

// FormatYaml writes out value as yaml to the writer, unless value is nil.
func FormatYaml(writer io.Writer, value any) error {
	if value == nil {
		return nil
	}
	result, err := yaml.Marshal(value)
	if err != nil {
		return err
	}
	// yaml documents end with a newline already.
	_, err = writer.Write(result)
	return err
}

// FormatJson writes out value as a single line of json to the writer.
func FormatJson(writer io.Writer, value any) error {
	if value == nil {
		return nil
	}
	result, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if _, err = writer.Write(result); err != nil {
		return err
	}
	_, err = writer.Write([]byte{'\n'})
	return err
}

// DefaultFormatters holds the formatters that can be
// specified with the --format flag.
var DefaultFormatters = map[string]Formatter{
	"yaml": FormatYaml,
	"json": FormatJson,
}

// formatterValue implements gnuflag.Value for the --format flag.
type formatterValue struct {
	name       string
	formatters map[string]Formatter
}

// newFormatterValue returns a new formatterValue. The initial Formatter name
// must be present in formatters.
func newFormatterValue(initial string, formatters map[string]Formatter) *formatterValue {
	v := &formatterValue{formatters: formatters}
	if err := v.Set(initial); err != nil {
		panic(err)
	}
	return v
}

// Set stores the chosen formatter name in v.name.
func (v *formatterValue) Set(value string) error {
	if v.formatters[value] == nil {
		return errors.NotValidf("format %q", value)
	}
	v.name = value
	return nil
}

// String returns the chosen formatter name.
func (v *formatterValue) String() string {
	return v.name
}

// doc returns documentation for the --format flag.
func (v *formatterValue) doc() string {
	choices := make([]string, 0, len(v.formatters))
	for name := range v.formatters {
		choices = append(choices, name)
	}
	sort.Strings(choices)
	return "Specify output format (" + strings.Join(choices, "|") + ")"
}

// Output is responsible for interpreting output-related command line flags
// and writing a value to a file or to stdout as directed.
type Output struct {
	formatter *formatterValue
	outPath   string
}

// AddFlags injects the --format and --output command line flags into f.
func (c *Output) AddFlags(f *gnuflag.FlagSet, defaultFormatter string, formatters map[string]Formatter) {
	c.formatter = newFormatterValue(defaultFormatter, formatters)
	f.Var(c.formatter, "format", c.formatter.doc())
	f.StringVar(&c.outPath, "o", "", "Specify an output file")
	f.StringVar(&c.outPath, "output", "", "")
}

// Writer returns the destination chosen by --output, or ctx.Stdout. The
// returned close function must be called once writing is done.
func (c *Output) Writer(ctx *Context) (io.Writer, func() error, error) {
	if c.outPath == "" {
		return ctx.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(ctx.AbsPath(c.outPath))
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	return f, f.Close, nil
}

// Write formats value as directed by the --format flag.
func (c *Output) Write(target io.Writer, value any) error {
	return errors.Trace(c.formatter.format(target, value))
}

func (v *formatterValue) format(writer io.Writer, value any) error {
	return v.formatters[v.name](writer, value)
}
