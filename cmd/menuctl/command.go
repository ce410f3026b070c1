package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// Command represents a CLI command with common functionality
type Command struct {
	Name        string
	Description string
	Usage       string
	Examples    []string
	Run         func(args []string) error
}

// NewFlagSet creates a standardized flag set for a command
func (c *Command) NewFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet(c.Name, flag.ExitOnError)
	fs.Usage = func() { c.PrintUsage(os.Stderr) }
	return fs
}

// PrintUsage prints standardized usage information
func (c *Command) PrintUsage(w io.Writer) {
	fmt.Fprintf(w, "%s\n\n", c.Description)
	fmt.Fprintf(w, "USAGE:\n    %s\n\n", c.Usage)
	if len(c.Examples) > 0 {
		fmt.Fprintf(w, "EXAMPLES:\n")
		for _, example := range c.Examples {
			fmt.Fprintf(w, "    %s\n", example)
		}
	}
}

// CommandRegistry manages all CLI commands in registration order.
type CommandRegistry struct {
	commands map[string]*Command
	order    []string
	version  VersionInfo
	stdout   io.Writer
	stderr   io.Writer
}

// VersionInfo holds build-time version information
type VersionInfo struct {
	Version string
	Commit  string
	Date    string
}

func NewCommandRegistry(v VersionInfo, stdout, stderr io.Writer) *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[string]*Command),
		version:  v,
		stdout:   stdout,
		stderr:   stderr,
	}
}

// Register adds a command to the registry. Registering a name twice
// replaces the earlier command.
func (r *CommandRegistry) Register(cmd *Command) {
	if _, ok := r.commands[cmd.Name]; !ok {
		r.order = append(r.order, cmd.Name)
	}
	r.commands[cmd.Name] = cmd
}

// Execute runs the appropriate command based on args
func (r *CommandRegistry) Execute(args []string) error {
	if len(args) < 1 {
		r.PrintHelp(r.stderr)
		return fmt.Errorf("no command specified")
	}

	cmdName := args[0]
	switch cmdName {
	case "help", "-h", "--help":
		if len(args) > 1 {
			if cmd, ok := r.commands[args[1]]; ok {
				cmd.PrintUsage(r.stdout)
				return nil
			}
		}
		r.PrintHelp(r.stdout)
		return nil
	case "version", "--version":
		fmt.Fprintf(r.stdout, "menuctl %s (commit %s, built %s)\n", r.version.Version, r.version.Commit, r.version.Date)
		return nil
	}

	cmd, ok := r.commands[cmdName]
	if !ok {
		r.PrintHelp(r.stderr)
		return fmt.Errorf("unknown command: %s", cmdName)
	}
	return cmd.Run(args[1:])
}

// PrintHelp prints overall CLI help
func (r *CommandRegistry) PrintHelp(w io.Writer) {
	fmt.Fprintln(w, "menuctl - command-line client for the menuboard API")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "    menuctl <command> [arguments]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "COMMANDS:")
	for _, name := range r.order {
		cmd := r.commands[name]
		fmt.Fprintf(w, "    %-12s %s\n", cmd.Name, cmd.Description)
	}
	fmt.Fprintf(w, "    %-12s %s\n", "version", "Print version information")
	fmt.Fprintf(w, "    %-12s %s\n", "help", "Show help for menuctl or a command")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Credentials are read from MENUBOARD_EMAIL and MENUBOARD_PASSWORD.")
	fmt.Fprintln(w, "Run 'menuctl help <command>' for more information on a command.")
}

// TableWriter provides simple table formatting
type TableWriter struct {
	headers []string
	rows    [][]string
	widths  []int
}

func NewTableWriter(headers []string) *TableWriter {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	return &TableWriter{headers: headers, widths: widths}
}

func (t *TableWriter) AddRow(row []string) {
	t.rows = append(t.rows, row)
	for i, cell := range row {
		if i < len(t.widths) && len(cell) > t.widths[i] {
			t.widths[i] = len(cell)
		}
	}
}

// Print writes the table with borders to w.
func (t *TableWriter) Print(w io.Writer) {
	t.printSeparator(w, "┌", "┬", "┐")
	t.printRow(w, t.headers)
	t.printSeparator(w, "├", "┼", "┤")
	for _, row := range t.rows {
		t.printRow(w, row)
	}
	t.printSeparator(w, "└", "┴", "┘")
}

func (t *TableWriter) printSeparator(w io.Writer, left, mid, right string) {
	fmt.Fprint(w, left)
	for i, width := range t.widths {
		fmt.Fprint(w, strings.Repeat("─", width+2))
		if i < len(t.widths)-1 {
			fmt.Fprint(w, mid)
		}
	}
	fmt.Fprintln(w, right)
}

func (t *TableWriter) printRow(w io.Writer, row []string) {
	fmt.Fprint(w, "│")
	for i := range t.widths {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		fmt.Fprintf(w, " %-*s │", t.widths[i], cell)
	}
	fmt.Fprintln(w)
}
