package cli

import (
	"flag"
	"fmt"
	"io"

	"ftree/internal/engine/graph"
)

const versionString = "1.0.0"

// configDepth marks a plot depth flag left unset, so the configured
// [output] depth applies.
const configDepth = -2

type cliOptions struct {
	configPath  string
	verbose     bool
	version     bool
	command     string
	level       int
	full        bool
	interfaces  bool
	includeStop bool
	upper       int
	lower       int
	graph       string
	args        []string
}

type command struct {
	name    string
	usage   string
	minArgs int
	// maxArgs of -1 accepts any number of arguments.
	maxArgs int
}

var commands = []command{
	{name: "scan", usage: "scan [-full] [path...]", minArgs: 0, maxArgs: -1},
	{name: "needs", usage: "needs [-level N] <file>", minArgs: 1, maxArgs: 1},
	{name: "needed-by", usage: "needed-by [-level N] <file>", minArgs: 1, maxArgs: 1},
	{name: "calls", usage: "calls [-level N] <scope>", minArgs: 1, maxArgs: 1},
	{name: "called-by", usage: "called-by [-level N] <scope>", minArgs: 1, maxArgs: 1},
	{name: "under", usage: "under [-interfaces] [-include-stop] <scope> <stop>...", minArgs: 2, maxArgs: -1},
	{name: "plot-exec", usage: "plot-exec [-upper N] [-lower N] <scope|file> <out>", minArgs: 2, maxArgs: 2},
	{name: "plot-compil", usage: "plot-compil [-upper N] [-lower N] <file|scope> <out>", minArgs: 2, maxArgs: 2},
	{name: "cycles", usage: "cycles [-graph compilation|execution]", minArgs: 0, maxArgs: 0},
	{name: "trace", usage: "trace <from> <to>", minArgs: 2, maxArgs: 2},
	{name: "watch", usage: "watch", minArgs: 0, maxArgs: 0},
}

func findCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func parseOptions(args []string, stderr io.Writer) (cliOptions, error) {
	opts := cliOptions{level: graph.Unbounded, upper: configDepth, lower: configDepth}
	fs := flag.NewFlagSet("ftree", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(stderr, fs) }

	fs.StringVar(&opts.configPath, "config", "", "Path to config file (default: ftree.toml at the project root)")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}
	if opts.version {
		return opts, nil
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return cliOptions{}, fmt.Errorf("missing command")
	}
	cmd, ok := findCommand(rest[0])
	if !ok {
		fs.Usage()
		return cliOptions{}, fmt.Errorf("unknown command %q", rest[0])
	}
	opts.command = cmd.name

	cmdFlags := flag.NewFlagSet("ftree "+cmd.name, flag.ContinueOnError)
	cmdFlags.SetOutput(stderr)
	switch cmd.name {
	case "scan":
		cmdFlags.BoolVar(&opts.full, "full", false, "Re-analyse every file instead of only new ones")
	case "needs", "needed-by", "calls", "called-by":
		cmdFlags.IntVar(&opts.level, "level", graph.Unbounded, "Maximum number of hops, -1 for unbounded")
	case "under":
		cmdFlags.BoolVar(&opts.interfaces, "interfaces", false, "Check interface bindings through their implementation")
		cmdFlags.BoolVar(&opts.includeStop, "include-stop", false, "A stop scope counts as under itself")
	case "plot-exec", "plot-compil":
		cmdFlags.IntVar(&opts.upper, "upper", configDepth, "Hops towards dependents, -1 for unbounded (default from config)")
		cmdFlags.IntVar(&opts.lower, "lower", configDepth, "Hops towards dependencies, -1 for unbounded (default from config)")
	case "cycles":
		cmdFlags.StringVar(&opts.graph, "graph", "compilation", "Graph to check: compilation or execution")
	}
	if err := cmdFlags.Parse(rest[1:]); err != nil {
		return cliOptions{}, err
	}
	opts.args = cmdFlags.Args()

	if err := validateArgs(cmd, opts); err != nil {
		return cliOptions{}, err
	}
	return opts, nil
}

func validateArgs(cmd command, opts cliOptions) error {
	n := len(opts.args)
	if n < cmd.minArgs || (cmd.maxArgs >= 0 && n > cmd.maxArgs) {
		return fmt.Errorf("usage: ftree %s", cmd.usage)
	}
	if opts.level < graph.Unbounded {
		return fmt.Errorf("-level must be >= -1, got %d", opts.level)
	}
	for _, d := range []struct {
		name  string
		value int
	}{{"upper", opts.upper}, {"lower", opts.lower}} {
		if d.value < graph.Unbounded && d.value != configDepth {
			return fmt.Errorf("-%s must be >= -1, got %d", d.name, d.value)
		}
	}
	return nil
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "usage: ftree [-config file] [-verbose] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %s\n", c.usage)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "flags:")
	fs.PrintDefaults()
}
