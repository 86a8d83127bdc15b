package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// Exit codes.
const (
	exitOK      = 0
	exitUsage   = 1
	exitFailure = 2
)

var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	if len(args) == 1 {
		switch args[0] {
		case "version", "-version", "--version":
			fmt.Fprintf(stdout, "asdelete version %s (built %s, commit %s)\n", version, buildTime, gitCommit)
			return exitOK
		case "help", "-h", "-help", "--help":
			printUsage(stdout)
			return exitOK
		}
	}

	opts, err := parseArgs(args)
	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(stdout, "error: %v\n\n", err)
		}
		printUsage(stdout)
		return exitUsage
	}
	return execute(opts, stdout)
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `Tool for pre-emptive deletion of records that will soon be deleted due to their TTL.

Version %s

Usage: asdelete [options] <host> <port> <namespace> <set> <days> <limit>

Options may appear anywhere on the command line:
  -verbose              Print the expiration time of every matching record.
  -config <file>        Path to a YAML configuration file (default: $ASDELETE_CONFIG).
  -backend <name>       Store backend: aerospike (default) or oxia.
  -metrics-addr <addr>  Serve Prometheus metrics on addr (e.g. :9090).
  -schedule <cron>      Repeat the purge on a cron schedule until interrupted.
  -log-level <level>    debug, info, warn or error.
  -log-format <format>  text or json.

Arguments:
  host       Store seed host.
  port       Store service port.
  namespace  Store namespace.
  set        Set (collection) name.
  days       Days into the future. Records expiring before now+days are deleted.
  limit      Maximum number of records to delete. Specify 0 to just perform a count.

Commands:
  asdelete version   Print version information.
`, version)
}

// options holds the parsed command line.
type options struct {
	verbose     bool
	configPath  string
	backend     string
	metricsAddr string
	schedule    string
	logLevel    string
	logFormat   string

	host      string
	port      int
	namespace string
	set       string
	days      int
	limit     int64
}

// valueFlags take an argument; boolFlags do not.
var (
	valueFlags = map[string]bool{
		"config":       true,
		"backend":      true,
		"metrics-addr": true,
		"schedule":     true,
		"log-level":    true,
		"log-format":   true,
	}
	boolFlags = map[string]bool{
		"verbose": true,
	}
)

// splitArgs separates known flags from positionals. Flags may appear
// anywhere; anything else, including negative numbers such as "-3", is a
// positional argument.
func splitArgs(args []string) (flags, positional []string, err error) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, _, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if !strings.HasPrefix(arg, "-") || (!valueFlags[name] && !boolFlags[name]) {
			positional = append(positional, arg)
			continue
		}

		flags = append(flags, arg)
		if valueFlags[name] && !hasValue {
			if i+1 >= len(args) {
				return nil, nil, fmt.Errorf("flag -%s needs an argument", name)
			}
			i++
			flags = append(flags, args[i])
		}
	}
	return flags, positional, nil
}

func parseArgs(args []string) (options, error) {
	var opts options

	flagArgs, positional, err := splitArgs(args)
	if err != nil {
		return opts, err
	}

	fs := flag.NewFlagSet("asdelete", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.BoolVar(&opts.verbose, "verbose", false, "")
	fs.StringVar(&opts.configPath, "config", "", "")
	fs.StringVar(&opts.backend, "backend", "", "")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "")
	fs.StringVar(&opts.schedule, "schedule", "", "")
	fs.StringVar(&opts.logLevel, "log-level", "", "")
	fs.StringVar(&opts.logFormat, "log-format", "", "")
	if err := fs.Parse(flagArgs); err != nil {
		return opts, err
	}

	if len(positional) != 6 {
		if len(positional) == 0 {
			return opts, errUsage
		}
		return opts, fmt.Errorf("expected 6 arguments, got %d", len(positional))
	}

	opts.host = positional[0]
	if opts.port, err = strconv.Atoi(positional[1]); err != nil {
		return opts, fmt.Errorf("port %q is not an integer", positional[1])
	}
	if opts.port < 1 || opts.port > 65535 {
		return opts, fmt.Errorf("port %d is out of range", opts.port)
	}
	opts.namespace = positional[2]
	opts.set = positional[3]
	if opts.days, err = strconv.Atoi(positional[4]); err != nil {
		return opts, fmt.Errorf("days %q is not an integer", positional[4])
	}
	if opts.limit, err = strconv.ParseInt(positional[5], 10, 64); err != nil {
		return opts, fmt.Errorf("limit %q is not an integer", positional[5])
	}
	if opts.limit < 0 {
		return opts, fmt.Errorf("limit must not be negative, got %d", opts.limit)
	}
	return opts, nil
}
