package main

import (
	"fmt"
	"io"

	flag "github.com/spf13/pflag"
)

type parseResult int

const (
	parseStop     parseResult = iota // help or version printed, exit quietly
	parseContinue                    // start the server
	parseFailed                      // usage error
)

// parseArgs parses the command line. args[0] is the program name and exactly
// one positional argument, the zone file, must follow the flags.
func parseArgs(args []string, out io.Writer) (string, parseResult) {
	var helpFlag, versionFlag bool

	name := appName
	if len(args) > 0 {
		name = args[0]
		args = args[1:]
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprintln(out, "Consider '-h' for command-line usage")
	}
	fs.BoolVarP(&helpFlag, "help", "h", false, "Print command-line usage")
	fs.BoolVarP(&versionFlag, "version", "v", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(out, "Error:", err)
		fs.Usage()
		return "", parseFailed
	}

	if helpFlag {
		printUsage(fs, out)
		return "", parseStop
	}
	if versionFlag {
		fmt.Fprintf(out, "%s %s\n", appName, version)
		return "", parseStop
	}

	switch fs.NArg() {
	case 1:
		return fs.Arg(0), parseContinue
	case 0:
		fmt.Fprintln(out, "Error: missing zone file argument")
	default:
		fmt.Fprintf(out, "Error: expected one zone file argument, got %d\n", fs.NArg())
	}
	fs.Usage()
	return "", parseFailed
}

func printUsage(fs *flag.FlagSet, out io.Writer) {
	fmt.Fprintf(out, "Usage: %s [flags] ZONEFILE\n\n", appName)
	fmt.Fprintln(out, "A caching DNS relay. Answers from ZONEFILE and its cache, forwards")
	fmt.Fprintln(out, "everything else upstream. Settings are read from DNS_* environment")
	fmt.Fprintln(out, "variables.")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Flags:")
	fmt.Fprint(out, fs.FlagUsages())
}
