// Command arx inspects arx containers stored locally or served over HTTP.
//
// Usage:
//
//	arx [global flags] ls       [--color WHEN] LOCATION [PATH]
//	arx [global flags] stat     [--format FMT] LOCATION [PATH]
//	arx [global flags] cat      LOCATION PATH
//	arx [global flags] readlink LOCATION PATH
//	arx [global flags] info     [--format FMT] LOCATION
//	arx [global flags] serve    [--addr ADDR] [--log-file FILE] LOCATION
//
// LOCATION is a file path or an http(s) URL.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	app := newApp(stdout, stderr)
	if err := app.Run(append([]string{app.Name}, args...)); err != nil {
		if msg := err.Error(); msg != "" {
			fmt.Fprintf(stderr, "arx: %s\n", msg)
		}
		var exit cli.ExitCoder
		if errors.As(err, &exit) {
			return exit.ExitCode()
		}
		return 1
	}
	return 0
}
