// Command sispromoctl is a command-line client for the SisPromo API. Reads
// are cached locally and fall back to the last known data when the API is
// unreachable.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sispromo/sispromo/internal/apiclient"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	cli := NewCLI(in, out, errOut)
	cli.SetArgs(args)
	if err := cli.Execute(ctx); err != nil {
		switch {
		case errors.Is(err, apiclient.ErrSessionExpired), errors.Is(err, apiclient.ErrNotLoggedIn):
			fmt.Fprintln(errOut, "error:", err, "(run `sispromoctl login`)")
		default:
			fmt.Fprintln(errOut, "error:", err)
		}
		return 1
	}
	return 0
}
