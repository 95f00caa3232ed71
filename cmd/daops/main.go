// Command daops resolves dataset references into files, applies the fixes
// registered for each dataset and runs an operation over the result.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"

	// Register every fix store backend; the config picks one.
	_ "daops/internal/fixstore/all"
	// Register the built-in fix functions on the default registry.
	_ "daops/internal/fix/builtin"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(afero.NewOsFs(), os.Getenv, os.Stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
