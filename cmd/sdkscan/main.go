package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/example/sdkscan/internal/cli"
	"github.com/example/sdkscan/internal/signature"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}

		var regErr *signature.RegistryError
		if errors.As(err, &regErr) {
			os.Exit(cli.ExitStartup)
		}

		os.Exit(1)
	}
}
