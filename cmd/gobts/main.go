// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/USA-RedDragon/configulator"
	"github.com/gobts/gobts/internal/cmd"
	"github.com/gobts/gobts/internal/config"
)

// version and commit are overridden at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	root := cmd.NewCommand(version, commit)

	c := configulator.New[config.Config]()
	ctx := c.WithContext(context.Background())

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
