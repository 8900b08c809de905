package main

import (
	"fmt"
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/kdsgrill/kdsgrill/cmd/kds-admin/app"
)

func main() {
	if err := app.NewAdminCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
