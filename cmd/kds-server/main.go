package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/kdsgrill/kdsgrill/cmd/kds-server/app"
)

func main() {
	app.NewApp().Run()
}
