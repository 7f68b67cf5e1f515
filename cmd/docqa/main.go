// Package main is the entry point for the Sentinel document QA service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/sentinel-docqa/cmd/docqa/app"
)

func main() {
	app.NewApp().Run()
}
