// Command uptimed serves the uptime monitor API and probes the stored checks.
package main

import (
	"log"

	"github.com/patric-chuzhbe/flatapi/internal/app"
)

func main() {
	theApp, err := app.New(app.Uptime)
	if err != nil {
		log.Printf("%v", err)
		return
	}
	defer theApp.Close()

	if err := theApp.Run(); err != nil {
		log.Printf("%v", err)
	}
}
