// Command pizzad serves the pizza ordering API.
package main

import (
	"log"

	"github.com/patric-chuzhbe/flatapi/internal/app"
)

func main() {
	theApp, err := app.New(app.Pizza)
	if err != nil {
		log.Printf("%v", err)
		return
	}
	defer theApp.Close()

	if err := theApp.Run(); err != nil {
		log.Printf("%v", err)
	}
}
