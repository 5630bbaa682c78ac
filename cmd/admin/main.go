// Command admin is the operator console. It reads a local data directory
// (-d) or a running daemon through its admin endpoint (-r, -k).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/patric-chuzhbe/flatapi/internal/app"
	"github.com/patric-chuzhbe/flatapi/internal/config"
)

func main() {
	dataDir := flag.String("d", "", "data directory to read")
	remoteAddr := flag.String("r", "", "admin gRPC address of a running daemon")
	adminKey := flag.String("k", "", "admin key, prompted for when -r is set and -k is not")
	flag.Parse()

	cfg, err := config.New(config.WithDisableFlagsParsing(true))
	if err != nil {
		log.Printf("%v", err)
		return
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
		cfg.DatabaseDSN = ""
	}

	key := *adminKey
	if key == "" {
		key = cfg.AdminKey
	}
	if *remoteAddr != "" && key == "" {
		if key, err = readKey(); err != nil {
			log.Printf("%v", err)
			return
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console, closeSource, err := app.OpenConsole(ctx, cfg, *remoteAddr, key)
	if err != nil {
		log.Printf("%v", err)
		return
	}
	defer func() {
		if err := closeSource(); err != nil {
			log.Printf("%v", err)
		}
	}()

	if err := console.Run(ctx, os.Stdin); err != nil {
		log.Printf("%v", err)
	}
}

func readKey() (string, error) {
	fmt.Print("Admin key: ")
	key, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("in cmd/admin/main.go/readKey(): error while `term.ReadPassword()` calling: %w", err)
	}

	return string(key), nil
}
