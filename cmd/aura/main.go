// Command aura runs the approval-pipeline backend for the Aura LaTeX
// assistant.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/auralabs/aura/pkg/config"
	"github.com/auralabs/aura/pkg/server"
)

// Version information - set via ldflags during build
var (
	version   = "1.0.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = runServeCommand(args)
	case "token":
		err = runTokenCommand(args)
	case "version", "-v", "--version":
		fmt.Printf("aura %s (%s, built %s)\n", version, commit, buildDate)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`Usage: aura <command> [flags]

Commands:
  serve     run the backend server (default)
  token     generate a session token for a frontend
  version   print version information

Run "aura <command> -h" for command flags.
`)
}

func runTokenCommand(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file (default ~/.aura/config.yaml)")
	user := fs.String("user", "default", "user id embedded in the token")
	ttl := fs.Duration("ttl", 30*24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if cfg.Server.JWTSecret == "" {
		return fmt.Errorf("server.jwt_secret is not configured; tokens are not needed")
	}

	token, err := server.NewTokenManager(cfg.Server.JWTSecret).Generate(*user, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}
