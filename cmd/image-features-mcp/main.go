package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/ironsheep/image-features-mcp/internal/config"
	"github.com/ironsheep/image-features-mcp/internal/features"
	"github.com/ironsheep/image-features-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("image-features-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			fmt.Printf("  Backends:   %s\n", strings.Join(features.BackendNames(), ", "))
			return
		case "--help", "-h", "help":
			fmt.Println("image-features-mcp - MCP server for feature detection and matching")
			fmt.Println()
			fmt.Println("Usage: image-features-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Println("  IMAGE_FEATURES_CONFIG=<file>         YAML configuration file")
			fmt.Println("  IMAGE_FEATURES_LOG_LEVEL=debug       Enable debug logging")
			fmt.Println("  IMAGE_FEATURES_BACKEND=native        Feature backend (native, opencv)")
			fmt.Println("  IMAGE_FEATURES_OUTPUT=<file>         Where features_save writes (matched_image.png)")
			fmt.Println("  IMAGE_FEATURES_MAX_DISPLAY=50        Matches drawn on the composite")
			fmt.Println("  IMAGE_FEATURES_CACHE_TTL=10m         How long decoded images stay cached")
			fmt.Println("  IMAGE_FEATURES_HIGHLIGHT=#FF0000     Harris corner colour")
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
			return
		}
	}

	// Configure logging to stderr (stdout is for MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if cfg.Debug() {
		log.Printf("Image Features MCP Server v%s (built %s, commit %s), backend %s",
			Version, BuildTime, GitCommit, cfg.Backend)
	}

	server.Version = Version
	srv, err := server.NewWithConfig(cfg)
	if err != nil {
		log.Fatalf("Server setup error: %v", err)
	}
	if err := srv.Run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
