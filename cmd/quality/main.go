package main

import (
	"os"

	"github.com/donsko1/DNS-case/cmd/quality/commands"
)

// main is the entry point for the quality pipeline CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/quality [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
