// Package main provides a generator that extracts CLI, configuration and
// function-table metadata from vizmigrate source code and generates
// markdown documentation.
//
// Usage:
//
//	go run ./scripts/gendocs -gen=cli -outdir=docs/cli
//	go run ./scripts/gendocs -gen=config -outdir=docs/reference
//	go run ./scripts/gendocs -gen=functions -outdir=docs/reference
//	go run ./scripts/gendocs -gen=readme
//	go run ./scripts/gendocs -gen=all
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	intconfig "github.com/leapstack-labs/vizmigrate/internal/config"
	"github.com/leapstack-labs/vizmigrate/pkg/dialect"
)

var (
	genFlag    = flag.String("gen", "all", "what to generate: cli, config, functions, readme, all")
	outDirFlag = flag.String("outdir", "", "output directory (defaults based on gen type)")
)

func main() {
	flag.Parse()

	validGenFlags := map[string]bool{"cli": true, "config": true, "functions": true, "readme": true, "all": true}
	if !validGenFlags[*genFlag] {
		log.Fatalf("unknown -gen value: %s (use: cli, config, functions, readme, all)", *genFlag)
	}

	// Find project root (where go.mod is)
	projectRoot, err := findProjectRoot()
	if err != nil {
		log.Fatalf("failed to find project root: %v", err)
	}

	log.Printf("Project root: %s", projectRoot)

	outDir := func(def ...string) string {
		if *outDirFlag != "" && *genFlag != "all" {
			return *outDirFlag
		}
		return filepath.Join(append([]string{projectRoot}, def...)...)
	}

	if *genFlag == "cli" || *genFlag == "all" {
		if err := generateCLIDocs(outDir("docs", "cli")); err != nil {
			log.Fatalf("failed to generate CLI docs: %v", err)
		}
	}
	if *genFlag == "config" || *genFlag == "all" {
		if err := generateConfigDocs(outDir("docs", "reference")); err != nil {
			log.Fatalf("failed to generate configuration docs: %v", err)
		}
	}
	if *genFlag == "functions" || *genFlag == "all" {
		if err := generateFunctionDocs(outDir("docs", "reference")); err != nil {
			log.Fatalf("failed to generate function docs: %v", err)
		}
	}
	if *genFlag == "readme" || *genFlag == "all" {
		d, ok := dialect.Get(intconfig.DefaultDialect)
		if !ok {
			log.Fatalf("dialect %s is not registered", intconfig.DefaultDialect)
		}
		if err := updateReadme(filepath.Join(projectRoot, "README.md"), d); err != nil {
			log.Fatalf("failed to update README: %v", err)
		}
		log.Printf("  Updated README.md")
	}

	log.Println("Done!")
}

// findProjectRoot walks up from current directory to find go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}
