// =============================================================================
// Renode Models Analyzer - Main Entry Point
// =============================================================================
//
// This tool turns Renode C# peripheral models from "text files" into a
// "queryable register database," enabling layout checks that previously
// required booting the full simulator.
//
// THE PIPELINE:
//   1. Tree-sitter parses C# into a syntax tree
//   2. Discovery finds peripheral classes and their register enums
//   3. The resolution engine expands builder chains into register layouts
//   4. CUE Validator enforces data contract (crash on schema mismatch)
//   5. OPA evaluates policy rules against the resolved registers
//   6. Violations are reported with file/line locations
//
// WHEN INVESTIGATING FALSE POSITIVES:
//   Start at the beginning of the pipeline, not the end!
//   Syntax issues → Resolver issues → Policy issues
// =============================================================================

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/antmicro/renode-models-analyzer/internal/analyzer"
	"github.com/antmicro/renode-models-analyzer/internal/config"
)

func main() {
	if len(os.Args) >= 2 && os.Args[1] == "init" {
		runInit()
		return
	}

	verbose := flag.Bool("verbose", false, "enable verbose output")
	flag.BoolVar(verbose, "v", false, "enable verbose output (shorthand)")
	progress := flag.Bool("progress", false, "stream per-file progress")
	jsonOut := flag.Bool("json", false, "emit the full analysis result as JSON")
	configPath := flag.String("config", "", "path to a models_analyzer.json config file")
	flag.StringVar(configPath, "c", "", "path to config file (shorthand)")
	writeReports := flag.Bool("write-reports", false, "write per-peripheral registersInfo files")
	timing := flag.Bool("timing", false, "write timing.jsonl next to the analyzed path")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}
	path := args[0]

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config %s: %v\n", *configPath, err)
			os.Exit(1)
		}
	} else {
		cfg, err = config.Load(path)
		if err != nil {
			fmt.Printf("Warning: Could not load config: %v (using defaults)\n", err)
			cfg = config.DefaultConfig()
		}
	}

	a := analyzer.NewWithConfig(cfg)
	a.Verbose = *verbose
	a.Progress = *progress
	a.JSONOutput = *jsonOut
	a.WriteReports = *writeReports
	a.Timing = *timing

	result, err := a.Analyze(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := a.Render(result); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if result.Summary.Errors > 0 {
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: models-analyzer [command] [options] <path>

Commands:
  init              Create a models_analyzer.json configuration file
  <path>            Analyze C# peripheral models in the given path

Options:
  -v, --verbose     Enable verbose output
  --progress        Stream per-file progress
  --json            Emit the full analysis result as JSON
  -c, --config      Specify config file: models-analyzer -c config.json <path>
  --write-reports   Write per-peripheral registersInfo files
  --timing          Write timing.jsonl next to the analyzed path
  -h, --help        Show this help message

Configuration:
  models-analyzer looks for configuration in:
    1. ./models_analyzer.json
    2. ./.models_analyzer.json
    3. ~/.config/models_analyzer/config.json

  Run 'models-analyzer init' to create a default configuration file.

Exit codes:
  0  analysis succeeded with no error-severity violations
  1  the pipeline itself failed
  2  error-severity violations were found`)
}

func runInit() {
	configPath := "models_analyzer.json"

	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config file %s already exists. Overwrite? [y/N]: ", configPath)
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return
		}
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Created %s\n", configPath)
	fmt.Println("\nEdit this file to configure:")
	fmt.Println("  - Source file patterns")
	fmt.Println("  - Rule severities")
	fmt.Println("  - Output and cache directories")
}
