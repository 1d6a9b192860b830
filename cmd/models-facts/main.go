package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/antmicro/renode-models-analyzer/internal/analyzer"
	"github.com/antmicro/renode-models-analyzer/internal/config"
	"github.com/antmicro/renode-models-analyzer/internal/report"
)

func main() {
	output := flag.String("output", "", "write registersInfo JSON to file (default: stdout)")
	flag.StringVar(output, "o", "", "write registersInfo JSON to file (shorthand)")
	peripheral := flag.String("peripheral", "", "restrict output to one peripheral class")
	registersArg := flag.String("registers", "", "comma-separated register names to keep")
	deltaFrom := flag.String("delta-from", "", "previous registersInfo JSON to compute delta from")
	deltaOut := flag.String("delta-out", "", "write delta JSON to file (requires --delta-from)")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: models-facts [--output file] [--peripheral name] [--registers a,b] [--delta-from prev.json --delta-out delta.json] <path>")
		os.Exit(1)
	}

	path := args[0]
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	a := analyzer.NewWithConfig(cfg)
	a.JSONOutput = true // silence text rendering; we emit our own JSON

	result, err := a.Analyze(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	groups := collectGroups(result, *peripheral)
	if *registersArg != "" {
		names := make(map[string]bool)
		for _, n := range strings.Split(*registersArg, ",") {
			if n = strings.TrimSpace(n); n != "" {
				names[n] = true
			}
		}
		groups = report.FilterGroupsByRegisters(groups, names)
	}

	if *output != "" {
		if err := writeJSON(*output, groups); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing registers info: %v\n", err)
			os.Exit(1)
		}
	} else {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "    ")
		if err := enc.Encode(groups); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding registers info: %v\n", err)
			os.Exit(1)
		}
	}

	if *deltaFrom != "" || *deltaOut != "" {
		if *deltaFrom == "" || *deltaOut == "" {
			fmt.Fprintln(os.Stderr, "Error: --delta-from and --delta-out must be used together")
			os.Exit(1)
		}
		prev, err := report.ReadRegistersInfo(*deltaFrom)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading delta-from: %v\n", err)
			os.Exit(1)
		}
		delta := report.ComputeDelta(prev, groups)
		if err := writeJSON(*deltaOut, delta); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing delta: %v\n", err)
			os.Exit(1)
		}
	}
}

// collectGroups flattens the analysis into registersInfo groups, optionally
// keeping only one peripheral class.
func collectGroups(result *analyzer.AnalysisResult, peripheral string) []report.RegistersGroup {
	groups := make([]report.RegistersGroup, 0)
	for _, rep := range result.Peripherals {
		if peripheral != "" && rep.Peripheral != peripheral {
			continue
		}
		groups = append(groups, rep.Groups...)
	}
	return groups
}

func writeJSON(path string, data interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "    ")
	return enc.Encode(data)
}
