package analyzer

// =============================================================================
// ANALYZER PHILOSOPHY: TRUST THE RESOLVER, VALIDATE WITH CUE
// =============================================================================
//
// The analyzer sits between resolution and policy evaluation. Its job is to:
// 1. Discover peripheral classes across the selected C# files
// 2. Drive register resolution for every register enum
// 3. Aggregate per-peripheral reports into a unified result
// 4. Prepare normalized data for rego policy evaluation
//
// IMPORTANT: The analyzer should NOT work around resolution bugs!
//
// If the analyzer needs to "fix" or "clean up" resolved registers, that's a
// sign that either:
// - The SYNTAX layer is missing a construct (fix internal/syntax first!)
// - The RESOLVER is missing logic (fix internal/registers second!)
//
// The CUE validator (internal/validator) catches schema mismatches between
// what we produce here and what the registersInfo consumers expect. If
// validation fails, it means our contract is broken - fix the source, don't
// suppress the error.
// =============================================================================

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/antmicro/renode-models-analyzer/internal/config"
	"github.com/antmicro/renode-models-analyzer/internal/discovery"
	"github.com/antmicro/renode-models-analyzer/internal/policy"
	"github.com/antmicro/renode-models-analyzer/internal/registers"
	"github.com/antmicro/renode-models-analyzer/internal/report"
	"github.com/antmicro/renode-models-analyzer/internal/syntax"
	"github.com/antmicro/renode-models-analyzer/internal/validator"
)

// resultVersion identifies the analysis output format.
const resultVersion = "1"

// Analyzer drives the full pipeline: source selection, parsing, peripheral
// discovery, register resolution, contract validation and policy evaluation.
type Analyzer struct {
	// Configuration loaded from models_analyzer.json
	Config *config.Config

	// Verbose output
	Verbose bool

	// Progress output (lightweight, streaming)
	Progress bool

	// JSON output mode
	JSONOutput bool

	// WriteReports emits per-peripheral registersInfo files to Output.Dir
	WriteReports bool

	// Timing output (JSONL)
	Timing     bool
	TimingPath string

	// Optional cache version override (for tests)
	cacheVersionOverride *cacheVersions
}

// AnalysisResult is the structured result of running the analyzer.
// This can be serialized to JSON for programmatic consumption.
type AnalysisResult struct {
	// Version of the output format
	Version string `json:"version"`

	// Status is the worst per-unit outcome across the whole run
	Status string `json:"status"`

	// Summary counts
	Summary ResultSummary `json:"summary"`

	// Per-peripheral analysis reports
	Peripherals []report.PeripheralReport `json:"peripherals"`

	// Violations found by policy evaluation
	Violations []policy.Violation `json:"violations"`

	// Parse errors encountered
	ParseErrors []ParseError `json:"parse_errors,omitempty"`

	// Paths of registersInfo files written this run
	WrittenReports []string `json:"written_reports,omitempty"`
}

// ResultSummary provides aggregate counts.
type ResultSummary struct {
	FilesAnalyzed int `json:"files_analyzed"`
	Peripherals   int `json:"peripherals"`
	Registers     int `json:"registers"`
	Errors        int `json:"errors"`
	Warnings      int `json:"warnings"`
	Info          int `json:"info"`
}

// ParseError represents a file that failed to parse.
type ParseError struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

// fileAnalysis is everything one source file produced.
type fileAnalysis struct {
	Path    string                    `json:"path"`
	Reports []report.PeripheralReport `json:"reports"`
}

// New creates a new Analyzer with default configuration.
func New() *Analyzer {
	return &Analyzer{
		Config: config.DefaultConfig(),
	}
}

// NewWithConfig creates a new Analyzer with the given configuration.
func NewWithConfig(cfg *config.Config) *Analyzer {
	a := New()
	a.Config = cfg
	return a
}

func (a *Analyzer) cacheVersions(rootPath string) cacheVersions {
	if a.cacheVersionOverride != nil {
		return *a.cacheVersionOverride
	}
	return computeCacheVersions(rootPath)
}

// Run executes the analysis pipeline and renders the result to stdout.
func (a *Analyzer) Run(rootPath string) error {
	result, err := a.Analyze(rootPath)
	if err != nil {
		return err
	}
	return a.Render(result)
}

// Analyze executes the analysis pipeline and returns the structured result.
func (a *Analyzer) Analyze(rootPath string) (*AnalysisResult, error) {
	runStart := time.Now()
	pipelineErrs := make([]error, 0)
	recordPipelineErr := func(err error) {
		pipelineErrs = append(pipelineErrs, err)
	}
	timing := newTimingRecorder(runStart, a.resolveTimingPath(rootPath))
	if err := timing.Err(); err != nil {
		recordPipelineErr(fmt.Errorf("timing output disabled: %w", err))
	}
	defer timing.Close()

	// 0. Load configuration if not already loaded
	if a.Config == nil {
		cfg, err := config.Load(rootPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		a.Config = cfg
	}

	// 1. Find all C# files using configuration
	stepStart := time.Now()
	files, err := a.Config.ResolveSources(rootPath)
	if err != nil {
		return nil, fmt.Errorf("scanning files: %w", err)
	}
	if !a.JSONOutput {
		fmt.Printf("Found %d C# files\n", len(files))
	}
	scanDuration := time.Since(stepStart)
	timing.RecordStage("scan", stepStart, scanDuration, "")

	// 2. Per-file parallel analysis (with optional cache)
	stepStart = time.Now()
	var cache *reportsCache
	if cacheEnabled(a.Config) {
		cacheDir := resolveCacheDir(rootPath, a.Config)
		versions := a.cacheVersions(rootPath)
		cache = newReportsCache(cacheDir, versions.parser, versions.resolver)
		if err := cache.Load(); err != nil {
			recordPipelineErr(fmt.Errorf("cache disabled: %w", err))
			cache = nil
		}
	}

	maxParallel := a.Config.Analysis.MaxParallelFiles
	if maxParallel <= 0 {
		maxParallel = runtime.NumCPU()
	}
	sem := make(chan struct{}, maxParallel)

	var wg sync.WaitGroup
	var progressMu sync.Mutex
	progress := 0
	progressEnabled := (a.Verbose || a.Progress) && !a.JSONOutput
	if progressEnabled {
		fmt.Printf("\n=== Analysis Progress ===\n")
	}
	resultChan := make(chan fileAnalysis, len(files))
	errChan := make(chan error, len(files))
	pipelineErrChan := make(chan error, len(files))

	for _, file := range files {
		wg.Add(1)
		go func(f string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			fileStart := time.Now()
			var contentHash string
			if cache != nil {
				h, err := hashFile(f)
				if err != nil {
					errChan <- fmt.Errorf("%s: %w", f, err)
					return
				}
				contentHash = h
				if reports, ok, err := cache.Get(f, contentHash); err == nil && ok {
					resultChan <- fileAnalysis{Path: f, Reports: reports}
					fileDuration := time.Since(fileStart)
					timing.RecordFile("analyze", f, "cache_hit", fileStart, fileDuration)
					if progressEnabled {
						emitProgress(&progressMu, &progress, len(files), f, len(reports), "cache hit", fileDuration)
					}
					return
				} else if err != nil {
					pipelineErrChan <- fmt.Errorf("cache read failed for %s: %w", f, err)
				}
			}

			analysis, err := a.analyzeFile(f)
			if err != nil {
				errChan <- fmt.Errorf("%s: %w", f, err)
				return
			}
			if cache != nil && contentHash != "" {
				if err := cache.Put(f, contentHash, analysis.Reports); err != nil {
					pipelineErrChan <- fmt.Errorf("cache write failed for %s: %w", f, err)
				}
			}
			fileDuration := time.Since(fileStart)
			timing.RecordFile("analyze", f, "analyzed", fileStart, fileDuration)
			if progressEnabled {
				emitProgress(&progressMu, &progress, len(files), f, len(analysis.Reports), "analyzed", fileDuration)
			}
			resultChan <- analysis
		}(file)
	}

	wg.Wait()
	close(resultChan)
	close(errChan)
	close(pipelineErrChan)

	// Collect errors
	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	for err := range pipelineErrChan {
		recordPipelineErr(err)
	}

	// Collect reports in deterministic file order
	analyses := make([]fileAnalysis, 0, len(files))
	for fa := range resultChan {
		analyses = append(analyses, fa)
	}
	sort.Slice(analyses, func(i, j int) bool { return analyses[i].Path < analyses[j].Path })
	if cache != nil {
		if err := cache.Save(); err != nil {
			recordPipelineErr(fmt.Errorf("cache save failed: %w", err))
		}
	}
	analyzeDuration := time.Since(stepStart)
	timing.RecordStage("analyze", stepStart, analyzeDuration, "")

	result := &AnalysisResult{
		Version:     resultVersion,
		Status:      registers.StatusSkip.String(),
		Peripherals: []report.PeripheralReport{},
		Violations:  []policy.Violation{},
		ParseErrors: []ParseError{},
	}
	for _, e := range errs {
		result.ParseErrors = append(result.ParseErrors, ParseError{Message: e.Error()})
	}

	worst := registers.StatusSkip
	registerCount := 0
	for _, fa := range analyses {
		for _, rep := range fa.Reports {
			result.Peripherals = append(result.Peripherals, rep)
			if s, ok := statusFromString(rep.Status); ok && s > worst {
				worst = s
			}
			for _, g := range rep.Groups {
				registerCount += len(g.Registers)
			}
		}
	}
	result.Status = worst.String()
	result.Summary = ResultSummary{
		FilesAnalyzed: len(files),
		Peripherals:   len(result.Peripherals),
		Registers:     registerCount,
	}

	// 3. Validate register data before policy evaluation (CUE contract
	// enforcement). A failure here means the resolver and the registersInfo
	// consumers disagree on the data shape.
	stepStart = time.Now()
	v, err := validator.New()
	if err != nil {
		return nil, fmt.Errorf("CRITICAL: Failed to initialize CUE validator: %w", err)
	}
	for _, rep := range result.Peripherals {
		if err := v.Validate(rep.Groups); err != nil {
			return nil, fmt.Errorf("CRITICAL: Data contract violation for %s (resolver -> registersInfo mismatch): %w", rep.Peripheral, err)
		}
	}
	validateDuration := time.Since(stepStart)
	timing.RecordStage("validate", stepStart, validateDuration, "")

	// 4. Policy evaluation
	stepStart = time.Now()
	policyEngine, err := a.newPolicyEngine()
	if err != nil {
		return nil, fmt.Errorf("initialize policy engine: %w", err)
	}
	policyResult, err := policyEngine.Evaluate(buildPolicyInput(result.Peripherals))
	if err != nil {
		return nil, fmt.Errorf("policy evaluation failed: %w", err)
	}
	a.applyPolicyResult(result, policyResult)
	policyDuration := time.Since(stepStart)
	timing.RecordStage("policy", stepStart, policyDuration, "")

	// 5. Emit registersInfo files
	var writeDuration time.Duration
	if a.WriteReports {
		stepStart = time.Now()
		outDir := resolveOutputDir(rootPath, a.Config)
		for _, rep := range result.Peripherals {
			path, err := report.WriteRegistersInfo(outDir, rep.Peripheral, rep.Groups)
			if err != nil {
				recordPipelineErr(fmt.Errorf("write registers info for %s: %w", rep.Peripheral, err))
				continue
			}
			result.WrittenReports = append(result.WrittenReports, path)
		}
		sort.Strings(result.WrittenReports)
		writeDuration = time.Since(stepStart)
		timing.RecordStage("write", stepStart, writeDuration, "")
	}

	// 6. Validate the final output shape
	ov, err := validator.NewOutputValidator()
	if err != nil {
		return nil, fmt.Errorf("CRITICAL: Failed to initialize output validator: %w", err)
	}
	if err := ov.Validate(result); err != nil {
		return nil, fmt.Errorf("CRITICAL: Output contract violation: %w", err)
	}

	if (a.Verbose || a.Progress) && !a.JSONOutput {
		fmt.Printf("\n=== Timing Summary ===\n")
		fmt.Printf("  scan:     %s\n", formatDuration(scanDuration))
		fmt.Printf("  analyze:  %s\n", formatDuration(analyzeDuration))
		fmt.Printf("  validate: %s\n", formatDuration(validateDuration))
		fmt.Printf("  policy:   %s\n", formatDuration(policyDuration))
		if a.WriteReports {
			fmt.Printf("  write:    %s\n", formatDuration(writeDuration))
		}
		fmt.Printf("  total:    %s\n", formatDuration(time.Since(runStart)))
	}
	timing.RecordStage("total", runStart, time.Since(runStart), "")

	if len(pipelineErrs) > 0 {
		return result, fmt.Errorf("pipeline errors:\n%s", formatPipelineErrors(pipelineErrs))
	}
	return result, nil
}

// analyzeFile parses one source file and resolves every peripheral it
// declares.
func (a *Analyzer) analyzeFile(path string) (fileAnalysis, error) {
	model, err := syntax.New().ParseFile(path)
	if err != nil {
		return fileAnalysis{}, err
	}

	peripherals := discovery.FindPeripherals(model)
	reports := make([]report.PeripheralReport, 0, len(peripherals))
	for _, p := range peripherals {
		reports = append(reports, a.analyzePeripheral(model, p))
	}
	return fileAnalysis{Path: path, Reports: reports}, nil
}

// analyzePeripheral resolves all register groups of one peripheral class.
// A panic while resolving a group marks the peripheral Fatal but leaves every
// other peripheral in the run untouched.
func (a *Analyzer) analyzePeripheral(model *syntax.Model, p discovery.Peripheral) (rep report.PeripheralReport) {
	rep = report.PeripheralReport{
		Peripheral: p.Class.Name,
		File:       model.Path,
		Status:     registers.StatusSkip.String(),
		Groups:     []report.RegistersGroup{},
		Findings:   []registers.Finding{},
	}

	worst := registers.StatusSkip
	for _, g := range p.Groups {
		group, findings, status := a.analyzeGroup(model, p, g)
		rep.Groups = append(rep.Groups, group)
		rep.Findings = append(rep.Findings, findings...)
		if status > worst {
			worst = status
		}
	}
	rep.Status = worst.String()
	return rep
}

// analyzeGroup runs one resolution engine over a register enum's members.
func (a *Analyzer) analyzeGroup(model *syntax.Model, p discovery.Peripheral, g discovery.RegisterGroup) (group report.RegistersGroup, findings []registers.Finding, status registers.Status) {
	eng := registers.NewEngine(model, registers.Options{
		PeripheralWidth:  p.Width,
		BranchDepthLimit: a.Config.Analysis.BranchDepthLimit,
	})
	descriptors := make([]*registers.RegisterDescriptor, 0, len(g.Registers))

	defer func() {
		if r := recover(); r != nil {
			eng.SetFatal()
			findings = append(eng.Findings(), registers.Finding{
				Kind:     registers.FindingInconsistent,
				Register: g.Name,
				File:     model.Path,
				Message:  fmt.Sprintf("resolution aborted: %v", r),
			})
			group = report.BuildGroup(g.Name, descriptors, eng.Replicas())
			status = eng.Status()
		}
	}()

	for _, ref := range g.Registers {
		desc, err := eng.GetRegisterInfo(ref)
		if err != nil {
			findings = append(findings, registers.Finding{
				Kind:     registers.FindingInconsistent,
				Register: ref.Name,
				File:     model.Path,
				Message:  err.Error(),
			})
			continue
		}
		descriptors = append(descriptors, desc)
	}

	findings = append(findings, eng.Findings()...)
	return report.BuildGroup(g.Name, descriptors, eng.Replicas()), findings, eng.Status()
}

// newPolicyEngine builds the rego engine, preferring a configured policy
// directory over the embedded rules.
func (a *Analyzer) newPolicyEngine() (*policy.Engine, error) {
	if a.Config.Output.PolicyDir != "" {
		return policy.New(a.Config.Output.PolicyDir)
	}
	return policy.NewEmbedded()
}

// buildPolicyInput converts peripheral reports to the policy engine input
// format. Slices are initialized to empty (not nil) so JSON serialization
// produces [] instead of null - the rego rules expect arrays.
func buildPolicyInput(reports []report.PeripheralReport) policy.Input {
	input := policy.Input{
		Findings:  []registers.Finding{},
		Registers: []policy.RegisterRow{},
	}
	for _, rep := range reports {
		input.Findings = append(input.Findings, rep.Findings...)
		for _, g := range rep.Groups {
			for _, r := range g.Registers {
				input.Registers = append(input.Registers, policy.RegisterRow{
					Peripheral:  rep.Peripheral,
					Name:        r.Name,
					File:        rep.File,
					Line:        r.Line(),
					Address:     r.Address,
					Width:       r.Width,
					ResetValue:  r.ResetValue,
					MaxValue:    policy.WidthMaxValue(r.Width),
					SpecialKind: r.SpecialKind.String(),
				})
			}
		}
	}
	return input
}

// applyPolicyResult folds the policy outcome into the analysis result,
// honoring per-rule configuration overrides.
func (a *Analyzer) applyPolicyResult(result *AnalysisResult, policyResult *policy.Result) {
	violations := make([]policy.Violation, 0, len(policyResult.Violations))
	for _, v := range policyResult.Violations {
		if !a.Config.IsRuleEnabled(v.Rule) {
			continue
		}
		v.Severity = a.Config.GetRuleSeverity(v.Rule, v.Severity)
		violations = append(violations, v)
	}
	result.Violations = violations

	for _, v := range violations {
		switch v.Severity {
		case "error":
			result.Summary.Errors++
		case "warning":
			result.Summary.Warnings++
		case "info":
			result.Summary.Info++
		}
	}
}

// Render writes the result to stdout in the selected output mode.
func (a *Analyzer) Render(result *AnalysisResult) error {
	if a.JSONOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to encode JSON output: %w", err)
		}
		return nil
	}

	if len(result.Violations) > 0 {
		fmt.Printf("\n=== Policy Violations ===\n")
		for _, v := range result.Violations {
			icon := "ℹ"
			if v.Severity == "error" {
				icon = "✗"
			} else if v.Severity == "warning" {
				icon = "⚠"
			}
			target := v.File
			if v.Register != "" {
				target = fmt.Sprintf("%s (%s)", v.File, v.Register)
			}
			fmt.Printf("%s [%s] %s:%d - %s\n", icon, v.Rule, target, v.Line, v.Message)
		}
	}

	fmt.Printf("\n=== Policy Summary ===\n")
	fmt.Printf("  Errors:   %d\n", result.Summary.Errors)
	fmt.Printf("  Warnings: %d\n", result.Summary.Warnings)
	fmt.Printf("  Info:     %d\n", result.Summary.Info)

	fmt.Printf("\n=== Analysis Summary ===\n")
	fmt.Printf("  Status:      %s\n", result.Status)
	fmt.Printf("  Files:       %d\n", result.Summary.FilesAnalyzed)
	fmt.Printf("  Peripherals: %d\n", result.Summary.Peripherals)
	fmt.Printf("  Registers:   %d\n", result.Summary.Registers)

	if len(result.WrittenReports) > 0 {
		fmt.Printf("\n=== Written Reports ===\n")
		for _, path := range result.WrittenReports {
			fmt.Printf("  %s\n", path)
		}
	}

	if len(result.ParseErrors) > 0 {
		fmt.Printf("\n=== Parse Errors ===\n")
		for _, e := range result.ParseErrors {
			fmt.Printf("  %s\n", e.Message)
		}
	}
	return nil
}

func emitProgress(mu *sync.Mutex, progress *int, total int, file string, peripherals int, status string, duration time.Duration) {
	mu.Lock()
	defer mu.Unlock()
	*progress++
	fmt.Printf("  [%d/%d] %s: %d peripherals (%s, %s)\n", *progress, total, file, peripherals, status, formatDuration(duration))
}

func formatPipelineErrors(errs []error) string {
	var b strings.Builder
	for i, err := range errs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Microsecond).String()
}

func statusFromString(s string) (registers.Status, bool) {
	switch s {
	case "Skip":
		return registers.StatusSkip, true
	case "Pass":
		return registers.StatusPass, true
	case "Incomplete":
		return registers.StatusIncomplete, true
	case "Error":
		return registers.StatusError, true
	case "Fatal":
		return registers.StatusFatal, true
	}
	return registers.StatusSkip, false
}
