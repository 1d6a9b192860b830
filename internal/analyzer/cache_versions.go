package analyzer

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/antmicro/renode-models-analyzer/internal/config"
)

// cacheVersions invalidates cached reports when the parser or the resolver
// changes, without the user having to clear the cache directory.
type cacheVersions struct {
	parser   string
	resolver string
}

func cacheEnabled(cfg *config.Config) bool {
	if cfg == nil {
		return false
	}
	if cfg.Analysis.Cache.Enabled == nil {
		return false
	}
	return *cfg.Analysis.Cache.Enabled
}

func resolveCacheDir(rootPath string, cfg *config.Config) string {
	baseDir := rootPath
	if info, err := os.Stat(rootPath); err == nil && !info.IsDir() {
		baseDir = filepath.Dir(rootPath)
	}
	cacheDir := cfg.Analysis.Cache.Dir
	if cacheDir == "" {
		cacheDir = ".models_analyzer_cache"
	}
	if !filepath.IsAbs(cacheDir) {
		cacheDir = filepath.Join(baseDir, cacheDir)
	}
	return cacheDir
}

func resolveOutputDir(rootPath string, cfg *config.Config) string {
	baseDir := rootPath
	if info, err := os.Stat(rootPath); err == nil && !info.IsDir() {
		baseDir = filepath.Dir(rootPath)
	}
	outDir := cfg.Output.Dir
	if outDir == "" {
		outDir = "registersInfo"
	}
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(baseDir, outDir)
	}
	return outDir
}

func computeCacheVersions(rootPath string) cacheVersions {
	// Prefer locating the repo root by walking up from this source file.
	repoRoot := findRepoRootForCache()
	if repoRoot == "" {
		repoRoot = rootPath
		if info, err := os.Stat(rootPath); err == nil && !info.IsDir() {
			repoRoot = filepath.Dir(rootPath)
		}
	}
	parserVersion := hashFileIfExists(filepath.Join(repoRoot, "internal", "syntax", "syntax.go"))
	resolverVersion := hashFileIfExists(filepath.Join(repoRoot, "internal", "registers", "expand.go"))

	if parserVersion == "" {
		parserVersion = "unknown"
	}
	if resolverVersion == "" {
		resolverVersion = "unknown"
	}

	return cacheVersions{parser: parserVersion, resolver: resolverVersion}
}

func findRepoRootForCache() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}
	dir := filepath.Dir(file)
	for {
		candidate := filepath.Join(dir, "internal", "registers", "expand.go")
		if _, err := os.Stat(candidate); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func hashFileIfExists(path string) string {
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	h, err := hashFile(path)
	if err != nil {
		return ""
	}
	return h
}
