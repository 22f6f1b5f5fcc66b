// Command staticlint runs the analyzers the project is checked with in one
// multichecker binary: a selection of go vet passes, ineffassign, nilerr,
// staticcheck, stylecheck and noabruptexit.
//
// The staticcheck and stylecheck analyzers to enable are listed in
// config.json next to the binary, by name or by prefix ending in "*" (for
// example "SA*"). Without that file every SA analyzer is enabled.
package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/gordonklaus/ineffassign/pkg/ineffassign"
	"github.com/gostaticanalysis/nilerr"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/multichecker"
	"golang.org/x/tools/go/analysis/passes/copylock"
	"golang.org/x/tools/go/analysis/passes/errorsas"
	"golang.org/x/tools/go/analysis/passes/loopclosure"
	"golang.org/x/tools/go/analysis/passes/lostcancel"
	"golang.org/x/tools/go/analysis/passes/printf"
	"golang.org/x/tools/go/analysis/passes/structtag"
	"golang.org/x/tools/go/analysis/passes/unmarshal"
	"golang.org/x/tools/go/analysis/passes/unreachable"
	"honnef.co/go/tools/staticcheck"
	"honnef.co/go/tools/stylecheck"

	"github.com/patric-chuzhbe/verifybot/cmd/staticlint/noabruptexit"
)

const configName = `config.json`

type configData struct {
	Staticcheck []string `json:"staticcheck"`
}

var defaultConfig = configData{Staticcheck: []string{"SA*"}}

func loadConfig() (configData, error) {
	appfile, err := os.Executable()
	if err != nil {
		return configData{}, err
	}

	data, err := os.ReadFile(filepath.Join(filepath.Dir(appfile), configName))
	if errors.Is(err, os.ErrNotExist) {
		return defaultConfig, nil
	}
	if err != nil {
		return configData{}, err
	}

	var cfg configData
	if err := json.Unmarshal(data, &cfg); err != nil {
		return configData{}, err
	}

	return cfg, nil
}

func enabled(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
			if strings.HasPrefix(name, prefix) {
				return true
			}
			continue
		}
		if name == pattern {
			return true
		}
	}

	return false
}

func analyzers(cfg configData) []*analysis.Analyzer {
	checks := []*analysis.Analyzer{
		copylock.Analyzer,
		errorsas.Analyzer,
		loopclosure.Analyzer,
		lostcancel.Analyzer,
		printf.Analyzer,
		structtag.Analyzer,
		unmarshal.Analyzer,
		unreachable.Analyzer,

		ineffassign.Analyzer,
		nilerr.Analyzer,

		noabruptexit.Analyzer,
	}

	for _, v := range staticcheck.Analyzers {
		if enabled(v.Analyzer.Name, cfg.Staticcheck) {
			checks = append(checks, v.Analyzer)
		}
	}
	for _, v := range stylecheck.Analyzers {
		if enabled(v.Analyzer.Name, cfg.Staticcheck) {
			checks = append(checks, v.Analyzer)
		}
	}

	return checks
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}

	multichecker.Main(analyzers(cfg)...)
}
