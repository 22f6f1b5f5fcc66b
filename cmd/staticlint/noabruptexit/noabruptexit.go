// Package noabruptexit defines an analyzer that reports calls terminating the
// process from main.main: os.Exit, log.Fatal* and zap Fatal*. They skip the
// deferred calls of main, among them the final save of the verification
// document and the logger flush.
package noabruptexit

import (
	"go/ast"
	"go/types"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
	"golang.org/x/tools/go/types/typeutil"
)

var Analyzer = &analysis.Analyzer{
	Name:     "noabruptexit",
	Doc:      "reports os.Exit, log.Fatal and zap Fatal calls in main.main",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

const zapPath = "go.uber.org/zap"

var fatalFuncs = map[string]map[string]bool{
	"os":  {"Exit": true},
	"log": {"Fatal": true, "Fatalf": true, "Fatalln": true},
}

var fatalZapMethods = map[string]bool{
	"Fatal":   true,
	"Fatalf":  true,
	"Fatalln": true,
	"Fatalw":  true,
}

func run(pass *analysis.Pass) (interface{}, error) {
	if pass.Pkg.Name() != "main" {
		return nil, nil
	}

	ins := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	ins.WithStack([]ast.Node{(*ast.CallExpr)(nil)}, func(n ast.Node, push bool, stack []ast.Node) bool {
		if !push || !insideMain(stack) {
			return true
		}
		if isGoBuildCacheFile(pass.Fset.File(n.Pos()).Name()) {
			return true
		}

		call := n.(*ast.CallExpr)
		fn, ok := typeutil.Callee(pass.TypesInfo, call).(*types.Func)
		if !ok || fn.Pkg() == nil {
			return true
		}

		if name, ok := abruptExit(fn); ok {
			pass.Reportf(call.Pos(), "%s in main.main skips deferred calls; return an error instead", name)
		}

		return true
	})

	return nil, nil
}

// abruptExit reports whether fn terminates the process, and its display name.
func abruptExit(fn *types.Func) (string, bool) {
	path := fn.Pkg().Path()
	sig, _ := fn.Type().(*types.Signature)

	if sig == nil || sig.Recv() == nil {
		if fatalFuncs[path][fn.Name()] {
			return path + "." + fn.Name(), true
		}
		return "", false
	}

	if path == zapPath && fatalZapMethods[fn.Name()] {
		return "zap " + fn.Name(), true
	}

	return "", false
}

// insideMain reports whether the innermost function declaration of stack is
// func main. Function literals declared in main count as main.
func insideMain(stack []ast.Node) bool {
	for i := len(stack) - 1; i >= 0; i-- {
		if fn, ok := stack[i].(*ast.FuncDecl); ok {
			return fn.Recv == nil && fn.Name.Name == "main"
		}
	}

	return false
}

func isGoBuildCacheFile(path string) bool {
	path = filepath.ToSlash(path)
	return strings.Contains(path, "/go-build/")
}
