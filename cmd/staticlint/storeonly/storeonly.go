// Package storeonly reports file mutations made outside the record store.
// Every write to the data directory has to go through recordstore so that
// writes stay atomic and keys stay validated. Test files may prepare
// fixtures freely.
package storeonly

import (
	"go/ast"
	"path"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
	"golang.org/x/tools/go/types/typeutil"
)

// StorePackage is the last element of the only package allowed to mutate
// files.
const StorePackage = "recordstore"

var Analyzer = &analysis.Analyzer{
	Name:     "storeonly",
	Doc:      "prohibits os.WriteFile, os.Remove, os.RemoveAll and os.Rename outside the record store",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

var mutators = map[string]bool{
	"WriteFile": true,
	"Remove":    true,
	"RemoveAll": true,
	"Rename":    true,
}

func run(pass *analysis.Pass) (interface{}, error) {
	if path.Base(pass.Pkg.Path()) == StorePackage {
		return nil, nil
	}

	inspect := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	inspect.Preorder([]ast.Node{(*ast.CallExpr)(nil)}, func(n ast.Node) {
		call := n.(*ast.CallExpr)
		if strings.HasSuffix(pass.Fset.File(call.Pos()).Name(), "_test.go") {
			return
		}

		callee := typeutil.StaticCallee(pass.TypesInfo, call)
		if callee == nil || callee.Pkg() == nil || callee.Pkg().Path() != "os" {
			return
		}
		if mutators[callee.Name()] {
			pass.Reportf(call.Pos(), "os.%s outside the record store", callee.Name())
		}
	})

	return nil, nil
}
