// Package instrument - AST rewriter for scheduled primitives.
//
// This file implements the three substitutions of the instrumenter: mutex
// types, explicit yields and go statements.
package instrument

import (
	"fmt"
	"go/ast"
	"go/token"
)

// InstrumentStats tracks instrumentation statistics.
//
// Enable with -v flag to see them:
//
//	interleave build -v main.go
//	Instrumented main.go:
//	  - 2 mutex types rewritten
//	  - 3 go statements rewritten (4 arguments hoisted)
//	  - 1 yields rewritten
//	  Total: 6 rewrites
//
//nolint:revive // InstrumentStats is clear and descriptive despite stuttering
type InstrumentStats struct {
	MutexesRewritten int // sync.Mutex type references
	YieldsRewritten  int // runtime.Gosched references
	GoStmtsRewritten int // go statements
	ArgsHoisted      int // go statement operands evaluated before the spawn
	ImportsRemoved   int // sync/runtime imports left unused
	Unsupported      int // references to unscheduled sync primitives
}

// Total returns the number of rewritten constructs.
func (s *InstrumentStats) Total() int {
	return s.MutexesRewritten + s.YieldsRewritten + s.GoStmtsRewritten
}

// unsupported lists the sync types that are left alone but reported.
var unsupported = map[string]string{
	"RWMutex":   "use a chess.Mutex (sync.Mutex) instead",
	"WaitGroup": "join spawned threads with chess.Join instead",
	"Cond":      "rewrite the wait loop around a sync.Mutex and runtime.Gosched",
}

// rewriter applies the substitutions to one file.
type rewriter struct {
	fset *token.FileSet
	file *ast.File

	// Local names of the sync and runtime imports, "" when absent.
	syncName    string
	runtimeName string

	usedChess bool
	seq       int

	stats    InstrumentStats
	warnings []*InstrumentationError
}

func newRewriter(fset *token.FileSet, file *ast.File) *rewriter {
	return &rewriter{
		fset:        fset,
		file:        file,
		syncName:    importName(file, "sync"),
		runtimeName: importName(file, "runtime"),
	}
}

// rewrite walks the file once. Statement lists are rewritten before their
// elements are visited, so go statements nested in a rewritten go
// statement's function literal are rewritten too.
func (r *rewriter) rewrite() {
	ast.Inspect(r.file, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.BlockStmt:
			r.rewriteList(n.List)
		case *ast.CaseClause:
			r.rewriteList(n.Body)
		case *ast.CommClause:
			r.rewriteList(n.Body)
		case *ast.LabeledStmt:
			if g, ok := n.Stmt.(*ast.GoStmt); ok {
				n.Stmt = r.goStmt(g)
			}
		case *ast.SelectorExpr:
			r.selector(n)
		}
		return true
	})
}

func (r *rewriter) rewriteList(list []ast.Stmt) {
	for i, stmt := range list {
		if g, ok := stmt.(*ast.GoStmt); ok {
			list[i] = r.goStmt(g)
		}
	}
}

// selector rewrites sync.Mutex and runtime.Gosched in place. Identifiers
// with a resolved object are local declarations shadowing the import.
func (r *rewriter) selector(sel *ast.SelectorExpr) {
	x, ok := sel.X.(*ast.Ident)
	if !ok || x.Obj != nil {
		return
	}

	switch {
	case r.syncName != "" && x.Name == r.syncName:
		if sel.Sel.Name == "Mutex" {
			x.Name = ChessPackageAlias
			r.usedChess = true
			r.stats.MutexesRewritten++
			return
		}
		if hint, bad := unsupported[sel.Sel.Name]; bad {
			r.stats.Unsupported++
			r.warnings = append(r.warnings, NewInstrumentationErrorWithSuggestion(r.fset, sel.Pos(),
				fmt.Sprintf("sync.%s is not scheduled by the chess runtime; blocking on it can hang exploration", sel.Sel.Name),
				hint))
		}

	case r.runtimeName != "" && x.Name == r.runtimeName && sel.Sel.Name == "Gosched":
		x.Name = ChessPackageAlias
		sel.Sel.Name = "Yield"
		r.usedChess = true
		r.stats.YieldsRewritten++
	}
}

// goStmt turns "go f(a, b)" into a chess.Go call. Operands the go
// statement would evaluate eagerly are bound to fresh variables first.
func (r *rewriter) goStmt(g *ast.GoStmt) ast.Stmt {
	call := g.Call

	var lhs, rhs []ast.Expr
	bind := func(e ast.Expr) ast.Expr {
		name := fmt.Sprintf("_chessArg%d", r.seq)
		r.seq++
		lhs = append(lhs, ast.NewIdent(name))
		rhs = append(rhs, e)
		return ast.NewIdent(name)
	}

	fun := call.Fun
	if !stableFunc(fun) {
		fun = bind(fun)
	}
	args := make([]ast.Expr, len(call.Args))
	for i, arg := range call.Args {
		if isConstant(arg) {
			args[i] = arg
			continue
		}
		args[i] = bind(arg)
		r.stats.ArgsHoisted++
	}

	body := &ast.BlockStmt{List: []ast.Stmt{
		&ast.ExprStmt{X: &ast.CallExpr{Fun: fun, Args: args, Ellipsis: call.Ellipsis}},
	}}
	spawn := &ast.ExprStmt{X: &ast.CallExpr{
		Fun: &ast.SelectorExpr{X: ast.NewIdent(ChessPackageAlias), Sel: ast.NewIdent("Go")},
		Args: []ast.Expr{&ast.FuncLit{
			Type: &ast.FuncType{Params: &ast.FieldList{}},
			Body: body,
		}},
	}}

	r.usedChess = true
	r.stats.GoStmtsRewritten++

	if len(lhs) == 0 {
		return spawn
	}
	return &ast.BlockStmt{List: []ast.Stmt{
		&ast.AssignStmt{Lhs: lhs, Tok: token.DEFINE, Rhs: rhs},
		spawn,
	}}
}

// stableFunc reports whether evaluating fun later yields the same function
// value: function literals, declared functions, builtins and qualified
// package functions.
func stableFunc(fun ast.Expr) bool {
	switch f := fun.(type) {
	case *ast.FuncLit:
		return true
	case *ast.Ident:
		return f.Obj == nil || f.Obj.Kind == ast.Fun
	case *ast.SelectorExpr:
		x, ok := f.X.(*ast.Ident)
		return ok && x.Obj == nil
	case *ast.IndexExpr:
		return stableFunc(f.X)
	case *ast.IndexListExpr:
		return stableFunc(f.X)
	case *ast.ParenExpr:
		return stableFunc(f.X)
	}
	return false
}

// isConstant reports whether e is a constant expression that must stay
// untyped: binding it to a variable would fix its default type.
func isConstant(e ast.Expr) bool {
	switch e := e.(type) {
	case *ast.BasicLit:
		return true
	case *ast.Ident:
		if e.Obj == nil {
			switch e.Name {
			case "nil", "true", "false", "iota":
				return true
			}
			return false
		}
		return e.Obj.Kind == ast.Con
	case *ast.ParenExpr:
		return isConstant(e.X)
	case *ast.UnaryExpr:
		return e.Op != token.AND && e.Op != token.ARROW && isConstant(e.X)
	case *ast.BinaryExpr:
		return isConstant(e.X) && isConstant(e.Y)
	}
	return false
}
