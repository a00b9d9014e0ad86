// Package instrument rewrites Go source files so that their goroutines,
// mutexes and explicit yields are scheduled by the chess runtime.
//
// The rewrite is purely syntactic. It walks the AST produced by go/parser
// and applies three substitutions:
//
//	sync.Mutex             =>  chess.Mutex
//	runtime.Gosched()      =>  chess.Yield()
//	go f(a, b)             =>  { _chessArg0, _chessArg1 := a, b; chess.Go(func() { f(_chessArg0, _chessArg1) }) }
//
// Arguments of a go statement are evaluated before the new thread is
// created, exactly as the go statement would evaluate them. Basic literals
// are left in place.
//
// In package main an init function calling chess.Init is added and
// "defer chess.Fini()" is inserted at the top of main. The chess import is
// added when any rewrite used it; sync and runtime imports that are no
// longer referenced are removed.
//
// Other sync primitives (RWMutex, WaitGroup, Cond) are not scheduled by the
// runtime. They are left untouched and reported as warnings: a program that
// blocks on one of them while another thread holds the scheduling token
// will hang under exploration.
//
// Thread Safety: NOT thread-safe. The AST is modified in place.
package instrument

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
)

const (
	// ChessPackageImportPath is the import path injected into instrumented
	// files.
	ChessPackageImportPath = "github.com/kolkov/interleave/chess"

	// ChessPackageAlias is the local name of the injected import.
	ChessPackageAlias = "chess"
)

// InstrumentResult holds the result of instrumentation.
//
//nolint:revive // InstrumentResult is clear and descriptive despite stuttering
type InstrumentResult struct {
	Code     string                  // Instrumented source code
	Stats    InstrumentStats         // Rewrite counters
	Warnings []*InstrumentationError // Unsupported primitives, with positions
}

// InstrumentFile rewrites a single Go source file.
//
// src follows go/parser.ParseFile: nil reads filename, otherwise []byte,
// string or io.Reader.
//
// Example:
//
//	result, err := InstrumentFile("main.go", nil)
//	if err != nil {
//	    log.Fatalf("Instrumentation failed: %v", err)
//	}
//	for _, w := range result.Warnings {
//	    fmt.Fprintln(os.Stderr, "warning:", w)
//	}
//
//nolint:revive // InstrumentFile is the standard API naming for this operation
func InstrumentFile(filename string, src interface{}) (*InstrumentResult, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", filename, err)
	}

	if err := checkAliasFree(fset, file); err != nil {
		return nil, err
	}

	rw := newRewriter(fset, file)
	rw.rewrite()

	isMain := file.Name.Name == "main"
	if isMain {
		injectInitFini(file)
	}
	if rw.usedChess || isMain {
		injectImport(file, ChessPackageAlias, ChessPackageImportPath)
	}
	for _, path := range []string{"sync", "runtime"} {
		if name := importName(file, path); name != "" && !usesName(file, name) {
			removeImport(file, path)
			rw.stats.ImportsRemoved++
		}
	}

	var buf bytes.Buffer
	cfg := &printer.Config{
		Mode:     printer.UseSpaces | printer.TabIndent,
		Tabwidth: 8,
	}
	if err := cfg.Fprint(&buf, fset, file); err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}

	return &InstrumentResult{
		Code:     buf.String(),
		Stats:    rw.stats,
		Warnings: rw.warnings,
	}, nil
}

// checkAliasFree rejects files in which the chess alias is already taken
// by a top-level declaration or a different import.
func checkAliasFree(fset *token.FileSet, file *ast.File) error {
	for _, imp := range file.Imports {
		if imp.Name == nil {
			continue
		}
		ours := importPath(imp) == ChessPackageImportPath
		switch {
		case imp.Name.Name == ChessPackageAlias && !ours:
			return NewInstrumentationErrorWithSuggestion(fset, imp.Pos(),
				fmt.Sprintf("import name %q is reserved for the scheduler runtime", ChessPackageAlias),
				"Rename the import")
		case imp.Name.Name != ChessPackageAlias && ours:
			return NewInstrumentationErrorWithSuggestion(fset, imp.Pos(),
				fmt.Sprintf("scheduler runtime imported as %q", imp.Name.Name),
				fmt.Sprintf("Import %s without an alias", ChessPackageImportPath))
		}
	}
	if obj := file.Scope.Lookup(ChessPackageAlias); obj != nil {
		pos := token.NoPos
		if n, ok := obj.Decl.(ast.Node); ok {
			pos = n.Pos()
		}
		return NewInstrumentationErrorWithSuggestion(fset, pos,
			fmt.Sprintf("top-level identifier %q collides with the scheduler runtime import", ChessPackageAlias),
			"Rename the declaration")
	}
	return nil
}
