// Package instrument - Import and init injection.
//
// This file adds the chess import, the init/Fini hooks of package main, and
// removes imports the rewrite left unused.
package instrument

import (
	"go/ast"
	"go/token"
	"path"
	"strconv"
)

// importPath returns the unquoted path of imp, or "" if malformed.
func importPath(imp *ast.ImportSpec) string {
	p, err := strconv.Unquote(imp.Path.Value)
	if err != nil {
		return ""
	}
	return p
}

// importName returns the local name under which file imports pkgPath.
// Dot and blank imports return "": their members are not selected through
// a package name.
func importName(file *ast.File, pkgPath string) string {
	for _, imp := range file.Imports {
		if importPath(imp) != pkgPath {
			continue
		}
		if imp.Name == nil {
			return path.Base(pkgPath)
		}
		if imp.Name.Name == "_" || imp.Name.Name == "." {
			return ""
		}
		return imp.Name.Name
	}
	return ""
}

// usesName reports whether any declaration selects through the package
// name.
func usesName(file *ast.File, name string) bool {
	used := false
	for _, decl := range file.Decls {
		if gen, ok := decl.(*ast.GenDecl); ok && gen.Tok == token.IMPORT {
			continue
		}
		ast.Inspect(decl, func(n ast.Node) bool {
			if used {
				return false
			}
			sel, ok := n.(*ast.SelectorExpr)
			if !ok {
				return true
			}
			if x, ok := sel.X.(*ast.Ident); ok && x.Obj == nil && x.Name == name {
				used = true
			}
			return !used
		})
		if used {
			return true
		}
	}
	return false
}

// injectImport adds `import alias "path"` unless path is already imported.
//
// Example Transformations:
//
//	// No imports                 // Single import
//	package main                  package main
//	                              import (
//	import chess "…/chess"            "fmt"
//	                                  chess "…/chess"
//	func main() {}                )
func injectImport(file *ast.File, alias, pkgPath string) {
	for _, imp := range file.Imports {
		if importPath(imp) == pkgPath {
			return
		}
	}

	var importDecl *ast.GenDecl
	for _, decl := range file.Decls {
		if gen, ok := decl.(*ast.GenDecl); ok && gen.Tok == token.IMPORT {
			importDecl = gen
			break
		}
	}
	if importDecl == nil {
		importDecl = &ast.GenDecl{Tok: token.IMPORT}
		file.Decls = append([]ast.Decl{importDecl}, file.Decls...)
	}

	importDecl.Specs = append(importDecl.Specs, &ast.ImportSpec{
		Name: ast.NewIdent(alias),
		Path: &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(pkgPath)},
	})
	// Non-zero Lparen prints the grouped form.
	if importDecl.Lparen == 0 && len(importDecl.Specs) > 1 {
		importDecl.Lparen = 1
	}
	syncImports(file)
}

// removeImport deletes every import of pkgPath, dropping import
// declarations left empty.
func removeImport(file *ast.File, pkgPath string) {
	decls := file.Decls[:0]
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.IMPORT {
			decls = append(decls, decl)
			continue
		}
		specs := gen.Specs[:0]
		for _, spec := range gen.Specs {
			if imp, ok := spec.(*ast.ImportSpec); ok && importPath(imp) == pkgPath {
				continue
			}
			specs = append(specs, spec)
		}
		gen.Specs = specs
		if len(specs) > 0 {
			decls = append(decls, gen)
		}
	}
	file.Decls = decls
	syncImports(file)
}

// syncImports rebuilds file.Imports from the import declarations.
func syncImports(file *ast.File) {
	file.Imports = nil
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.IMPORT {
			continue
		}
		for _, spec := range gen.Specs {
			if imp, ok := spec.(*ast.ImportSpec); ok {
				file.Imports = append(file.Imports, imp)
			}
		}
	}
}

// injectInitFini appends
//
//	func init() { chess.Init() }
//
// and inserts "defer chess.Fini()" as the first statement of main, if the
// file declares it. Init runs on the main goroutine, which becomes the root
// thread.
func injectInitFini(file *ast.File) {
	chessCall := func(name string) *ast.CallExpr {
		return &ast.CallExpr{Fun: &ast.SelectorExpr{X: ast.NewIdent(ChessPackageAlias), Sel: ast.NewIdent(name)}}
	}

	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil || fn.Name.Name != "main" || fn.Body == nil {
			continue
		}
		fn.Body.List = append([]ast.Stmt{&ast.DeferStmt{Call: chessCall("Fini")}}, fn.Body.List...)
		break
	}

	file.Decls = append(file.Decls, &ast.FuncDecl{
		Name: ast.NewIdent("init"),
		Type: &ast.FuncType{Params: &ast.FieldList{}},
		Body: &ast.BlockStmt{List: []ast.Stmt{&ast.ExprStmt{X: chessCall("Init")}}},
	})
}
