// Package runtime links instrumented programs against the chess runtime.
//
// Instrumented sources are compiled in a temporary workspace. This package
// writes that workspace's go.mod: in development mode (the tool runs from
// an interleave checkout) the runtime module is replaced by the local tree,
// otherwise it is resolved as a published module by go mod tidy.
package runtime

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"golang.org/x/mod/modfile"
)

const (
	// ModulePath is the module providing the runtime.
	ModulePath = "github.com/kolkov/interleave"

	// goVersion is the go directive of generated go.mod files.
	goVersion = "1.24"
)

// ErrRuntimeNotFound is returned when neither a local checkout nor module
// build information locates the runtime.
var ErrRuntimeNotFound = errors.New("chess runtime not found")

// GetRuntimePackagePath returns the import path instrumented code uses.
func GetRuntimePackagePath() string {
	return ModulePath + "/chess"
}

// ValidateRuntimeAvailable checks that the runtime can be linked: either a
// local checkout is found, or the tool itself was built from the runtime
// module and go mod tidy can fetch the same module.
func ValidateRuntimeAvailable() error {
	if _, err := findProjectRoot(); err == nil {
		return nil
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Path == ModulePath {
		return nil
	}
	return fmt.Errorf("%w: run the tool from an interleave checkout or install it with go install %s/cmd/interleave",
		ErrRuntimeNotFound, ModulePath)
}

// findProjectRoot finds the root of the interleave checkout.
//
// It walks up from the working directory, then tries locations relative to
// the executable, looking for internal/chess/api. Any go.mod would match
// the user's project instead.
func findProjectRoot() (string, error) {
	isRoot := func(dir string) bool {
		_, err := os.Stat(filepath.Join(dir, "internal", "chess", "api"))
		return err == nil
	}

	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; ; {
			if isRoot(dir) {
				return dir, nil
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	if exePath, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exePath)
		for _, candidate := range []string{
			exeDir,                             // interleave in project root
			filepath.Dir(exeDir),               // interleave in bin/
			filepath.Dir(filepath.Dir(exeDir)), // deeper nesting
		} {
			if isRoot(candidate) {
				return candidate, nil
			}
		}
	}

	return "", errors.New("could not find interleave project root")
}

// findOriginalGoMod returns the go.mod governing startDir, or "".
func findOriginalGoMod(startDir string) string {
	for dir := startDir; ; {
		modPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(modPath); err == nil {
			return modPath
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// ModFileOverlay writes the go.mod of the instrumented workspace to
// tempDir/go.mod.overlay and returns its path.
//
// The overlay declares module "instrumented". It requires the user's own
// module, replaced by its directory, so the instrumented package can still
// import its siblings; replace directives of the user's go.mod are carried
// over with local paths made absolute. In development mode the runtime
// module is replaced by the local checkout.
func ModFileOverlay(tempDir, sourceDir string) (string, error) {
	f := &modfile.File{Syntax: &modfile.FileSyntax{}}
	if err := f.AddModuleStmt("instrumented"); err != nil {
		return "", err
	}
	if err := f.AddGoStmt(goVersion); err != nil {
		return "", err
	}

	replaced := map[string]bool{}
	if root, err := findProjectRoot(); err == nil {
		if err := addLocal(f, ModulePath, root); err != nil {
			return "", err
		}
		replaced[ModulePath] = true
	}

	if sourceDir != "" {
		if goMod := findOriginalGoMod(sourceDir); goMod != "" {
			if err := copyOriginal(f, goMod, replaced); err != nil {
				return "", err
			}
		}
	}

	f.Cleanup()
	data, err := f.Format()
	if err != nil {
		return "", fmt.Errorf("failed to format go.mod overlay: %w", err)
	}

	overlayPath := filepath.Join(tempDir, "go.mod.overlay")
	if err := os.WriteFile(overlayPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to create go.mod overlay: %w", err)
	}
	return overlayPath, nil
}

// addLocal requires modPath at v0.0.0 and replaces it by dir.
func addLocal(f *modfile.File, modPath, dir string) error {
	if err := f.AddRequire(modPath, "v0.0.0"); err != nil {
		return fmt.Errorf("failed to require %s: %w", modPath, err)
	}
	if err := f.AddReplace(modPath, "", dir, ""); err != nil {
		return fmt.Errorf("failed to replace %s: %w", modPath, err)
	}
	return nil
}

// copyOriginal links the user's module and copies its replace directives.
// Modules in replaced are left alone.
func copyOriginal(f *modfile.File, goModPath string, replaced map[string]bool) error {
	data, err := os.ReadFile(goModPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", goModPath, err)
	}
	orig, err := modfile.Parse(goModPath, data, nil)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", goModPath, err)
	}
	goModDir := filepath.Dir(goModPath)

	if orig.Module != nil && !replaced[orig.Module.Mod.Path] {
		if err := addLocal(f, orig.Module.Mod.Path, goModDir); err != nil {
			return err
		}
		replaced[orig.Module.Mod.Path] = true
	}

	for _, rep := range orig.Replace {
		if replaced[rep.Old.Path] {
			continue
		}
		newPath := rep.New.Path
		if rep.New.Version == "" && modfile.IsDirectoryPath(newPath) && !filepath.IsAbs(newPath) {
			if abs, err := filepath.Abs(filepath.Join(goModDir, newPath)); err == nil {
				newPath = abs
			}
		}
		if err := f.AddReplace(rep.Old.Path, rep.Old.Version, newPath, rep.New.Version); err != nil {
			return fmt.Errorf("failed to copy replace %s: %w", rep.Old.Path, err)
		}
	}
	return nil
}
