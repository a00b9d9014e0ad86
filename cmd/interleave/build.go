// build.go implements the 'interleave build' command.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/kolkov/interleave/cmd/interleave/instrument"
	"github.com/kolkov/interleave/cmd/interleave/runtime"
)

// buildCommand implements the 'interleave build' command.
//
// This command rewrites Go source files so their goroutines and mutexes are
// scheduled by the chess runtime, and builds them. It accepts the flags of
// 'go build'.
//
// Flow:
//  1. Parse arguments (source files + go build flags)
//  2. Create temporary workspace
//  3. Instrument source files (mutexes, go statements, yields)
//  4. Setup runtime linking (go.mod overlay)
//  5. Call 'go build' with instrumented code
//  6. Cleanup temporary files
//
// Example:
//
//	interleave build main.go
//	interleave build -o lockorder main.go helper.go
//	interleave build -ldflags="-s -w" .
func buildCommand(args []string) {
	config, err := parseBuildArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := buildInstrumented(config); err != nil {
		fmt.Fprintf(os.Stderr, "Build failed: %v\n", err)
		os.Exit(1)
	}

	if config.outputFile != "" {
		fmt.Printf("Built successfully: %s\n", config.outputFile)
	}
}

// buildInstrumented runs steps 2-6 of the build flow. The workspace is
// removed whether or not the build succeeds.
func buildInstrumented(config *buildConfig) error {
	if err := runtime.ValidateRuntimeAvailable(); err != nil {
		return err
	}

	workspace, err := createWorkspace()
	if err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}
	defer workspace.cleanup()

	if err := instrumentSources(config, workspace); err != nil {
		return fmt.Errorf("failed to instrument sources: %w", err)
	}
	if err := workspace.setupRuntimeLinking(config.sourceDir()); err != nil {
		return fmt.Errorf("failed to setup runtime: %w", err)
	}
	return workspace.build(config)
}

// buildConfig holds configuration for the build command.
type buildConfig struct {
	// Source files to instrument and build
	sourceFiles []string

	// Output binary name (from -o flag)
	outputFile string

	// Additional go build flags
	buildFlags []string

	// Working directory for build
	workDir string

	// Verbose output flag (-v)
	verbose bool
}

// sourceDir returns the directory of the first source, resolved against
// workDir. Its go.mod governs the build.
func (c *buildConfig) sourceDir() string {
	if len(c.sourceFiles) == 0 {
		return c.workDir
	}
	src := c.sourceFiles[0]
	if !filepath.IsAbs(src) {
		src = filepath.Join(c.workDir, src)
	}
	if info, err := os.Stat(src); err == nil && info.IsDir() {
		return src
	}
	return filepath.Dir(src)
}

// parseBuildArgs parses command-line arguments for 'interleave build'.
//
// It separates:
//   - Source files (.go files or directories)
//   - Output file (-o flag)
//   - Go build flags (everything else)
//
// Returns buildConfig with parsed arguments.
func parseBuildArgs(args []string) (*buildConfig, error) {
	config := &buildConfig{
		sourceFiles: []string{},
		buildFlags:  []string{},
	}

	// Get current working directory
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	config.workDir = cwd

	// Parse arguments
	expectingValue := false
	for i := 0; i < len(args); i++ {
		arg := args[i]

		// If previous flag expects a value, this is it (even if it starts with -)
		// Example: -ldflags "-s -w"
		if expectingValue {
			config.buildFlags = append(config.buildFlags, arg)
			expectingValue = false
			continue
		}

		// Handle -o flag (output file)
		if arg == "-o" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("-o flag requires an argument")
			}
			i++
			config.outputFile = args[i]
			continue
		}

		// Handle -o=file format
		if strings.HasPrefix(arg, "-o=") {
			config.outputFile = strings.TrimPrefix(arg, "-o=")
			continue
		}

		// Handle -v flag (verbose output)
		if arg == "-v" {
			config.verbose = true
			continue
		}

		// Handle flags (starts with -)
		if strings.HasPrefix(arg, "-") {
			// It's a build flag - pass through to go build
			config.buildFlags = append(config.buildFlags, arg)

			// Check if this flag expects a value (next arg will be consumed)
			expectingValue = needsValue(arg)
			continue
		}

		// No dash prefix: a .go file or a directory
		config.sourceFiles = append(config.sourceFiles, arg)
	}

	// Default: build current directory if no sources specified
	if len(config.sourceFiles) == 0 {
		config.sourceFiles = []string{"."}
	}

	return config, nil
}

// needsValue returns true if the flag expects a following value.
func needsValue(flag string) bool {
	// Flags that take values
	valueFlags := []string{
		"-ldflags", "-gcflags", "-asmflags", "-gccgoflags",
		"-tags", "-installsuffix", "-buildmode", "-mod",
		"-modfile", "-overlay", "-pkgdir", "-toolexec",
	}

	for _, vf := range valueFlags {
		// Already has = format (e.g., -ldflags=-s)
		if strings.HasPrefix(flag, vf+"=") {
			return false
		}
		// Exact match - needs next arg
		if flag == vf {
			return true
		}
	}

	return false
}

// workspace represents a temporary workspace for instrumented code.
type workspace struct {
	// Root directory of workspace
	dir string

	// Source directory (where instrumented .go files go)
	srcDir string
}

// createWorkspace creates a temporary workspace for building instrumented code.
func createWorkspace() (*workspace, error) {
	// Create temp directory
	dir, err := os.MkdirTemp("", "interleave-build-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	// Create src subdirectory
	srcDir := filepath.Join(dir, "src")
	if err := os.MkdirAll(srcDir, 0755); err != nil {
		_ = os.RemoveAll(dir) // Cleanup on error, ignore removal errors
		return nil, fmt.Errorf("failed to create src directory: %w", err)
	}

	return &workspace{
		dir:    dir,
		srcDir: srcDir,
	}, nil
}

// cleanup removes the temporary workspace.
func (w *workspace) cleanup() {
	if w.dir != "" {
		_ = os.RemoveAll(w.dir) // Best effort cleanup, ignore errors
	}
}

// setupRuntimeLinking writes the workspace go.mod and tidies it.
// sourceDir locates the user's go.mod, whose module and replace directives
// are carried over.
func (w *workspace) setupRuntimeLinking(sourceDir string) error {
	overlayPath, err := runtime.ModFileOverlay(w.dir, sourceDir)
	if err != nil {
		return fmt.Errorf("failed to create go.mod overlay: %w", err)
	}

	goModPath := filepath.Join(w.dir, "go.mod")
	if err := os.Rename(overlayPath, goModPath); err != nil {
		return fmt.Errorf("failed to setup go.mod: %w", err)
	}

	tidyCmd := exec.Command("go", "mod", "tidy")
	tidyCmd.Dir = w.dir // go.mod is in workspace root, not src/
	tidyCmd.Stdout = os.Stdout
	tidyCmd.Stderr = os.Stderr
	if err := tidyCmd.Run(); err != nil {
		return fmt.Errorf("failed to tidy go.mod: %w", err)
	}
	return nil
}

// build runs 'go build' on the instrumented code in the workspace.
func (w *workspace) build(config *buildConfig) error {
	// Prepare go build command
	args := []string{"build"}

	// Add output file if specified
	if config.outputFile != "" {
		// Make output path absolute
		outputPath := config.outputFile
		if !filepath.IsAbs(outputPath) {
			outputPath = filepath.Join(config.workDir, outputPath)
		}
		args = append(args, "-o", outputPath)
	}

	// Add user-specified build flags
	args = append(args, config.buildFlags...)

	// Build from workspace src directory
	args = append(args, ".")

	// Run go build
	cmd := exec.Command("go", args...)
	cmd.Dir = w.srcDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}

// instrumentSources instruments all source files and writes them to workspace.
func instrumentSources(config *buildConfig, workspace *workspace) error {
	// Collect all .go files to instrument
	goFiles, err := collectGoFiles(config.sourceFiles, config.workDir)
	if err != nil {
		return fmt.Errorf("failed to collect source files: %w", err)
	}

	if len(goFiles) == 0 {
		return fmt.Errorf("no Go source files found")
	}

	for _, srcPath := range goFiles {
		result, err := instrument.InstrumentFile(srcPath, nil)
		if err != nil {
			return fmt.Errorf("failed to instrument %s: %w", srcPath, err)
		}

		// Flatten into the workspace package directory
		outPath := filepath.Join(workspace.srcDir, filepath.Base(srcPath))
		if err := os.WriteFile(outPath, []byte(result.Code), 0644); err != nil {
			return fmt.Errorf("failed to write instrumented file %s: %w", outPath, err)
		}

		fmt.Printf("Instrumented: %s -> %s\n", srcPath, outPath)
		for _, w := range result.Warnings {
			fmt.Fprintf(os.Stderr, "warning: %v\n", w)
		}

		if config.verbose {
			stats := result.Stats
			fmt.Printf("  - %d mutex types rewritten\n", stats.MutexesRewritten)
			fmt.Printf("  - %d go statements rewritten (%d arguments hoisted)\n", stats.GoStmtsRewritten, stats.ArgsHoisted)
			fmt.Printf("  - %d yields rewritten\n", stats.YieldsRewritten)
			if stats.ImportsRemoved > 0 {
				fmt.Printf("  - %d unused imports removed\n", stats.ImportsRemoved)
			}
			if stats.Unsupported > 0 {
				fmt.Printf("  - %d unscheduled sync primitives left in place\n", stats.Unsupported)
			}
			fmt.Printf("  Total: %d rewrites\n", stats.Total())
		}
	}

	return nil
}

// collectGoFiles finds all .go files from the given sources.
//
// Sources can be:
//   - .go files directly
//   - directories (scans for .go files)
//   - "." for current directory
func collectGoFiles(sources []string, workDir string) ([]string, error) {
	var goFiles []string

	for _, src := range sources {
		// Make path absolute
		srcPath := src
		if !filepath.IsAbs(srcPath) {
			srcPath = filepath.Join(workDir, src)
		}

		// Check if it's a file or directory
		info, err := os.Stat(srcPath)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", src, err)
		}

		if info.IsDir() {
			// Scan directory for .go files
			entries, err := os.ReadDir(srcPath)
			if err != nil {
				return nil, fmt.Errorf("cannot read directory %s: %w", srcPath, err)
			}

			for _, entry := range entries {
				if entry.IsDir() {
					continue
				}

				name := entry.Name()
				// Include only .go files (exclude _test.go for build)
				if strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go") {
					fullPath := filepath.Join(srcPath, name)
					goFiles = append(goFiles, fullPath)
				}
			}
		} else {
			// It's a file - check if it's a .go file
			if strings.HasSuffix(srcPath, ".go") {
				goFiles = append(goFiles, srcPath)
			}
		}
	}

	return goFiles, nil
}
