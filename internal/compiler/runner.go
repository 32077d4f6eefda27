package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"discord-code-runner/internal/parser"
)

var (
	ErrIO             = errors.New("i/o failure")
	ErrSpawn          = errors.New("process spawn failure")
	ErrEncoding       = errors.New("compiler output is not valid UTF-8")
	ErrTimeout        = errors.New("compiler timed out")
	ErrCanceled       = errors.New("compile canceled")
	ErrUnsupported    = errors.New("not a supported language")
	ErrSourceTooLarge = errors.New("source too large")
)

// Stage names the step of a compile run that failed.
type Stage string

const (
	StageWrite  Stage = "write"
	StageSpawn  Stage = "spawn"
	StageRun    Stage = "run"
	StageDecode Stage = "decode"
)

// StageError wraps a failure of one compile stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// sourceFiles are the file names handed to each compiler. Java requires
// the file to be named after its public class.
var sourceFiles = map[parser.Lang]string{
	parser.LangRust: "rust_file.rs",
	parser.LangJava: "Main.java",
	parser.LangSnow: "snow_file.snow",
}

// SourceFile returns the file name used for lang, or "" if none.
func SourceFile(lang parser.Lang) string {
	return sourceFiles[lang]
}

type Runner struct {
	Bins          map[parser.Lang]string
	WorkDir       string
	Timeout       time.Duration
	MaxOutput     int
	KeepArtifacts bool
}

type Result struct {
	Lang      parser.Lang
	RequestID string
	Stdout    string
	Stderr    string
	Duration  time.Duration
	TimedOut  bool
	// ExitErr is the compiler's own non-zero exit; its output is still the reply.
	ExitErr error
	// Err is a stage failure; Stdout and Stderr hold whatever was captured.
	Err error
}

// ValidateSource rejects sources above maxBytes. A non-positive limit disables the check.
func ValidateSource(body string, maxBytes int) error {
	if maxBytes > 0 && len(body) > maxBytes {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrSourceTooLarge, len(body), maxBytes)
	}
	return nil
}

// Compile writes block.Body into a directory private to requestID and runs
// the language's compiler on it with the file name as the only argument.
func (r Runner) Compile(ctx context.Context, requestID string, block parser.CodeBlock) Result {
	start := time.Now()
	result := Result{Lang: block.Lang, RequestID: requestID}

	file := sourceFiles[block.Lang]
	bin := r.Bins[block.Lang]
	if file == "" || bin == "" {
		result.Err = fmt.Errorf("%w: %s", ErrUnsupported, block.Lang)
		return result
	}

	dir := filepath.Join(r.WorkDir, requestID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Err = &StageError{Stage: StageWrite, Err: fmt.Errorf("%w: %v", ErrIO, err)}
		return result
	}
	if !r.KeepArtifacts {
		defer os.RemoveAll(dir)
	}
	if err := os.WriteFile(filepath.Join(dir, file), []byte(block.Body), 0o644); err != nil {
		result.Err = &StageError{Stage: StageWrite, Err: fmt.Errorf("%w: %v", ErrIO, err)}
		return result
	}

	// A relative path with a separator would otherwise resolve against cmd.Dir.
	bin, err := ResolveBin(bin)
	if err != nil {
		result.Err = &StageError{Stage: StageSpawn, Err: fmt.Errorf("%w: %v", ErrSpawn, err)}
		return result
	}

	cctx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()
	cmd := exec.CommandContext(cctx, bin, file)
	cmd.Dir = dir
	cmd.WaitDelay = 2 * time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err = cmd.Run()
	result.Duration = time.Since(start)

	var exitErr *exec.ExitError
	switch {
	case errors.Is(cctx.Err(), context.DeadlineExceeded):
		result.TimedOut = true
		result.Err = &StageError{Stage: StageRun, Err: fmt.Errorf("%w after %s", ErrTimeout, r.timeout())}
	case cctx.Err() != nil:
		result.Err = &StageError{Stage: StageRun, Err: fmt.Errorf("%w: %v", ErrCanceled, cctx.Err())}
	case err == nil:
	case errors.As(err, &exitErr):
		result.ExitErr = err
	default:
		result.Err = &StageError{Stage: StageSpawn, Err: fmt.Errorf("%w: %v", ErrSpawn, err)}
		return result
	}

	if !utf8.Valid(stdout.Bytes()) || !utf8.Valid(stderr.Bytes()) {
		result.Err = &StageError{Stage: StageDecode, Err: ErrEncoding}
		return result
	}
	result.Stdout = trim(stdout.String(), r.MaxOutput)
	result.Stderr = trim(stderr.String(), r.MaxOutput)
	return result
}

// ResolveBin makes a compiler path that names a directory component
// absolute. Bare names such as "rustc" are left for $PATH lookup.
func ResolveBin(bin string) (string, error) {
	if filepath.IsAbs(bin) || !strings.ContainsAny(bin, `/`+string(filepath.Separator)) {
		return bin, nil
	}
	return filepath.Abs(bin)
}

// Output joins stdout and stderr with a newline.
func (res Result) Output() string {
	return res.Stdout + "\n" + res.Stderr
}

func (r Runner) timeout() time.Duration {
	if r.Timeout <= 0 {
		return time.Minute
	}
	return r.Timeout
}

func trim(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n... (truncated)"
}
