package extractstage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ocrWorkerSubcommand is the hidden CLI entrypoint cmd/ingestpipeline wires
// up so the process pool can re-exec itself as a disposable OCR worker,
// the same way the original pipeline spun up a fresh
// ProcessPoolExecutor(max_workers=1) per file and force-killed it on
// timeout.
const ocrWorkerSubcommand = "__extractstage_ocr_worker__"

// subprocessOCR runs Tesseract in a throwaway child process bounded by
// ctx/timeout, so a stuck native-code OCR pass can be killed outright
// rather than merely abandoned (see pool_thread.go).
func (s *Stage) subprocessOCR(ctx context.Context, tmpPath string, lang []string, timeout time.Duration) ([]Element, error) {
	binary := s.cfg.OCRWorkerBinary
	if binary == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, transientError("resolve_worker_binary", err)
		}
		binary = exe
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, binary, ocrWorkerSubcommand, tmpPath, strings.Join(lang, ","))
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	// Tesseract and the underlying partitioner are noisy on stderr; the
	// stage's own logging goes through slog on the parent's handles, not
	// through this child's stderr, so discarding it here doesn't swallow
	// anything the stage itself emits.
	cmd.Stderr = io.Discard

	err := cmd.Run()
	if cctx.Err() != nil {
		return nil, ocrTimeoutError("ocr_subprocess_timeout", cctx.Err())
	}
	if err != nil {
		return nil, transientError("ocr_subprocess", err)
	}

	var elements []Element
	if err := json.Unmarshal(stdout.Bytes(), &elements); err != nil {
		return nil, permanentError("decode_ocr_worker_output", err)
	}
	return elements, nil
}

// RunOCRWorkerMain is the OCR worker's entire program body. cmd/ingestpipeline
// dispatches to it when os.Args[1] == ocrWorkerSubcommand, before any other
// flag parsing, keeping the worker process's footprint minimal.
func RunOCRWorkerMain(args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "extractstage: ocr worker requires <path> <lang>")
		return 2
	}
	path := args[0]
	var lang []string
	if args[1] != "" {
		lang = strings.Split(args[1], ",")
	}

	elements, err := ocrPDF(path, lang)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(elements); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// IsOCRWorkerInvocation reports whether args (typically os.Args[1:]) asks
// to run as the OCR worker subprocess.
func IsOCRWorkerInvocation(args []string) bool {
	return len(args) > 0 && args[0] == ocrWorkerSubcommand
}
