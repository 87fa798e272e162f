package orchestrator

import (
	"bytes"
	"io"
	"sync"

	"go.trai.ch/crossbox/internal/core/domain"
	"go.trai.ch/crossbox/internal/core/ports"
)

// lineLogger forwards complete lines to the logger, prefixed with the target and stage.
type lineLogger struct {
	logger ports.Logger
	prefix string

	mu  sync.Mutex
	buf bytes.Buffer
}

func newLineLogger(logger ports.Logger, target domain.TargetID, stage domain.Stage) *lineLogger {
	return &lineLogger{logger: logger, prefix: "[" + target.String() + "] " + string(stage) + ": "}
}

func (w *lineLogger) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadBytes('\n')
		if err != nil {
			// Keep the partial line for the next write.
			rest := bytes.Clone(line)
			w.buf.Reset()
			w.buf.Write(rest)
			break
		}
		w.emit(line[:len(line)-1])
	}
	return len(p), nil
}

// Flush logs any trailing partial line.
func (w *lineLogger) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.emit(w.buf.Bytes())
		w.buf.Reset()
	}
}

func (w *lineLogger) emit(line []byte) {
	line = bytes.TrimRight(line, "\r")
	if len(line) == 0 {
		return
	}
	w.logger.Info(w.prefix + string(line))
}

// stageOutput tees process output of one stage into its vertex and the logger.
type stageOutput struct {
	Stdout io.Writer
	Stderr io.Writer
	lines  []*lineLogger
}

func newStageOutput(logger ports.Logger, target domain.TargetID, stage domain.Stage, v ports.Vertex) *stageOutput {
	stdout := newLineLogger(logger, target, stage)
	stderr := newLineLogger(logger, target, stage)
	return &stageOutput{
		Stdout: io.MultiWriter(v.Stdout(), stdout),
		Stderr: io.MultiWriter(v.Stderr(), stderr),
		lines:  []*lineLogger{stdout, stderr},
	}
}

func (o *stageOutput) Flush() {
	for _, l := range o.lines {
		l.Flush()
	}
}
