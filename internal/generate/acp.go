package generate

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/lareview/lareview/internal/logging"
	"github.com/lareview/lareview/pkg/types"
)

// ProcessInvoker runs the reviewer agent as a subprocess speaking
// newline-delimited JSON: the generation request goes to stdin, progress
// events stream back one per line on stdout.
type ProcessInvoker struct {
	mu    sync.Mutex
	procs map[string]*exec.Cmd
}

// NewProcessInvoker creates a subprocess-backed invoker.
func NewProcessInvoker() *ProcessInvoker {
	return &ProcessInvoker{procs: make(map[string]*exec.Cmd)}
}

// processRequest is the header written to the agent's stdin.
type processRequest struct {
	RunID    string              `json:"runID"`
	ReviewID string              `json:"reviewID"`
	Diff     string              `json:"diff"`
	RepoRoot string              `json:"repoRoot,omitempty"`
	Source   *types.ReviewSource `json:"source,omitempty"`
}

// Generate launches the agent process and pumps its stdout through the emit
// callback until the stream ends.
func (p *ProcessInvoker) Generate(ctx context.Context, req Request, emit EmitFunc) (*types.GenerationResult, error) {
	if req.Command == "" {
		return nil, fmt.Errorf("no agent command configured")
	}

	cmd := exec.CommandContext(ctx, req.Command, req.Args...)
	if req.SnapshotPath != "" {
		cmd.Dir = req.SnapshotPath
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open agent stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open agent stdout: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start agent %s: %w", req.Command, err)
	}

	p.mu.Lock()
	p.procs[req.RunID] = cmd
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.procs, req.RunID)
		p.mu.Unlock()
	}()

	header := processRequest{
		RunID:    req.RunID,
		ReviewID: req.ReviewID,
		Diff:     req.DiffText,
		RepoRoot: req.SnapshotPath,
		Source:   req.Source,
	}
	if err := json.NewEncoder(stdin).Encode(header); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, fmt.Errorf("write agent request: %w", err)
	}
	stdin.Close()

	// Events are decoded and emitted on this goroutine, one at a time, so
	// ordering is the stream's own.
	taskCount := 0
	var streamErr string
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ev, err := types.DecodeProgressEvent([]byte(line))
		if err != nil {
			logging.Warn().Err(err).Msg("undecodable progress event")
			continue
		}
		switch e := ev.(type) {
		case types.Completed:
			taskCount = e.TaskCount
		case types.ErrorEvent:
			streamErr = e.Message
		}
		emit(ev)
	}

	// A read failure (or an event over the buffer limit) must not pass for a
	// clean end of stream.
	readErr := scanner.Err()
	waitErr := cmd.Wait()

	if waitErr != nil {
		if wasSignalled(waitErr) || ctx.Err() != nil {
			return nil, ErrCancelled
		}
		if streamErr != "" {
			return nil, fmt.Errorf("%s", streamErr)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = waitErr.Error()
		}
		return nil, fmt.Errorf("agent failed: %s", msg)
	}
	if readErr != nil {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		return nil, fmt.Errorf("read agent output: %w", readErr)
	}
	if streamErr != "" {
		return nil, fmt.Errorf("%s", streamErr)
	}

	return &types.GenerationResult{
		ReviewID:  req.ReviewID,
		RunID:     req.RunID,
		TaskCount: taskCount,
	}, nil
}

// Cancel signals the run's agent process to terminate. The run's state
// transition still happens through Generate's normal return path.
func (p *ProcessInvoker) Cancel(ctx context.Context, runID string) error {
	p.mu.Lock()
	cmd := p.procs[runID]
	p.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Signal(syscall.SIGTERM)
}

// wasSignalled reports whether the process died from a termination signal.
func wasSignalled(err error) bool {
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return false
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		return false
	}
	return status.Signaled() && (status.Signal() == syscall.SIGTERM || status.Signal() == syscall.SIGINT || status.Signal() == syscall.SIGKILL)
}
