package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"time"

	"github.com/nodewee/doc-structurer/pkg/logger"
	"github.com/nodewee/doc-structurer/pkg/schema"
	"github.com/nodewee/doc-structurer/pkg/types"
	"github.com/nodewee/doc-structurer/pkg/utils"
)

// SubprocessStrategy runs an external converter executable. The child is
// invoked with the operation name and file path as arguments and must emit
// the canonical schema JSON on stdout. CommandContext terminates the child
// when the descriptor timeout expires.
type SubprocessStrategy struct {
	logger *logger.Logger
}

// NewSubprocessStrategy creates the subprocess strategy
func NewSubprocessStrategy(log *logger.Logger) *SubprocessStrategy {
	return &SubprocessStrategy{logger: log}
}

// Kind returns the backend variant
func (s *SubprocessStrategy) Kind() types.BackendKind {
	return types.BackendSubprocess
}

// Probe checks that the converter executable can be resolved
func (s *SubprocessStrategy) Probe(ctx context.Context, desc types.BackendDescriptor) error {
	if _, err := exec.LookPath(desc.Endpoint); err != nil {
		return utils.NewBackendError(utils.FailureUnreachable, desc.String(),
			"converter executable not found", err)
	}
	return nil
}

// Extract runs the converter with the extract operation
func (s *SubprocessStrategy) Extract(ctx context.Context, desc types.BackendDescriptor, sourcePath string, options map[string]string) (*schema.ExtractedDocument, error) {
	stdout, err := s.run(ctx, desc, string(types.CommandExtract), sourcePath, options)
	if err != nil {
		return nil, err
	}
	doc, err := schema.ParseExtractedDocument(stdout)
	if err != nil {
		return nil, utils.NewBackendError(utils.FailureMalformedOutput, desc.String(),
			"converter produced unparsable output", err)
	}
	return doc, nil
}

// Info runs the converter with the info operation
func (s *SubprocessStrategy) Info(ctx context.Context, desc types.BackendDescriptor, sourcePath string) (*schema.InfoResult, error) {
	stdout, err := s.run(ctx, desc, string(types.CommandInfo), sourcePath, nil)
	if err != nil {
		return nil, err
	}
	res, err := schema.ParseInfoResult(stdout)
	if err != nil {
		return nil, utils.NewBackendError(utils.FailureMalformedOutput, desc.String(),
			"converter produced unparsable output", err)
	}
	return res, nil
}

// run executes the converter and returns its stdout
func (s *SubprocessStrategy) run(ctx context.Context, desc types.BackendDescriptor, operation, sourcePath string, options map[string]string) ([]byte, error) {
	args := []string{operation, sourcePath}
	for _, key := range sortedKeys(options) {
		args = append(args, fmt.Sprintf("--%s=%s", key, options[key]))
	}

	cmd := exec.CommandContext(ctx, desc.Endpoint, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second

	s.logger.Debug("Running converter: %s", cmd.String())
	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	if kind, ok := utils.ClassifyContextErr(ctx.Err()); ok {
		return nil, utils.NewBackendError(kind, desc.String(),
			fmt.Sprintf("converter terminated after %s", desc.Timeout()), ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		msg := fmt.Sprintf("converter exited with status %d", exitErr.ExitCode())
		if detail := utils.Truncate(stderr.String(), 300); detail != "" {
			msg += ": " + detail
		}
		return nil, utils.NewBackendError(utils.FailureNonZeroExit, desc.String(), msg, err)
	}

	return nil, utils.NewBackendError(utils.FailureUnreachable, desc.String(),
		"converter could not be started", err)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
