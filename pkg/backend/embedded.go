package backend

import (
	"context"
	"fmt"

	"github.com/nodewee/doc-structurer/pkg/library"
	"github.com/nodewee/doc-structurer/pkg/logger"
	"github.com/nodewee/doc-structurer/pkg/schema"
	"github.com/nodewee/doc-structurer/pkg/types"
	"github.com/nodewee/doc-structurer/pkg/utils"
)

// EmbeddedStrategy invokes an in-process conversion library. There is no
// process boundary, so the descriptor timeout is honored by running the call
// on a worker goroutine and abandoning it when the context expires.
type EmbeddedStrategy struct {
	logger   *logger.Logger
	registry *library.Registry
}

// NewEmbeddedStrategy creates the embedded strategy over a library registry
func NewEmbeddedStrategy(log *logger.Logger, registry *library.Registry) *EmbeddedStrategy {
	return &EmbeddedStrategy{logger: log, registry: registry}
}

// Kind returns the backend variant
func (s *EmbeddedStrategy) Kind() types.BackendKind {
	return types.BackendEmbedded
}

// Probe checks that the descriptor endpoint resolves to a registered library
func (s *EmbeddedStrategy) Probe(ctx context.Context, desc types.BackendDescriptor) error {
	if _, ok := s.registry.Lookup(desc.Endpoint); !ok {
		return utils.NewBackendError(utils.FailureUnreachable, desc.String(),
			fmt.Sprintf("no embedded library registered under %q", desc.Endpoint), nil)
	}
	return nil
}

// Extract converts the file through the resolved library
func (s *EmbeddedStrategy) Extract(ctx context.Context, desc types.BackendDescriptor, sourcePath string, options map[string]string) (*schema.ExtractedDocument, error) {
	lib, err := s.resolve(desc)
	if err != nil {
		return nil, err
	}

	doc, err := runBounded(ctx, desc, func() (*schema.ExtractedDocument, error) {
		return lib.Convert(ctx, sourcePath, options)
	})
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, utils.NewBackendError(utils.FailureMalformedOutput, desc.String(),
			"library result violates contract", err)
	}
	doc.Normalize()
	return doc, nil
}

// Info answers the capability query through the resolved library
func (s *EmbeddedStrategy) Info(ctx context.Context, desc types.BackendDescriptor, sourcePath string) (*schema.InfoResult, error) {
	lib, err := s.resolve(desc)
	if err != nil {
		return nil, err
	}

	res, err := runBounded(ctx, desc, func() (*schema.InfoResult, error) {
		return lib.Inspect(ctx, sourcePath)
	})
	if err != nil {
		return nil, err
	}
	if err := res.Validate(); err != nil {
		return nil, utils.NewBackendError(utils.FailureMalformedOutput, desc.String(),
			"library result violates contract", err)
	}
	return res, nil
}

func (s *EmbeddedStrategy) resolve(desc types.BackendDescriptor) (library.Library, error) {
	lib, ok := s.registry.Lookup(desc.Endpoint)
	if !ok {
		return nil, utils.NewBackendError(utils.FailureUnreachable, desc.String(),
			fmt.Sprintf("no embedded library registered under %q", desc.Endpoint), nil)
	}
	return lib, nil
}

// runBounded runs a library call on a worker goroutine so the caller never
// blocks past the context deadline. The worker writes into a buffered
// channel, so an abandoned call does not leak a blocked goroutine.
func runBounded[T any](ctx context.Context, desc types.BackendDescriptor, call func() (T, error)) (T, error) {
	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				done <- outcome{zero, fmt.Errorf("library fault: %v", r)}
			}
		}()
		value, err := call()
		done <- outcome{value, err}
	}()

	var zero T
	select {
	case <-ctx.Done():
		kind, _ := utils.ClassifyContextErr(ctx.Err())
		if kind == "" {
			kind = utils.FailureTimeout
		}
		return zero, utils.NewBackendError(kind, desc.String(),
			fmt.Sprintf("library call abandoned after %s", desc.Timeout()), ctx.Err())
	case out := <-done:
		if out.err != nil {
			if kind, ok := utils.ClassifyContextErr(out.err); ok {
				return zero, utils.NewBackendError(kind, desc.String(),
					fmt.Sprintf("library call abandoned after %s", desc.Timeout()), out.err)
			}
			return zero, utils.NewBackendError(utils.FailureNonZeroExit, desc.String(),
				"library call failed", out.err)
		}
		return out.value, nil
	}
}
