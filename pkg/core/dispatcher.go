package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nodewee/doc-structurer/pkg/backend"
	"github.com/nodewee/doc-structurer/pkg/config"
	"github.com/nodewee/doc-structurer/pkg/library"
	"github.com/nodewee/doc-structurer/pkg/logger"
	"github.com/nodewee/doc-structurer/pkg/schema"
	"github.com/nodewee/doc-structurer/pkg/types"
	"github.com/nodewee/doc-structurer/pkg/utils"
)

// Dispatcher owns one request/response cycle: validate, select a backend,
// invoke it under the descriptor timeout, map the result into the schema
// envelope. It holds no mutable state across invocations beyond the
// selector's optional cache, so concurrent requests are independent.
//
// A failed backend is never retried against another backend within the same
// request; a failing backend mid-extraction may have had side effects, so
// retry is an operator decision.
type Dispatcher struct {
	config   *config.Config
	logger   *logger.Logger
	selector *backend.Selector
}

// NewDispatcher creates a dispatcher over an explicit selector
func NewDispatcher(cfg *config.Config, log *logger.Logger, selector *backend.Selector) *Dispatcher {
	return &Dispatcher{
		config:   cfg,
		logger:   log,
		selector: selector,
	}
}

// New wires the standard dispatcher: default strategies over the built-in
// library registry, selector in config order
func New(cfg *config.Config, log *logger.Logger) *Dispatcher {
	registry := library.NewDefaultRegistry()
	strategies := backend.DefaultStrategies(log, registry)
	selector := backend.NewSelector(cfg.Backends, strategies, log,
		time.Duration(cfg.SelectorCacheTTLMs)*time.Millisecond)
	return NewDispatcher(cfg, log, selector)
}

// Selector exposes the dispatcher's selector, used by the backends command
func (d *Dispatcher) Selector() *backend.Selector {
	return d.selector
}

// Dispatch routes a request to the operation it names. Unknown commands and
// empty paths are rejected here, before any backend is contacted.
func (d *Dispatcher) Dispatch(ctx context.Context, req schema.ExtractionRequest) (interface{}, error) {
	if err := req.Validate(); err != nil {
		return nil, utils.NewValidationError(err.Error(), nil)
	}
	switch req.Command {
	case types.CommandExtract:
		return d.Extract(ctx, req.SourcePath, req.Options)
	case types.CommandInfo:
		return d.Info(ctx, req.SourcePath)
	default:
		// Validate already rejected this; kept so the switch is total.
		return nil, utils.NewValidationError(fmt.Sprintf("unknown command %q", req.Command), nil)
	}
}

// Extract performs a full extraction and wraps the result in the response
// envelope
func (d *Dispatcher) Extract(ctx context.Context, sourcePath string, options map[string]string) (*schema.ExtractResponse, error) {
	if err := validateSourcePath(sourcePath); err != nil {
		return nil, err
	}

	strat, desc, err := d.selector.Select(ctx)
	if err != nil {
		d.logger.Error("Backend selection failed: %v", err)
		return nil, err
	}
	d.logger.Progress("🔍", "Extracting %s via %s", sourcePath, desc)

	callCtx, cancel := context.WithTimeout(ctx, desc.Timeout())
	defer cancel()

	start := time.Now()
	doc, err := strat.Extract(callCtx, desc, sourcePath, options)
	elapsed := elapsedMs(start)
	if err != nil {
		d.logFailure("extract", sourcePath, err)
		return nil, err
	}

	d.logger.Progress("✅", "Extraction completed in %dms (%d sections)", elapsed, len(doc.Sections))
	return &schema.ExtractResponse{
		Status:           schema.StatusSuccess,
		SourceFile:       sourcePath,
		ExtractionMethod: string(desc.Kind),
		ExtractedContent: *doc,
		ProcessingTimeMs: elapsed,
	}, nil
}

// Info performs the capability probe and wraps the result in the response
// envelope. A backend reporting can_process=false is a success, not a
// failure: unknown file types are the backend's call.
func (d *Dispatcher) Info(ctx context.Context, sourcePath string) (*schema.InfoResponse, error) {
	if err := validateSourcePath(sourcePath); err != nil {
		return nil, err
	}

	strat, desc, err := d.selector.Select(ctx)
	if err != nil {
		d.logger.Error("Backend selection failed: %v", err)
		return nil, err
	}
	d.logger.Progress("🔍", "Probing %s via %s", sourcePath, desc)

	callCtx, cancel := context.WithTimeout(ctx, desc.Timeout())
	defer cancel()

	res, err := strat.Info(callCtx, desc, sourcePath)
	if err != nil {
		d.logFailure("info", sourcePath, err)
		return nil, err
	}

	return &schema.InfoResponse{
		Status:     schema.StatusSuccess,
		SourceFile: sourcePath,
		InfoResult: *res,
	}, nil
}

// validateSourcePath is the only request validation beyond the command
// itself. Anything about the file's content or type is deferred to the
// backend.
func validateSourcePath(sourcePath string) error {
	if strings.TrimSpace(sourcePath) == "" {
		return utils.NewValidationError("source path cannot be empty", nil)
	}
	return nil
}

// logFailure records a classified backend failure; the cause sub-kind must
// stay distinguishable in logs
func (d *Dispatcher) logFailure(operation, sourcePath string, err error) {
	if kind, ok := utils.GetFailureKind(err); ok {
		d.logger.Error("Operation %s on %s failed (%s): %v", operation, sourcePath, kind, err)
		return
	}
	d.logger.Error("Operation %s on %s failed: %v", operation, sourcePath, err)
}

// elapsedMs measures wall-clock milliseconds; sub-millisecond calls round
// up so a successful call always reports time spent
func elapsedMs(start time.Time) int64 {
	ms := time.Since(start).Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return ms
}
