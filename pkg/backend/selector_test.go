package backend

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nodewee/doc-structurer/pkg/logger"
	"github.com/nodewee/doc-structurer/pkg/schema"
	"github.com/nodewee/doc-structurer/pkg/types"
	"github.com/nodewee/doc-structurer/pkg/utils"
)

// fakeStrategy is a scriptable strategy used across the package tests
type fakeStrategy struct {
	kind         types.BackendKind
	probeErr     func() error
	probeCalls   atomic.Int32
	extractCalls atomic.Int32

	doc        *schema.ExtractedDocument
	extractErr error
}

func (f *fakeStrategy) Kind() types.BackendKind { return f.kind }

func (f *fakeStrategy) Probe(ctx context.Context, desc types.BackendDescriptor) error {
	f.probeCalls.Add(1)
	if f.probeErr != nil {
		return f.probeErr()
	}
	return nil
}

func (f *fakeStrategy) Extract(ctx context.Context, desc types.BackendDescriptor, sourcePath string, options map[string]string) (*schema.ExtractedDocument, error) {
	f.extractCalls.Add(1)
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	doc := f.doc
	if doc == nil {
		doc = &schema.ExtractedDocument{Text: "ok"}
	}
	doc.Normalize()
	return doc, nil
}

func (f *fakeStrategy) Info(ctx context.Context, desc types.BackendDescriptor, sourcePath string) (*schema.InfoResult, error) {
	return &schema.InfoResult{FileType: "txt", CanProcess: true, EstimatedPages: 1, EstimatedProcessingTimeMs: 5}, nil
}

func testLogger() *logger.Logger {
	return logger.NewLoggerTo(io.Discard, "error", false)
}

func failingProbe(kind utils.FailureKind, msg string) func() error {
	return func() error {
		return utils.NewBackendError(kind, "test", msg, nil)
	}
}

func descriptor(kind types.BackendKind, endpoint string) types.BackendDescriptor {
	return types.BackendDescriptor{Kind: kind, Endpoint: endpoint, TimeoutMs: 1000}
}

func TestSelectPrefersDeclaredOrder(t *testing.T) {
	first := &fakeStrategy{kind: types.BackendSubprocess}
	second := &fakeStrategy{kind: types.BackendEmbedded}
	sel := NewSelector(
		[]types.BackendDescriptor{
			descriptor(types.BackendSubprocess, "conv"),
			descriptor(types.BackendEmbedded, "native"),
		},
		StrategySet{types.BackendSubprocess: first, types.BackendEmbedded: second},
		testLogger(), 0,
	)

	strat, desc, err := sel.Select(context.Background())
	if err != nil {
		t.Fatalf("Select() = %v", err)
	}
	if strat != first || desc.Kind != types.BackendSubprocess {
		t.Errorf("selected %s, want first declared backend", desc)
	}
	// The winner's probe ends the walk.
	if second.probeCalls.Load() != 0 {
		t.Errorf("second backend probed %d times, want 0", second.probeCalls.Load())
	}
}

func TestSelectFallsThroughOnProbeFailure(t *testing.T) {
	first := &fakeStrategy{
		kind:     types.BackendSubprocess,
		probeErr: failingProbe(utils.FailureUnreachable, "binary missing"),
	}
	second := &fakeStrategy{kind: types.BackendEmbedded}
	sel := NewSelector(
		[]types.BackendDescriptor{
			descriptor(types.BackendSubprocess, "conv"),
			descriptor(types.BackendEmbedded, "native"),
		},
		StrategySet{types.BackendSubprocess: first, types.BackendEmbedded: second},
		testLogger(), 0,
	)

	strat, desc, err := sel.Select(context.Background())
	if err != nil {
		t.Fatalf("Select() = %v", err)
	}
	if strat != second || desc.Kind != types.BackendEmbedded {
		t.Errorf("selected %s, want fallback backend", desc)
	}
}

func TestSelectDeterministicWithoutCache(t *testing.T) {
	first := &fakeStrategy{kind: types.BackendSubprocess}
	sel := NewSelector(
		[]types.BackendDescriptor{descriptor(types.BackendSubprocess, "conv")},
		StrategySet{types.BackendSubprocess: first},
		testLogger(), 0,
	)

	for i := 0; i < 3; i++ {
		if _, _, err := sel.Select(context.Background()); err != nil {
			t.Fatalf("Select() #%d = %v", i, err)
		}
	}
	// With the cache disabled every request walks the list from the top.
	if got := first.probeCalls.Load(); got != 3 {
		t.Errorf("probe calls = %d, want 3", got)
	}
}

func TestSelectAllUnavailable(t *testing.T) {
	first := &fakeStrategy{
		kind:     types.BackendSubprocess,
		probeErr: failingProbe(utils.FailureUnreachable, "binary missing"),
	}
	second := &fakeStrategy{
		kind:     types.BackendRemote,
		probeErr: failingProbe(utils.FailureUnreachable, "connection refused"),
	}
	sel := NewSelector(
		[]types.BackendDescriptor{
			descriptor(types.BackendSubprocess, "conv"),
			descriptor(types.BackendRemote, "http://conv:8080"),
		},
		StrategySet{types.BackendSubprocess: first, types.BackendRemote: second},
		testLogger(), 0,
	)

	_, _, err := sel.Select(context.Background())
	if err == nil {
		t.Fatal("Select() should fail when every probe fails")
	}
	if utils.GetErrorType(err) != utils.ErrorTypeNoBackend {
		t.Errorf("error type = %q, want %q", utils.GetErrorType(err), utils.ErrorTypeNoBackend)
	}
	// The error must name every candidate that was tried.
	for _, want := range []string{"subprocess(conv)", "remote(http://conv:8080)", "binary missing", "connection refused"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestSelectCacheReusesBackend(t *testing.T) {
	first := &fakeStrategy{kind: types.BackendSubprocess}
	second := &fakeStrategy{kind: types.BackendEmbedded}
	sel := NewSelector(
		[]types.BackendDescriptor{
			descriptor(types.BackendSubprocess, "conv"),
			descriptor(types.BackendEmbedded, "native"),
		},
		StrategySet{types.BackendSubprocess: first, types.BackendEmbedded: second},
		testLogger(), time.Minute,
	)

	for i := 0; i < 3; i++ {
		_, desc, err := sel.Select(context.Background())
		if err != nil {
			t.Fatalf("Select() #%d = %v", i, err)
		}
		if desc.Kind != types.BackendSubprocess {
			t.Errorf("Select() #%d picked %s", i, desc)
		}
	}
	// The cached backend is still re-probed every request.
	if got := first.probeCalls.Load(); got != 3 {
		t.Errorf("probe calls = %d, want 3", got)
	}
	if second.probeCalls.Load() != 0 {
		t.Errorf("fallback probed %d times, want 0", second.probeCalls.Load())
	}
}

func TestSelectCacheFallsThroughWhenCachedFails(t *testing.T) {
	var failNow atomic.Bool
	first := &fakeStrategy{kind: types.BackendSubprocess}
	first.probeErr = func() error {
		if failNow.Load() {
			return utils.NewBackendError(utils.FailureUnreachable, "test", "binary vanished", nil)
		}
		return nil
	}
	second := &fakeStrategy{kind: types.BackendEmbedded}
	sel := NewSelector(
		[]types.BackendDescriptor{
			descriptor(types.BackendSubprocess, "conv"),
			descriptor(types.BackendEmbedded, "native"),
		},
		StrategySet{types.BackendSubprocess: first, types.BackendEmbedded: second},
		testLogger(), time.Minute,
	)

	if _, desc, err := sel.Select(context.Background()); err != nil || desc.Kind != types.BackendSubprocess {
		t.Fatalf("warmup Select() = %s, %v", desc, err)
	}

	failNow.Store(true)
	_, desc, err := sel.Select(context.Background())
	if err != nil {
		t.Fatalf("Select() after cached failure = %v", err)
	}
	if desc.Kind != types.BackendEmbedded {
		t.Errorf("selected %s, want fallback after cached probe failure", desc)
	}

	// The failed candidate is not re-probed during the same walk.
	if got := first.probeCalls.Load(); got != 2 {
		t.Errorf("first backend probe calls = %d, want 2", got)
	}
}

func TestSelectMissingStrategy(t *testing.T) {
	sel := NewSelector(
		[]types.BackendDescriptor{descriptor(types.BackendRemote, "http://conv:8080")},
		StrategySet{}, testLogger(), 0,
	)
	_, _, err := sel.Select(context.Background())
	if err == nil || !strings.Contains(err.Error(), "no strategy for kind") {
		t.Errorf("Select() = %v, want missing-strategy failure", err)
	}
	if !errors.Is(err, &utils.AppError{Type: utils.ErrorTypeNoBackend}) {
		t.Errorf("error should classify as no_backend: %v", err)
	}
}
