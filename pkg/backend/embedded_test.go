package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nodewee/doc-structurer/pkg/library"
	"github.com/nodewee/doc-structurer/pkg/schema"
	"github.com/nodewee/doc-structurer/pkg/types"
	"github.com/nodewee/doc-structurer/pkg/utils"
)

// fakeLibrary is a scriptable in-process library
type fakeLibrary struct {
	name    string
	convert func(ctx context.Context) (*schema.ExtractedDocument, error)
	inspect func(ctx context.Context) (*schema.InfoResult, error)
}

func (f *fakeLibrary) Name() string { return f.name }

func (f *fakeLibrary) Convert(ctx context.Context, sourcePath string, options map[string]string) (*schema.ExtractedDocument, error) {
	return f.convert(ctx)
}

func (f *fakeLibrary) Inspect(ctx context.Context, sourcePath string) (*schema.InfoResult, error) {
	if f.inspect != nil {
		return f.inspect(ctx)
	}
	return &schema.InfoResult{FileType: "txt", CanProcess: true, EstimatedPages: 1, EstimatedProcessingTimeMs: 5}, nil
}

func registryWith(lib *fakeLibrary) *library.Registry {
	r := library.NewRegistry()
	r.Register(lib.name, lib)
	return r
}

func embeddedDesc(endpoint string, timeoutMs int) types.BackendDescriptor {
	return types.BackendDescriptor{Kind: types.BackendEmbedded, Endpoint: endpoint, TimeoutMs: timeoutMs}
}

func TestEmbeddedProbe(t *testing.T) {
	lib := &fakeLibrary{name: "fast"}
	strat := NewEmbeddedStrategy(testLogger(), registryWith(lib))

	if err := strat.Probe(context.Background(), embeddedDesc("fast", 1000)); err != nil {
		t.Errorf("Probe() = %v, want nil for a registered library", err)
	}

	err := strat.Probe(context.Background(), embeddedDesc("missing", 1000))
	if err == nil {
		t.Fatal("Probe() should fail for an unregistered endpoint")
	}
	if kind, _ := utils.GetFailureKind(err); kind != utils.FailureUnreachable {
		t.Errorf("failure kind = %q, want %q", kind, utils.FailureUnreachable)
	}
}

func TestEmbeddedExtractSuccess(t *testing.T) {
	lib := &fakeLibrary{
		name: "fast",
		convert: func(ctx context.Context) (*schema.ExtractedDocument, error) {
			return &schema.ExtractedDocument{
				Text:     "body",
				Sections: []schema.Section{{Heading: "One", Content: "body"}},
				Metadata: schema.DocumentMetadata{PageCount: 1, WordCount: 1},
			}, nil
		},
	}
	strat := NewEmbeddedStrategy(testLogger(), registryWith(lib))

	doc, err := strat.Extract(context.Background(), embeddedDesc("fast", 1000), "doc.txt", nil)
	if err != nil {
		t.Fatalf("Extract() = %v", err)
	}
	if len(doc.Sections) != 1 || doc.Tables == nil || doc.Figures == nil {
		t.Errorf("document = %+v, want normalized result", doc)
	}
}

func TestEmbeddedExtractTimeout(t *testing.T) {
	lib := &fakeLibrary{
		name: "slow",
		convert: func(ctx context.Context) (*schema.ExtractedDocument, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	strat := NewEmbeddedStrategy(testLogger(), registryWith(lib))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := strat.Extract(ctx, embeddedDesc("slow", 30), "doc.txt", nil)
	if err == nil {
		t.Fatal("Extract() should fail when the deadline expires")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Extract() blocked for %s past the deadline", elapsed)
	}
	if kind, _ := utils.GetFailureKind(err); kind != utils.FailureTimeout {
		t.Errorf("failure kind = %q, want %q", kind, utils.FailureTimeout)
	}
	if utils.GetErrorType(err) != utils.ErrorTypeBackend {
		t.Errorf("error type = %q, want %q", utils.GetErrorType(err), utils.ErrorTypeBackend)
	}
}

func TestEmbeddedExtractMalformedResult(t *testing.T) {
	lib := &fakeLibrary{
		name: "broken",
		convert: func(ctx context.Context) (*schema.ExtractedDocument, error) {
			return &schema.ExtractedDocument{
				Metadata: schema.DocumentMetadata{PageCount: -1},
			}, nil
		},
	}
	strat := NewEmbeddedStrategy(testLogger(), registryWith(lib))

	_, err := strat.Extract(context.Background(), embeddedDesc("broken", 1000), "doc.txt", nil)
	if err == nil {
		t.Fatal("Extract() should reject a contract-violating result")
	}
	if kind, _ := utils.GetFailureKind(err); kind != utils.FailureMalformedOutput {
		t.Errorf("failure kind = %q, want %q", kind, utils.FailureMalformedOutput)
	}
}

func TestEmbeddedExtractLibraryError(t *testing.T) {
	lib := &fakeLibrary{
		name: "failing",
		convert: func(ctx context.Context) (*schema.ExtractedDocument, error) {
			return nil, errors.New("corrupt input")
		},
	}
	strat := NewEmbeddedStrategy(testLogger(), registryWith(lib))

	_, err := strat.Extract(context.Background(), embeddedDesc("failing", 1000), "doc.txt", nil)
	if err == nil {
		t.Fatal("Extract() should surface library failures")
	}
	if kind, _ := utils.GetFailureKind(err); kind != utils.FailureNonZeroExit {
		t.Errorf("failure kind = %q, want %q", kind, utils.FailureNonZeroExit)
	}
}

func TestEmbeddedExtractLibraryPanic(t *testing.T) {
	lib := &fakeLibrary{
		name: "panicky",
		convert: func(ctx context.Context) (*schema.ExtractedDocument, error) {
			panic("index out of range")
		},
	}
	strat := NewEmbeddedStrategy(testLogger(), registryWith(lib))

	_, err := strat.Extract(context.Background(), embeddedDesc("panicky", 1000), "doc.txt", nil)
	if err == nil {
		t.Fatal("Extract() should convert a library panic into an error")
	}
	if utils.GetErrorType(err) != utils.ErrorTypeBackend {
		t.Errorf("error type = %q, want %q", utils.GetErrorType(err), utils.ErrorTypeBackend)
	}
}

func TestEmbeddedInfo(t *testing.T) {
	lib := &fakeLibrary{
		name: "fast",
		inspect: func(ctx context.Context) (*schema.InfoResult, error) {
			return &schema.InfoResult{FileType: "docx", CanProcess: false, EstimatedPages: 3, EstimatedProcessingTimeMs: 300}, nil
		},
	}
	strat := NewEmbeddedStrategy(testLogger(), registryWith(lib))

	res, err := strat.Info(context.Background(), embeddedDesc("fast", 1000), "contract.docx")
	if err != nil {
		t.Fatalf("Info() = %v", err)
	}
	// can_process=false is a valid answer, not a failure.
	if res.CanProcess || res.FileType != "docx" {
		t.Errorf("result = %+v", res)
	}
}
