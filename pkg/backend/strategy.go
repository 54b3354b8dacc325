package backend

import (
	"context"

	"github.com/nodewee/doc-structurer/pkg/library"
	"github.com/nodewee/doc-structurer/pkg/logger"
	"github.com/nodewee/doc-structurer/pkg/schema"
	"github.com/nodewee/doc-structurer/pkg/types"
)

// Strategy is the polymorphic execution unit behind one backend kind. All
// three variants produce the same logical schema regardless of transport;
// failures are always a *utils.BackendError with a classified cause kind,
// never a transport-specific error.
type Strategy interface {
	// Kind returns the backend variant this strategy implements
	Kind() types.BackendKind

	// Probe answers a lightweight availability check within the context
	// deadline. A nil error means the backend can be selected.
	Probe(ctx context.Context, desc types.BackendDescriptor) error

	// Extract performs a full extraction through this backend
	Extract(ctx context.Context, desc types.BackendDescriptor, sourcePath string, options map[string]string) (*schema.ExtractedDocument, error)

	// Info performs the cheap capability/estimate query
	Info(ctx context.Context, desc types.BackendDescriptor, sourcePath string) (*schema.InfoResult, error)
}

// StrategySet maps backend kinds to their strategy implementations
type StrategySet map[types.BackendKind]Strategy

// DefaultStrategies builds the standard set: subprocess, embedded (backed by
// the given library registry) and remote
func DefaultStrategies(log *logger.Logger, registry *library.Registry) StrategySet {
	return StrategySet{
		types.BackendSubprocess: NewSubprocessStrategy(log),
		types.BackendEmbedded:   NewEmbeddedStrategy(log, registry),
		types.BackendRemote:     NewRemoteStrategy(log),
	}
}
