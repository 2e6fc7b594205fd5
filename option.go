package approval

import (
	"github.com/sirupsen/logrus"
	"github.com/viant/afs"
	"github.com/viant/approval/internal/clock"
	"github.com/viant/approval/internal/idgen"
	"github.com/viant/approval/model"
	"github.com/viant/approval/runtime/instance"
	"github.com/viant/approval/service/dao"
	"github.com/viant/approval/service/directory"
	"github.com/viant/approval/service/document"
	"github.com/viant/approval/service/event"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option customises the engine.
type Option func(s *Service)

// WithConfig replaces the engine configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

// WithStore sets the instance store; the configured store driver is then ignored.
func WithStore(store dao.Service[string, instance.WorkflowInstance]) Option {
	return func(s *Service) { s.store = store }
}

// WithDefinitionStore sets the definition revision store.
func WithDefinitionStore(store dao.Service[string, model.WorkflowDefinition]) Option {
	return func(s *Service) { s.definitionStore = store }
}

// WithDocuments sets the document store. When it also serves forms it is used
// as the form source.
func WithDocuments(documents document.Store) Option {
	return func(s *Service) { s.documents = documents }
}

// WithForms sets the form source snapshotted at instance start.
func WithForms(forms document.Forms) Option {
	return func(s *Service) { s.forms = forms }
}

// WithDirectory sets the user directory used to resolve roles and departments.
func WithDirectory(dir directory.Directory) Option {
	return func(s *Service) { s.directory = dir }
}

// WithEventHandler registers the listener started by Runtime.Start.
func WithEventHandler(handler event.Handler[event.Detail]) Option {
	return func(s *Service) { s.eventHandler = handler }
}

// WithFS sets the storage service used for fs stores and definition files.
func WithFS(fs afs.Service) Option {
	return func(s *Service) { s.fs = fs }
}

func WithClock(now clock.Func) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGen(newID idgen.Func) Option {
	return func(s *Service) { s.newID = newID }
}

// WithLogger overrides the logger built from Config.Log.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithTracingExporter enables tracing with the supplied exporter.
func WithTracingExporter(exporter sdktrace.SpanExporter) Option {
	return func(s *Service) { s.tracingExporter = exporter }
}
