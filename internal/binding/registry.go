package binding

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/afroash/buffet-monitor/internal/alert"
	"github.com/afroash/buffet-monitor/internal/cache"
	"github.com/afroash/buffet-monitor/internal/models"
	"github.com/afroash/buffet-monitor/internal/remote"
	"github.com/afroash/buffet-monitor/internal/storage"
	"github.com/afroash/buffet-monitor/internal/vision"
)

// Deps bundles the collaborators shared by all bindings.
type Deps struct {
	Cache     *cache.SensorCache
	Store     storage.Store
	Sink      IngestSink
	Sensor    remote.SensorReader
	Actuator  remote.Actuator
	Verdicter vision.Verdicter
	Alerts    alert.Channel
	Health    HealthStrategy
	Logger    zerolog.Logger
}

// Registry maps each registered thing to its binding. The binding type
// is chosen once at registration; requests are dispatched by thing id
// with no per-request type inspection.
type Registry struct {
	deps      Deps
	analyzers map[string]*AnalyzerBinding
	cams      map[string]*CamBinding
}

// NewRegistry creates an empty registry.
func NewRegistry(deps Deps) *Registry {
	return &Registry{
		deps:      deps,
		analyzers: make(map[string]*AnalyzerBinding),
		cams:      make(map[string]*CamBinding),
	}
}

// Register binds a thing to the handler set matching its device type.
// A thing of unknown type is rejected, not silently skipped.
func (r *Registry) Register(thing *models.Thing) error {
	switch thing.Type {
	case models.DeviceTypeAnalyzer:
		r.analyzers[thing.ID] = NewAnalyzerBinding(
			thing,
			r.deps.Cache,
			r.deps.Store,
			r.deps.Sink,
			r.deps.Sensor,
			r.deps.Actuator,
			r.deps.Alerts,
			r.deps.Health,
			r.deps.Logger,
		)
	case models.DeviceTypeCamera:
		pipeline := NewVerdictPipeline(
			thing.ID,
			r.deps.Cache,
			r.deps.Verdicter,
			r.deps.Actuator,
			r.deps.Alerts,
			r.deps.Logger,
		)
		r.cams[thing.ID] = NewCamBinding(thing, pipeline, r.deps.Logger)
	default:
		return fmt.Errorf("cannot register thing %s: unknown device type %q", thing.ID, thing.Type)
	}

	r.deps.Logger.Info().
		Str("thing_id", thing.ID).
		Str("title", thing.Title).
		Str("type", string(thing.Type)).
		Msg("Thing registered")

	return nil
}

// Analyzer returns the analyzer binding for a thing id.
func (r *Registry) Analyzer(thingID string) (*AnalyzerBinding, bool) {
	b, ok := r.analyzers[thingID]
	return b, ok
}

// Cam returns the camera binding for a thing id.
func (r *Registry) Cam(thingID string) (*CamBinding, bool) {
	b, ok := r.cams[thingID]
	return b, ok
}

// Analyzers returns all registered analyzer bindings.
func (r *Registry) Analyzers() []*AnalyzerBinding {
	bindings := make([]*AnalyzerBinding, 0, len(r.analyzers))
	for _, b := range r.analyzers {
		bindings = append(bindings, b)
	}
	return bindings
}

// Cams returns all registered camera bindings.
func (r *Registry) Cams() []*CamBinding {
	bindings := make([]*CamBinding, 0, len(r.cams))
	for _, b := range r.cams {
		bindings = append(bindings, b)
	}
	return bindings
}
