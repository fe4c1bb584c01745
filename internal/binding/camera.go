package binding

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/afroash/buffet-monitor/internal/alert"
	"github.com/afroash/buffet-monitor/internal/cache"
	"github.com/afroash/buffet-monitor/internal/models"
	"github.com/afroash/buffet-monitor/internal/remote"
	"github.com/afroash/buffet-monitor/internal/vision"
)

// badFoodMessage is the warning emitted when the verdict is unsafe.
const badFoodMessage = "Remove the food from the tray NOW!"

// verdictPromptTemplate embeds the three forwarded metrics and asks for
// a bare yes/no. Humidity is deliberately not part of the prompt.
const verdictPromptTemplate = `
The raw food in a buffet has the following sensor readings:
- CO2: %.0f ppm
- VOC: %.0f ppb
- Temperature: %.1f°C

Based solely on these values and the image provided, is the food safe to consume?

Reply only with "Yes" or "No" — no explanations or other text.
`

// pipelineState tracks where a single verdict run is. Each photo
// submission is an independent run; concurrent submissions do not share
// state.
type pipelineState string

const (
	stateIdle               pipelineState = "idle"
	stateEvaluating         pipelineState = "evaluating"
	stateAlertRaised        pipelineState = "alert_raised"
	stateActuationRequested pipelineState = "actuation_requested"
)

// VerdictPipeline combines a submitted photo with the most recent
// cached reading, obtains a safety verdict, and on an unsafe verdict
// raises an alert and requests a remote shutdown.
type VerdictPipeline struct {
	thingID   string
	cache     *cache.SensorCache
	verdicter vision.Verdicter
	actuator  remote.Actuator
	alerts    alert.Channel
	logger    zerolog.Logger
}

// NewVerdictPipeline creates a pipeline for the given camera thing.
func NewVerdictPipeline(
	thingID string,
	sensorCache *cache.SensorCache,
	verdicter vision.Verdicter,
	actuator remote.Actuator,
	alerts alert.Channel,
	logger zerolog.Logger,
) *VerdictPipeline {
	return &VerdictPipeline{
		thingID:   thingID,
		cache:     sensorCache,
		verdicter: verdicter,
		actuator:  actuator,
		alerts:    alerts,
		logger:    logger.With().Str("thing_id", thingID).Logger(),
	}
}

// Run evaluates one photo. It returns the verdict, or nil with no error
// when the vision service answered with empty text (the run aborts with
// no action either way). A vision failure aborts the run with no alert
// and no actuation.
func (p *VerdictPipeline) Run(ctx context.Context, base64Image string) (*models.Verdict, error) {
	state := stateEvaluating
	p.logger.Debug().Str("state", string(state)).Msg("Verdict pipeline started")

	reading := p.cache.Latest()
	if reading == nil {
		p.logger.Warn().Msg("No cached reading available, evaluating with zero metrics")
		reading = &models.SensorReading{}
	}

	prompt := fmt.Sprintf(verdictPromptTemplate, reading.CO2, reading.TVOC, reading.Temperature)

	answer, err := p.verdicter.Evaluate(ctx, prompt, base64Image)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerdict, err)
	}

	normalized := strings.ToLower(strings.TrimSpace(answer))
	if normalized == "" {
		p.logger.Error().Msg("Vision service returned an empty verdict")
		return nil, nil
	}

	if normalized == "yes" {
		state = stateIdle
		p.logger.Info().Str("verdict", answer).Str("state", string(state)).Msg("Food judged safe")
		return &models.Verdict{Safe: true, RawText: answer}, nil
	}

	state = stateAlertRaised
	p.logger.Warn().Str("verdict", answer).Str("state", string(state)).Msg("Food judged unsafe")

	if err := p.alerts.Emit(models.NewEvent(p.thingID, models.EventBadFood, badFoodMessage)); err != nil {
		p.logger.Error().Err(err).Msg("Failed to emit bad food alert")
	}

	state = stateActuationRequested
	p.logger.Info().Str("state", string(state)).Msg("Requesting remote buffet shutdown")

	// Fire-and-forget: the run does not wait for the shutdown request,
	// but its outcome is still observed in the log.
	go func() {
		if err := p.actuator.InvokeCloseAction(context.Background()); err != nil {
			p.logger.Error().Err(err).Msg("Remote close action failed")
		}
	}()

	return &models.Verdict{Safe: false, RawText: answer}, nil
}

// CamBinding implements the photo-intake surface of a camera thing.
type CamBinding struct {
	thing    *models.Thing
	pipeline *VerdictPipeline
	logger   zerolog.Logger
}

// NewCamBinding creates the binding around its verdict pipeline.
func NewCamBinding(thing *models.Thing, pipeline *VerdictPipeline, logger zerolog.Logger) *CamBinding {
	return &CamBinding{
		thing:    thing,
		pipeline: pipeline,
		logger:   logger.With().Str("thing_id", thing.ID).Logger(),
	}
}

// Thing returns the bound thing definition.
func (b *CamBinding) Thing() *models.Thing {
	return b.thing
}

// SubmitPhoto runs the verdict pipeline for one encoded photo. No
// caller waits on the outcome; pipeline failures are logged and
// absorbed here.
func (b *CamBinding) SubmitPhoto(ctx context.Context, base64Image string) {
	verdict, err := b.pipeline.Run(ctx, base64Image)
	if err != nil {
		b.logger.Error().Err(err).Msg("Verdict pipeline failed")
		return
	}
	if verdict == nil {
		return
	}
	b.logger.Info().Bool("safe", verdict.Safe).Msg("Photo evaluated")
}
