package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/palmrest/internal/detector"
	"github.com/ayusman/palmrest/internal/events"
	"github.com/ayusman/palmrest/internal/gesture"
	"github.com/ayusman/palmrest/internal/render"
	"github.com/ayusman/palmrest/internal/server"
)

// ErrDetection wraps landmark extraction failures. The frame is skipped.
var ErrDetection = errors.New("landmark detection failed")

const publishTimeout = 2 * time.Second

var _ server.Processor = (*Pipeline)(nil)

// PipelineConfig holds the collaborators of one stream's pipeline.
type PipelineConfig struct {
	StreamID    string
	Detector    detector.Detector
	Thresholds  gesture.Thresholds
	JPEGQuality int
	Events      events.Publisher // nil disables events
	Clock       gesture.Clock    // nil uses the wall clock
	Logger      logrus.FieldLogger
}

// Pipeline turns camera frames into annotated JPEGs for a single stream.
// It owns the stream's classifier and timer, so state never leaks between streams.
//
// Per frame:
//  1. Extract landmarks
//  2. Classify palming with hysteresis
//  3. Advance the session timer, announcing start and end of rest periods
//  4. Draw the status and encode
type Pipeline struct {
	streamID   string
	detector   detector.Detector
	classifier *gesture.Classifier
	timer      *gesture.Timer
	renderer   *render.Renderer
	events     events.Publisher
	clock      gesture.Clock
	log        logrus.FieldLogger
	last       gesture.Status
}

// NewPipeline creates a Pipeline in the idle state.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Clock == nil {
		cfg.Clock = gesture.RealClock{}
	}
	if cfg.Events == nil {
		cfg.Events = events.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	return &Pipeline{
		streamID:   cfg.StreamID,
		detector:   cfg.Detector,
		classifier: gesture.NewClassifier(cfg.Thresholds, cfg.Clock),
		timer:      gesture.NewTimer(cfg.Clock),
		renderer:   render.New(cfg.JPEGQuality),
		events:     cfg.Events,
		clock:      cfg.Clock,
		log:        cfg.Logger.WithField("stream_id", cfg.StreamID),
	}
}

// Process runs one frame through the pipeline. The frame is annotated in place.
// On detection failure the classifier and timer are left untouched.
func (p *Pipeline) Process(ctx context.Context, frame *gocv.Mat) ([]byte, gesture.Status, error) {
	lm, err := p.detector.Detect(frame)
	if err != nil {
		return nil, p.last, fmt.Errorf("%w: %v", ErrDetection, err)
	}

	status := p.Observe(ctx, lm)

	data, err := p.renderer.Render(frame, status)
	if err != nil {
		return nil, status, err
	}
	return data, status, nil
}

// Observe feeds landmarks through the classifier and timer and returns the new status.
func (p *Pipeline) Observe(ctx context.Context, lm detector.Landmarks) gesture.Status {
	res := p.classifier.Update(lm)
	tick := p.timer.Update(res.Palming)

	switch tick.Transition {
	case gesture.Started:
		p.log.Info("rest started")
		p.publish(ctx, events.RestStarted, 0)
	case gesture.Ended:
		p.log.WithField("duration_s", tick.Seconds).Info("rest ended")
		p.publish(ctx, events.RestEnded, tick.Seconds)
	}

	p.last = gesture.Status{Palming: res.Palming, Warning: res.Warning}
	if res.Palming {
		p.last.Seconds = tick.Seconds
	}
	return p.last
}

// Status returns the status of the last observed frame.
func (p *Pipeline) Status() gesture.Status {
	return p.last
}

// Finish closes out a rest period that was still running when the stream ended.
func (p *Pipeline) Finish(ctx context.Context) {
	if !p.timer.Active() {
		return
	}
	tick := p.timer.Update(false)
	p.log.WithField("duration_s", tick.Seconds).Info("rest ended with stream")
	p.publish(ctx, events.RestEnded, tick.Seconds)
	p.classifier.Reset()
	p.last = gesture.Status{}
}

func (p *Pipeline) publish(ctx context.Context, kind events.Kind, seconds int) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	ev := events.Event{
		Kind:      kind,
		StreamID:  p.streamID,
		Seconds:   seconds,
		Timestamp: p.clock.Now(),
	}
	if err := p.events.Publish(ctx, ev); err != nil {
		p.log.WithError(err).WithField("event", kind).Warn("publish rest event")
	}
}
