package proctor

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"proctoring/internal/violation"
)

type fakeSource struct {
	ready bool
	frame Frame
	err   error
}

func (f *fakeSource) Ready() bool { return f.ready }
func (f *fakeSource) Grab() (Frame, error) {
	return f.frame, f.err
}

type fakeDetector struct {
	results [][]Detection
	errs    []error
	calls   int
}

func (f *fakeDetector) Detect(_ context.Context, _ Frame) ([]Detection, error) {
	i := f.calls
	f.calls++
	var res []Detection
	var err error
	if i < len(f.results) {
		res = f.results[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return res, err
}

func collectLoop(source FrameSource, det ObjectDetector) (*DetectionLoop, *[]violation.Type) {
	var got []violation.Type
	loop := NewDetectionLoop(source, det, 0, func(t violation.Type) {
		got = append(got, t)
	}, slog.Default())
	return loop, &got
}

func TestDetectionLoop_SkipsWhenSourceNotReady(t *testing.T) {
	det := &fakeDetector{}
	loop, got := collectLoop(&fakeSource{ready: false}, det)

	loop.tick(context.Background())

	assert.Empty(t, *got)
	assert.Zero(t, det.calls)
}

func TestDetectionLoop_NoFaceOncePerTick(t *testing.T) {
	src := &fakeSource{ready: true, frame: Frame{Width: 640, Height: 480}}
	det := &fakeDetector{results: [][]Detection{{{Label: "chair", Score: 0.9}}}}
	loop, got := collectLoop(src, det)

	loop.tick(context.Background())

	// One noFace for the whole frame, not one per missing detection.
	assert.Equal(t, []violation.Type{violation.NoFace}, *got)
}

func TestDetectionLoop_MultiplePersons(t *testing.T) {
	src := &fakeSource{ready: true, frame: Frame{Width: 640, Height: 480}}
	det := &fakeDetector{results: [][]Detection{{
		{Label: "person", Score: 0.95},
		{Label: "person", Score: 0.90},
		{Label: "person", Score: 0.80},
	}}}
	loop, got := collectLoop(src, det)

	loop.tick(context.Background())

	// First person is the examinee; each extra person classifies.
	assert.Equal(t, []violation.Type{violation.MultipleFace, violation.MultipleFace}, *got)
}

func TestDetectionLoop_ObjectLabels(t *testing.T) {
	src := &fakeSource{ready: true, frame: Frame{Width: 640, Height: 480}}
	det := &fakeDetector{results: [][]Detection{{
		{Label: "person", Score: 0.95},
		{Label: "cell phone", Score: 0.85},
		{Label: "book", Score: 0.75},
	}}}
	loop, got := collectLoop(src, det)

	loop.tick(context.Background())

	assert.Equal(t, []violation.Type{violation.CellPhone, violation.ProhibitedObject}, *got)
}

func TestDetectionLoop_InferenceErrorDoesNotStopLoop(t *testing.T) {
	src := &fakeSource{ready: true, frame: Frame{Width: 640, Height: 480}}
	det := &fakeDetector{
		results: [][]Detection{nil, {{Label: "cell phone", Score: 0.9}, {Label: "person", Score: 0.9}}},
		errs:    []error{errors.New("model timeout"), nil},
	}
	loop, got := collectLoop(src, det)

	loop.tick(context.Background()) // fails, swallowed
	assert.Empty(t, *got)

	loop.tick(context.Background()) // next tick proceeds normally
	assert.Equal(t, []violation.Type{violation.CellPhone}, *got)
}

func TestDetectionLoop_GrabErrorSkipsTick(t *testing.T) {
	src := &fakeSource{ready: true, err: errors.New("camera busy")}
	det := &fakeDetector{}
	loop, got := collectLoop(src, det)

	loop.tick(context.Background())

	assert.Empty(t, *got)
	assert.Zero(t, det.calls)
}

func TestDetectionLoop_RunStopsOnCancel(t *testing.T) {
	src := &fakeSource{ready: false}
	loop, _ := collectLoop(src, &fakeDetector{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()
	cancel()
	<-done
}
