// Package pipeline turns gesture input into accented Vietnamese text by calling the gesture
// recognition service and then the accent correction service, strictly in that order.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/capstone/vsl/internal/apperr"
	"github.com/capstone/vsl/internal/inference"
)

// Status is the overall outcome of a pipeline run.
type Status string

const (
	StatusSuccess        Status = "Success"
	StatusPartialFailure Status = "PartialFailure"
	StatusFailure        Status = "Failure"
)

// Stage identifies the external service a failure is attributed to.
type Stage string

const (
	StageGesture    Stage = "gesture"
	StageCorrection Stage = "correction"
)

// Request is landmark input for one recognition.
type Request struct {
	Frames      []inference.Frame
	CurrentText string
}

// VideoRequest is a recorded gesture video for one recognition.
type VideoRequest struct {
	Video       io.Reader
	FileName    string
	CurrentText string
}

// Result is the outcome of a pipeline run. RawText is kept when the correction stage fails.
type Result struct {
	RawText       string `json:"raw_text"`
	CorrectedText string `json:"corrected_text"`
	Status        Status `json:"status"`
	FailedStage   Stage  `json:"failed_stage,omitempty"`
	Message       string `json:"message"`
}

type state int

const (
	awaitingGesture state = iota
	awaitingCorrection
	done
)

// Pipeline is stateless apart from its two clients and is safe for concurrent use.
type Pipeline struct {
	gesture inference.GestureRecognizer
	accent  inference.AccentCorrector
}

// New creates a Pipeline.
func New(gesture inference.GestureRecognizer, accent inference.AccentCorrector) *Pipeline {
	return &Pipeline{
		gesture: gesture,
		accent:  accent,
	}
}

// Process recognizes landmark frames and corrects the recognized text.
func (p *Pipeline) Process(ctx context.Context, req Request) (Result, error) {
	if len(req.Frames) == 0 {
		return invalid("frames cannot be empty")
	}
	return p.run(ctx, req.CurrentText, len(req.Frames), func(ctx context.Context) (string, error) {
		return p.gesture.RecognizeFrames(ctx, req.Frames, req.CurrentText)
	})
}

// ProcessVideo recognizes a gesture video and corrects the recognized text.
func (p *Pipeline) ProcessVideo(ctx context.Context, req VideoRequest) (Result, error) {
	if req.Video == nil {
		return invalid("video file is required")
	}
	return p.run(ctx, req.CurrentText, 0, func(ctx context.Context) (string, error) {
		return p.gesture.RecognizeVideo(ctx, req.Video, req.FileName)
	})
}

func (p *Pipeline) run(
	ctx context.Context,
	currentText string,
	frameCount int,
	recognize func(ctx context.Context) (string, error),
) (Result, error) {
	logger := slog.Default().With("request_id", uuid.NewString())
	logger.Info("processing gesture", "frames", frameCount, "current_text", currentText)

	var result Result
	current := awaitingGesture
	for {
		switch current {
		case awaitingGesture:
			start := time.Now()
			raw, err := recognize(ctx)
			raw = strings.TrimSpace(raw)
			if err == nil && raw == "" {
				err = errors.New("gesture service returned empty text")
			}
			if err != nil {
				return p.fail(ctx, logger, result, StageGesture, err)
			}
			logger.Info("gesture stage completed", "raw_text", raw, "elapsed", time.Since(start))
			result.RawText = raw
			current = awaitingCorrection

		case awaitingCorrection:
			start := time.Now()
			corrected, err := p.accent.AddAccents(ctx, result.RawText, currentText)
			corrected = strings.TrimSpace(corrected)
			if err == nil && corrected == "" {
				err = errors.New("accent service returned empty text")
			}
			if err != nil {
				return p.fail(ctx, logger, result, StageCorrection, err)
			}
			logger.Info("correction stage completed", "corrected_text", corrected, "elapsed", time.Since(start))
			result.CorrectedText = corrected
			current = done

		case done:
			result.Status = StatusSuccess
			result.Message = "Gesture recognition completed successfully"
			return result, nil
		}
	}
}

func (p *Pipeline) fail(ctx context.Context, logger *slog.Logger, result Result, stage Stage, err error) (Result, error) {
	result.FailedStage = stage
	result.Status = StatusFailure
	if stage == StageCorrection {
		result.Status = StatusPartialFailure
	}

	// The caller went away; nobody is left to report the stage failure to.
	if ctxErr := ctx.Err(); ctxErr != nil {
		result.Message = "request abandoned"
		logger.Debug("gesture request abandoned", "stage", stage, "error", err)
		return result, ctxErr
	}

	kind := apperr.GestureStageFailure
	result.Message = "Gesture recognition service is unavailable"
	if stage == StageCorrection {
		kind = apperr.CorrectionStageFailure
		result.Message = "Accent correction service is unavailable"
	}
	logger.Error("gesture pipeline failed", "stage", stage, "raw_text", result.RawText, "error", err)
	return result, apperr.New(kind, result.Message, err)
}

func invalid(message string) (Result, error) {
	return Result{Status: StatusFailure, Message: message}, apperr.New(apperr.InvalidInput, message, nil)
}
