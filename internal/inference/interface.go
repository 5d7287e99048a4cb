package inference

import (
	"context"
	"io"
)

//go:generate mockgen -source=interface.go -destination=../mocks/inference/mock_client.go -package=mock_inference

// GestureRecognizer turns gesture input into raw, unaccented text.
type GestureRecognizer interface {
	RecognizeFrames(ctx context.Context, frames []Frame, currentText string) (string, error)
	RecognizeVideo(ctx context.Context, video io.Reader, fileName string) (string, error)
}

// AccentCorrector restores Vietnamese diacritics in raw text.
type AccentCorrector interface {
	AddAccents(ctx context.Context, text string, currentText string) (string, error)
}

// Landmark is a single 3D hand landmark point.
type Landmark struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Frame is one captured frame of hand landmarks.
type Frame struct {
	Landmarks []Landmark `json:"landmarks" validate:"required,min=1"`
}
