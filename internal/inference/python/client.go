// Package python contains clients for the Python inference services: the gesture
// recognition model and the accent correction model.
package python

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/capstone/vsl/internal/caller"
	"github.com/capstone/vsl/internal/inference"
)

const (
	predictGesturePath = "/predict-gesture"
	addAccentsPath     = "/add-accents"
)

var errEmptyText = errors.New(`response has no "text"`)

// GestureRequest is the structured landmark payload for the gesture model.
type GestureRequest struct {
	Frames      []inference.Frame `json:"frames"`
	CurrentText string            `json:"current_text,omitempty"`
}

// AccentRequest is the payload for the accent correction model.
type AccentRequest struct {
	Text        string `json:"text"`
	CurrentText string `json:"current_text,omitempty"`
}

// TextResponse is returned by both models.
type TextResponse struct {
	Text string `json:"text"`
}

// GestureClient calls POST {base}/predict-gesture.
type GestureClient struct {
	caller *caller.Caller
}

var _ inference.GestureRecognizer = (*GestureClient)(nil)

// NewGestureClient creates a GestureClient.
func NewGestureClient(c *caller.Caller) *GestureClient {
	return &GestureClient{caller: c}
}

// RecognizeFrames sends landmark frames and returns the recognized text, trimmed.
func (client *GestureClient) RecognizeFrames(ctx context.Context, frames []inference.Frame, currentText string) (string, error) {
	var response TextResponse
	if _, err := client.caller.Call(ctx, caller.Request{
		Method: http.MethodPost,
		Path:   predictGesturePath,
		Body: GestureRequest{
			Frames:      frames,
			CurrentText: currentText,
		},
	}, &response); err != nil {
		return "", fmt.Errorf("predict gesture: %w", err)
	}
	return client.text(response)
}

// RecognizeVideo uploads a gesture video as the multipart field "file".
func (client *GestureClient) RecognizeVideo(ctx context.Context, video io.Reader, fileName string) (string, error) {
	var response TextResponse
	if _, err := client.caller.Call(ctx, caller.Request{
		Method: http.MethodPost,
		Path:   predictGesturePath,
		Multipart: &caller.File{
			FieldName:   "file",
			FileName:    fileName,
			ContentType: "application/octet-stream",
			Reader:      video,
		},
	}, &response); err != nil {
		return "", fmt.Errorf("predict gesture from video: %w", err)
	}
	return client.text(response)
}

func (client *GestureClient) text(response TextResponse) (string, error) {
	text := strings.TrimSpace(response.Text)
	if text == "" {
		return "", caller.Malformed(client.caller.Name(), errEmptyText)
	}
	slog.Default().Debug("gesture model response", "text", text)
	return text, nil
}

// AccentClient calls POST {base}/add-accents.
type AccentClient struct {
	caller *caller.Caller
}

var _ inference.AccentCorrector = (*AccentClient)(nil)

// NewAccentClient creates an AccentClient.
func NewAccentClient(c *caller.Caller) *AccentClient {
	return &AccentClient{caller: c}
}

// AddAccents returns text with diacritics restored, trimmed.
func (client *AccentClient) AddAccents(ctx context.Context, text string, currentText string) (string, error) {
	var response TextResponse
	if _, err := client.caller.Call(ctx, caller.Request{
		Method: http.MethodPost,
		Path:   addAccentsPath,
		Body: AccentRequest{
			Text:        text,
			CurrentText: currentText,
		},
	}, &response); err != nil {
		return "", fmt.Errorf("add accents: %w", err)
	}

	corrected := strings.TrimSpace(response.Text)
	if corrected == "" {
		return "", caller.Malformed(client.caller.Name(), errEmptyText)
	}
	slog.Default().Debug("accent model response", "text", text, "corrected", corrected)
	return corrected, nil
}
