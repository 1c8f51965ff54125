// Package tts turns reply text into speech: a cloud synthesizer that returns
// encoded audio, and an on-device voice used when playback is rejected.
package tts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rbright/murmur/internal/audio"
	"github.com/rbright/murmur/internal/fault"
	"github.com/rbright/murmur/internal/restjson"
)

// ErrNoAudio reports a synthesis response without audio content.
var ErrNoAudio = fmt.Errorf("%w: synthesis returned no audio", fault.ErrServiceFailure)

// VoiceConfig selects the synthesis voice.
type VoiceConfig struct {
	LanguageCode string
	Name         string
}

// Config controls the synthesis endpoint.
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// Client posts text to a text:synthesize style endpoint. It never retries.
type Client struct {
	endpoint   restjson.Endpoint
	httpClient *http.Client
}

// NewClient creates a synthesis client.
func NewClient(cfg Config) *Client {
	return &Client{
		endpoint:   restjson.Endpoint{URL: cfg.Endpoint, APIKey: cfg.APIKey},
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type synthesizeRequest struct {
	Input       synthesisInput `json:"input"`
	Voice       synthesisVoice `json:"voice"`
	AudioConfig audioConfig    `json:"audioConfig"`
}

type synthesisInput struct {
	Text string `json:"text"`
}

type synthesisVoice struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name,omitempty"`
}

type audioConfig struct {
	AudioEncoding string `json:"audioEncoding"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

// Synthesize returns MP3 audio for text.
func (c *Client) Synthesize(ctx context.Context, text string, voice VoiceConfig) (audio.Payload, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return audio.Payload{}, errors.New("synthesis text is empty")
	}

	request := synthesizeRequest{
		Input:       synthesisInput{Text: text},
		Voice:       synthesisVoice{LanguageCode: voice.LanguageCode, Name: voice.Name},
		AudioConfig: audioConfig{AudioEncoding: string(audio.EncodingMP3)},
	}

	var decoded synthesizeResponse
	if err := restjson.Post(ctx, c.httpClient, c.endpoint, "synthesize", request, &decoded); err != nil {
		return audio.Payload{}, err
	}
	if decoded.AudioContent == "" {
		return audio.Payload{}, ErrNoAudio
	}

	data, err := base64.StdEncoding.DecodeString(decoded.AudioContent)
	if err != nil {
		return audio.Payload{}, fmt.Errorf("%w: decode audio content: %v", fault.ErrServiceFailure, err)
	}
	if len(data) == 0 {
		return audio.Payload{}, ErrNoAudio
	}
	return audio.NewPayload(data, audio.EncodingMP3, 0), nil
}
