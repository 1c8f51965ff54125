// Package stt is the cloud speech-to-text client used by the fallback recognition tier.
package stt

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/rbright/murmur/internal/audio"
	"github.com/rbright/murmur/internal/fault"
	"github.com/rbright/murmur/internal/restjson"
)

// Config controls the recognition endpoint.
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// Client posts captured audio to a speech:recognize style endpoint.
type Client struct {
	endpoint   restjson.Endpoint
	httpClient *http.Client
}

// NewClient creates a recognition client. A zero timeout leaves requests unbounded.
func NewClient(cfg Config) *Client {
	return &Client{
		endpoint:   restjson.Endpoint{URL: cfg.Endpoint, APIKey: cfg.APIKey},
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type recognizeRequest struct {
	Config recognitionConfig `json:"config"`
	Audio  recognitionAudio  `json:"audio"`
}

type recognitionConfig struct {
	Encoding        string `json:"encoding"`
	SampleRateHertz int    `json:"sampleRateHertz,omitempty"`
	LanguageCode    string `json:"languageCode"`
}

type recognitionAudio struct {
	Content string `json:"content"`
}

type recognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"results"`
}

// Recognize submits payload and returns the top transcript of every result
// joined by spaces. A response without results yields "" and no error.
func (c *Client) Recognize(ctx context.Context, payload audio.Payload, languageCode string) (string, error) {
	if payload.Empty() {
		return "", fault.ErrNoSpeech
	}

	request := recognizeRequest{
		Config: recognitionConfig{
			Encoding:        string(payload.Encoding()),
			SampleRateHertz: payload.SampleRateHertz(),
			LanguageCode:    languageCode,
		},
		Audio: recognitionAudio{Content: base64.StdEncoding.EncodeToString(payload.Bytes())},
	}

	var decoded recognizeResponse
	if err := restjson.Post(ctx, c.httpClient, c.endpoint, "recognize", request, &decoded); err != nil {
		return "", err
	}

	parts := make([]string, 0, len(decoded.Results))
	for _, result := range decoded.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		if text := strings.TrimSpace(result.Alternatives[0].Transcript); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}
