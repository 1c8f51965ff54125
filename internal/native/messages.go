package native

import (
	"encoding/base64"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rbright/murmur/internal/audio"
)

// configRequest opens a single-utterance session with interim results off.
func configRequest(languageCode string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"streaming_config": map[string]any{
			"language_code":     languageCode,
			"encoding":          string(audio.EncodingLinear16),
			"sample_rate_hertz": audio.CaptureSampleRate,
			"interim_results":   false,
			"single_utterance":  true,
		},
	})
}

func audioRequest(chunk []byte) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"audio_content": structpb.NewStringValue(base64.StdEncoding.EncodeToString(chunk)),
	}}
}

// NewFinalResponse builds a response carrying one final transcript.
func NewFinalResponse(transcript string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"results": structpb.NewListValue(&structpb.ListValue{Values: []*structpb.Value{
			structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
				"is_final": structpb.NewBoolValue(true),
				"alternatives": structpb.NewListValue(&structpb.ListValue{Values: []*structpb.Value{
					structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
						"transcript": structpb.NewStringValue(transcript),
					}}),
				}}),
			}}),
		}}),
	}}
}

// finalTranscript returns the first final, non-empty top alternative in resp.
func finalTranscript(resp *structpb.Struct) (string, bool) {
	for _, result := range resp.GetFields()["results"].GetListValue().GetValues() {
		fields := result.GetStructValue().GetFields()
		if !fields["is_final"].GetBoolValue() {
			continue
		}
		alternatives := fields["alternatives"].GetListValue().GetValues()
		if len(alternatives) == 0 {
			continue
		}
		text := cleanSegment(alternatives[0].GetStructValue().GetFields()["transcript"].GetStringValue())
		if text != "" {
			return text, true
		}
	}
	return "", false
}

// cleanSegment normalizes transcript whitespace.
func cleanSegment(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
