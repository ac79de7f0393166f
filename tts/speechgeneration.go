package tts

import (
	"context"
	"fmt"
	"time"

	"github.com/haguro/elevenlabs-go"
)

// Synthesizer turns a text segment into encoded speech audio. An empty text
// must yield no remote call and an empty result.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang string) ([]byte, error)
}

// Premade multilingual voices, one per supported language. Languages outside
// the set fall back to the default voice.
var voiceIDs = map[string]string{
	"en": "21m00Tcm4TlvDq8ikWAM",
	"es": "EXAVITQu4vr4xnSDxMaL",
	"fr": "AZnzlk1XvdvUeBnXmlld",
	"hi": "ErXwobaYiN019PkySvjV",
}

const defaultVoiceID = "pKLLpypGseGMUjkb5fEZ"

func VoiceID(lang string) string {
	if id, ok := voiceIDs[lang]; ok {
		return id
	}
	return defaultVoiceID
}

type ElevenLabsSpeechGenerator struct {
	apiKey string
}

func NewElevenLabsSpeechGenerator(apiKey string) *ElevenLabsSpeechGenerator {
	return &ElevenLabsSpeechGenerator{apiKey: apiKey}
}

func (e *ElevenLabsSpeechGenerator) Synthesize(
	ctx context.Context,
	text, lang string,
) ([]byte, error) {
	if text == "" {
		return nil, nil
	}

	client := elevenlabs.NewClient(ctx, e.apiKey, 30*time.Second)
	ttsReq := elevenlabs.TextToSpeechRequest{
		Text:    text,
		ModelID: "eleven_turbo_v2_5",
	}

	audio, err := client.TextToSpeech(VoiceID(lang), ttsReq)
	if err != nil {
		return nil, fmt.Errorf("failed to generate speech: %w", err)
	}
	return audio, nil
}
