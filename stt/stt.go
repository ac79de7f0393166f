package stt

import (
	"context"
	"errors"
)

type Result struct {
	Text       string
	IsFinal    bool
	Confidence float64
}

// Recognizer is one live recognition stream. Results is closed when the
// stream ends; Err reports why. Stop signals end-of-stream to the provider.
type Recognizer interface {
	SendAudio(data []byte) error
	Results() <-chan Result
	Stop() error
	Err() error
}

type Recognition interface {
	Start(ctx context.Context, language string) (Recognizer, error)
}

// TransientError marks a recoverable stream fault such as a provider-side
// timeout. Callers may restart the recognizer and keep the session alive.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient recognition fault: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

var locales = map[string]string{
	"en": "en-US",
	"es": "es-ES",
	"fr": "fr-FR",
	"hi": "hi-IN",
}

// Locale maps a short language code to the recognition locale the provider
// expects, defaulting to en-US.
func Locale(lang string) string {
	if locale, ok := locales[lang]; ok {
		return locale
	}
	return "en-US"
}
