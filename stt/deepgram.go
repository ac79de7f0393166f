package stt

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/listen"
	listenv1ws "github.com/deepgram/deepgram-go-sdk/pkg/client/listen/v1/websocket"
)

type DeepgramClient struct {
	token  string
	logger *log.Logger
}

func NewDeepgramClient(
	token string,
	logger *log.Logger,
) (*DeepgramClient, error) {
	return &DeepgramClient{
		token:  token,
		logger: logger,
	}, nil
}

func (c *DeepgramClient) Start(
	ctx context.Context,
	language string,
) (Recognizer, error) {
	cOptions := &interfaces.ClientOptions{
		EnableKeepAlive: true,
	}
	tOptions := liveOptions(language)

	session := &DeepgramSession{
		results: make(chan Result, 16),
		logger:  c.logger,
		audioBuffer: make(
			chan []byte,
			100,
		), // ~3 seconds of 30ms frames
	}

	client, err := listen.NewWebSocket(
		ctx,
		c.token,
		cOptions,
		tOptions,
		session,
	)
	if err != nil {
		return nil, fmt.Errorf(
			"error creating LiveTranscription connection: %w",
			err,
		)
	}

	session.client = client

	go session.client.Connect()

	return session, nil
}

// liveOptions configures one recognition stream for a speaker's language.
// Interim results stay off: the aggregator only consumes finals, and interim
// traffic would crowd final text out of the result buffer.
func liveOptions(language string) *interfaces.LiveTranscriptionOptions {
	return &interfaces.LiveTranscriptionOptions{
		Model:          "nova-2",
		Language:       Locale(language),
		Punctuate:      true,
		Encoding:       "linear16",
		Channels:       1,
		SampleRate:     16000,
		SmartFormat:    true,
		InterimResults: false,
	}
}

type DeepgramSession struct {
	client      *listenv1ws.Client
	results     chan Result
	logger      *log.Logger
	audioBuffer chan []byte

	mu     sync.Mutex
	closed bool
	err    error

	stopOnce sync.Once
}

func (s *DeepgramSession) Stop() error {
	s.stopOnce.Do(func() {
		close(s.audioBuffer)
		s.client.Stop()
	})
	return nil
}

func (s *DeepgramSession) SendAudio(data []byte) error {
	select {
	case s.audioBuffer <- data:
		return nil
	default:
		return fmt.Errorf("audio buffer full")
	}
}

func (s *DeepgramSession) Results() <-chan Result {
	return s.results
}

func (s *DeepgramSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *DeepgramSession) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.results)
}

func (s *DeepgramSession) emit(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.results <- r:
	default:
		s.logger.Warn("result buffer full, dropping", "txt", r.Text)
	}
}

func (s *DeepgramSession) Message(mr *api.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}

	transcript := strings.TrimSpace(mr.Channel.Alternatives[0].Transcript)

	if len(transcript) == 0 {
		return nil
	}

	s.emitTranscript(
		transcript,
		mr.IsFinal,
		mr.Channel.Alternatives[0].Confidence,
	)

	return nil
}

// emitTranscript forwards final transcripts to the result channel. Interim
// text is logged and discarded; queueing it could evict final text while the
// consumer is busy broadcasting.
func (s *DeepgramSession) emitTranscript(
	text string,
	isFinal bool,
	confidence float64,
) {
	if !isFinal {
		s.logger.Debug("hear", "tmp", text)
		return
	}

	s.logger.Info("hear", "txt", text)
	s.emit(Result{
		Text:       text,
		IsFinal:    true,
		Confidence: confidence,
	})
}

func (s *DeepgramSession) Open(ocr *api.OpenResponse) error {
	s.logger.Info("open", "kind", "deepgram")
	go func() {
		for data := range s.audioBuffer {
			if err := s.client.WriteBinary(data); err != nil {
				s.logger.Error("failed to write audio data", "error", err)
			}
		}
	}()
	return nil
}

func (s *DeepgramSession) Close(ocr *api.CloseResponse) error {
	s.logger.Info("closed", "reason", ocr.Type)
	s.finish(nil)
	return nil
}

func (s *DeepgramSession) Metadata(md *api.MetadataResponse) error {
	s.logger.Debug("metadata", "metadata", md)
	return nil
}

func (s *DeepgramSession) SpeechStarted(
	ssr *api.SpeechStartedResponse,
) error {
	s.logger.Debug("speech start", "timestamp", ssr.Timestamp)
	return nil
}

func (s *DeepgramSession) UtteranceEnd(ur *api.UtteranceEndResponse) error {
	s.logger.Debug("utterance end", "timestamp", ur.LastWordEnd)
	return nil
}

func (s *DeepgramSession) Error(er *api.ErrorResponse) error {
	s.logger.Error("error", "type", er.Type, "description", er.Description)

	err := fmt.Errorf("deepgram %s: %s", er.Type, er.Description)
	if isTransientKind(er.Type) {
		s.finish(&TransientError{Err: err})
	} else {
		s.finish(err)
	}
	return nil
}

// Provider error codes that indicate a stalled or timed-out stream rather
// than a broken session.
func isTransientKind(kind string) bool {
	switch kind {
	case "TIMEOUT", "NET-0000", "NET-0001":
		return true
	}
	return false
}

func (s *DeepgramSession) UnhandledEvent(byData []byte) error {
	s.logger.Warn("unhandled event", "data", string(byData))
	return nil
}
