package translate

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"polyglot/llm"
)

// Translator converts one text segment between languages. Implementations
// must return the input unchanged when source and target are equal, without
// calling any remote service.
type Translator interface {
	Translate(
		ctx context.Context,
		text, sourceLang, targetLang string,
	) (string, error)
}

var languageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"hi": "Hindi",
}

// LanguageName returns the display name used in translation prompts, falling
// back to the raw code for languages outside the builtin set.
func LanguageName(lang string) string {
	if name, ok := languageNames[lang]; ok {
		return name
	}
	return lang
}

type LLMTranslator struct {
	model  llm.LanguageModel
	logger *log.Logger
}

func NewLLMTranslator(
	model llm.LanguageModel,
	logger *log.Logger,
) *LLMTranslator {
	return &LLMTranslator{
		model:  model,
		logger: logger,
	}
}

const systemPrompt = "You are a professional translator. " +
	"Provide only the translation, no explanations."

func (t *LLMTranslator) Translate(
	ctx context.Context,
	text, sourceLang, targetLang string,
) (string, error) {
	if sourceLang == targetLang {
		return text, nil
	}

	prompt := fmt.Sprintf(
		"Translate this %s text to %s. "+
			"Preserve idioms and cultural context. "+
			"Provide ONLY the translation, no explanations.\n\nText: %q",
		LanguageName(sourceLang),
		LanguageName(targetLang),
		text,
	)

	req := &llm.ChatCompletionRequest{
		SystemPrompt: systemPrompt,
		MaxTokens:    200,
		Temperature:  0.3,
	}
	req.WithUserMessage(prompt)

	translation, err := t.model.ChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("translate to %s: %w", targetLang, err)
	}

	t.logger.Debug(
		"translated",
		"from", sourceLang,
		"to", targetLang,
		"txt", translation,
	)

	return translation, nil
}
