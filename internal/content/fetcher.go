package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/text/cases"

	"github.com/p-n-ai/little-star/internal/ai"
)

const (
	vocabularyModel = "gemini-2.5-flash"
	vocabularyCount = 6

	// DefaultLessonTTL bounds how long a generated lesson is reused.
	DefaultLessonTTL = 24 * time.Hour
)

const vocabularySystemInstruction = `You are an expert ESL teacher for Grade 1-2 elementary students.
Generate a vocabulary list based on the provided topic.
The output must be strictly valid JSON.
For each word:
1. 'word': The English word (keep it simple).
2. 'emoji': A single emoji representing the word.
3. 'translation': Traditional Chinese translation (繁體中文).
4. 'fullSentence': A simple example sentence using the word.
5. 'sentencePart1': The part of the sentence BEFORE the word.
6. 'sentencePart2': The part of the sentence AFTER the word.

Example input topic: "Fruit"
Example output item:
{
  "word": "apple",
  "emoji": "🍎",
  "translation": "蘋果",
  "fullSentence": "This is a red apple.",
  "sentencePart1": "This is a red ",
  "sentencePart2": "."
}`

// vocabularyResponseSchema is the Gemini structured output schema (OpenAPI subset).
var vocabularyResponseSchema = json.RawMessage(`{
  "type": "ARRAY",
  "items": {
    "type": "OBJECT",
    "properties": {
      "word": {"type": "STRING"},
      "emoji": {"type": "STRING"},
      "translation": {"type": "STRING"},
      "fullSentence": {"type": "STRING"},
      "sentencePart1": {"type": "STRING"},
      "sentencePart2": {"type": "STRING"}
    },
    "required": ["word", "emoji", "translation", "fullSentence", "sentencePart1", "sentencePart2"]
  }
}`)

// vocabularyJSONSchema mirrors vocabularyResponseSchema for local validation.
const vocabularyJSONSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "word": {"type": "string"},
      "emoji": {"type": "string"},
      "translation": {"type": "string"},
      "fullSentence": {"type": "string"},
      "sentencePart1": {"type": "string"},
      "sentencePart2": {"type": "string"},
      "imageUrl": {"type": "string"}
    },
    "required": ["word", "emoji", "translation", "fullSentence", "sentencePart1", "sentencePart2"]
  }
}`

var vocabularySchema = mustSchema(vocabularyJSONSchema)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("content: invalid vocabulary schema: %v", err))
	}
	return s
}

// LessonCache stores generated lessons. The redis client in platform/cache satisfies it.
type LessonCache interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
}

// Fetcher requests generated vocabulary for free-text topics.
type Fetcher struct {
	completer ai.Completer
	model     string
	cache     LessonCache
	ttl       time.Duration
	budget    ai.BudgetChecker
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithLessonCache reuses generated lessons for ttl. A zero ttl selects DefaultLessonTTL.
func WithLessonCache(c LessonCache, ttl time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.cache = c
		if ttl > 0 {
			f.ttl = ttl
		}
	}
}

// WithBudget rejects generation for owners that spent their token budget.
func WithBudget(b ai.BudgetChecker) FetcherOption {
	return func(f *Fetcher) {
		f.budget = b
	}
}

// WithModel overrides the generation model.
func WithModel(model string) FetcherOption {
	return func(f *Fetcher) {
		if model != "" {
			f.model = model
		}
	}
}

// NewFetcher creates a Fetcher. A nil completer means no credential is configured and every
// fetch fails with ErrMissingAPIKey.
func NewFetcher(completer ai.Completer, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		completer: completer,
		model:     vocabularyModel,
		ttl:       DefaultLessonTTL,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Configured reports whether a generation credential is available.
func (f *Fetcher) Configured() bool {
	return f != nil && f.completer != nil
}

// FetchVocabularyForUnit generates vocabulary for topic on behalf of owner.
// A malformed response yields an empty list and a nil error; transport failures are returned.
func (f *Fetcher) FetchVocabularyForUnit(ctx context.Context, owner, topic string) ([]VocabularyItem, error) {
	if !f.Configured() {
		return nil, ErrMissingAPIKey
	}

	key := LessonCacheKey(topic)
	if f.cache != nil {
		var cached []VocabularyItem
		hit, err := f.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			slog.Warn("lesson cache read failed", "key", key, "error", err)
		} else if hit && len(cached) > 0 {
			slog.Debug("lesson cache hit", "key", key, "items", len(cached))
			return cached, nil
		}
	}

	if f.budget != nil {
		ok, err := f.budget.Check(owner)
		if err != nil {
			return nil, fmt.Errorf("checking budget: %w", err)
		}
		if !ok {
			return nil, ErrBudgetExhausted
		}
	}

	resp, err := f.completer.Complete(ctx, ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: "system", Content: vocabularySystemInstruction},
			{Role: "user", Content: vocabularyPrompt(topic)},
		},
		Model:            f.model,
		Task:             ai.TaskVocabulary,
		ResponseMIMEType: "application/json",
		ResponseSchema:   vocabularyResponseSchema,
	})
	if err != nil {
		if errors.Is(err, ai.ErrNoAPIKey) {
			return nil, fmt.Errorf("%w: %w", ErrMissingAPIKey, err)
		}
		return nil, fmt.Errorf("generating vocabulary: %w", err)
	}

	if f.budget != nil {
		if err := f.budget.Record(owner, resp.TotalTokens()); err != nil {
			slog.Warn("recording token usage failed", "owner", owner, "error", err)
		}
	}

	items := ParseVocabulary(resp.Content)
	if len(items) > 0 && f.cache != nil {
		if err := f.cache.SetJSON(ctx, key, items, f.ttl); err != nil {
			slog.Warn("lesson cache write failed", "key", key, "error", err)
		}
	}
	return items, nil
}

func vocabularyPrompt(topic string) string {
	return fmt.Sprintf("Create %d vocabulary items for the topic: %s. ensure the sentences are very simple for kids.", vocabularyCount, topic)
}

// ParseVocabulary decodes a generated vocabulary list. Code fences are stripped before
// decoding. Anything that is not valid JSON matching the vocabulary schema is logged and
// yields an empty list. Entries with a blank word are dropped.
func ParseVocabulary(text string) []VocabularyItem {
	cleaned := strings.ReplaceAll(text, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return nil
	}

	result, err := vocabularySchema.Validate(gojsonschema.NewStringLoader(cleaned))
	if err != nil {
		slog.Error("vocabulary response is not JSON", "error", err)
		return nil
	}
	if !result.Valid() {
		slog.Error("vocabulary response failed validation",
			"errors", lo.Map(result.Errors(), func(e gojsonschema.ResultError, _ int) string { return e.String() }),
		)
		return nil
	}

	var items []VocabularyItem
	if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
		slog.Error("vocabulary response decode failed", "error", err)
		return nil
	}

	kept := lo.Filter(items, func(item VocabularyItem, _ int) bool {
		return strings.TrimSpace(item.Word) != ""
	})
	if dropped := len(items) - len(kept); dropped > 0 {
		slog.Warn("dropped vocabulary entries without a word", "dropped", dropped)
	}
	return kept
}

// LessonCacheKey normalizes a topic so that spelling variants share one cache entry.
func LessonCacheKey(topic string) string {
	return "lesson:" + cases.Fold().String(strings.Join(strings.Fields(topic), " "))
}
