package narration

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"
)

const (
	defaultTTSBaseURL = "https://texttospeech.googleapis.com/v1"
	audioCacheTTL     = 7 * 24 * time.Hour
)

var (
	// ErrTTSUnavailable is returned when no cloud credential is configured.
	ErrTTSUnavailable = errors.New("speech synthesis unavailable")
	ErrEmptyText      = errors.New("text is empty")
	ErrInvalidLang    = errors.New("invalid language tag")
)

// AudioCache stores synthesized audio. The redis client in platform/cache satisfies it.
type AudioCache interface {
	GetBytes(ctx context.Context, key string) ([]byte, bool, error)
	SetBytes(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// CloudTTS synthesizes MP3 audio with Google Cloud Text-to-Speech.
type CloudTTS struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	cache      AudioCache
}

// TTSOption configures a CloudTTS.
type TTSOption func(*CloudTTS)

// WithTTSBaseURL sets the base URL (for testing).
func WithTTSBaseURL(url string) TTSOption {
	return func(c *CloudTTS) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithAudioCache caches synthesized audio.
func WithAudioCache(cache AudioCache) TTSOption {
	return func(c *CloudTTS) {
		c.cache = cache
	}
}

// NewCloudTTS creates a client. An empty apiKey makes every call fail with ErrTTSUnavailable.
func NewCloudTTS(apiKey string, opts ...TTSOption) *CloudTTS {
	c := &CloudTTS{
		apiKey:     apiKey,
		baseURL:    defaultTTSBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether a credential is configured.
func (c *CloudTTS) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// AudioKey is the cache key for text spoken in lang.
func AudioKey(text, lang string) string {
	h := sha256.Sum256([]byte(lang + ":" + text))
	return "tts:" + hex.EncodeToString(h[:16])
}

// Synthesize returns MP3 audio for text in lang.
func (c *CloudTTS) Synthesize(ctx context.Context, text, lang string) ([]byte, error) {
	if !c.Enabled() {
		return nil, ErrTTSUnavailable
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidLang, lang, err)
	}
	lang = tag.String()

	key := AudioKey(text, lang)
	if c.cache != nil {
		data, ok, err := c.cache.GetBytes(ctx, key)
		if err != nil {
			slog.Warn("audio cache read failed", "key", key, "error", err)
		} else if ok {
			return data, nil
		}
	}

	data, err := c.callGoogleTTS(ctx, text, lang)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.SetBytes(ctx, key, data, audioCacheTTL); err != nil {
			slog.Warn("audio cache write failed", "key", key, "error", err)
		}
	}
	return data, nil
}

type ttsRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		SSMLGender   string `json:"ssmlGender"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string `json:"audioEncoding"`
	} `json:"audioConfig"`
}

func (c *CloudTTS) callGoogleTTS(ctx context.Context, text, lang string) ([]byte, error) {
	var reqBody ttsRequest
	reqBody.Input.Text = text
	reqBody.Voice.LanguageCode = lang
	reqBody.Voice.SSMLGender = "FEMALE"
	reqBody.AudioConfig.AudioEncoding = "MP3"

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/text:synthesize?key=" + c.apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tts api error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		AudioContent string `json:"audioContent"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	audio, err := base64.StdEncoding.DecodeString(result.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}
	return audio, nil
}
