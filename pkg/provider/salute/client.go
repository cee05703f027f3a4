// Package salute provides a SaluteSpeech-backed STT and TTS provider.
//
// [Client] talks to the SaluteSpeech REST API: one synchronous HTTP exchange
// per recognition or synthesis call, no retries, a bearer token obtained from
// a [TokenCache] immediately before each request. Every request carries a
// fresh RqUID header for server-side correlation.
//
// Usage:
//
//	tokens, err := salute.NewTokenCache(authKey)
//	c, err := salute.New(tokens, salute.WithModel("general"))
//	text, err := c.Recognize(ctx, pcm16k, "ru-RU")
//	pcm24k, err := c.Synthesize(ctx, "Привет", "ru-RU", "Ost_24000")
package salute

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/salutespeech-gateway/pkg/provider/stt"
	"github.com/MrWong99/salutespeech-gateway/pkg/provider/tts"
)

const (
	// DefaultServiceURL is the SaluteSpeech REST base URL.
	DefaultServiceURL = "https://smartspeech.sber.ru/rest/v1"

	// DefaultModel is the recognition model flavour.
	DefaultModel = "general"

	// RecognitionRate is the sample rate of audio sent for recognition.
	RecognitionRate = 16000

	// SynthesisRate is the sample rate of PCM returned by synthesis.
	SynthesisRate = 24000

	recognizePath  = "/speech:recognize"
	synthesizePath = "/text:synthesize"

	instrumentationName = "github.com/MrWong99/salutespeech-gateway/pkg/provider/salute"
)

// Compile-time assertions that Client implements both speech contracts.
var (
	_ stt.Recognizer  = (*Client)(nil)
	_ tts.Synthesizer = (*Client)(nil)
)

// TokenSource supplies bearer tokens. [TokenCache] is the production
// implementation. An empty string is sent as-is and the server rejects it.
type TokenSource interface {
	AccessToken(ctx context.Context) string
}

// Breaker guards remote calls. *resilience.CircuitBreaker satisfies it.
type Breaker interface {
	Execute(fn func() error) error
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithServiceURL overrides the REST base URL. Defaults to [DefaultServiceURL].
func WithServiceURL(u string) Option {
	return func(c *Client) {
		c.serviceURL = strings.TrimRight(u, "/")
	}
}

// WithModel sets the recognition model flavour ("general", "media", "ivr",
// "callcenter"). Defaults to [DefaultModel].
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBreaker wraps every remote call in b. Calls rejected by an open
// breaker fail immediately with the breaker's error.
func WithBreaker(b Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// WithRequestTimeout bounds each remote call. Zero, the default, leaves calls
// bounded only by the caller's context.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// Client implements stt.Recognizer and tts.Synthesizer against SaluteSpeech.
// It is safe for concurrent use; callers decide how many calls run at once.
type Client struct {
	tokens     TokenSource
	serviceURL string
	model      string
	httpClient *http.Client
	breaker    Breaker
	timeout    time.Duration
}

// New creates a Client that authenticates through tokens. tokens must be
// non-nil.
func New(tokens TokenSource, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("salute: token source must not be nil")
	}
	c := &Client{
		tokens:     tokens,
		serviceURL: DefaultServiceURL,
		model:      DefaultModel,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// recognizeResponse is the JSON body returned by speech:recognize.
type recognizeResponse struct {
	Result []string `json:"result"`
	Status int      `json:"status,omitempty"`
}

// Recognize sends 16 kHz 16-bit mono PCM for synchronous recognition and
// returns the first hypothesis, or "" when the service found no speech.
func (c *Client) Recognize(ctx context.Context, pcm []byte, language string) (string, error) {
	q := url.Values{
		"language":    {language},
		"model":       {c.model},
		"sample_rate": {strconv.Itoa(RecognitionRate)},
	}
	var out recognizeResponse
	err := c.call(ctx, "recognize", recognizePath, q, "audio/x-pcm;bit=16;rate=16000", pcm, func(body io.Reader) error {
		if err := json.NewDecoder(body).Decode(&out); err != nil {
			return fmt.Errorf("salute: recognize: decode response: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if len(out.Result) == 0 {
		return "", nil
	}
	return out.Result[0], nil
}

// Synthesize renders text and returns raw 24 kHz 16-bit mono PCM.
func (c *Client) Synthesize(ctx context.Context, text, language, voice string) ([]byte, error) {
	q := url.Values{
		"language": {language},
		"format":   {"pcm16"},
		"voice":    {voice},
	}
	var pcm []byte
	err := c.call(ctx, "synthesize", synthesizePath, q, "application/text", []byte(text), func(body io.Reader) error {
		var err error
		if pcm, err = io.ReadAll(body); err != nil {
			return fmt.Errorf("salute: synthesize: read audio: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pcm, nil
}

// Format reports the PCM format Synthesize returns.
func (c *Client) Format() tts.Format {
	return tts.Format{SampleRate: SynthesisRate, Width: 2, Channels: 1}
}

// ListVoices returns the static SaluteSpeech voice catalogue.
func (c *Client) ListVoices(_ context.Context) ([]tts.VoiceProfile, error) {
	out := make([]tts.VoiceProfile, len(Voices))
	copy(out, Voices)
	return out, nil
}

// call performs one POST to path and hands a 2xx body to decode.
func (c *Client) call(ctx context.Context, op, path string, q url.Values, contentType string, body []byte, decode func(io.Reader) error) error {
	do := func() error {
		rctx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			rctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		req, err := http.NewRequestWithContext(rctx, http.MethodPost, c.serviceURL+path+"?"+q.Encode(), bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("salute: %s: build request: %w", op, err)
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("RqUID", uuid.NewString())
		// Token looked up last so it is as fresh as possible at dispatch.
		req.Header.Set("Authorization", "Bearer "+c.tokens.AccessToken(rctx))

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("salute: %s: %w", op, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode/100 != 2 {
			return newAPIError(op, resp)
		}
		return decode(resp.Body)
	}

	if c.breaker == nil {
		return do()
	}
	return c.breaker.Execute(do)
}
