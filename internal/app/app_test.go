package app_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/salutespeech-gateway/internal/app"
	"github.com/MrWong99/salutespeech-gateway/internal/config"
	"github.com/MrWong99/salutespeech-gateway/internal/journal"
	"github.com/MrWong99/salutespeech-gateway/internal/observe"
	"github.com/MrWong99/salutespeech-gateway/pkg/provider/salute"
	sttmock "github.com/MrWong99/salutespeech-gateway/pkg/provider/stt/mock"
	ttsmock "github.com/MrWong99/salutespeech-gateway/pkg/provider/tts/mock"
	"github.com/MrWong99/salutespeech-gateway/pkg/wyoming"
)

const ioTimeout = 5 * time.Second

// testConfig returns a valid config bound to ephemeral loopback ports.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.ListenURI = "tcp://127.0.0.1:0"
	cfg.Server.AdminAddr = "127.0.0.1:0"
	cfg.Salute.AuthKey = "dGVzdDp0ZXN0"
	return cfg
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

// runApp starts a.Run and stops it when the test ends.
func runApp(t *testing.T, a *app.App) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, nil) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run: %v", err)
			}
		case <-time.After(ioTimeout):
			t.Error("Run did not return after cancel")
		}
		if err := a.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	})
}

func newMockApp(t *testing.T, opts ...app.Option) (*app.App, *sttmock.Recognizer, *ttsmock.Synthesizer) {
	t.Helper()
	rec := &sttmock.Recognizer{Text: "привет"}
	syn := &ttsmock.Synthesizer{ListVoicesResult: salute.Voices}
	opts = append([]app.Option{
		app.WithProvider(rec, syn),
		app.WithMetrics(testMetrics(t)),
		app.WithJournal(journal.NewMemStore()),
		app.WithVersion("1.2.3"),
	}, opts...)
	a, err := app.New(context.Background(), testConfig(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a, rec, syn
}

// describe asks the gateway at addr for its info event.
func describe(t *testing.T, addr string) wyoming.Info {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(ioTimeout))

	raw, err := wyoming.Encode(wyoming.Describe{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := wyoming.WriteRaw(conn, raw); err != nil {
		t.Fatalf("WriteRaw: %v", err)
	}
	reply, err := wyoming.ReadRaw(bufio.NewReader(conn))
	if err != nil {
		t.Fatalf("ReadRaw: %v", err)
	}
	ev, err := wyoming.Decode(reply)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	info, ok := ev.(wyoming.Info)
	if !ok {
		t.Fatalf("got %T, want info", ev)
	}
	return info
}

// getReady polls /readyz until it answers want or the timeout passes.
func getReady(t *testing.T, base string, want int) map[string]any {
	t.Helper()
	deadline := time.Now().Add(ioTimeout)
	for {
		resp, err := http.Get(base + "/readyz")
		if err != nil {
			t.Fatalf("GET /readyz: %v", err)
		}
		var body map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if resp.StatusCode == want {
			return body
		}
		if time.Now().After(deadline) {
			t.Fatalf("/readyz status = %d, want %d (body %v)", resp.StatusCode, want, body)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNew_WithMocks(t *testing.T) {
	a, _, _ := newMockApp(t)
	runApp(t, a)

	info := describe(t, a.Addr().String())
	if info.Asr[0].Version != "1.2.3" {
		t.Errorf("asr version = %q, want 1.2.3", info.Asr[0].Version)
	}
	if n := len(info.Tts[0].Voices); n != len(salute.Voices) {
		t.Errorf("voices = %d, want %d", n, len(salute.Voices))
	}
}

func TestNew_VoiceListFailureAdvertisesNone(t *testing.T) {
	rec := &sttmock.Recognizer{}
	syn := &ttsmock.Synthesizer{ListVoicesErr: errors.New("offline")}
	a, err := app.New(context.Background(), testConfig(),
		app.WithProvider(rec, syn),
		app.WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	runApp(t, a)

	info := describe(t, a.Addr().String())
	if n := len(info.Tts[0].Voices); n != 0 {
		t.Errorf("voices = %d, want 0", n)
	}
}

func TestAdmin_Endpoints(t *testing.T) {
	metricsHits := atomic.Int32{}
	a, _, _ := newMockApp(t, app.WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		metricsHits.Add(1)
		_, _ = io.WriteString(w, "# metrics\n")
	})))
	runApp(t, a)
	base := "http://" + a.AdminAddr().String()

	resp, err := http.Get(base + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/healthz status = %d", resp.StatusCode)
	}

	body := getReady(t, base, http.StatusOK)
	checks, _ := body["checks"].(map[string]any)
	if checks["listener"] != "ok" {
		t.Errorf("listener check = %v", checks["listener"])
	}
	if _, ok := checks["token"]; ok {
		t.Error("token check registered for injected provider")
	}

	resp, err = http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	resp.Body.Close()
	if metricsHits.Load() != 1 {
		t.Errorf("metrics handler hits = %d, want 1", metricsHits.Load())
	}
	if resp.Header.Get("X-Correlation-ID") == "" {
		t.Error("admin responses must carry X-Correlation-ID")
	}
}

func TestNew_AdminDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Server.AdminAddr = ""
	a, err := app.New(context.Background(), cfg,
		app.WithProvider(&sttmock.Recognizer{}, &ttsmock.Synthesizer{}),
		app.WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	runApp(t, a)
	if a.AdminAddr() != nil {
		t.Errorf("AdminAddr = %v, want nil", a.AdminAddr())
	}
}

func TestNew_BadListenURI(t *testing.T) {
	cfg := testConfig()
	cfg.Server.ListenURI = "http://nope"
	_, err := app.New(context.Background(), cfg,
		app.WithProvider(&sttmock.Recognizer{}, &ttsmock.Synthesizer{}),
		app.WithMetrics(testMetrics(t)),
	)
	if err == nil {
		t.Fatal("want error for unsupported listen scheme")
	}
}

func TestNew_UntrustedAuthEndpoint(t *testing.T) {
	auth := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	defer auth.Close()

	cfg := testConfig()
	cfg.Salute.AuthURL = auth.URL
	_, err := app.New(context.Background(), cfg, app.WithMetrics(testMetrics(t)))
	if !errors.Is(err, salute.ErrUntrusted) {
		t.Fatalf("err = %v, want ErrUntrusted", err)
	}
}

func TestNew_SaluteClientWiring(t *testing.T) {
	var exchanges atomic.Int32
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			return
		}
		exchanges.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok","expires_at":%d}`, time.Now().Add(30*time.Minute).UnixMilli())
	}))
	defer auth.Close()

	cfg := testConfig()
	cfg.Salute.AuthURL = auth.URL
	cfg.Salute.Breaker.MaxFailures = 3
	a, err := app.New(context.Background(), cfg, app.WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	runApp(t, a)

	body := getReady(t, "http://"+a.AdminAddr().String(), http.StatusOK)
	checks, _ := body["checks"].(map[string]any)
	if checks["token"] != "ok" {
		t.Errorf("token check = %v", checks["token"])
	}
	if exchanges.Load() != 1 {
		t.Errorf("token exchanges = %d, want 1", exchanges.Load())
	}

	info := describe(t, a.Addr().String())
	if n := len(info.Tts[0].Voices); n != len(salute.Voices) {
		t.Errorf("voices = %d, want %d", n, len(salute.Voices))
	}
}

func TestApplyConfig(t *testing.T) {
	lv := new(slog.LevelVar)
	lv.Set(slog.LevelWarn)
	a, _, _ := newMockApp(t, app.WithLevelVar(lv))
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	old := testConfig()
	next := testConfig()
	next.Server.LogLevel = config.LogDebug
	next.Gateway.Language = "kz-KZ"
	next.Gateway.ReportErrors = true
	next.Salute.Model = "media"

	a.ApplyConfig(old, next)

	if lv.Level() != slog.LevelDebug {
		t.Errorf("level = %v, want debug", lv.Level())
	}
	s := a.Handler().Settings()
	if s.Language != "kz-KZ" || !s.ReportErrors {
		t.Errorf("settings = %+v", s)
	}
}

func TestApplyConfig_NoChange(t *testing.T) {
	lv := new(slog.LevelVar)
	lv.Set(slog.LevelError)
	a, _, _ := newMockApp(t, app.WithLevelVar(lv))
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	cfg := testConfig()
	a.ApplyConfig(cfg, cfg)
	if lv.Level() != slog.LevelError {
		t.Errorf("level changed on identical config: %v", lv.Level())
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	a, _, _ := newMockApp(t)

	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("first Shutdown: %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}

func TestShutdown_RespectsDeadline(t *testing.T) {
	a, _, _ := newMockApp(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Shutdown(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Shutdown err = %v, want context.Canceled", err)
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   config.LogLevel
		want slog.Level
	}{
		{config.LogDebug, slog.LevelDebug},
		{config.LogInfo, slog.LevelInfo},
		{config.LogWarn, slog.LevelWarn},
		{config.LogError, slog.LevelError},
		{"", slog.LevelWarn},
	}
	for _, tt := range tests {
		if got := app.SlogLevel(tt.in); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
