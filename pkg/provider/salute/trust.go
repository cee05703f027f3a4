package salute

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewTransport returns the HTTP transport shared by [TokenCache] and
// [Client]. When rootCAs is nil the system trust store is used. Requests are
// traced through otelhttp.
func NewTransport(rootCAs *x509.CertPool) http.RoundTripper {
	base := http.DefaultTransport.(*http.Transport).Clone()
	if rootCAs != nil {
		base.TLSClientConfig = &tls.Config{
			RootCAs:    rootCAs,
			MinVersion: tls.VersionTLS12,
		}
	}
	return otelhttp.NewTransport(base)
}

// EnsureTrust probes authURL with hc once. If the server certificate fails
// verification, the PEM bundle at caFile is added to a copy of the system
// pool, hc.Transport is replaced with one trusting it and the probe is retried
// once. A verification failure that survives the retry, or a missing caFile,
// returns an error wrapping [ErrUntrusted]. Any other probe outcome, including
// HTTP error statuses and connection failures, is not a trust problem and
// returns nil.
//
// EnsureTrust must run before hc is shared with other goroutines.
func EnsureTrust(ctx context.Context, hc *http.Client, authURL, caFile string) error {
	err := probe(ctx, hc, authURL)
	if !isTrustError(err) {
		if err != nil {
			slog.Warn("salute: auth endpoint probe failed", "url", authURL, "err", err)
		}
		return nil
	}
	if caFile == "" {
		return fmt.Errorf("%w: %v (no CA certificate configured)", ErrUntrusted, err)
	}

	slog.Info("salute: installing CA certificate", "file", caFile)
	pool, lerr := loadPool(caFile)
	if lerr != nil {
		return fmt.Errorf("%w: %v", ErrUntrusted, lerr)
	}
	hc.Transport = NewTransport(pool)

	err = probe(ctx, hc, authURL)
	if isTrustError(err) {
		return fmt.Errorf("%w: %v", ErrUntrusted, err)
	}
	if err != nil {
		slog.Warn("salute: auth endpoint probe failed", "url", authURL, "err", err)
	}
	return nil
}

func probe(ctx context.Context, hc *http.Client, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func isTrustError(err error) bool {
	if err == nil {
		return false
	}
	var (
		verifyErr  *tls.CertificateVerificationError
		unknownErr x509.UnknownAuthorityError
		hostErr    x509.HostnameError
		invalidErr x509.CertificateInvalidError
	)
	return errors.As(err, &verifyErr) ||
		errors.As(err, &unknownErr) ||
		errors.As(err, &hostErr) ||
		errors.As(err, &invalidErr)
}

func loadPool(caFile string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read CA file: %w", err)
	}
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no PEM certificates in %s", caFile)
	}
	return pool, nil
}
