package network

import (
	"crypto/tls"
	"net/http"
	"time"
)

func secureTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		MaxVersion: tls.VersionTLS13,

		// CipherSuites applies only to TLS 1.0–1.2
		CipherSuites: []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		},
	}
}

// NewSecureHTTPClient returns an http.Client with a custom TLS configuration.
// Callers can reuse this instead of re-defining the TLS settings everywhere.
// A zero timeout means no overall deadline; streaming downloads rely on
// context cancellation instead.
func NewSecureHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		TLSClientConfig:       secureTLSConfig(),
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: time.Minute,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// NewFallbackHTTPClient returns a conservative client used once after the
// primary client exhausted its retries: HTTP/1.1 only, no connection reuse and
// no transparent compression.
func NewFallbackHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:              http.ProxyFromEnvironment,
		TLSClientConfig:    secureTLSConfig(),
		ForceAttemptHTTP2:  false,
		TLSNextProto:       map[string]func(string, *tls.Conn) http.RoundTripper{},
		DisableKeepAlives:  true,
		DisableCompression: true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
