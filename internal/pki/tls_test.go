package pki

import "testing"

func TestNewClientTLSConfigSkipsVerification(t *testing.T) {
	cfg := NewClientTLSConfig()
	if !cfg.InsecureSkipVerify {
		t.Fatal("expected client config to skip certificate verification")
	}
}

func TestNewServerTLSConfigRejectsMissingFiles(t *testing.T) {
	if _, err := NewServerTLSConfig("/nonexistent/cert.pem", "/nonexistent/key.pem"); err == nil {
		t.Fatal("expected an error loading a nonexistent certificate pair")
	}
}
