package internal

import (
	"strings"
	"testing"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestEmbeddingsConfig_DisabledNeedsNothing(t *testing.T) {
	cfg := EmbeddingsConfig{Enabled: false}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled embeddings should pass: %v", err)
	}
}

func TestEmbeddingsConfig_EnabledRequiresEndpointAndModel(t *testing.T) {
	cfg := EmbeddingsConfig{Enabled: true, Endpoint: "http://localhost:11434"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled embeddings without model should fail")
	}
	cfg.Model = "nomic-embed-text"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("complete embeddings config should pass: %v", err)
	}
}

func TestTagsConfig_ThresholdBounds(t *testing.T) {
	for _, v := range []float64{-0.1, 1.5} {
		cfg := TagsConfig{AIConfidenceThreshold: v}
		if err := cfg.Validate(); err == nil {
			t.Errorf("threshold %v should fail validation", v)
		}
	}
	cfg := TagsConfig{AIConfidenceThreshold: 0.7}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("threshold 0.7 should pass: %v", err)
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}
