package logger

import (
	"net/http"
	"testing"
)

func TestMaskAuthorization(t *testing.T) {
	got := MaskAuthorization("Bearer abcdef1234")
	want := "Bearer ****1234"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestMaskHeadersSignature(t *testing.T) {
	headers := http.Header{}
	headers.Set("X-Rentflow-Signature", "deadbeefcafe")
	headers.Set("Content-Type", "application/json")

	masked := MaskHeaders(headers)
	if masked["X-Rentflow-Signature"] != "****cafe" {
		t.Fatalf("expected masked signature, got %q", masked["X-Rentflow-Signature"])
	}
	if masked["Content-Type"] != "application/json" {
		t.Fatalf("expected content type untouched, got %q", masked["Content-Type"])
	}
}

func TestMaskJSON(t *testing.T) {
	input := map[string]any{
		"password": "hunter2",
		"token":    "abc12345",
		"nested": map[string]any{
			"api_key": "key_12345678",
		},
	}
	masked := MaskJSON(input)
	if masked["password"] != "****ter2" {
		t.Fatalf("expected masked password, got %v", masked["password"])
	}
	if masked["token"] != "****2345" {
		t.Fatalf("expected masked token, got %v", masked["token"])
	}
	nested, ok := masked["nested"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested map")
	}
	if nested["api_key"] != "****5678" {
		t.Fatalf("expected masked api_key, got %v", nested["api_key"])
	}
}
