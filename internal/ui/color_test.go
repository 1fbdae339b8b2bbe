package ui

import (
	"strings"
	"testing"
)

func TestColorToggle(t *testing.T) {
	original := IsColorEnabled()
	t.Cleanup(func() {
		if original {
			EnableColors()
		} else {
			DisableColors()
		}
	})

	DisableColors()
	if IsColorEnabled() {
		t.Error("colors should be disabled after DisableColors")
	}

	EnableColors()
	if !IsColorEnabled() {
		t.Error("colors should be enabled after EnableColors")
	}
}

func TestStatusHelpers(t *testing.T) {
	DisableColors()
	t.Cleanup(EnableColors)

	tests := []struct {
		name   string
		fn     func(string) string
		symbol string
	}{
		{"success", StatusSuccess, SymbolSuccess},
		{"error", StatusError, SymbolError},
		{"warning", StatusWarning, SymbolWarning},
		{"skipped", StatusSkipped, SymbolSkipped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.fn("message")
			if !strings.Contains(got, tt.symbol) {
				t.Errorf("expected symbol %q in %q", tt.symbol, got)
			}
			if !strings.Contains(got, "message") {
				t.Errorf("expected message in %q", got)
			}

			bare := tt.fn("")
			if !strings.Contains(bare, tt.symbol) {
				t.Errorf("expected symbol %q in bare output %q", tt.symbol, bare)
			}
		})
	}
}
