package config

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDurationUnmarshalText(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"30s", 30 * time.Second, false},
		{"5m", 5 * time.Minute, false},
		{"1h30m", 90 * time.Minute, false},
		{"-5s", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var d Duration
			err := d.UnmarshalText([]byte(tt.in))
			if (err != nil) != tt.wantErr {
				t.Fatalf("UnmarshalText(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && d.Duration() != tt.want {
				t.Errorf("UnmarshalText(%q) = %v, want %v", tt.in, d.Duration(), tt.want)
			}
		})
	}
}

func TestDurationMarshalJSON(t *testing.T) {
	b, err := json.Marshal(Duration(30 * time.Second))
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	if string(b) != `"30s"` {
		t.Errorf("Marshal = %s, want \"30s\"", b)
	}
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("sk-very-secret")

	if got := s.String(); got != "[REDACTED]" {
		t.Errorf("String() = %q, want [REDACTED]", got)
	}
	if got := s.GoString(); got != "Secret([REDACTED])" {
		t.Errorf("GoString() = %q", got)
	}
	if got := s.Value(); got != "sk-very-secret" {
		t.Errorf("Value() = %q, want raw secret", got)
	}
	if !s.IsSet() {
		t.Error("IsSet() = false, want true")
	}

	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	if string(b) != `"[REDACTED]"` {
		t.Errorf("Marshal = %s, want redacted", b)
	}
}

func TestSecretEmpty(t *testing.T) {
	var s Secret
	if got := s.String(); got != "" {
		t.Errorf("String() on empty = %q, want empty", got)
	}
	if s.IsSet() {
		t.Error("IsSet() on empty = true")
	}
}

func TestSecretUnmarshalJSON(t *testing.T) {
	var s Secret
	if err := json.Unmarshal([]byte(`"sk-abc"`), &s); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if s.Value() != "sk-abc" {
		t.Errorf("Value() = %q, want sk-abc", s.Value())
	}
}
