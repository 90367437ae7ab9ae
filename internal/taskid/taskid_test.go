package taskid

import "testing"

func TestValid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"generated uuid v4", New(), true},
		{"explicit example", "f47ac10b-58cc-4372-a567-0e02b2c3d479", true},
		{"too short", "f47ac10b-58cc-4372-a567-0e02b2c3d47", false},
		{"wrong version nibble", "f47ac10b-58cc-5372-a567-0e02b2c3d479", false},
		{"wrong variant nibble", "f47ac10b-58cc-4372-c567-0e02b2c3d479", false},
		{"not hex", "zzzzzzzz-58cc-4372-a567-0e02b2c3d479", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Valid(tt.id); got != tt.want {
				t.Errorf("Valid(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	if err := Validate("not-a-uuid"); err == nil {
		t.Fatal("Validate() expected error for malformed id")
	}
	if err := Validate(New()); err != nil {
		t.Errorf("Validate() unexpected error for generated id: %v", err)
	}
}
