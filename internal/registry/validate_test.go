package registry

import "testing"

func TestValidateName(t *testing.T) {
	valid := []string{"logger", "tool-1", "tool_two", "A9"}
	for _, name := range valid {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{"", "has space", "../etc", "a/b", "a\\b", "a%2fb", "weird!"}
	for _, name := range invalid {
		if err := ValidateName(name); err == nil {
			t.Errorf("ValidateName(%q) = nil, want error", name)
		}
	}
}
