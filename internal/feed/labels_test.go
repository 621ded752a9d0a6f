package feed

import "testing"

func TestExtractLineCode(t *testing.T) {
	tests := []struct {
		label    string
		expected string
	}{
		{"R4-77626-PLATF.(1)", "R4"},
		{"R1-12345-PLATF.(2)", "R1"},
		{"R11-22222", "R11"},

		// North/South variants
		{"R2N-77777-PLATF.(1)", "R2N"},
		{"R2S-88888-SOMETHING", "R2S"},

		// Regional lines
		{"RG1-99999", "RG1"},
		{"RL3-11111", "RL3"},
		{"RT2-33333", "RT2"},

		{"r2n-12345", "R2N"},

		{"", ""},
		{"UNKNOWN", ""},
		{"C1-12345", ""}, // Cercanías Madrid
		{"S1-12345", ""},
	}

	for _, tc := range tests {
		t.Run(tc.label, func(t *testing.T) {
			result := extractLineCode(tc.label)
			if result != tc.expected {
				t.Errorf("extractLineCode(%q) = %q, expected %q", tc.label, result, tc.expected)
			}
		})
	}
}
