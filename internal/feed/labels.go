package feed

import (
	"regexp"
	"strings"
)

// lineCodeRegex extracts line code from vehicleLabel (e.g., "R4-77626-PLATF.(1)" -> "R4")
var lineCodeRegex = regexp.MustCompile(`^(R\d+[NS]?|RG\d+|RL\d+|RT\d+)`)

// extractLineCode extracts the Rodalies line code from a vehicle label
// Examples: "R4-77626-PLATF.(1)" -> "R4", "R2N-12345" -> "R2N", "RG1-xxx" -> "RG1"
func extractLineCode(label string) string {
	return lineCodeRegex.FindString(strings.ToUpper(label))
}
