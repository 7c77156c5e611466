// File path: internal/gate/industry.go
package gate

import (
	"regexp"
	"strings"
)

// Industry identifies one configured industry table.
type Industry string

const (
	IndustryIT            Industry = "it"
	IndustryHealthcare    Industry = "healthcare"
	IndustryOilGas        Industry = "oil_gas"
	IndustryConstruction  Industry = "construction"
	IndustryManufacturing Industry = "manufacturing"
	IndustryGreenEnergy   Industry = "green_energy"
)

var separatorPattern = regexp.MustCompile(`[\s\-/]+`)

// NormaliseIndustry folds case, whitespace, hyphens and "&". "Oil & Gas" and
// "oil-and-gas" both become "oil_and_gas", which matches the "oil and gas"
// alias; "OIL_GAS" becomes the id "oil_gas". Aliases in the table are folded
// the same way.
func NormaliseIndustry(value string) string {
	folded := strings.ToLower(strings.TrimSpace(value))
	folded = strings.ReplaceAll(folded, "&", " and ")
	folded = separatorPattern.ReplaceAllString(folded, "_")
	folded = strings.Trim(folded, "_")
	for strings.Contains(folded, "__") {
		folded = strings.ReplaceAll(folded, "__", "_")
	}
	return folded
}
