// File path: internal/gate/phase.go
package gate

import (
	"fmt"
	"strings"
)

// Phase is one step of the front-end loading sequence.
type Phase string

const (
	PhaseFEL1 Phase = "FEL1"
	PhaseFEL2 Phase = "FEL2"
	PhaseFEL3 Phase = "FEL3"
	PhaseFEL4 Phase = "FEL4"
)

var phaseOrder = []Phase{PhaseFEL1, PhaseFEL2, PhaseFEL3, PhaseFEL4}

// Phases returns the fixed phase sequence.
func Phases() []Phase {
	return append([]Phase(nil), phaseOrder...)
}

// ParsePhase accepts any casing and surrounding whitespace, plus the bare
// number ("2") and "fel-2" forms.
func ParsePhase(value string) (Phase, error) {
	normalised := strings.ToUpper(strings.TrimSpace(value))
	normalised = strings.NewReplacer("-", "", "_", "", " ", "").Replace(normalised)
	if len(normalised) == 1 {
		normalised = "FEL" + normalised
	}
	for _, phase := range phaseOrder {
		if string(phase) == normalised {
			return phase, nil
		}
	}
	return "", fmt.Errorf("unknown phase %q", value)
}

func (p Phase) index() int {
	for i, phase := range phaseOrder {
		if phase == p {
			return i
		}
	}
	return -1
}

func (p Phase) Valid() bool { return p.index() >= 0 }

// Next returns the following phase. The last phase has no successor.
func (p Phase) Next() (Phase, bool) {
	i := p.index()
	if i < 0 || i+1 >= len(phaseOrder) {
		return "", false
	}
	return phaseOrder[i+1], true
}

func (p Phase) Terminal() bool {
	return p == phaseOrder[len(phaseOrder)-1]
}
