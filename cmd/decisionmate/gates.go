// File path: cmd/decisionmate/gates.go
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/gate"
)

type gateReport struct {
	Industry     string             `yaml:"industry" json:"industry"`
	Phase        string             `yaml:"phase" json:"phase"`
	PhaseName    string             `yaml:"phase_name" json:"phase_name"`
	Requirements []gate.Requirement `yaml:"requirements" json:"requirements"`
	Deliverables []string           `yaml:"deliverables" json:"deliverables"`
	Checklist    []string           `yaml:"checklist" json:"checklist"`
}

func newGatesCmd() *cobra.Command {
	var (
		industry  string
		phase     string
		format    string
		gatesFile string
	)
	cmd := &cobra.Command{
		Use:   "gates",
		Short: "Print the required artifacts of an industry phase",
		Long: `Print the gate requirement table.

Without --phase every phase of the industry is printed. Without --industry
every industry is printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			gates, err := loadGates(gatesFile)
			if err != nil {
				return err
			}
			reports, err := buildGateReports(gates, industry, phase)
			if err != nil {
				return err
			}
			return writeGateReports(cmd.OutOrStdout(), reports, format)
		},
	}
	cmd.Flags().StringVar(&industry, "industry", "", "industry id or alias")
	cmd.Flags().StringVar(&phase, "phase", "", "phase code (FEL1..FEL4)")
	cmd.Flags().StringVar(&format, "format", "table", "output format: table, yaml or json")
	cmd.Flags().StringVar(&gatesFile, "gates-file", "", "YAML gate table replacing the built-in one")
	return cmd
}

func loadGates(path string) (*gate.Resolver, error) {
	if strings.TrimSpace(path) != "" {
		return gate.LoadFile(path)
	}
	return gate.Default()
}

func buildGateReports(gates *gate.Resolver, industry, phase string) ([]gateReport, error) {
	var industries []gate.IndustryConfig
	if strings.TrimSpace(industry) == "" {
		industries = gates.Industries()
	} else {
		cfg, ok := gates.Industry(industry)
		if !ok {
			return nil, fmt.Errorf("unknown industry %q", industry)
		}
		industries = []gate.IndustryConfig{cfg}
	}
	phases := gate.Phases()
	if strings.TrimSpace(phase) != "" {
		parsed, err := gate.ParsePhase(phase)
		if err != nil {
			return nil, err
		}
		phases = []gate.Phase{parsed}
	}
	reports := make([]gateReport, 0, len(industries)*len(phases))
	for _, cfg := range industries {
		id := string(cfg.ID)
		for _, p := range phases {
			reqs, status := gates.Lookup(string(p), id)
			if status != gate.Found {
				continue
			}
			reports = append(reports, gateReport{
				Industry:     id,
				Phase:        string(p),
				PhaseName:    gates.PhaseName(string(p), id),
				Requirements: reqs,
				Deliverables: gates.Deliverables(string(p), id),
				Checklist:    gates.Checklist(string(p), id),
			})
		}
	}
	return reports, nil
}

func writeGateReports(w io.Writer, reports []gateReport, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(reports); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	case "", "table":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "INDUSTRY\tPHASE\tNAME\tWORKSTREAM\tARTIFACT TYPE")
		for _, r := range reports {
			if len(r.Requirements) == 0 {
				fmt.Fprintf(tw, "%s\t%s\t%s\t-\t-\n", r.Industry, r.Phase, r.PhaseName)
				continue
			}
			for _, req := range r.Requirements {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Industry, r.Phase, r.PhaseName, req.Workstream, req.Type)
			}
		}
		return tw.Flush()
	default:
		return errors.New("format must be table, yaml or json")
	}
}
