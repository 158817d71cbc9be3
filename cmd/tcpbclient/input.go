package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/tcpbmock/internal/protocol/schema"
	"github.com/pelletier/go-toml/v2"
)

// jobFile is the TOML form of a job submission.
type jobFile struct {
	Run          string    `toml:"run"`
	Method       int32     `toml:"method"`
	Basis        string    `toml:"basis"`
	Atoms        []string  `toml:"atoms"`
	Xyz          []float64 `toml:"xyz"`
	Units        string    `toml:"units"`
	Charge       int32     `toml:"charge"`
	Multiplicity int32     `toml:"multiplicity"`
	Closed       bool      `toml:"closed"`
	Restricted   bool      `toml:"restricted"`
	Options      []string  `toml:"options"`
	BondOrder    bool      `toml:"bond_order"`
}

func loadJobInput(path string) (*schema.JobInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("job load failed (%s): %w", path, err)
	}
	var raw jobFile
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("job parse failed (%s): %w", path, err)
	}
	return raw.jobInput()
}

func (j jobFile) jobInput() (*schema.JobInput, error) {
	if len(j.Atoms) == 0 {
		return nil, fmt.Errorf("job has no atoms")
	}
	if len(j.Xyz) != 3*len(j.Atoms) {
		return nil, fmt.Errorf("job xyz has %d values, want %d for %d atoms", len(j.Xyz), 3*len(j.Atoms), len(j.Atoms))
	}
	if strings.TrimSpace(j.Basis) == "" {
		return nil, fmt.Errorf("job basis is required")
	}
	run, err := parseRun(j.Run)
	if err != nil {
		return nil, err
	}
	units := schema.UnitsBohr
	switch strings.ToLower(strings.TrimSpace(j.Units)) {
	case "", "bohr":
	case "angstrom":
		units = schema.UnitsAngstrom
	default:
		return nil, fmt.Errorf("unknown units %q", j.Units)
	}
	multiplicity := j.Multiplicity
	if multiplicity == 0 {
		multiplicity = 1
	}
	return &schema.JobInput{
		Mol: &schema.Mol{
			Atoms:        j.Atoms,
			Xyz:          j.Xyz,
			Units:        units,
			Charge:       j.Charge,
			Multiplicity: multiplicity,
			Closed:       j.Closed,
			Restricted:   j.Restricted,
		},
		Run:             run,
		Method:          schema.MethodType(j.Method),
		Basis:           strings.TrimSpace(j.Basis),
		UserOptions:     j.Options,
		ReturnBondOrder: j.BondOrder,
	}, nil
}

func parseRun(raw string) (schema.RunType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "energy":
		return schema.RunEnergy, nil
	case "gradient":
		return schema.RunGradient, nil
	default:
		return 0, fmt.Errorf("unknown run type %q", raw)
	}
}
