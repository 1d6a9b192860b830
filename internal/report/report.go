// Package report renders analysis results into the registersInfo JSON
// consumed by the comparison and report-generation tooling.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/antmicro/renode-models-analyzer/internal/registers"
)

// RegistersGroup is the analysis result of one register enum: its name plus
// one row per register, replicas included.
type RegistersGroup struct {
	Name      string                          `json:"Name"`
	Registers []*registers.RegisterDescriptor `json:"Registers"`
}

// PeripheralReport is everything the analysis produced for one peripheral
// class within a source unit.
type PeripheralReport struct {
	Peripheral string              `json:"Peripheral"`
	File       string              `json:"File"`
	Status     string              `json:"Status"`
	Groups     []RegistersGroup    `json:"Groups"`
	Findings   []registers.Finding `json:"Findings"`
}

// BuildGroup assembles one group's rows from resolved descriptors and the
// replica links produced during expansion. Rows are ordered by address so the
// output is stable across runs.
func BuildGroup(name string, descriptors []*registers.RegisterDescriptor, replicas map[int64]*registers.ReplicatedRegisterLink) RegistersGroup {
	rows := make([]*registers.RegisterDescriptor, 0, len(descriptors)+len(replicas))
	rows = append(rows, descriptors...)
	for _, link := range replicas {
		rows = append(rows, link.Descriptor())
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Address != rows[j].Address {
			return rows[i].Address < rows[j].Address
		}
		return rows[i].Name < rows[j].Name
	})
	return RegistersGroup{Name: name, Registers: rows}
}

// WriteRegistersInfo writes one peripheral's groups to
// <dir>/<peripheral>-registersInfo.json and returns the written path.
func WriteRegistersInfo(dir, peripheral string, groups []RegistersGroup) (string, error) {
	if groups == nil {
		groups = []RegistersGroup{}
	}
	data, err := json.MarshalIndent(groups, "", "    ")
	if err != nil {
		return "", fmt.Errorf("marshaling registers info: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(dir, peripheral+"-registersInfo.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing registers info: %w", err)
	}
	return path, nil
}

// ReadRegistersInfo loads a previously written registersInfo file.
func ReadRegistersInfo(path string) ([]RegistersGroup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading registers info: %w", err)
	}
	var groups []RegistersGroup
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("parsing registers info %s: %w", path, err)
	}
	return groups, nil
}
