package manifest

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrUnknownTool marks a manifest whose tool has no registered backend.
// Callers wrap it with a suggestion before surfacing it to the user.
var ErrUnknownTool = errors.New("unknown export tool")

// Validate checks structural invariants of the document itself. File
// existence is checked separately by ValidateFiles because a manifest
// decoded from a stream has no staging directory yet.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return errors.New("manifest: name is required")
	}
	if strings.ContainsAny(m.Name, `/\`) {
		return fmt.Errorf("manifest: name %q must be a plain directory name", m.Name)
	}
	if m.Tool == "" {
		return errors.New("manifest: tool is required")
	}
	if m.Units == "" {
		return errors.New("manifest: units is required")
	}
	if len(m.Simulations) == 0 {
		return errors.New("manifest: at least one simulation is required")
	}

	names := make(map[string]struct{}, len(m.Simulations))
	indices := make(map[int]struct{}, len(m.Simulations))
	for i := range m.Simulations {
		s := &m.Simulations[i]
		if err := s.validate(); err != nil {
			return fmt.Errorf("manifest: simulation %d: %w", i, err)
		}
		if _, dup := names[s.Name]; dup {
			return fmt.Errorf("manifest: duplicate simulation name %q", s.Name)
		}
		names[s.Name] = struct{}{}
		if _, dup := indices[s.Index]; dup {
			return fmt.Errorf("manifest: duplicate simulation index %d", s.Index)
		}
		indices[s.Index] = struct{}{}
	}
	return nil
}

func (s *Simulation) validate() error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if strings.ContainsAny(s.Name, `/\`) {
		return fmt.Errorf("name %q must be a plain directory name", s.Name)
	}
	if s.GDS == "" {
		return errors.New("gds file is required")
	}
	if s.Solution.Type == "" {
		return errors.New("solution type is required")
	}
	if s.Box.Width() <= 0 || s.Box.Height() <= 0 {
		return fmt.Errorf("box min %v must lie strictly below max %v", s.Box.Min, s.Box.Max)
	}

	ports := make(map[int]struct{}, len(s.Ports))
	for _, p := range s.Ports {
		if p.Number < 1 {
			return fmt.Errorf("port number %d must be positive", p.Number)
		}
		if _, dup := ports[p.Number]; dup {
			return fmt.Errorf("duplicate port number %d", p.Number)
		}
		ports[p.Number] = struct{}{}
	}
	return nil
}

// ValidateFiles verifies that every file the manifest references exists
// under the staging directory.
func (m *Manifest) ValidateFiles() error {
	if m.Dir == "" {
		return errors.New("manifest: no staging directory set")
	}
	if m.Layout != "" {
		if _, err := os.Stat(m.LayoutPath()); err != nil {
			return fmt.Errorf("manifest: layout file: %w", err)
		}
	}
	for i := range m.Simulations {
		s := &m.Simulations[i]
		if _, err := os.Stat(m.GDSPath(s)); err != nil {
			return fmt.Errorf("manifest: simulation %q geometry: %w", s.Name, err)
		}
	}
	return nil
}
