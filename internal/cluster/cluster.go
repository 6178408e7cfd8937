// Package cluster loads batch cluster profiles from clusters.yaml. A
// profile carries everything the generated sbatch scripts and the
// slurmrestd client need to target one machine.
package cluster

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kqclabs/kqc/internal/suggest"
)

// ErrUnknownProfile marks a cluster name with no entry in clusters.yaml.
var ErrUnknownProfile = errors.New("unknown cluster profile")

// Profile describes one batch target.
type Profile struct {
	// Partition and Account become #SBATCH directives in every script.
	Partition string `yaml:"partition,omitempty"`
	Account   string `yaml:"account,omitempty"`

	// Modules are environment modules loaded before each phase runs.
	Modules []string `yaml:"modules,omitempty"`

	// SingularityImage, when set, wraps phase commands in a container.
	SingularityImage string `yaml:"singularity_image,omitempty"`

	// RestURL points at a slurmrestd endpoint. Empty means scripts are
	// submitted with the sbatch binary on the current host.
	RestURL string `yaml:"rest_url,omitempty"`

	// TokenEnv names the environment variable holding the JWT for
	// RestURL submissions.
	TokenEnv string `yaml:"token_env,omitempty"`

	// SbatchDefaults are directives merged under the workload's
	// sbatch_parameters; the workload wins on conflict.
	SbatchDefaults map[string]string `yaml:"sbatch_defaults,omitempty"`
}

// File is the on-disk schema of clusters.yaml.
type File struct {
	Clusters map[string]Profile `yaml:"clusters"`
}

// Load parses a clusters.yaml file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cluster profiles: %w", err)
	}
	return Decode(data, path)
}

// Decode parses cluster profiles from raw YAML. origin is used in
// error messages only.
func Decode(data []byte, origin string) (*File, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("cluster profiles %s: file is empty", origin)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("cluster profiles %s: %w", origin, err)
	}
	if len(f.Clusters) == 0 {
		return nil, fmt.Errorf("cluster profiles %s: no clusters defined", origin)
	}
	for name, p := range f.Clusters {
		if p.RestURL != "" && p.TokenEnv == "" {
			return nil, fmt.Errorf("cluster profiles %s: cluster %q sets rest_url without token_env", origin, name)
		}
	}
	return &f, nil
}

// Names lists the defined profiles in sorted order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Clusters))
	for name := range f.Clusters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves a profile by name, offering the closest defined name
// on a miss.
func (f *File) Lookup(name string) (Profile, error) {
	if p, ok := f.Clusters[name]; ok {
		return p, nil
	}
	if near, ok := suggest.Closest(name, f.Names()); ok {
		return Profile{}, fmt.Errorf("%w %q, did you mean %q?", ErrUnknownProfile, name, near)
	}
	return Profile{}, fmt.Errorf("%w %q, defined: %s", ErrUnknownProfile, name, strings.Join(f.Names(), ", "))
}
