package workload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/kqclabs/kqc/internal/ctxlog"
	"github.com/kqclabs/kqc/internal/fsutil"
)

// fileRoot decodes the top-level blocks of a workload file. Unknown
// blocks are tolerated via Remain so profiles can carry annotations.
type fileRoot struct {
	Simulate []*simulateBlock `hcl:"simulate,block"`
	Remain   hcl.Body         `hcl:",remain"`
}

// simulateBlock mirrors the simulate block attribute for attribute.
// Pointers distinguish unset attributes from explicit zero values.
type simulateBlock struct {
	NWorkers         *int              `hcl:"n_workers,optional"`
	GmshNThreads     *int              `hcl:"gmsh_n_threads,optional"`
	ElmerNProcesses  *int              `hcl:"elmer_n_processes,optional"`
	ElmerNThreads    *int              `hcl:"elmer_n_threads,optional"`
	FailFast         *bool             `hcl:"fail_fast,optional"`
	PreviewPNG       *bool             `hcl:"preview_png,optional"`
	Cluster          *string           `hcl:"cluster,optional"`
	SbatchParameters map[string]string `hcl:"sbatch_parameters,optional"`
}

// Load reads the simulate block from path, which may be a single .hcl
// file or a directory searched recursively. An empty path or a path
// containing no simulate block yields Default(). Exactly one simulate
// block may exist across all discovered files.
func Load(ctx context.Context, path string) (*Workload, error) {
	logger := ctxlog.FromContext(ctx)

	if path == "" {
		logger.Debug("No workload path given, using defaults.")
		return Default(), nil
	}

	files, err := discover(path)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered workload files.", "count", len(files))

	parser := hclparse.NewParser()
	evalCtx := evalContext()

	var (
		block  *simulateBlock
		source string
	)
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse workload file %s: %w", file, diags)
		}

		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, evalCtx, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode workload file %s: %w", file, diags)
		}

		for _, s := range root.Simulate {
			if block != nil {
				return nil, fmt.Errorf("duplicate simulate block in %s, first defined in %s", file, source)
			}
			block = s
			source = file
		}
	}

	if block == nil {
		logger.Debug("No simulate block found, using defaults.", "path", path)
		return Default(), nil
	}

	w := Default()
	w.Source = source
	block.apply(w)

	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("workload %s: %w", source, err)
	}
	logger.Debug("Workload loaded.",
		"source", source,
		"n_workers", w.NWorkers,
		"cluster", w.Cluster,
	)
	return w, nil
}

func (b *simulateBlock) apply(w *Workload) {
	if b.NWorkers != nil {
		w.NWorkers = *b.NWorkers
	}
	if b.GmshNThreads != nil {
		w.GmshNThreads = *b.GmshNThreads
	}
	if b.ElmerNProcesses != nil {
		w.ElmerNProcesses = *b.ElmerNProcesses
	}
	if b.ElmerNThreads != nil {
		w.ElmerNThreads = *b.ElmerNThreads
	}
	if b.FailFast != nil {
		w.FailFast = *b.FailFast
	}
	if b.PreviewPNG != nil {
		w.PreviewPNG = *b.PreviewPNG
	}
	if b.Cluster != nil {
		w.Cluster = *b.Cluster
	}
	for k, v := range b.SbatchParameters {
		w.SbatchParameters[k] = v
	}
}

func discover(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("workload path %s: %w", path, err)
	}
	if info.IsDir() {
		return fsutil.FindFilesByExtension(path, ".hcl")
	}
	if filepath.Ext(path) != ".hcl" {
		return nil, fmt.Errorf("workload file %s: expected .hcl extension", path)
	}
	return []string{path}, nil
}
