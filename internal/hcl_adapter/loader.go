package hcl_adapter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/flowcanvas/internal/config"
	"github.com/specialistvlad/flowcanvas/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct {
	// Environ supplies the env.* variables. Nil means os.Environ.
	Environ func() []string
}

var _ config.Loader = (*Loader)(nil)

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// fileRoot decodes the top-level blocks of one file. Bodies are decoded
// separately, on top of the defaults.
type fileRoot struct {
	Log       *plainBlock    `hcl:"log,block"`
	Server    *plainBlock    `hcl:"server,block"`
	Layout    *plainBlock    `hcl:"layout,block"`
	Proximity *plainBlock    `hcl:"proximity,block"`
	Storage   *labeledBlock  `hcl:"storage,block"`
	Tasks     []labeledBlock `hcl:"task,block"`
}

type plainBlock struct {
	Body hcl.Body `hcl:",remain"`
}

type labeledBlock struct {
	Label string   `hcl:"name,label"`
	Body  hcl.Body `hcl:",remain"`
}

// Load parses every .hcl file found under paths, in order. A singleton
// block (log, server, layout, proximity, storage) may appear in several
// files; later files override the attributes they set.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	model := config.Default()

	hclFiles, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles))

	parser := hclparse.NewParser()
	evalCtx := l.evalContext()

	for _, file := range hclFiles {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		if err := decodeFile(&root, evalCtx, model); err != nil {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, err)
		}
	}

	logger.Debug("HCL loading complete.", "files", len(hclFiles), "storage", model.Storage.Kind, "tasks", len(model.Tasks))
	return model, nil
}

func decodeFile(root *fileRoot, evalCtx *hcl.EvalContext, model *config.Model) error {
	var diags hcl.Diagnostics
	decode := func(b *plainBlock, target any) {
		if b != nil {
			diags = append(diags, gohcl.DecodeBody(b.Body, evalCtx, target)...)
		}
	}
	decode(root.Log, &model.Log)
	decode(root.Server, &model.Server)
	decode(root.Layout, &model.Layout)
	decode(root.Proximity, &model.Proximity)

	if root.Storage != nil {
		if root.Storage.Label != model.Storage.Kind {
			// Switching backend discards attributes of the previous one.
			model.Storage = config.Default().Storage
			model.Storage.Kind = root.Storage.Label
		}
		diags = append(diags, gohcl.DecodeBody(root.Storage.Body, evalCtx, &model.Storage)...)
	}

	for _, tb := range root.Tasks {
		task := config.Task{Ref: tb.Label}
		diags = append(diags, gohcl.DecodeBody(tb.Body, evalCtx, &task)...)
		model.Tasks = append(model.Tasks, task)
	}

	if diags.HasErrors() {
		return diags
	}
	return nil
}

// evalContext exposes the process environment as env.NAME.
func (l *Loader) evalContext() *hcl.EvalContext {
	environ := l.Environ
	if environ == nil {
		environ = os.Environ
	}
	vars := make(map[string]cty.Value)
	for _, kv := range environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !hclIdentifier(name) || !utf8.ValidString(value) {
			continue
		}
		vars[name] = cty.StringVal(value)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": cty.ObjectVal(vars)},
	}
}

// hclIdentifier reports whether name can be written as env.name.
func hclIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case i > 0 && (r == '-' || r >= '0' && r <= '9'):
		default:
			return false
		}
	}
	return true
}

// findAllHCLFiles walks all given paths and returns a flat list of all .hcl files found.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue // It's not an error if a configured path doesn't exist.
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if info.IsDir() {
			err := filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && filepath.Ext(p) == ".hcl" {
					if _, wasSeen := seen[p]; !wasSeen {
						allFiles = append(allFiles, p)
						seen[p] = struct{}{}
					}
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		} else if filepath.Ext(path) == ".hcl" {
			if _, wasSeen := seen[path]; !wasSeen {
				allFiles = append(allFiles, path)
				seen[path] = struct{}{}
			}
		}
	}
	return allFiles, nil
}
