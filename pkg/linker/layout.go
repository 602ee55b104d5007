package linker

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/template"

	"github.com/drone-os/drone/pkg/config"
)

//go:embed layout.ld.tmpl
var layoutSource string

var layoutTemplate = template.Must(template.New("layout.ld").Funcs(template.FuncMap{
	"hex": func(v uint32) string { return fmt.Sprintf("0x%08x", v) },
}).Parse(layoutSource))

// Script file names written into the build directory.
const (
	FirstPassScript  = "layout.ld.1"
	SecondPassScript = "layout.ld.2"
)

type layoutData struct {
	*config.Config
	WithSizes bool
}

// RenderLayout writes the linker script for cfg.  With withSizes set the
// script references the _<section>_section_size symbols supplied by the
// second link pass.
func RenderLayout(w io.Writer, cfg *config.Config, withSizes bool) error {
	return layoutTemplate.Execute(w, layoutData{Config: cfg, WithSizes: withSizes})
}

// Scripts are the paths of the two rendered linker scripts.
type Scripts struct {
	First  string
	Second string
}

// WriteScripts renders both script variants into dir, creating it if
// needed.  Existing scripts are overwritten.
func WriteScripts(dir string, cfg *config.Config) (Scripts, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Scripts{}, fmt.Errorf("creating build directory: %w", err)
	}
	s := Scripts{
		First:  filepath.Join(dir, FirstPassScript),
		Second: filepath.Join(dir, SecondPassScript),
	}
	if err := writeScript(s.First, cfg, false); err != nil {
		return Scripts{}, err
	}
	if err := writeScript(s.Second, cfg, true); err != nil {
		return Scripts{}, err
	}
	return s, nil
}

func writeScript(path string, cfg *config.Config, withSizes bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating linker script: %w", err)
	}
	if err := RenderLayout(f, cfg, withSizes); err != nil {
		f.Close()
		return fmt.Errorf("rendering %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
