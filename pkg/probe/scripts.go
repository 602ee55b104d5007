package probe

import (
	"fmt"
	"os"
	"text/template"
)

var scriptFuncs = template.FuncMap{
	"hex": func(v uint32) string { return fmt.Sprintf("0x%08x", v) },
}

var scripts = template.Must(template.New("scripts").Funcs(scriptFuncs).Parse(`
{{- define "openocd-gdb" -}}
{{- with .SubstitutePath}}set substitute-path {{.}}
{{end -}}
target extended-remote :{{.Port}}
{{end -}}

{{- define "bmp-attach" -}}
target extended-remote {{.Endpoint}}
monitor swdp_scan
attach 1
{{end -}}

{{- define "bmp-reset" -}}
{{template "bmp-attach" .}}kill
{{end -}}

{{- define "bmp-flash" -}}
{{template "bmp-attach" .}}load
kill
{{end -}}

{{- define "bmp-gdb" -}}
{{- with .SubstitutePath}}set substitute-path {{.}}
{{end -}}
{{template "bmp-attach" .}}
{{- if .Reset}}kill
attach 1
{{end -}}
{{end -}}

{{- define "jlink-reset" -}}
r
g
q
{{end -}}

{{- define "jlink-flash" -}}
r
loadbin {{.Binary}} {{hex .Origin}}
r
g
q
{{end -}}

{{- define "jlink-gdb" -}}
{{- with .SubstitutePath}}set substitute-path {{.}}
{{end -}}
target extended-remote :{{.Port}}
{{- if .Reset}}
monitor reset
monitor halt
{{- end}}
{{end -}}
`))

// scriptData is the union of fields the templates read.
type scriptData struct {
	Port           uint16
	Endpoint       string
	Reset          bool
	SubstitutePath string
	Binary         string
	Origin         uint32
}

// writeScript renders the named template into a fresh file under dir and
// returns its path.  The caller removes it.
func writeScript(dir, name string, data scriptData) (string, error) {
	f, err := os.CreateTemp(dir, "drone-"+name+"-*")
	if err != nil {
		return "", fmt.Errorf("creating %s script: %w", name, err)
	}
	if err := scripts.ExecuteTemplate(f, name, data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("rendering %s script: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("writing %s script: %w", name, err)
	}
	return f.Name(), nil
}
