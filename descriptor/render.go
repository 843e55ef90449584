package descriptor

import (
	"bytes"
	"fmt"
	"go/format"
	"strings"
	"text/template"

	"github.com/pkg/errors"

	"github.com/wnxd/membase/signature"
)

const (
	OffsetsFile    = "offsets.go"
	SignaturesFile = "memory_signatures.go"
	FunctionsFile  = "function_signatures.go"
	ConfigFile     = "config.go"

	GeneratedHeader = "// Code generated by membasegen. DO NOT EDIT."
	DigestPrefix    = "// descriptor digest: "
)

// Convention is the calling convention generated function types document.
const Convention = "fastcall"

const sourceTemplate = `
{{- define "header" -}}
` + GeneratedHeader + `
` + DigestPrefix + `{{.Digest}}

package {{.Package}}
{{end}}

{{- define "offsets" -}}
{{template "header" .}}
const (
{{- range .Unit.Offsets}}
	{{.Name}} uint64 = {{printf "%#x" .Value}}
{{- end}}
)
{{end}}

{{- define "signatures" -}}
{{template "header" .}}
{{- if .Unit.Signatures}}
import "github.com/wnxd/membase/signature"
{{range .Unit.Signatures}}
// {{.Name}} matches "{{.Pattern}}".
var {{.Name}} = signature.New({{elems .Pattern}})
{{end}}
{{- end}}
{{end}}

{{- define "functions" -}}
{{template "header" .}}
{{- with imports .Unit.Functions}}
import (
{{- range .Std}}
	"{{.}}"
{{- end}}
{{- if and .Std .Module}}
{{end}}
{{- range .Module}}
	"{{.}}"
{{- end}}
)
{{end}}
{{- range .Unit.Functions}}
// {{.Name}} is a foreign function using the ` + Convention + ` calling convention.
type {{.Name}} = func({{params .Params}}){{result .Return}}
{{end}}
{{- end}}

{{- define "config" -}}
{{template "header" .}}
const (
	Name    = {{printf "%q" .Unit.Name}}
	Console = {{.Unit.Console}}
)
{{end}}
`

var sources = template.Must(template.New("descriptor").Funcs(template.FuncMap{
	"elems":   renderElems,
	"params":  renderParams,
	"result":  renderResult,
	"imports": functionImports,
}).Parse(sourceTemplate))

func renderElems(p signature.Pattern) string {
	parts := make([]string, p.Len())
	for i := range parts {
		if b, ok := p.At(i).Value(); ok {
			parts[i] = fmt.Sprintf("signature.Byte(0x%02X)", b)
		} else {
			parts[i] = "signature.Any"
		}
	}
	return strings.Join(parts, ", ")
}

func renderParams(params []Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.Name + " " + p.Type.GoType()
	}
	return strings.Join(parts, ", ")
}

func renderResult(ret Type) string {
	if ret.IsVoid() {
		return ""
	}
	return " " + ret.GoType()
}

// importGroups splits an import block into standard library and module
// paths, rendered as two groups.
type importGroups struct {
	Std, Module []string
}

func functionImports(fns []Function) *importGroups {
	var ctypes, unsafe bool
	use := func(t Type) {
		ctypes = ctypes || t.usesCTypes()
		unsafe = unsafe || t.usesUnsafe()
	}
	for _, fn := range fns {
		if !fn.Return.IsVoid() {
			use(fn.Return)
		}
		for _, p := range fn.Params {
			use(p.Type)
		}
	}
	if !ctypes && !unsafe {
		return nil
	}
	out := new(importGroups)
	if unsafe {
		out.Std = append(out.Std, "unsafe")
	}
	if ctypes {
		out.Module = append(out.Module, "github.com/wnxd/membase/ctypes")
	}
	return out
}

// Render produces gofmt'ed source for every enabled table plus config.go,
// keyed by file name.
func Render(u *Unit, digest string) (map[string][]byte, error) {
	data := struct {
		Unit    *Unit
		Package string
		Digest  string
	}{u, u.Package, digest}
	jobs := map[string]string{ConfigFile: "config"}
	if u.Offsets != nil {
		jobs[OffsetsFile] = "offsets"
	}
	if u.Signatures != nil {
		jobs[SignaturesFile] = "signatures"
	}
	if u.Functions != nil {
		jobs[FunctionsFile] = "functions"
	}
	out := make(map[string][]byte, len(jobs))
	for file, name := range jobs {
		var buf bytes.Buffer
		if err := sources.ExecuteTemplate(&buf, name, data); err != nil {
			return nil, errors.Wrapf(err, "failed to execute %s template", name)
		}
		src, err := format.Source(buf.Bytes())
		if err != nil {
			return nil, errors.Wrapf(err, "generated %s does not parse", file)
		}
		out[file] = src
	}
	return out, nil
}
