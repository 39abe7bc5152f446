// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package jit

import (
	"strings"
	"text/template"

	"github.com/pkg/errors"
)

var sourceTemplate = template.Must(template.New("kernel").Funcs(template.FuncMap{
	"join":      strings.Join,
	"macroName": macroName,
}).Parse(`// Kernel: {{.Name}}
{{range .Constants}}#define {{.Name}} {{.Value}}
{{end}}
__kernel void {{.EntryPoint}}({{join .Args ", "}})
{
{{.Body}}
}
{{range .Constants}}#undef {{macroName .Name}}
{{end}}`))

// macroName strips the parameter list of function-like macros.
func macroName(name string) string {
	if idx := strings.IndexByte(name, '('); idx >= 0 {
		return name[:idx]
	}
	return name
}

// Source is the input of Render.
type Source struct {
	// Name of the kernel implementation, EntryPoint the name of the generated function.
	Name, EntryPoint string

	Constants *Constants

	// Args are the declarations of the kernel arguments, in order.
	Args []string

	// Body of the kernel function.
	Body string
}

// Render the source text of a kernel. The output only depends on the input values.
func Render(src Source) (string, error) {
	if src.EntryPoint == "" {
		return "", errors.Errorf("jit.Render(%q): missing entry point", src.Name)
	}
	constants := src.Constants
	if constants == nil {
		constants = NewConstants()
	}
	var sb strings.Builder
	err := sourceTemplate.Execute(&sb, struct {
		Source
		Constants []Constant
	}{Source: src, Constants: constants.entries})
	if err != nil {
		return "", errors.Wrapf(err, "jit.Render(%q)", src.Name)
	}
	return sb.String(), nil
}
