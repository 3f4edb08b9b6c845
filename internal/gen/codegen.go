package gen

import (
	"fmt"
	"strings"
	"unicode"
)

// Options controls one generation run.
type Options struct {
	// Package is the Go package to bind, as an import path or a
	// ./relative directory.
	Package string

	// Backend is the generated backend's display name. Defaults to the
	// bound package's name.
	Backend string

	// OutPkg is the package name of the generated file. Defaults to
	// "backends".
	OutPkg string

	// Funcs optionally restricts binding to the named functions.
	Funcs []string
}

// Generate inspects opts.Package and returns the generated Go source.
func Generate(opts Options) (string, error) {
	result, err := Inspect(opts.Package, opts.Funcs)
	if err != nil {
		return "", err
	}
	return Render(result, opts)
}

// Render produces the generated Go source for an inspection result.
// It is split from Generate so it can be exercised without loading
// real packages.
func Render(result *InspectResult, opts Options) (string, error) {
	if len(result.Funcs) == 0 {
		return "", fmt.Errorf("package %s has no bindable exported functions", result.PkgPath)
	}

	backend := opts.Backend
	if backend == "" {
		backend = result.PkgName
	}
	outPkg := opts.OutPkg
	if outPkg == "" {
		outPkg = "backends"
	}
	ctor := "New" + exportedIdent(backend) + "Backend"
	alias := importAlias(result.PkgPath, outPkg)

	var b strings.Builder
	fmt.Fprintf(&b, "// Code generated by umethod gen from %s. DO NOT EDIT.\n\n", result.PkgPath)
	fmt.Fprintf(&b, "package %s\n\n", outPkg)
	b.WriteString("import (\n")
	b.WriteString("\t\"context\"\n\n")
	fmt.Fprintf(&b, "\t%s %q\n\n", alias, result.PkgPath)
	b.WriteString("\t\"github.com/funvibe/umethod/pkg/dispatch\"\n")
	b.WriteString(")\n\n")

	fmt.Fprintf(&b, "// %s builds a backend serving the exported functions of\n", ctor)
	fmt.Fprintf(&b, "// %s. The methods map resolves each function name to the\n", result.PkgPath)
	b.WriteString("// multimethod it implements; functions without an entry stay unbound.\n")
	fmt.Fprintf(&b, "func %s(methods map[string]*dispatch.Method) *dispatch.Backend {\n", ctor)
	fmt.Fprintf(&b, "\tb := dispatch.NewBackend(%q)\n", backend)

	kinds := map[ParamKind]bool{}
	for _, fn := range result.Funcs {
		fmt.Fprintf(&b, "\tif m, ok := methods[%q]; ok {\n", fn.Name)
		b.WriteString("\t\tb.Register(m, func(ctx context.Context, call dispatch.Call) (dispatch.Result, error) {\n")
		fmt.Fprintf(&b, "\t\t\tif len(call.Args) != %d {\n", len(fn.Params))
		b.WriteString("\t\t\t\treturn dispatch.Declined(), nil\n")
		b.WriteString("\t\t\t}\n")
		callArgs := make([]string, len(fn.Params))
		for i, kind := range fn.Params {
			kinds[kind] = true
			name := fmt.Sprintf("a%d", i)
			callArgs[i] = name
			fmt.Fprintf(&b, "\t\t\t%s, ok := %s(call.Args[%d])\n", name, argHelper(kind), i)
			b.WriteString("\t\t\tif !ok {\n")
			b.WriteString("\t\t\t\treturn dispatch.Declined(), nil\n")
			b.WriteString("\t\t\t}\n")
		}
		callExpr := fmt.Sprintf("%s.%s(%s)", alias, fn.Name, strings.Join(callArgs, ", "))
		if fn.ReturnsError {
			fmt.Fprintf(&b, "\t\t\tout, err := %s\n", callExpr)
			b.WriteString("\t\t\tif err != nil {\n")
			b.WriteString("\t\t\t\treturn dispatch.Result{}, err\n")
			b.WriteString("\t\t\t}\n")
			b.WriteString("\t\t\treturn dispatch.Handled(out), nil\n")
		} else {
			fmt.Fprintf(&b, "\t\t\treturn dispatch.Handled(%s), nil\n", callExpr)
		}
		b.WriteString("\t\t})\n")
		b.WriteString("\t}\n")
	}
	b.WriteString("\treturn b\n")
	b.WriteString("}\n")

	writeArgHelpers(&b, kinds)
	return b.String(), nil
}

func argHelper(k ParamKind) string {
	return "arg" + exportedIdent(k.goType())
}

// writeArgHelpers emits the conversion helpers the generated
// implementations use to decide applicability. Numeric arguments accept
// both int and float64 so values that crossed a JSON boundary still
// match.
func writeArgHelpers(b *strings.Builder, kinds map[ParamKind]bool) {
	if kinds[KindFloat64] {
		b.WriteString(`
func argFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
`)
	}
	if kinds[KindInt] {
		b.WriteString(`
func argInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		if float64(int(n)) == n {
			return int(n), true
		}
	}
	return 0, false
}
`)
	}
	if kinds[KindString] {
		b.WriteString(`
func argString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}
`)
	}
	if kinds[KindBool] {
		b.WriteString(`
func argBool(v any) (bool, bool) {
	t, ok := v.(bool)
	return t, ok
}
`)
	}
}

// exportedIdent turns an arbitrary name into an exported Go identifier
// fragment ("go-redis" → "GoRedis").
func exportedIdent(name string) string {
	var b strings.Builder
	upper := true
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			b.WriteRune(unicode.ToUpper(r))
			upper = false
		} else {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "Pkg"
	}
	return b.String()
}

// importAlias picks a local alias for the bound package that cannot
// collide with the generated package name or generated identifiers.
func importAlias(pkgPath, outPkg string) string {
	base := pkgPath
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	var b strings.Builder
	for _, r := range base {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	alias := b.String()
	if alias == "" || alias == outPkg || alias == "context" || alias == "dispatch" {
		alias = "bound"
	}
	return alias
}
