// Package gen generates backend binding code from ordinary Go
// packages.
//
// Given a package of plain exported functions, it produces a Go source
// file whose constructor builds a dispatch.Backend registering one
// implementation per function. The generated implementations decline
// calls whose arguments do not fit the Go signature, so a generated
// backend composes with hand-written ones under normal fallback rules.
package gen

import (
	"fmt"
	"go/types"
	"sort"

	"golang.org/x/tools/go/packages"
)

// ParamKind is the restricted set of Go types bindable as dispatch
// arguments and results.
type ParamKind int

const (
	KindFloat64 ParamKind = iota
	KindInt
	KindString
	KindBool
)

func (k ParamKind) goType() string {
	switch k {
	case KindFloat64:
		return "float64"
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	}
	return "any"
}

// FuncInfo is one bindable exported function.
type FuncInfo struct {
	// Name is the Go function name; it doubles as the method display
	// name the generated backend serves.
	Name string

	// Params are the parameter kinds in declaration order.
	Params []ParamKind

	// Result is the kind of the single non-error result.
	Result ParamKind

	// ReturnsError is true for (T, error) signatures. The generated
	// implementation propagates the error, stopping dispatch.
	ReturnsError bool
}

// InspectResult describes one inspected package.
type InspectResult struct {
	// PkgPath is the package's import path.
	PkgPath string

	// PkgName is the package's Go name, used to qualify calls.
	PkgName string

	// Funcs are the bindable functions, sorted by name.
	Funcs []FuncInfo

	// Skipped lists exported functions left unbound, with reasons.
	Skipped []string
}

// Inspect loads the package at pkgPath and extracts its bindable
// exported functions. Functions whose signatures fall outside the
// supported kinds are recorded in Skipped rather than failing the run.
func Inspect(pkgPath string, only []string) (*InspectResult, error) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedTypes}
	pkgs, err := packages.Load(cfg, pkgPath)
	if err != nil {
		return nil, fmt.Errorf("loading package %s: %w", pkgPath, err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("package %s not found", pkgPath)
	}
	pkg := pkgs[0]
	if len(pkg.Errors) > 0 {
		return nil, fmt.Errorf("loading package %s: %v", pkgPath, pkg.Errors[0])
	}

	wanted := make(map[string]bool, len(only))
	for _, name := range only {
		wanted[name] = true
	}

	result := &InspectResult{PkgPath: pkg.PkgPath, PkgName: pkg.Types.Name()}
	scope := pkg.Types.Scope()
	for _, name := range scope.Names() {
		obj := scope.Lookup(name)
		fn, ok := obj.(*types.Func)
		if !ok || !fn.Exported() {
			continue
		}
		if len(only) > 0 && !wanted[name] {
			continue
		}
		info, reason := resolveFunc(fn)
		if reason != "" {
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: %s", name, reason))
			continue
		}
		result.Funcs = append(result.Funcs, *info)
	}
	sort.Slice(result.Funcs, func(i, j int) bool { return result.Funcs[i].Name < result.Funcs[j].Name })

	if len(only) > 0 {
		for _, name := range only {
			if scope.Lookup(name) == nil {
				return nil, fmt.Errorf("package %s has no exported function %q", pkgPath, name)
			}
		}
	}
	return result, nil
}

// resolveFunc maps a Go function to its binding, or explains why it
// cannot be bound.
func resolveFunc(fn *types.Func) (*FuncInfo, string) {
	sig, ok := fn.Type().(*types.Signature)
	if !ok {
		return nil, "not a plain function"
	}
	if sig.TypeParams().Len() > 0 {
		return nil, "generic functions are not supported"
	}
	if sig.Variadic() {
		return nil, "variadic functions are not supported"
	}
	if sig.Recv() != nil {
		return nil, "methods are not supported"
	}

	info := &FuncInfo{Name: fn.Name()}
	for i := 0; i < sig.Params().Len(); i++ {
		kind, ok := basicKind(sig.Params().At(i).Type())
		if !ok {
			return nil, fmt.Sprintf("parameter %d has unsupported type %s", i, sig.Params().At(i).Type())
		}
		info.Params = append(info.Params, kind)
	}

	results := sig.Results()
	switch results.Len() {
	case 1:
		kind, ok := basicKind(results.At(0).Type())
		if !ok {
			return nil, fmt.Sprintf("result has unsupported type %s", results.At(0).Type())
		}
		info.Result = kind
	case 2:
		kind, ok := basicKind(results.At(0).Type())
		if !ok {
			return nil, fmt.Sprintf("result has unsupported type %s", results.At(0).Type())
		}
		if !isErrorType(results.At(1).Type()) {
			return nil, "second result must be error"
		}
		info.Result = kind
		info.ReturnsError = true
	default:
		return nil, fmt.Sprintf("functions must return 1 value or (value, error), got %d results", results.Len())
	}
	return info, ""
}

func basicKind(t types.Type) (ParamKind, bool) {
	basic, ok := t.Underlying().(*types.Basic)
	if !ok {
		return 0, false
	}
	switch basic.Kind() {
	case types.Float64:
		return KindFloat64, true
	case types.Int:
		return KindInt, true
	case types.String:
		return KindString, true
	case types.Bool:
		return KindBool, true
	}
	return 0, false
}

func isErrorType(t types.Type) bool {
	named, ok := t.(*types.Named)
	return ok && named.Obj().Pkg() == nil && named.Obj().Name() == "error"
}
