package gen

import (
	"strings"
	"testing"
)

func sampleResult() *InspectResult {
	return &InspectResult{
		PkgPath: "example.com/mathx",
		PkgName: "mathx",
		Funcs: []FuncInfo{
			{Name: "Add", Params: []ParamKind{KindFloat64, KindFloat64}, Result: KindFloat64},
			{Name: "Parse", Params: []ParamKind{KindString}, Result: KindInt, ReturnsError: true},
		},
	}
}

func TestRender_Basics(t *testing.T) {
	src, err := Render(sampleResult(), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"// Code generated by umethod gen from example.com/mathx. DO NOT EDIT.",
		"package backends",
		"func NewMathxBackend(methods map[string]*dispatch.Method) *dispatch.Backend {",
		`b := dispatch.NewBackend("mathx")`,
		`if m, ok := methods["Add"]; ok {`,
		"mathx.Add(a0, a1)",
		"func argFloat64(v any) (float64, bool) {",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("generated source missing %q", want)
		}
	}
}

func TestRender_ErrorReturningFunc(t *testing.T) {
	src, err := Render(sampleResult(), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(src, "out, err := mathx.Parse(a0)") {
		t.Error("error-returning function must use the (value, error) call form")
	}
	if !strings.Contains(src, "return dispatch.Result{}, err") {
		t.Error("a Go error must propagate and stop dispatch, not decline")
	}
}

func TestRender_OptionsOverride(t *testing.T) {
	src, err := Render(sampleResult(), Options{Backend: "fast-math", OutPkg: "mypkg"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(src, "package mypkg") {
		t.Error("OutPkg not honored")
	}
	if !strings.Contains(src, "func NewFastMathBackend(") {
		t.Error("backend name not turned into the constructor name")
	}
	if !strings.Contains(src, `dispatch.NewBackend("fast-math")`) {
		t.Error("backend display name not preserved")
	}
}

func TestRender_NoFuncs(t *testing.T) {
	_, err := Render(&InspectResult{PkgPath: "example.com/empty", PkgName: "empty"}, Options{})
	if err == nil {
		t.Fatal("expected error for a package with no bindable functions")
	}
}

func TestExportedIdent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"mathx", "Mathx"},
		{"fast-math", "FastMath"},
		{"go redis", "GoRedis"},
		{"", "Pkg"},
	}
	for _, tt := range tests {
		if got := exportedIdent(tt.in); got != tt.want {
			t.Errorf("exportedIdent(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestImportAlias(t *testing.T) {
	tests := []struct {
		pkgPath string
		outPkg  string
		want    string
	}{
		{"example.com/mathx", "backends", "mathx"},
		{"example.com/go-redis", "backends", "goredis"},
		{"example.com/backends", "backends", "bound"},
		{"example.com/dispatch", "backends", "bound"},
	}
	for _, tt := range tests {
		if got := importAlias(tt.pkgPath, tt.outPkg); got != tt.want {
			t.Errorf("importAlias(%q, %q) = %q; want %q", tt.pkgPath, tt.outPkg, got, tt.want)
		}
	}
}
