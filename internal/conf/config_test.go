package conf

import (
	"context"
	"strings"
	"testing"

	"github.com/funvibe/umethod/pkg/dispatch"
)

func TestParseConfig_Valid(t *testing.T) {
	yaml := `
backends:
  - name: cuda
    priority: 10
    coerce: true
  - name: cpu
profiles:
  - name: cuda-strict
    backends: [cuda]
    only: true
`
	cfg, err := ParseConfig([]byte(yaml), "test.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Backends) != 2 {
		t.Fatalf("expected 2 backends, got %d", len(cfg.Backends))
	}
	if cfg.Backends[0].Name != "cuda" || cfg.Backends[0].Priority != 10 || !cfg.Backends[0].Coerce {
		t.Errorf("backends[0] = %+v, want {cuda 10 true}", cfg.Backends[0])
	}
	if len(cfg.Profiles) != 1 {
		t.Fatalf("expected 1 profile, got %d", len(cfg.Profiles))
	}
	if !cfg.Profiles[0].Only {
		t.Error("expected cuda-strict profile to be exclusive")
	}
}

func TestParseConfig_Errors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", `{}`, "no backends defined"},
		{"unnamed backend", "backends:\n  - priority: 1\n", "name is required"},
		{"duplicate backend", "backends:\n  - name: a\n  - name: a\n", "duplicate backend"},
		{"profile without backends", "backends:\n  - name: a\nprofiles:\n  - name: p\n", "backends is required"},
		{"profile unknown backend", "backends:\n  - name: a\nprofiles:\n  - name: p\n    backends: [b]\n", "unknown backend"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tc.yaml), "test.yaml")
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestApply_RegistersInConfiguredOrder(t *testing.T) {
	yaml := `
backends:
  - name: cuda
    priority: 10
  - name: cpu
`
	cfg, err := ParseConfig([]byte(yaml), "test.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cuda := dispatch.NewBackend("cuda")
	cpu := dispatch.NewBackend("cpu")
	reg := dispatch.NewRegistry()
	catalog := map[string]*dispatch.Backend{"cuda": cuda, "cpu": cpu}
	if err := cfg.Apply(reg, catalog); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := reg.Backends()
	if len(got) != 2 || got[0] != cuda || got[1] != cpu {
		t.Errorf("registry order wrong: got %d backends, cuda first = %v", len(got), len(got) > 0 && got[0] == cuda)
	}
}

func TestApply_MissingCatalogEntry(t *testing.T) {
	cfg, err := ParseConfig([]byte("backends:\n  - name: cuda\n"), "test.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = cfg.Apply(dispatch.NewRegistry(), nil)
	if err == nil || !strings.Contains(err.Error(), "cuda") {
		t.Fatalf("expected error naming the missing backend, got %v", err)
	}
}

func TestScope_AppliesProfile(t *testing.T) {
	yaml := `
backends:
  - name: cuda
  - name: cpu
profiles:
  - name: cuda-strict
    backends: [cuda]
    only: true
`
	cfg, err := ParseConfig([]byte(yaml), "test.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reg := dispatch.NewRegistry()
	m := dispatch.NewMethod("fruit", nil, nil, dispatch.WithRegistry(reg))

	cuda := dispatch.NewBackend("cuda")
	cpu := dispatch.NewBackend("cpu")
	cpu.Register(m, func(ctx context.Context, call dispatch.Call) (dispatch.Result, error) {
		return dispatch.Handled("cpu"), nil
	})
	catalog := map[string]*dispatch.Backend{"cuda": cuda, "cpu": cpu}
	if err := cfg.Apply(reg, catalog); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out, err := m.Invoke(context.Background(), nil, nil); err != nil || out != "cpu" {
		t.Fatalf("unscoped call got (%v, %v), want (cpu, nil)", out, err)
	}

	ctx, err := cfg.Scope(context.Background(), "cuda-strict", catalog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.Invoke(ctx, nil, nil); err == nil {
		t.Fatal("exclusive profile must hide the cpu backend")
	}

	if _, err := cfg.Scope(context.Background(), "nope", catalog); err == nil {
		t.Fatal("expected error for unknown profile")
	}
}
