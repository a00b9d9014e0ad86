package api

import (
	"errors"
	"sync"
	"testing"
)

func TestConfigFrom(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want Config
	}{
		{
			name: "defaults",
			env:  map[string]string{},
			want: Config{StateFile: ".tracksyncpts"},
		},
		{
			name: "all set",
			env: map[string]string{
				EnvStateFile: "/tmp/state",
				EnvVerbosity: "2",
				EnvDisable:   "true",
				EnvSession:   "abc",
			},
			want: Config{StateFile: "/tmp/state", Verbosity: 2, Disabled: true, Session: "abc"},
		},
		{
			name: "garbage values ignored",
			env: map[string]string{
				EnvVerbosity: "loud",
				EnvDisable:   "maybe",
			},
			want: Config{StateFile: ".tracksyncpts"},
		},
		{
			name: "disable with 1",
			env:  map[string]string{EnvDisable: "1"},
			want: Config{StateFile: ".tracksyncpts", Disabled: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := configFrom(func(k string) string { return tt.env[k] })
			if got != tt.want {
				t.Errorf("configFrom = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNew_UnresolvedPrimitive(t *testing.T) {
	p := native()
	p.Unlock = nil

	_, err := New(Options{Primitives: p})
	var re *ResolveError
	if !errors.As(err, &re) {
		t.Fatalf("New error = %v, want *ResolveError", err)
	}
	if re.Name != "unlock" {
		t.Errorf("Name = %q, want unlock", re.Name)
	}
}

func TestGenuine_Resolved(t *testing.T) {
	g := Genuine()
	if err := g.validate(); err != nil {
		t.Fatalf("genuine primitives invalid: %v", err)
	}
	if Genuine() != g {
		t.Error("Genuine() resolved twice")
	}

	var mu sync.Mutex
	g.Lock(&mu)
	if mu.TryLock() {
		t.Error("genuine Lock did not lock")
	}
	g.Unlock(&mu)
	if !mu.TryLock() {
		t.Error("genuine Unlock did not unlock")
	}
	mu.Unlock()
}
