package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "separate value kept",
			args:    []string{"-a", ":8080", "-x", "1"},
			allowed: []string{"-a"},
			want:    []string{"-a", ":8080"},
		},
		{
			name:    "attached value kept",
			args:    []string{"-a=:8080", "-x=1"},
			allowed: []string{"-a"},
			want:    []string{"-a=:8080"},
		},
		{
			name:    "flag followed by another flag",
			args:    []string{"-a", "-d", "dsn"},
			allowed: []string{"-a", "-d"},
			want:    []string{"-a", "-d", "dsn"},
		},
		{
			name:    "nothing allowed",
			args:    []string{"-a", ":8080"},
			allowed: nil,
			want:    []string{},
		},
		{
			name:    "empty args",
			args:    nil,
			allowed: []string{"-a"},
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowed))
		})
	}
}

func TestJsonConfigFlags(t *testing.T) {
	old := os.Args
	t.Cleanup(func() { os.Args = old })

	os.Args = []string{"server", "-c", "/tmp/cfg.json", "-a", ":8080"}
	assert.Equal(t, "/tmp/cfg.json", JsonConfigFlags())

	os.Args = []string{"server", "-config", "/tmp/other.json"}
	assert.Equal(t, "/tmp/other.json", JsonConfigFlags())

	os.Args = []string{"server", "-a", ":8080"}
	assert.Equal(t, "", JsonConfigFlags())
}
