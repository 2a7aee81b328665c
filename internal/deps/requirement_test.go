package deps

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRequirement(t *testing.T) {
	tests := []struct {
		in   string
		want Requirement
	}{
		{"numpy", Requirement{Name: "numpy"}},
		{"numpy==1.26.4", Requirement{Name: "numpy", Version: "1.26.4"}},
		{"numpy=1.26", Requirement{Name: "numpy", Version: "1.26"}},
		{"numpy=1.26=py310h", Requirement{Name: "numpy", Version: "1.26"}},
		{"conda-forge::SimpleITK==2.3", Requirement{Name: "simpleitk", Version: "2.3"}},
		{"scikit_image>=0.20", Requirement{Name: "scikit-image"}},
		{"Pillow!=9.0", Requirement{Name: "pillow"}},
		{"napari[all]==0.4.19", Requirement{Name: "napari", Version: "0.4.19"}},
		{"torch|linux-64", Requirement{Name: "torch"}},
		{"python 3.10", Requirement{Name: "python", Version: "3.10"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRequirement(tt.in))
		})
	}
}

func TestRequirement_SatisfiedBy(t *testing.T) {
	assert.True(t, Requirement{Name: "a"}.SatisfiedBy("9.9"))
	assert.True(t, Requirement{Name: "a", Version: "1.2"}.SatisfiedBy("1.2"))
	assert.True(t, Requirement{Name: "a", Version: "1.2"}.SatisfiedBy("1.2.3"))
	assert.False(t, Requirement{Name: "a", Version: "1.2"}.SatisfiedBy("1.20"))
	assert.False(t, Requirement{Name: "a", Version: "1.2"}.SatisfiedBy("1.3"))
}
