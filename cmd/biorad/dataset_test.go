package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmedalbuni/biorad/pkg/errors"
)

func TestReadCSV(t *testing.T) {
	t.Run("last column is the label by default", func(t *testing.T) {
		ds, err := readCSV(strings.NewReader("a,b,y\n1,2,0\n3,4,1\n5,6,1\n"), "")
		require.NoError(t, err)

		r, c := ds.X.Dims()
		assert.Equal(t, 3, r)
		assert.Equal(t, 2, c)
		assert.Equal(t, []string{"a", "b"}, ds.Features)
		assert.Equal(t, []float64{0, 1, 1}, ds.Y)
		assert.Nil(t, ds.Classes)
		assert.Equal(t, 6.0, ds.X.At(2, 1))
	})

	t.Run("named label column", func(t *testing.T) {
		ds, err := readCSV(strings.NewReader("label,a,b\n1,2,3\n0,4,5\n"), "label")
		require.NoError(t, err)

		assert.Equal(t, []string{"a", "b"}, ds.Features)
		assert.Equal(t, []float64{1, 0}, ds.Y)
		assert.Equal(t, 4.0, ds.X.At(1, 0))
	})

	t.Run("text labels are encoded in sorted order", func(t *testing.T) {
		ds, err := readCSV(strings.NewReader("a,y\n1,tumour\n2,normal\n3,tumour\n"), "")
		require.NoError(t, err)

		assert.Equal(t, []string{"normal", "tumour"}, ds.Classes)
		assert.Equal(t, []float64{1, 0, 1}, ds.Y)
	})
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		label string
	}{
		{name: "header only", input: "a,y\n"},
		{name: "single column", input: "y\n1\n"},
		{name: "unknown label", input: "a,y\n1,0\n", label: "class"},
		{name: "non-numeric feature", input: "a,y\nx,0\n"},
		{name: "ragged row", input: "a,b,y\n1,2,0\n3,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readCSV(strings.NewReader(tt.input), tt.label)
			assert.Error(t, err)
		})
	}

	_, err := readCSV(strings.NewReader("a,y\n"), "")
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,y\n1,0\n2,1\n"), 0o600))

	ds, err := loadCSV(path, "y")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, ds.Y)

	_, err = loadCSV(filepath.Join(t.TempDir(), "missing.csv"), "")
	assert.Error(t, err)
}
