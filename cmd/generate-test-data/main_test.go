package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/MeKo-Tech/labelscan/internal/barcode"
	"github.com/MeKo-Tech/labelscan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_WritesOrderedSamples(t *testing.T) {
	dir := t.TempDir()

	samples, err := generate(dir, 1)
	require.NoError(t, err)
	require.Len(t, samples, 6)
	assert.Equal(t, 6, testutil.CountFiles(dir))

	names := make([]string, len(samples))
	for i, s := range samples {
		names[i] = s.File
		assert.FileExists(t, filepath.Join(dir, s.File))
	}
	assert.True(t, sort.StringsAreSorted(names), "directory order matches manifest order")
	assert.Equal(t, "blank", samples[len(samples)-1].Kind)
	assert.Empty(t, samples[len(samples)-1].Payload)
}

func TestGenerate_BarcodeSamplesDecode(t *testing.T) {
	dir := t.TempDir()
	samples, err := generate(dir, 0)
	require.NoError(t, err)

	backend := barcode.NewBackend()
	for _, s := range samples {
		if s.Symbology == "" {
			continue
		}
		img := testutil.LoadImage(t, filepath.Join(dir, s.File))
		results, err := backend.Decode(context.Background(), img, barcode.Options{TryHarder: true})
		require.NoError(t, err, s.File)
		require.NotEmpty(t, results, s.File)
		assert.Equal(t, s.Payload, results[0].Value, s.File)
		assert.Equal(t, s.Symbology, results[0].Type.String(), s.File)
	}
}

func TestWriteManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	in := []Sample{{File: "001_qr.png", Kind: "qr", Payload: "X", Symbology: "QRCODE"}}
	require.NoError(t, writeManifest(path, in))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out []Sample
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}
