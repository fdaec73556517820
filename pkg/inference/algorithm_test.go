package inference

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vesselmask/internal/logger"
	"vesselmask/internal/models"
	"vesselmask/pkg/metadata"
	"vesselmask/pkg/metaio"
)

type layout struct {
	imageDir     string
	metadataFile string
	outputDir    string
}

// newLayout creates the platform's directory structure under a temp dir
func newLayout(t *testing.T) layout {
	t.Helper()
	root := t.TempDir()
	l := layout{
		imageDir:     filepath.Join(root, "input", "images", "oct"),
		metadataFile: filepath.Join(root, "input", "age-in-months.json"),
		outputDir:    filepath.Join(root, "output", "images", "binary-vessel-segmentation"),
	}
	require.NoError(t, os.MkdirAll(l.imageDir, 0755))
	require.NoError(t, os.WriteFile(l.metadataFile, []byte("23\n"), 0644))
	return l
}

func (l layout) params() *Params {
	return &Params{
		ImageDir:     l.imageDir,
		MetadataFile: l.metadataFile,
		OutputDir:    l.outputDir,
	}
}

// scenarioGrid is a 2-channel 2x2x1 volume with means 100, 200, 0 and 255
func scenarioGrid() *models.VoxelGrid {
	g := models.NewVoxelGrid([]int{2, 2, 1}, 2, models.MetUChar)
	copy(g.Data, []float64{100, 100, 200, 200, 0, 0, 255, 255})
	g.Spatial.Origin = []float64{4, 5, 6}
	g.Spatial.Spacing = []float64{0.01, 0.02, 0.5}
	return g
}

func writeInput(t *testing.T, dir, name string, grid *models.VoxelGrid) {
	t.Helper()
	require.NoError(t, metaio.WriteFile(filepath.Join(dir, name), grid, metaio.Options{Compress: true}))
}

func TestRunEndToEnd(t *testing.T) {
	l := newLayout(t)
	input := scenarioGrid()
	writeInput(t, l.imageDir, "oct-scan.mha", input)

	var logs bytes.Buffer
	alg := NewAlgorithm(l.params(), logger.New(&logs, zerolog.DebugLevel, "test-run"))

	summary, err := alg.Run(context.Background())
	require.NoError(t, err)

	wantPath := filepath.Join(l.outputDir, "output.mha")
	assert.Equal(t, wantPath, summary.OutputFile)
	assert.Equal(t, 2, summary.ForegroundVoxels)
	assert.InDelta(t, 0.5, summary.ForegroundFraction, 1e-12)
	assert.Equal(t, 2, summary.Components)

	out, err := metaio.ReadFile(wantPath)
	require.NoError(t, err)

	want := &models.VoxelGrid{
		Dims:        []int{2, 2, 1},
		Components:  1,
		ElementType: models.MetUChar,
		Data:        []float64{0, 255, 0, 255},
		Spatial:     input.Spatial,
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(alg.Mask(), out); diff != "" {
		t.Errorf("written mask differs from computed mask (-computed +read):\n%s", diff)
	}

	raw, err := os.ReadFile(wantPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "CompressedData = True\n", "the mask is always written compressed")

	assert.Contains(t, logs.String(), "mask written")
	assert.Contains(t, logs.String(), "test-run")
}

func TestRunMetadataIsPassedThrough(t *testing.T) {
	l := newLayout(t)
	writeInput(t, l.imageDir, "scan.mha", scenarioGrid())
	require.NoError(t, os.WriteFile(l.metadataFile, []byte(`{"age": 23}`), 0644))

	alg := NewAlgorithm(l.params(), nil)
	_, err := alg.Run(context.Background())
	require.NoError(t, err)

	want, err := metadata.Decode([]byte(`{"age": 23}`))
	require.NoError(t, err)
	assert.Equal(t, want, alg.Metadata())
}

func TestRunNoInput(t *testing.T) {
	l := newLayout(t)
	require.NoError(t, os.WriteFile(filepath.Join(l.imageDir, "notes.txt"), []byte("x"), 0644))

	_, err := NewAlgorithm(l.params(), nil).Run(context.Background())
	assert.ErrorIs(t, err, ErrNoInput)

	_, statErr := os.Stat(filepath.Join(l.outputDir, "output.mha"))
	assert.True(t, os.IsNotExist(statErr), "no output may be created")
}

func TestRunMissingInputDirectory(t *testing.T) {
	l := newLayout(t)
	p := l.params()
	p.ImageDir = filepath.Join(p.ImageDir, "absent")

	_, err := NewAlgorithm(p, nil).Run(context.Background())
	assert.ErrorIs(t, err, ErrNoInput)
}

func TestRunAmbiguousInput(t *testing.T) {
	l := newLayout(t)
	writeInput(t, l.imageDir, "a.mha", scenarioGrid())
	writeInput(t, l.imageDir, "b.MHA", scenarioGrid())

	_, err := NewAlgorithm(l.params(), nil).Run(context.Background())
	assert.ErrorIs(t, err, ErrAmbiguousInput)
	assert.Contains(t, err.Error(), "a.mha, b.MHA")
}

func TestRunMalformedMetadata(t *testing.T) {
	l := newLayout(t)
	writeInput(t, l.imageDir, "scan.mha", scenarioGrid())
	require.NoError(t, os.WriteFile(l.metadataFile, []byte("{"), 0644))

	_, err := NewAlgorithm(l.params(), nil).Run(context.Background())
	assert.ErrorIs(t, err, metadata.ErrMalformedMetadata)

	_, statErr := os.Stat(l.outputDir)
	assert.True(t, os.IsNotExist(statErr), "output directory must not be created")
}

func TestRunUnwritableOutput(t *testing.T) {
	l := newLayout(t)
	writeInput(t, l.imageDir, "scan.mha", scenarioGrid())

	// a regular file where the output directory should be
	require.NoError(t, os.MkdirAll(filepath.Dir(l.outputDir), 0755))
	require.NoError(t, os.WriteFile(l.outputDir, []byte("occupied"), 0644))

	_, err := NewAlgorithm(l.params(), nil).Run(context.Background())
	assert.ErrorIs(t, err, ErrWrite)
}

func TestRunFailedWriteKeepsDirectoryClean(t *testing.T) {
	l := newLayout(t)
	require.NoError(t, os.MkdirAll(l.outputDir, 0755))

	broken := scenarioGrid()
	broken.Data = broken.Data[:3]
	_, err := WriteImage(l.outputDir, broken)
	assert.ErrorIs(t, err, ErrWrite)

	entries, err := os.ReadDir(l.outputDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "neither output.mha nor a temporary file may remain")
}

func TestRunExistingOutputDirectory(t *testing.T) {
	l := newLayout(t)
	writeInput(t, l.imageDir, "scan.mha", scenarioGrid())
	require.NoError(t, os.MkdirAll(l.outputDir, 0755))

	_, err := NewAlgorithm(l.params(), nil).Run(context.Background())
	require.NoError(t, err)
}

func TestRunCancelled(t *testing.T) {
	l := newLayout(t)
	writeInput(t, l.imageDir, "scan.mha", scenarioGrid())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewAlgorithm(l.params(), nil).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunWithPreview(t *testing.T) {
	l := newLayout(t)
	writeInput(t, l.imageDir, "scan.mha", scenarioGrid())

	p := l.params()
	p.SavePreview = true
	p.PreviewDir = filepath.Join(filepath.Dir(filepath.Dir(l.outputDir)), "preview")
	p.PreviewAxis = "z"

	summary, err := NewAlgorithm(p, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.PreviewSlices)
	assert.FileExists(t, filepath.Join(p.PreviewDir, "z", "slice_z_000.png"))
}

func TestRunEmptyImage(t *testing.T) {
	l := newLayout(t)
	writeInput(t, l.imageDir, "empty.mha", models.NewVoxelGrid([]int{0, 3, 1}, 3, models.MetUChar))

	summary, err := NewAlgorithm(l.params(), nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ForegroundVoxels)
	assert.Equal(t, 0.0, summary.ForegroundFraction)

	out, err := metaio.ReadFile(summary.OutputFile)
	require.NoError(t, err)
	assert.Empty(t, out.Data)
}

func TestFindImageIgnoresDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.mha"), 0755))
	writeInput(t, dir, "scan.mha", scenarioGrid())

	path, err := FindImage(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "scan.mha"), path)
}
