package commands

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pixpack/models"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/cobra"
)

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 7), uint8(y * 5), uint8(x ^ y), 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func writeArchive(t *testing.T, path string, files map[string][]byte) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		f, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestShrinkCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.zip")
	out := filepath.Join(dir, "out.zip")
	writeArchive(t, in, map[string][]byte{
		"photos/big.jpg": jpegBytes(t, 400, 300),
		"notes.txt":      []byte("skip me"),
	})

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{"shrink", in, "-o", out, "--max-long-edge", "100", "--log-level", "error"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("shrink failed: %v (stderr: %s)", err, stderr.String())
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Output is not a valid zip: %v", err)
	}
	if len(zr.File) != 1 || zr.File[0].Name != "big.jpg" {
		t.Fatalf("Expected a single big.jpg entry, got %d entries", len(zr.File))
	}

	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := jpeg.DecodeConfig(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("Output entry is not a JPEG: %v", err)
	}
	if cfg.Width != 100 || cfg.Height != 75 {
		t.Errorf("Expected 100x75, got %dx%d", cfg.Width, cfg.Height)
	}

	if !strings.Contains(stdout.String(), "1 processed") {
		t.Errorf("Summary missing from output: %s", stdout.String())
	}

	if leftovers, _ := filepath.Glob(filepath.Join(dir, "*.part")); len(leftovers) != 0 {
		t.Errorf("Temporary files left behind: %v", leftovers)
	}
}

func TestShrinkToFileRemovesOutputOnFailure(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.zip")
	inv := models.JobInvocation{JobID: "bad", ArchiveData: []byte("not a zip"), Rules: models.DefaultRules()}

	var buf bytes.Buffer
	_, err := shrinkToFile(context.Background(), inv, out, &buf, false)
	if err == nil || !strings.Contains(err.Error(), "malformed archive") {
		t.Fatalf("Expected malformed archive error, got %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected empty directory, found %d files", len(entries))
	}
}

func TestShrinkRulesPresetAndOverrides(t *testing.T) {
	preset := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(preset, []byte("maxBytes: 50000\nquality: 0.7\nformat: auto\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cmd := &cobra.Command{}
	f := cmd.Flags()
	f.String("rules", "", "")
	f.Int64("max-bytes", 0, "")
	f.Int("max-long-edge", 0, "")
	f.Float64("quality", 0, "")
	f.Float64("min-quality", 0, "")
	f.Float64("step-down", 0, "")
	f.Int("max-count", 0, "")
	f.String("format", "", "")
	if err := f.Parse([]string{"--rules", preset, "--quality", "0.9"}); err != nil {
		t.Fatal(err)
	}

	rules, err := shrinkRules(cmd)
	if err != nil {
		t.Fatalf("shrinkRules failed: %v", err)
	}
	if rules.MaxBytes != 50000 {
		t.Errorf("Expected maxBytes 50000 from preset, got %d", rules.MaxBytes)
	}
	if rules.Quality != 0.9 {
		t.Errorf("Expected flag quality 0.9 to override preset, got %v", rules.Quality)
	}
	if rules.Format != models.FormatPreferenceAuto {
		t.Errorf("Expected format auto, got %v", rules.Format)
	}
	if rules.MinQuality != models.DefaultMinQuality {
		t.Errorf("Expected default min quality, got %v", rules.MinQuality)
	}
}

func TestEnsureDirectories(t *testing.T) {
	a := filepath.Join(t.TempDir(), "a", "b")
	if err := ensureDirectories(a, ""); err != nil {
		t.Fatalf("ensureDirectories failed: %v", err)
	}
	if info, err := os.Stat(a); err != nil || !info.IsDir() {
		t.Errorf("Expected directory at %s: %v", a, err)
	}
}
