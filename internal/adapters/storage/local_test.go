package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
)

func writeTestFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to create file: %v", err)
		}
	}
}

func TestLocalStorageList(t *testing.T) {
	tmpDir := t.TempDir()
	writeTestFiles(t, tmpDir, map[string]string{
		"RoadsSimple.imd":         "test",
		"Base.IMD":                "test",
		"cantonal/SO_Nutzung.imd": "test",
		"RoadsSimple.ili":         "test",
		"roads.xtf":               "test",
	})

	objects, err := NewLocalStorage(tmpDir).List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	want := []string{"Base.IMD", "RoadsSimple.imd", "cantonal/SO_Nutzung.imd"}
	if len(objects) != len(want) {
		t.Fatalf("len(objects) = %d, want %d", len(objects), len(want))
	}
	for i, obj := range objects {
		if obj.Key != want[i] {
			t.Errorf("objects[%d].Key = %q, want %q", i, obj.Key, want[i])
		}
		if obj.Size != 4 {
			t.Errorf("object %q size = %d, want 4", obj.Key, obj.Size)
		}
		if obj.ModTime.IsZero() {
			t.Errorf("object %q ModTime should be set", obj.Key)
		}
	}
}

func TestLocalStorageListEmpty(t *testing.T) {
	objects, err := NewLocalStorage(t.TempDir()).List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(objects) != 0 {
		t.Errorf("len(objects) = %d, want 0", len(objects))
	}
}

func TestLocalStorageListNonExistent(t *testing.T) {
	_, err := NewLocalStorage("/nonexistent/path").List(context.Background())

	var storageErr *domain.StorageError
	if !errors.As(err, &storageErr) || storageErr.Operation != "list" {
		t.Errorf("List() error = %v, want StorageError for list", err)
	}
}

func TestLocalStorageExists(t *testing.T) {
	tmpDir := t.TempDir()
	writeTestFiles(t, tmpDir, map[string]string{"RoadsSimple.imd": "test"})
	storage := NewLocalStorage(tmpDir)

	tests := []struct {
		key  string
		want bool
	}{
		{"RoadsSimple.imd", true},
		{"Missing.imd", false},
	}
	for _, tt := range tests {
		got, err := storage.Exists(context.Background(), tt.key)
		if err != nil {
			t.Fatalf("Exists(%q) error = %v", tt.key, err)
		}
		if got != tt.want {
			t.Errorf("Exists(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestLocalStorageGetReader(t *testing.T) {
	tmpDir := t.TempDir()
	writeTestFiles(t, tmpDir, map[string]string{"RoadsSimple.imd": "<IlisMeta/>"})
	storage := NewLocalStorage(tmpDir)

	r, err := storage.GetReader(context.Background(), "RoadsSimple.imd")
	if err != nil {
		t.Fatalf("GetReader() error = %v", err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(data) != "<IlisMeta/>" {
		t.Errorf("content = %q, want %q", data, "<IlisMeta/>")
	}

	if _, err := storage.GetReader(context.Background(), "Missing.imd"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("GetReader() error = %v, want %v", err, os.ErrNotExist)
	}
}

func TestLocalStorageDownload(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()
	writeTestFiles(t, srcDir, map[string]string{"cantonal/SO_Nutzung.imd": "model"})
	storage := NewLocalStorage(srcDir)

	dest := filepath.Join(destDir, "nested", "SO_Nutzung.imd")
	if err := storage.Download(context.Background(), "cantonal/SO_Nutzung.imd", dest); err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("failed to read dest: %v", err)
	}
	if string(data) != "model" {
		t.Errorf("content = %q, want %q", data, "model")
	}

	entries, _ := os.ReadDir(filepath.Dir(dest))
	if len(entries) != 1 {
		t.Errorf("download left %d entries, want only the model file", len(entries))
	}
}

func TestLocalStorageDownloadSameFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeTestFiles(t, tmpDir, map[string]string{"RoadsSimple.imd": "model"})
	storage := NewLocalStorage(tmpDir)

	if err := storage.Download(context.Background(), "RoadsSimple.imd", storage.FullPath("RoadsSimple.imd")); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	data, _ := os.ReadFile(storage.FullPath("RoadsSimple.imd"))
	if string(data) != "model" {
		t.Errorf("content = %q, want unchanged", data)
	}
}

func TestLocalStorageDownloadNonExistent(t *testing.T) {
	storage := NewLocalStorage(t.TempDir())

	err := storage.Download(context.Background(), "Missing.imd", filepath.Join(t.TempDir(), "Missing.imd"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Download() error = %v, want %v", err, os.ErrNotExist)
	}
}

func TestLocalStorageFullPath(t *testing.T) {
	storage := NewLocalStorage("/data/models")

	if got, want := storage.FullPath("cantonal/SO.imd"), filepath.Join("/data/models", "cantonal", "SO.imd"); got != want {
		t.Errorf("FullPath() = %q, want %q", got, want)
	}
}
