package platform

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFindConfig(t *testing.T) {
	// /tmp/
	//   site/ (discuss.toml)
	//     subdir/
	//       nested/
	//   empty/
	baseDir := t.TempDir()
	siteDir := filepath.Join(baseDir, "site")
	subDir := filepath.Join(siteDir, "subdir")
	nestedDir := filepath.Join(subDir, "nested")
	emptyDir := filepath.Join(baseDir, "empty")

	if err := os.MkdirAll(nestedDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(emptyDir, 0755); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(siteDir, ConfigFile)
	if err := os.WriteFile(want, []byte("[server]\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		startPath string
		want      string
		wantErr   bool
	}{
		{name: "Start at Site", startPath: siteDir, want: want},
		{name: "Start in Subdir", startPath: subDir, want: want},
		{name: "Start in Nested", startPath: nestedDir, want: want},
		{name: "Not Found", startPath: emptyDir, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindConfig(tt.startPath)
			if tt.wantErr {
				if !errors.Is(err, ErrConfigNotFound) {
					t.Fatalf("FindConfig() error = %v, want ErrConfigNotFound", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FindConfig() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("FindConfig() = %v, want %v", got, tt.want)
			}
		})
	}
}
