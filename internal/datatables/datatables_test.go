package datatables

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"psprip/internal/config"
	"psprip/internal/extract"
)

func writeInput(t *testing.T, root, dir, name, content string) {
	t.Helper()
	full := filepath.Join(root, dir)
	if err := os.MkdirAll(full, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(full, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestRunRequiresAllInputDirs(t *testing.T) {
	inRoot := t.TempDir()
	// Only two of the three expected directories.
	for _, dir := range []string{"leveldata", "text"} {
		if err := os.MkdirAll(filepath.Join(inRoot, dir), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	cfg := config.Default()
	conv := New(&cfg)
	_, err := conv.Run(context.Background(), extract.Request{InputRoot: inRoot, OutputRoot: t.TempDir()})
	if !errors.Is(err, extract.ErrConverterSetup) {
		t.Fatalf("expected setup error, got %v", err)
	}
}

func TestRunWritesAllThreeKinds(t *testing.T) {
	inRoot := t.TempDir()
	outRoot := t.TempDir()
	writeInput(t, inRoot, "leveldata", "stats.csv", "# a, b\n1, 2\n")
	writeInput(t, inRoot, "text", "english.txt", "{KEY}<Value>\n")
	writeInput(t, inRoot, "menu", "main.xml", "<Menu><TextureList><Item>t.png</Item></TextureList></Menu>")
	writeInput(t, inRoot, "menu", "broken.xml", "<Menu><oops")

	cfg := config.Default()
	conv := New(&cfg)
	res, err := conv.Run(context.Background(), extract.Request{InputRoot: inRoot, OutputRoot: outRoot})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Found != 4 || res.Converted != 3 || res.Skipped != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	base := filepath.Join(outRoot, "data_tables_json")
	for _, rel := range []string{
		filepath.Join("leveldata_csv", "stats.json"),
		filepath.Join("localization_txt", "english.json"),
		filepath.Join("menu_xml", "main.json"),
	} {
		if _, err := os.Stat(filepath.Join(base, rel)); err != nil {
			t.Fatalf("missing output %s: %v", rel, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(base, "_summary.json"))
	if err != nil {
		t.Fatalf("missing summary: %v", err)
	}
	var summary map[string]int
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary["csv_ok"] != 1 || summary["txt_ok"] != 1 || summary["xml_ok"] != 1 {
		t.Fatalf("unexpected summary: %v", summary)
	}
	if summary["xml_files"] != 2 {
		t.Fatalf("xml_files: %d", summary["xml_files"])
	}
}
