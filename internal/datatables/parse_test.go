package datatables

import (
	"testing"
)

func TestParseCSVTableHeaderAndSections(t *testing.T) {
	text := "# Vehicle stats\n" +
		"# name, armor, speed\n" +
		"tank, 100, 12\n" +
		"# Aircraft\n" +
		"jet, 20, 90, extra\n"

	table := parseCSVTable("vehicles.csv", text)
	if table.CommentCount != 3 || table.RowCount != 2 {
		t.Fatalf("unexpected counts: comments=%d rows=%d", table.CommentCount, table.RowCount)
	}
	if len(table.Header) != 3 || table.Header[0] != "name" || table.Header[2] != "speed" {
		t.Fatalf("unexpected header: %v", table.Header)
	}

	first := table.Rows[0]
	if first.Section != "Vehicle stats" {
		t.Fatalf("first row section: %q", first.Section)
	}
	if first.Mapped["armor"] != "100" {
		t.Fatalf("mapped armor: %q", first.Mapped["armor"])
	}

	second := table.Rows[1]
	if second.Section != "Aircraft" {
		t.Fatalf("second row section: %q", second.Section)
	}
	if second.Mapped["col_3"] != "extra" {
		t.Fatalf("overflow column: %v", second.Mapped)
	}
}

func TestParseCSVTableQuotedFields(t *testing.T) {
	table := parseCSVTable("t.csv", `"a, b", c`+"\n")
	if len(table.Rows) != 1 {
		t.Fatalf("expected one row, got %d", len(table.Rows))
	}
	values := table.Rows[0].Values
	if len(values) != 2 || values[0] != "a, b" || values[1] != "c" {
		t.Fatalf("unexpected values: %v", values)
	}
}

func TestParseLocalization(t *testing.T) {
	text := "{MENU_START}<Start Game>\n" +
		"\n" +
		"{MENU_QUIT}<Quit>\n" +
		"stray line\n"

	loc := parseLocalization("strings.txt", text)
	if loc.EntriesCount != 2 {
		t.Fatalf("expected 2 entries, got %d", loc.EntriesCount)
	}
	if loc.Entries["MENU_START"] != "Start Game" {
		t.Fatalf("unexpected entry: %q", loc.Entries["MENU_START"])
	}
	if len(loc.Unparsed) != 1 || loc.Unparsed[0] != "stray line" {
		t.Fatalf("unexpected unparsed: %v", loc.Unparsed)
	}
}

func TestParseMenuXML(t *testing.T) {
	blob := []byte(`<Menu>
  <Path>
    <Item>ui/textures</Item>
    <Item> ui/fonts </Item>
  </Path>
  <TextureList>
    <Item width="64" height="32">button.png</Item>
    <Item>cursor.png</Item>
    <Item>button.png</Item>
  </TextureList>
</Menu>`)

	menu, err := parseMenuXML("main.xml", blob)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if menu.RootTag != "Menu" {
		t.Fatalf("root tag: %q", menu.RootTag)
	}
	if len(menu.PathItems) != 2 || menu.PathItems[1] != "ui/fonts" {
		t.Fatalf("path items: %v", menu.PathItems)
	}
	if menu.TextureItemCount != 3 || menu.UniqueTextureCount != 2 {
		t.Fatalf("texture counts: items=%d unique=%d", menu.TextureItemCount, menu.UniqueTextureCount)
	}
	if menu.UniqueTextures[0] != "button.png" || menu.UniqueTextures[1] != "cursor.png" {
		t.Fatalf("unique textures: %v", menu.UniqueTextures)
	}
	if menu.Items[0].Attrs["width"] != "64" {
		t.Fatalf("item attrs: %v", menu.Items[0].Attrs)
	}
}

func TestParseMenuXMLRejectsGarbage(t *testing.T) {
	if _, err := parseMenuXML("bad.xml", []byte("<Menu><unclosed")); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestDecodeTextWindows1252Fallback(t *testing.T) {
	// 0xE9 alone is invalid UTF-8 but is e-acute in Windows-1252.
	got := decodeText([]byte{'c', 'a', 'f', 0xE9})
	if got != "café" {
		t.Fatalf("unexpected decode: %q", got)
	}
	if got := decodeText([]byte("plain")); got != "plain" {
		t.Fatalf("utf-8 input must pass through, got %q", got)
	}
}
