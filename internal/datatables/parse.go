package datatables

import (
	"encoding/csv"
	"encoding/xml"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// localizationRE matches one token line: {KEY}<value>.
var localizationRE = regexp.MustCompile(`^\{([^}]+)\}<(.+)>$`)

// Comment is one #-prefixed line from a gameplay CSV.
type Comment struct {
	Line int    `json:"line"`
	Text string `json:"text"`
}

// Row is one data row, optionally mapped through the detected header.
type Row struct {
	Line    int               `json:"line"`
	Values  []string          `json:"values"`
	Section string            `json:"section,omitempty"`
	Mapped  map[string]string `json:"mapped,omitempty"`
}

// CSVTable is the JSON form of one gameplay CSV.
type CSVTable struct {
	File         string     `json:"file"`
	Header       []string   `json:"header"`
	CommentCount int        `json:"comment_count"`
	RowCount     int        `json:"row_count"`
	Comments     []*Comment `json:"comments"`
	Rows         []*Row     `json:"rows"`
}

// Localization is the JSON form of one token TXT file.
type Localization struct {
	File         string            `json:"file"`
	EntriesCount int               `json:"entries_count"`
	Entries      map[string]string `json:"entries"`
	Unparsed     []string          `json:"unparsed"`
}

// TextureItem is one <Item> under <TextureList>.
type TextureItem struct {
	Texture string            `json:"texture"`
	Attrs   map[string]string `json:"attrs"`
}

// MenuXML is the JSON form of one menu XML file.
type MenuXML struct {
	File               string         `json:"file"`
	RootTag            string         `json:"root_tag"`
	PathItems          []string       `json:"path_items"`
	TextureItemCount   int            `json:"texture_item_count"`
	UniqueTextureCount int            `json:"unique_texture_count"`
	UniqueTextures     []string       `json:"unique_textures"`
	Items              []*TextureItem `json:"items"`
}

// decodeText interprets the blob as UTF-8, falling back to Windows-1252 for
// the legacy localization files.
func decodeText(blob []byte) string {
	if utf8.Valid(blob) {
		return string(blob)
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(blob)
	if err != nil {
		return string(blob)
	}
	return string(decoded)
}

func splitCSVLine(line string) []string {
	r := csv.NewReader(strings.NewReader(line))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	fields, err := r.Read()
	if err != nil {
		fields = strings.Split(line, ",")
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

// parseCSVTable parses a gameplay CSV. Comment lines start with '#'; the
// first comment containing a comma becomes the column header, other comments
// name the section the following rows belong to.
func parseCSVTable(name, text string) *CSVTable {
	table := &CSVTable{
		File:     name,
		Comments: []*Comment{},
		Rows:     []*Row{},
	}
	section := ""
	for ln, line := range strings.Split(text, "\n") {
		s := strings.TrimSpace(line)
		if s == "" {
			continue
		}
		lineNo := ln + 1

		if strings.HasPrefix(s, "#") {
			comment := strings.TrimSpace(s[1:])
			table.Comments = append(table.Comments, &Comment{Line: lineNo, Text: comment})
			if comment != "" && strings.Contains(comment, ",") && table.Header == nil {
				table.Header = splitCSVLine(comment)
			} else {
				section = comment
			}
			continue
		}

		values := splitCSVLine(line)
		row := &Row{Line: lineNo, Values: values, Section: section}
		if table.Header != nil {
			row.Mapped = make(map[string]string, len(values))
			for i, cell := range values {
				key := ""
				if i < len(table.Header) {
					key = table.Header[i]
				} else {
					key = "col_" + strconv.Itoa(i)
				}
				row.Mapped[key] = cell
			}
		}
		table.Rows = append(table.Rows, row)
	}
	table.CommentCount = len(table.Comments)
	table.RowCount = len(table.Rows)
	return table
}

// parseLocalization extracts {KEY}<value> token lines; lines that do not
// match are kept verbatim in the unparsed list.
func parseLocalization(name, text string) *Localization {
	loc := &Localization{
		File:     name,
		Entries:  map[string]string{},
		Unparsed: []string{},
	}
	for _, line := range strings.Split(text, "\n") {
		s := strings.TrimSpace(line)
		if s == "" {
			continue
		}
		m := localizationRE.FindStringSubmatch(s)
		if m == nil {
			loc.Unparsed = append(loc.Unparsed, s)
			continue
		}
		loc.Entries[m[1]] = m[2]
	}
	loc.EntriesCount = len(loc.Entries)
	return loc
}

type xmlItem struct {
	Text  string     `xml:",chardata"`
	Attrs []xml.Attr `xml:",any,attr"`
}

type xmlMenu struct {
	XMLName xml.Name
	Path    struct {
		Items []xmlItem `xml:"Item"`
	} `xml:"Path"`
	TextureList struct {
		Items []xmlItem `xml:"Item"`
	} `xml:"TextureList"`
}

// parseMenuXML extracts the search paths and texture list from one menu XML.
func parseMenuXML(name string, blob []byte) (*MenuXML, error) {
	var parsed xmlMenu
	if err := xml.Unmarshal(blob, &parsed); err != nil {
		return nil, err
	}

	menu := &MenuXML{
		File:           name,
		RootTag:        parsed.XMLName.Local,
		PathItems:      []string{},
		UniqueTextures: []string{},
		Items:          []*TextureItem{},
	}
	for _, item := range parsed.Path.Items {
		if text := strings.TrimSpace(item.Text); text != "" {
			menu.PathItems = append(menu.PathItems, text)
		}
	}
	seen := make(map[string]bool)
	for _, item := range parsed.TextureList.Items {
		text := strings.TrimSpace(item.Text)
		attrs := make(map[string]string, len(item.Attrs))
		for _, attr := range item.Attrs {
			attrs[attr.Name.Local] = attr.Value
		}
		menu.Items = append(menu.Items, &TextureItem{Texture: text, Attrs: attrs})
		if text != "" && !seen[text] {
			seen[text] = true
			menu.UniqueTextures = append(menu.UniqueTextures, text)
		}
	}
	sort.Strings(menu.UniqueTextures)
	menu.TextureItemCount = len(menu.Items)
	menu.UniqueTextureCount = len(menu.UniqueTextures)
	return menu, nil
}
