package gamedata

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Document file names inside a data directory.
const (
	ItemsFile     = "items.yaml"
	LocationsFile = "locations.yaml"
	GoalsFile     = "goals.yaml"
	RegionsFile   = "regions.yaml"
)

// validate checks the struct tags on the typed rows. Field names in
// reported errors use the yaml tag so they match the document.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Load reads the four world documents from dir.
func Load(dir string) (*Data, error) {
	d, err := LoadFS(os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("gamedata: load %q: %w", dir, err)
	}
	return d, nil
}

// LoadFS reads the four world documents from the root of fsys.
//
// File-level problems (missing file, empty file, wrong root shape, missing
// or non-integer schema_version) abort immediately. Once every document has
// a version they are compared, then all rows are validated and every row
// error found is returned together.
func LoadFS(fsys fs.FS) (*Data, error) {
	specs := []struct {
		file string
		list string
	}{
		{ItemsFile, "items"},
		{LocationsFile, "locations"},
		{GoalsFile, "goals"},
		{RegionsFile, "regions"},
	}

	docs := make([]*document, len(specs))
	for i, s := range specs {
		doc, err := readDocument(fsys, s.file, s.list)
		if err != nil {
			return nil, err
		}
		docs[i] = doc
	}

	if err := checkVersions(docs); err != nil {
		return nil, err
	}

	items, locations, goals, regions := docs[0], docs[1], docs[2], docs[3]

	d := &Data{SchemaVersion: items.version}
	var errs []error

	d.Items, errs = parseRows(items, parseItem, errs)
	d.Locations, errs = parseRows(locations, parseLocation, errs)
	d.Goals, errs = parseRows(goals, parseGoal, errs)
	d.Regions, errs = parseRows(regions, parseRegion, errs)

	start, err := regions.optionalString("start")
	if err != nil {
		errs = append(errs, err)
	}
	d.Start = start

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	errs = appendDuplicates(errs, items, d.Items, func(r ItemRow) (string, string) { return r.Key, r.Name })
	errs = appendDuplicates(errs, locations, d.Locations, func(r LocationRow) (string, string) { return r.Key, r.Name })
	errs = appendDuplicates(errs, goals, d.Goals, func(r GoalRow) (string, string) { return r.Key, r.Name })
	errs = appendDuplicates(errs, regions, d.Regions, func(r RegionRow) (string, string) { return r.Key, r.Name })
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	d.index()
	if d.Start == "" && len(d.Regions) > 0 {
		d.Start = d.Regions[0].Key
	}
	return d, nil
}

// document is one parsed YAML file before row conversion.
type document struct {
	file    string
	list    string
	version int
	root    *yaml.Node
	rows    []*yaml.Node
}

func readDocument(fsys fs.FS, file, list string) (*document, error) {
	raw, err := fs.ReadFile(fsys, file)
	if err != nil {
		return nil, fmt.Errorf("gamedata: missing data file %s: %w", file, err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		return nil, &MalformedError{File: file, Reason: "file is empty"}
	}

	var top yaml.Node
	if err := yaml.Unmarshal(raw, &top); err != nil {
		return nil, &MalformedError{File: file, Reason: "invalid yaml: " + err.Error()}
	}
	root := &top
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	root = resolveAlias(root)
	if root.Kind != yaml.MappingNode {
		return nil, &MalformedError{File: file, Reason: "root must be a mapping, got " + kindName(root)}
	}

	doc := &document{file: file, list: list, root: root}

	vn := mappingValue(root, "schema_version")
	if vn == nil || vn.ShortTag() != "!!int" {
		return nil, &MalformedError{File: file, Field: "schema_version", Reason: "must be an int, got " + kindName(vn)}
	}
	if err := vn.Decode(&doc.version); err != nil {
		return nil, &MalformedError{File: file, Field: "schema_version", Reason: err.Error()}
	}

	ln := mappingValue(root, list)
	if ln == nil || ln.Kind != yaml.SequenceNode {
		return nil, &MalformedError{File: file, Field: list, Reason: "must be a list, got " + kindName(ln)}
	}
	for i, n := range ln.Content {
		n = resolveAlias(n)
		if n.Kind != yaml.MappingNode {
			return nil, &MalformedError{File: file, Field: fmt.Sprintf("%s[%d]", list, i), Reason: "must be a mapping, got " + kindName(n)}
		}
		doc.rows = append(doc.rows, n)
	}
	return doc, nil
}

func (d *document) optionalString(field string) (string, error) {
	n := mappingValue(d.root, field)
	if n == nil || n.ShortTag() == "!!null" {
		return "", nil
	}
	if n.Kind != yaml.ScalarNode || n.ShortTag() != "!!str" {
		return "", &MalformedError{File: d.file, Field: field, Reason: "must be a string"}
	}
	return strings.TrimSpace(n.Value), nil
}

func checkVersions(docs []*document) error {
	mismatch := false
	versions := make([]DocumentVersion, len(docs))
	for i, d := range docs {
		versions[i] = DocumentVersion{Document: d.list, Version: d.version}
		if d.version != docs[0].version {
			mismatch = true
		}
	}
	if mismatch {
		return &SchemaMismatchError{Versions: versions}
	}
	return nil
}

// parseRows converts every row of doc with parse, appending problems to errs.
func parseRows[T any](doc *document, parse func(r *rowReader) T, errs []error) ([]T, []error) {
	out := make([]T, 0, len(doc.rows))
	for i, n := range doc.rows {
		r := &rowReader{file: doc.file, path: fmt.Sprintf("%s[%d]", doc.list, i), node: n}
		row := parse(r)
		if len(r.errs) == 0 {
			if err := validate.Struct(row); err != nil {
				r.addValidation(err)
			}
		}
		errs = append(errs, r.errs...)
		out = append(out, row)
	}
	return out, errs
}

func parseItem(r *rowReader) ItemRow {
	return ItemRow{
		Key:            r.requiredString("key"),
		Name:           r.requiredString("name"),
		Classification: ParseClassification(r.optionalString("classification")),
		Tags:           r.stringList("tags"),
		Addresses:      r.addresses(),
	}
}

func parseLocation(r *rowReader) LocationRow {
	return LocationRow{
		Key:         r.requiredString("key"),
		Name:        r.requiredString("name"),
		Category:    Category(strings.ToLower(r.optionalString("category"))),
		DefaultItem: r.optionalString("default_item"),
		BitIndex:    r.optionalInt("bit_index"),
		Tags:        r.stringList("tags"),
		Addresses:   r.addresses(),
	}
}

func parseGoal(r *rowReader) GoalRow {
	return GoalRow{
		Key:       r.requiredString("key"),
		Name:      r.requiredString("name"),
		Location:  r.requiredString("location"),
		Tags:      r.stringList("tags"),
		Addresses: r.addresses(),
	}
}

func parseRegion(r *rowReader) RegionRow {
	return RegionRow{
		Key:       r.requiredString("key"),
		Name:      r.requiredString("name"),
		Exits:     r.stringList("exits"),
		Locations: r.stringList("locations"),
		Events:    r.stringList("events"),
	}
}

func appendDuplicates[T any](errs []error, doc *document, rows []T, ident func(T) (string, string)) []error {
	keys := make(map[string]int, len(rows))
	names := make(map[string]int, len(rows))
	for i, row := range rows {
		key, name := ident(row)
		if first, ok := keys[key]; ok {
			errs = append(errs, &DuplicateError{File: doc.file, List: doc.list, Field: "key", Value: key, First: first, Index: i})
		} else {
			keys[key] = i
		}
		if first, ok := names[name]; ok {
			errs = append(errs, &DuplicateError{File: doc.file, List: doc.list, Field: "name", Value: name, First: first, Index: i})
		} else {
			names[name] = i
		}
	}
	return errs
}
