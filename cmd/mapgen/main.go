// Command mapgen scaffolds a mapped entity: the struct type, its table
// definition and the mapper registration, from a name and an attribute
// list.
//
//	mapgen -name Employee -attributes "name:string,hired_at:time" -folder .
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ormkit/ormkit/schema"
)

func main() {
	name := flag.String("name", "", "Entity name, e.g.: Employee")
	attributes := flag.String("attributes", "", "Attributes, e.g.: name:string,salary:float")
	baseFolder := flag.String("folder", ".", "Base folder of the project")
	pkg := flag.String("package", "models", "Package name of the generated file")

	flag.Parse()

	if *name == "" {
		flag.Usage()
		os.Exit(2)
	}

	fields, err := parseAttributes(*attributes)
	if err != nil {
		log.Fatal(err)
	}

	if err := generate(*baseFolder, *pkg, *name, fields); err != nil {
		log.Fatal("Failed to generate entity:", err)
	}
}

type fieldInfo struct {
	Name   string // Go attribute name
	Column string // column name
	GoType string
	Type   schema.DataType
}

var titler = cases.Title(language.Und, cases.NoLower)

func parseAttributes(attrs string) ([]fieldInfo, error) {
	var fields []fieldInfo
	if attrs == "" {
		return fields, nil
	}
	for _, attr := range strings.Split(attrs, ",") {
		parts := strings.SplitN(strings.TrimSpace(attr), ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed attribute %q, want name:type", attr)
		}
		column := strings.TrimSpace(parts[0])
		dataType, goType, err := mapType(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, err
		}
		fields = append(fields, fieldInfo{
			Name:   goName(column),
			Column: column,
			GoType: goType,
			Type:   dataType,
		})
	}
	return fields, nil
}

// goName turns a snake_case column name into an exported Go identifier.
func goName(column string) string {
	var buf strings.Builder
	for _, part := range strings.Split(column, "_") {
		if part == "id" {
			buf.WriteString("ID")
			continue
		}
		buf.WriteString(titler.String(part))
	}
	return buf.String()
}

func mapType(t string) (schema.DataType, string, error) {
	switch t {
	case "string", "text":
		return schema.String, "string", nil
	case "int", "integer":
		return schema.Int, "int64", nil
	case "uint":
		return schema.Uint, "uint64", nil
	case "float":
		return schema.Float, "float64", nil
	case "bool":
		return schema.Bool, "bool", nil
	case "time", "datetime":
		return schema.Time, "time.Time", nil
	case "bytes", "blob":
		return schema.Bytes, "[]byte", nil
	}
	return "", "", fmt.Errorf("unsupported attribute type %q", t)
}

func generate(baseFolder, pkg, name string, fields []fieldInfo) error {
	folder := filepath.Join(baseFolder, pkg)
	if err := os.MkdirAll(folder, os.ModePerm); err != nil {
		return err
	}

	namer := schema.NamingStrategy{}
	table := namer.TableName(name)

	var structLines, columnLines []string
	structLines = append(structLines, "\tID int64")
	columnLines = append(columnLines,
		`		&schema.Column{Name: "id", DataType: schema.Int, PrimaryKey: true, AutoIncrement: true},`)
	for _, f := range fields {
		structLines = append(structLines, fmt.Sprintf("\t%s %s", f.Name, f.GoType))
		columnLines = append(columnLines,
			fmt.Sprintf("\t\t&schema.Column{Name: %q, DataType: schema.%s},", f.Column, titler.String(string(f.Type))))
	}

	imports := []string{
		`"github.com/ormkit/ormkit/mapper"`,
		`"github.com/ormkit/ormkit/schema"`,
	}
	for _, f := range fields {
		if strings.HasPrefix(f.GoType, "time.") {
			imports = append([]string{`"time"`, ""}, imports...)
			break
		}
	}

	content := fmt.Sprintf(`package %s

import (
	%s
)

type %s struct {
%s
}

var %sTable = schema.NewTable(%q,
%s
)

func New%sMapper() (*mapper.Mapper, error) {
	return mapper.New(%s{}, %sTable, mapper.Options{})
}
`,
		pkg,
		strings.Join(imports, "\n\t"),
		name,
		strings.Join(structLines, "\n"),
		name, table,
		strings.Join(columnLines, "\n"),
		name, name, name,
	)

	filename := filepath.Join(folder, strings.ToLower(name)+".go")
	if err := os.WriteFile(filename, []byte(content), 0o644); err != nil {
		return err
	}
	fmt.Println("Create file:", filename)
	return nil
}
