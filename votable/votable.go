// Package votable reads and writes the metadata subset of VOTable documents:
// resources, tables, fields and params. Row data inside DATA elements is
// not decoded; only its presence is recorded.
package votable

import (
	"encoding/xml"
	"io"

	"github.com/hupe1980/startable/table"
)

// Namespace is the VOTable 1.3 XML namespace.
const Namespace = "http://www.ivoa.net/xml/VOTable/v1.3"

const formatName = "VOTable"

// VOTable is the document root.
type VOTable struct {
	XMLName     xml.Name   `xml:"VOTABLE"`
	Version     string     `xml:"version,attr,omitempty"`
	Xmlns       string     `xml:"xmlns,attr,omitempty"`
	Description string     `xml:"DESCRIPTION,omitempty"`
	Infos       []Info     `xml:"INFO"`
	Resources   []Resource `xml:"RESOURCE"`
}

// Resource groups tables and params.
type Resource struct {
	Name        string     `xml:"name,attr,omitempty"`
	Type        string     `xml:"type,attr,omitempty"`
	Description string     `xml:"DESCRIPTION,omitempty"`
	Infos       []Info     `xml:"INFO"`
	Params      []Param    `xml:"PARAM"`
	Tables      []Table    `xml:"TABLE"`
	Resources   []Resource `xml:"RESOURCE"`
}

// Info is a name/value annotation.
type Info struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// Table describes one table's columns and params.
type Table struct {
	ID          string  `xml:"ID,attr,omitempty"`
	Name        string  `xml:"name,attr,omitempty"`
	NRows       string  `xml:"nrows,attr,omitempty"`
	Description string  `xml:"DESCRIPTION,omitempty"`
	Params      []Param `xml:"PARAM"`
	Fields      []Field `xml:"FIELD"`
	Data        *Data   `xml:"DATA"`
}

// Data records a DATA element without decoding it.
type Data struct {
	Inner string `xml:",innerxml"`
}

// Field describes a column.
type Field struct {
	Name        string  `xml:"name,attr"`
	ID          string  `xml:"ID,attr,omitempty"`
	Datatype    string  `xml:"datatype,attr"`
	Arraysize   string  `xml:"arraysize,attr,omitempty"`
	Unit        string  `xml:"unit,attr,omitempty"`
	UCD         string  `xml:"ucd,attr,omitempty"`
	Utype       string  `xml:"utype,attr,omitempty"`
	Xtype       string  `xml:"xtype,attr,omitempty"`
	Description string  `xml:"DESCRIPTION,omitempty"`
	Values      *Values `xml:"VALUES"`
}

// Values carries the null marker of a field.
type Values struct {
	Null string `xml:"null,attr,omitempty"`
}

// Param is a field with a constant value.
type Param struct {
	Field
	Value string `xml:"value,attr"`
}

// Parse decodes a VOTable document.
func Parse(r io.Reader) (*VOTable, error) {
	var doc VOTable
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, table.NewFormatError(formatName, "bad XML", err)
	}
	return &doc, nil
}

// Marshal encodes the document with an XML declaration.
func (v *VOTable) Marshal(w io.Writer) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// HasData reports whether the table has a DATA child.
func (t *Table) HasData() bool { return t.Data != nil }

// Columns converts the fields to column metadata. Fields of unsupported
// datatype get KindInvalid.
func (t *Table) Columns() []table.ColumnInfo {
	cols := make([]table.ColumnInfo, len(t.Fields))
	for i, f := range t.Fields {
		cols[i] = f.Info()
	}
	return cols
}

// TableParams converts the PARAM children to table params. Params whose
// value cannot be decoded keep the raw string.
func (t *Table) TableParams() []table.Param {
	return convertParams(t.Params)
}

func convertParams(ps []Param) []table.Param {
	out := make([]table.Param, 0, len(ps))
	for _, p := range ps {
		info := p.Info()
		v, err := ParseValue(info, p.Value)
		if err != nil {
			info.Kind = table.KindString
			info.Shape = nil
			v = p.Value
		}
		out = append(out, table.Param{Info: info, Value: v})
	}
	return out
}

// Info converts the field description to column metadata.
func (f Field) Info() table.ColumnInfo {
	kind, shape := decodeType(f.Datatype, f.Arraysize)
	info := table.ColumnInfo{
		Name:        f.Name,
		Kind:        kind,
		Shape:       shape,
		Unit:        f.Unit,
		UCD:         f.UCD,
		Utype:       f.Utype,
		Description: f.Description,
		Nullable:    true,
	}
	if f.Xtype != "" {
		info.Aux = map[string]any{"xtype": f.Xtype}
	}
	return info
}
