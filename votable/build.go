package votable

import (
	"strconv"

	"github.com/hupe1980/startable/table"
)

// NewField describes a column as a FIELD element.
func NewField(info table.ColumnInfo) (Field, error) {
	datatype, arraysize, err := encodeType(info)
	if err != nil {
		return Field{}, err
	}
	f := Field{
		Name:        info.Name,
		Datatype:    datatype,
		Arraysize:   arraysize,
		Unit:        info.Unit,
		UCD:         info.UCD,
		Utype:       info.Utype,
		Description: info.Description,
	}
	if xt, ok := info.Aux["xtype"].(string); ok {
		f.Xtype = xt
	}
	return f, nil
}

// NewParam describes a table param as a PARAM element.
func NewParam(p table.Param) (Param, error) {
	f, err := NewField(p.Info)
	if err != nil {
		return Param{}, err
	}
	return Param{Field: f, Value: FormatValue(p.Value)}, nil
}

// FromTable builds a metadata-only document describing t: one RESOURCE
// holding one TABLE with a FIELD per column and no DATA. Params of
// unsupported kind are left out.
func FromTable(t table.Table) (*VOTable, error) {
	tab := Table{Name: t.Name()}
	if n := t.RowCount(); n >= 0 {
		tab.NRows = strconv.FormatInt(n, 10)
	}
	for _, p := range t.Params() {
		vp, err := NewParam(p)
		if err != nil {
			continue
		}
		tab.Params = append(tab.Params, vp)
	}
	for i := 0; i < t.ColumnCount(); i++ {
		f, err := NewField(t.ColumnInfo(i))
		if err != nil {
			return nil, err
		}
		tab.Fields = append(tab.Fields, f)
	}
	return &VOTable{
		Version:   "1.3",
		Xmlns:     Namespace,
		Resources: []Resource{{Tables: []Table{tab}}},
	}, nil
}

// FirstTable returns the first TABLE of the first top-level RESOURCE.
func (v *VOTable) FirstTable() (*Table, error) {
	if len(v.Resources) == 0 {
		return nil, table.Formatf(formatName, "document has no RESOURCE element")
	}
	res := &v.Resources[0]
	if len(res.Tables) == 0 {
		return nil, table.Formatf(formatName, "document has no TABLE element")
	}
	return &res.Tables[0], nil
}
