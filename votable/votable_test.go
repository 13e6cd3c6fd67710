package votable

import (
	"bytes"
	"strings"
	"testing"

	"github.com/hupe1980/startable/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `<?xml version="1.0"?>
<VOTABLE version="1.3" xmlns="http://www.ivoa.net/xml/VOTable/v1.3">
  <RESOURCE>
    <TABLE name="stars" nrows="2">
      <PARAM name="epoch" datatype="double" value="2000.0" unit="yr"/>
      <PARAM name="flags" datatype="int" arraysize="3" value="1 2 3"/>
      <FIELD name="ra" datatype="double" unit="deg" ucd="pos.eq.ra">
        <DESCRIPTION>Right ascension</DESCRIPTION>
      </FIELD>
      <FIELD name="id" datatype="char" arraysize="*"/>
      <FIELD name="spec" datatype="float" arraysize="4x*"/>
      <FIELD name="tags" datatype="char" arraysize="8x2"/>
      <FIELD name="z" datatype="doubleComplex"/>
    </TABLE>
  </RESOURCE>
</VOTABLE>`

func TestParse(t *testing.T) {
	doc, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	tab, err := doc.FirstTable()
	require.NoError(t, err)
	assert.Equal(t, "stars", tab.Name)
	assert.False(t, tab.HasData())

	cols := tab.Columns()
	require.Len(t, cols, 5)

	assert.Equal(t, table.KindFloat64, cols[0].Kind)
	assert.Equal(t, "deg", cols[0].Unit)
	assert.Equal(t, "pos.eq.ra", cols[0].UCD)
	assert.Equal(t, "Right ascension", cols[0].Description)

	assert.Equal(t, table.KindString, cols[1].Kind)

	assert.Equal(t, table.KindFloat32Array, cols[2].Kind)
	assert.Equal(t, []int{4, table.VariableDim}, cols[2].Shape)

	assert.Equal(t, table.KindStringArray, cols[3].Kind)
	assert.Equal(t, []int{2}, cols[3].Shape)

	assert.Equal(t, table.KindInvalid, cols[4].Kind)

	params := tab.TableParams()
	require.Len(t, params, 2)
	assert.Equal(t, 2000.0, params[0].Value)
	assert.Equal(t, "yr", params[0].Info.Unit)
	assert.Equal(t, []int32{1, 2, 3}, params[1].Value)
}

func TestParse_DataPresent(t *testing.T) {
	doc, err := Parse(strings.NewReader(`<VOTABLE><RESOURCE><TABLE><FIELD name="a" datatype="int"/><DATA><TABLEDATA/></DATA></TABLE></RESOURCE></VOTABLE>`))
	require.NoError(t, err)
	tab, err := doc.FirstTable()
	require.NoError(t, err)
	assert.True(t, tab.HasData())
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse(strings.NewReader("<VOTABLE><RESOURCE>"))
	assert.ErrorIs(t, err, table.ErrFormat)

	doc, err := Parse(strings.NewReader("<VOTABLE/>"))
	require.NoError(t, err)
	_, err = doc.FirstTable()
	assert.ErrorIs(t, err, table.ErrFormat)
}

func TestFromTable_RoundTrip(t *testing.T) {
	cols := []table.ColumnInfo{
		{Name: "flag", Kind: table.KindBool},
		{Name: "b", Kind: table.KindInt16},
		{Name: "n", Kind: table.KindInt64, Unit: "count"},
		{Name: "name", Kind: table.KindString, Description: "Object name"},
		{Name: "vec", Kind: table.KindFloat64Array, Shape: []int{3}},
		{Name: "var", Kind: table.KindInt32Array, Shape: []int{table.VariableDim}},
		{Name: "labels", Kind: table.KindStringArray, Shape: []int{2}},
	}
	mt, err := table.NewMemoryTable("things", cols, nil,
		table.Param{Info: table.ValueInfo{Name: "scale", Kind: table.KindFloat32}, Value: float32(0.5)},
		table.Param{Info: table.ValueInfo{Name: "origin", Kind: table.KindString}, Value: "survey"},
	)
	require.NoError(t, err)

	doc, err := FromTable(mt)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, doc.Marshal(&buf))
	assert.Contains(t, buf.String(), `xmlns="`+Namespace+`"`)

	back, err := Parse(&buf)
	require.NoError(t, err)
	tab, err := back.FirstTable()
	require.NoError(t, err)
	assert.Equal(t, "things", tab.Name)
	assert.Equal(t, "0", tab.NRows)

	got := tab.Columns()
	require.Len(t, got, len(cols))
	for i, c := range cols {
		assert.Equal(t, c.Name, got[i].Name)
		assert.Equal(t, c.Kind, got[i].Kind, c.Name)
		assert.Equal(t, c.Shape, got[i].Shape, c.Name)
		assert.Equal(t, c.Unit, got[i].Unit)
		assert.Equal(t, c.Description, got[i].Description)
	}

	params := tab.TableParams()
	require.Len(t, params, 2)
	assert.Equal(t, float32(0.5), params[0].Value)
	assert.Equal(t, "survey", params[1].Value)
}

func TestEncodeType_Int8Widened(t *testing.T) {
	f, err := NewField(table.ColumnInfo{Name: "b", Kind: table.KindInt8})
	require.NoError(t, err)
	assert.Equal(t, "short", f.Datatype)
	assert.Equal(t, table.KindInt16, f.Info().Kind)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "T", FormatValue(true))
	assert.Equal(t, "1 2 3", FormatValue([]int16{1, 2, 3}))
	assert.Equal(t, "0.25 -1.5", FormatValue([]float64{0.25, -1.5}))
	assert.Equal(t, "", FormatValue(nil))
}
