package fits

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"math"
	"testing"

	"github.com/hupe1980/startable/table"
	"github.com/hupe1980/startable/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func card(s string) []byte {
	b := make([]byte, CardSize)
	copy(b, s)
	for i := len(s); i < CardSize; i++ {
		b[i] = ' '
	}
	return b
}

func TestParseCard(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Card
	}{
		{"logical", "SIMPLE  =                    T / conforms", Card{Key: "SIMPLE", Value: "T", Comment: "conforms", HasValue: true}},
		{"integer", "NAXIS1  =                 1234", Card{Key: "NAXIS1", Value: "1234", HasValue: true}},
		{"string", "EXTNAME = 'it''s a table'      / name", Card{Key: "EXTNAME", Value: "it's a table", Comment: "name", HasValue: true, IsString: true}},
		{"slash in string", "TUNIT1  = 'km/s    '", Card{Key: "TUNIT1", Value: "km/s", HasValue: true, IsString: true}},
		{"commentary", "COMMENT just words = here", Card{Key: "COMMENT", Comment: "just words = here"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseCard(card(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, c)
		})
	}

	_, err := ParseCard(card("BAD     = 'unterminated"))
	assert.ErrorIs(t, err, table.ErrFormat)

	bad := card("KEY     = 1")
	bad[20] = 0x01
	_, err = ParseCard(bad)
	assert.ErrorIs(t, err, table.ErrFormat)
}

func TestCardValues(t *testing.T) {
	c, err := ParseCard(card("BSCALE  =              1.5D-02"))
	require.NoError(t, err)
	f, ok := c.Float()
	require.True(t, ok)
	assert.InDelta(t, 0.015, f, 1e-15)

	_, ok = c.Int()
	assert.False(t, ok)
	_, ok = c.Bool()
	assert.False(t, ok)
}

func TestCard_MarshalRoundTrip(t *testing.T) {
	for _, v := range []any{true, 42, int64(-7), 3.25, 1e20, "O'Neil", ""} {
		c, err := ValueCard("KEY", v, "a comment")
		require.NoError(t, err)
		b, err := c.MarshalBinary()
		require.NoError(t, err)
		require.Len(t, b, CardSize)

		back, err := ParseCard(b)
		require.NoError(t, err)
		assert.Equal(t, c.Value, back.Value, "%v", v)
		assert.Equal(t, "a comment", back.Comment)
	}

	_, err := Card{Key: "TOOLONGKEY"}.MarshalBinary()
	assert.Error(t, err)
}

func TestHeader_ReadWrite(t *testing.T) {
	h := NewHeader()
	require.NoError(t, h.Set("SIMPLE", true, ""))
	require.NoError(t, h.Set("BITPIX", 8, ""))
	require.NoError(t, h.Set("NAXIS", 1, ""))
	require.NoError(t, h.Set("NAXIS1", 100, ""))
	for i := 0; i < 40; i++ {
		h.Add(Card{Key: "COMMENT", Comment: "padding to a second block"})
	}

	var buf bytes.Buffer
	n, err := WriteHeader(&buf, h)
	require.NoError(t, err)
	assert.Equal(t, int64(2*BlockSize), n)
	assert.Equal(t, 2*BlockSize, buf.Len())

	back, m, err := ReadHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, n, m)
	assert.Equal(t, h.Len(), back.Len())

	size, err := DataSize(back)
	require.NoError(t, err)
	assert.Equal(t, int64(BlockSize), size)
	raw, err := RawDataSize(back)
	require.NoError(t, err)
	assert.Equal(t, int64(100), raw)
}

func TestReadHeader_Truncated(t *testing.T) {
	_, _, err := ReadHeader(bytes.NewReader(make([]byte, 100)))
	assert.ErrorIs(t, err, table.ErrFormat)

	_, _, err = ReadHeader(bytes.NewReader(nil))
	assert.ErrorIs(t, err, io.EOF)
}

func sampleTable(t *testing.T) *table.MemoryTable {
	t.Helper()
	cols := []table.ColumnInfo{
		{Name: "flag", Kind: table.KindBool},
		{Name: "b", Kind: table.KindInt8},
		{Name: "s", Kind: table.KindInt16},
		{Name: "i", Kind: table.KindInt32, Unit: "count"},
		{Name: "l", Kind: table.KindInt64},
		{Name: "f", Kind: table.KindFloat32},
		{Name: "d", Kind: table.KindFloat64},
		{Name: "name", Kind: table.KindString},
		{Name: "vec", Kind: table.KindFloat64Array, Shape: []int{3}},
		{Name: "mat", Kind: table.KindInt16Array, Shape: []int{2, 2}},
		{Name: "tags", Kind: table.KindStringArray, Shape: []int{2}},
		{Name: "bytes", Kind: table.KindInt8Array, Shape: []int{2}},
	}
	rows := [][]any{
		{true, int8(-5), int16(300), int32(-70000), int64(1) << 40, float32(1.5), 2.25, "alpha",
			[]float64{1, 2, 3}, []int16{1, 2, 3, 4}, []string{"x", "yy"}, []int8{-128, 127}},
		{false, int8(127), int16(-1), nil, int64(-9), float32(-0.5), math.Inf(1), "be",
			[]float64{4, 5, 6}, []int16{5, 6, 7, 8}, []string{"zzz", "w"}, []int8{0, 1}},
		{nil, nil, nil, int32(math.MinInt32), int64(0), float32(0), -1.0, nil,
			[]float64{7, 8, 9}, []int16{9, 10, 11, 12}, []string{"a", "b"}, []int8{3, 4}},
	}
	return testutil.MustTable(t, cols, rows)
}

func writeSample(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	n, err := Write(context.Background(), &buf, sampleTable(t))
	require.NoError(t, err)
	require.Equal(t, int64(buf.Len()), n)
	require.Zero(t, buf.Len()%BlockSize)
	return buf.Bytes()
}

func TestWriteRead_Random(t *testing.T) {
	ctx := context.Background()
	data := writeSample(t)
	assert.True(t, IsMagic(data))

	tab, err := Open(bytes.NewReader(data), int64(len(data)), AnyHDU, nil)
	require.NoError(t, err)
	defer tab.Close()

	src := sampleTable(t)
	require.Equal(t, src.ColumnCount(), tab.ColumnCount())
	assert.Equal(t, int64(3), tab.RowCount())
	assert.True(t, tab.IsRandom())
	for i := 0; i < src.ColumnCount(); i++ {
		assert.Equal(t, src.ColumnInfo(i).Name, tab.ColumnInfo(i).Name)
		assert.Equal(t, src.ColumnInfo(i).Kind, tab.ColumnInfo(i).Kind, src.ColumnInfo(i).Name)
		assert.Equal(t, src.ColumnInfo(i).Shape, tab.ColumnInfo(i).Shape, src.ColumnInfo(i).Name)
	}
	assert.Equal(t, "count", tab.ColumnInfo(3).Unit)

	row, err := tab.Row(ctx, 0)
	require.NoError(t, err)
	want, err := src.Row(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, want, row)

	row, err = tab.Row(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, row[0])
	assert.Nil(t, row[1])
	assert.Nil(t, row[2])
	assert.Equal(t, int32(math.MinInt32), row[3])
	assert.Nil(t, row[7])

	v, err := tab.Cell(ctx, 1, 3)
	require.NoError(t, err)
	assert.Nil(t, v)
	v, err = tab.Cell(ctx, 1, 6)
	require.NoError(t, err)
	assert.True(t, math.IsInf(v.(float64), 1))

	// Random access agrees with a sequential pass.
	rows := testutil.Rows(t, tab)
	require.Len(t, rows, 3)
	for i, r := range rows {
		got, err := tab.Row(ctx, int64(i))
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}

	_, err = tab.Row(ctx, 3)
	var rowErr *table.ErrRowIndex
	assert.ErrorAs(t, err, &rowErr)
}

func TestWriteRead_Stream(t *testing.T) {
	data := writeSample(t)
	st, err := OpenStream(bytes.NewReader(data), AnyHDU, nil)
	require.NoError(t, err)
	assert.False(t, st.IsRandom())
	assert.Equal(t, int64(3), st.RowCount())

	rows := testutil.Rows(t, st)
	require.Len(t, rows, 3)
	assert.Equal(t, "be", rows[1][7])

	_, err = st.RowSequence(context.Background())
	assert.ErrorIs(t, err, table.ErrSingleUse)
}

func TestOpen_HDUSelection(t *testing.T) {
	data := writeSample(t)
	tab, err := Open(bytes.NewReader(data), int64(len(data)), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 12, tab.ColumnCount())

	_, err = Open(bytes.NewReader(data), int64(len(data)), 0, nil)
	assert.ErrorIs(t, err, table.ErrFormat)

	_, err = Open(bytes.NewReader(data), int64(len(data)), 2, nil)
	assert.ErrorIs(t, err, table.ErrFormat)
}

func TestStream_TruncatedData(t *testing.T) {
	data := writeSample(t)
	_, offset, err := FindBintable(bytes.NewReader(data), AnyHDU)
	require.NoError(t, err)
	// Keep both headers and a fraction of the first row.
	st, err := OpenStream(bytes.NewReader(data[:offset+10]), AnyHDU, nil)
	require.NoError(t, err)

	_, err = table.ReadAll(context.Background(), st)
	require.ErrorIs(t, err, table.ErrFormat)
	var rowErr *table.RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, int64(0), rowErr.Row)
}

// bintableBytes builds a one-column BINTABLE HDU from raw row data.
func bintableBytes(t *testing.T, cards map[string]any, rowSize int, rows [][]byte) []byte {
	t.Helper()
	h := NewHeader()
	require.NoError(t, h.Set("XTENSION", "BINTABLE", ""))
	require.NoError(t, h.Set("BITPIX", 8, ""))
	require.NoError(t, h.Set("NAXIS", 2, ""))
	require.NoError(t, h.Set("NAXIS1", rowSize, ""))
	require.NoError(t, h.Set("NAXIS2", len(rows), ""))
	require.NoError(t, h.Set("PCOUNT", 0, ""))
	require.NoError(t, h.Set("GCOUNT", 1, ""))
	require.NoError(t, h.Set("TFIELDS", 1, ""))
	for _, k := range []string{"TTYPE1", "TFORM1", "TSCAL1", "TZERO1", "TNULL1", "TDIM1"} {
		if v, ok := cards[k]; ok {
			require.NoError(t, h.Set(k, v, ""))
		}
	}
	var buf bytes.Buffer
	_, err := WriteHeader(&buf, h)
	require.NoError(t, err)
	for _, r := range rows {
		buf.Write(r)
	}
	buf.Write(make([]byte, Padding(int64(rowSize*len(rows)))))
	return buf.Bytes()
}

func be16(v uint16) []byte { b := make([]byte, 2); binary.BigEndian.PutUint16(b, v); return b }

func TestBintable_Scaling(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		cards map[string]any
		kind  table.Kind
		raw   []byte
		want  any
	}{
		{"unsigned short", map[string]any{"TFORM1": "I", "TZERO1": 32768}, table.KindInt32, be16(0xffff), int32(32767)},
		{"plain short", map[string]any{"TFORM1": "I"}, table.KindInt16, be16(0xfffe), int16(-2)},
		{"scaled", map[string]any{"TFORM1": "I", "TSCAL1": 0.5, "TZERO1": 10}, table.KindFloat64, be16(4), 12.0},
		{"null", map[string]any{"TFORM1": "I", "TNULL1": -1}, table.KindInt16, be16(0xffff), nil},
		{"unsigned byte", map[string]any{"TFORM1": "B"}, table.KindInt16, []byte{200}, int16(200)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cards["TTYPE1"] = "x"
			data := bintableBytes(t, tt.cards, len(tt.raw), [][]byte{tt.raw})
			tab, err := Open(bytes.NewReader(data), int64(len(data)), AnyHDU, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, tab.ColumnInfo(0).Kind)
			v, err := tab.Cell(ctx, 0, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestBintable_UnsupportedFormat(t *testing.T) {
	data := bintableBytes(t, map[string]any{"TTYPE1": "c", "TFORM1": "1C"}, 8, nil)
	_, err := Open(bytes.NewReader(data), int64(len(data)), AnyHDU, nil)
	assert.ErrorIs(t, err, table.ErrFormat)

	data = bintableBytes(t, map[string]any{"TTYPE1": "v", "TFORM1": "1PJ(4)"}, 8, nil)
	_, err = Open(bytes.NewReader(data), int64(len(data)), AnyHDU, nil)
	assert.ErrorIs(t, err, table.ErrFormat)
}

func TestBintable_WidthMismatch(t *testing.T) {
	data := bintableBytes(t, map[string]any{"TTYPE1": "x", "TFORM1": "J"}, 6, nil)
	_, err := Open(bytes.NewReader(data), int64(len(data)), AnyHDU, nil)
	assert.ErrorIs(t, err, table.ErrFormat)
}

func TestWriteBintable_VariableArraysPadded(t *testing.T) {
	ctx := context.Background()
	src := testutil.MustTable(t,
		[]table.ColumnInfo{{Name: "v", Kind: table.KindFloat32Array, Shape: []int{table.VariableDim}}},
		[][]any{{[]float32{1}}, {[]float32{1, 2, 3}}, {nil}},
	)
	var buf bytes.Buffer
	_, err := Write(ctx, &buf, testutil.Streamed(src))
	require.NoError(t, err)

	tab, err := Open(bytes.NewReader(buf.Bytes()), int64(buf.Len()), AnyHDU, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, tab.ColumnInfo(0).Shape)

	v, err := tab.Cell(ctx, 0, 0)
	require.NoError(t, err)
	got := v.([]float32)
	require.Len(t, got, 3)
	assert.Equal(t, float32(1), got[0])
	assert.True(t, math.IsNaN(float64(got[2])))
}

func TestHeaderParams(t *testing.T) {
	data := writeSample(t)
	b, _, err := FindBintable(bytes.NewReader(data), AnyHDU)
	require.NoError(t, err)
	b.header.Add(Card{Key: "OBSERVER", Value: "Hubble", HasValue: true, IsString: true})
	params := headerParams(b.header)
	require.Len(t, params, 1)
	assert.Equal(t, "OBSERVER", params[0].Info.Name)
	assert.Equal(t, "Hubble", params[0].Value)
}
