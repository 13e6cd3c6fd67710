package fits

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hupe1980/startable/table"
)

const (
	// BlockSize is the FITS logical record length.
	BlockSize = 2880
	// CardSize is the length of one header card.
	CardSize = 80

	cardsPerBlock = BlockSize / CardSize
	formatName    = "FITS"
)

// Card is one 80-byte header record.
type Card struct {
	Key     string
	Value   string
	Comment string
	// HasValue reports whether the card has a value indicator.
	HasValue bool
	// IsString reports whether Value was a quoted string.
	IsString bool
}

// ParseCard decodes an 80-byte header card.
func ParseCard(b []byte) (Card, error) {
	if len(b) < CardSize {
		return Card{}, table.Formatf(formatName, "short header card (%d bytes)", len(b))
	}
	b = b[:CardSize]
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return Card{}, table.Formatf(formatName, "illegal character 0x%02x in header card", c)
		}
	}
	card := Card{Key: strings.TrimRight(string(b[:8]), " ")}
	if b[8] != '=' || b[9] != ' ' {
		card.Comment = strings.TrimRight(string(b[8:]), " ")
		return card, nil
	}
	card.HasValue = true
	rest := strings.TrimLeft(string(b[10:]), " ")
	if strings.HasPrefix(rest, "'") {
		var sb strings.Builder
		i := 1
		for {
			if i >= len(rest) {
				return Card{}, table.Formatf(formatName, "unterminated string in card %q", card.Key)
			}
			if rest[i] == '\'' {
				if i+1 < len(rest) && rest[i+1] == '\'' {
					sb.WriteByte('\'')
					i += 2
					continue
				}
				break
			}
			sb.WriteByte(rest[i])
			i++
		}
		card.IsString = true
		card.Value = strings.TrimRight(sb.String(), " ")
		rest = rest[i+1:]
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			card.Comment = strings.TrimSpace(rest[j+1:])
		}
		return card, nil
	}
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		card.Comment = strings.TrimSpace(rest[j+1:])
		rest = rest[:j]
	}
	card.Value = strings.TrimSpace(rest)
	return card, nil
}

// Bool returns the value of a logical card.
func (c Card) Bool() (bool, bool) {
	if !c.HasValue || c.IsString {
		return false, false
	}
	switch c.Value {
	case "T":
		return true, true
	case "F":
		return false, true
	}
	return false, false
}

// Int returns the value of an integer card.
func (c Card) Int() (int64, bool) {
	if !c.HasValue || c.IsString {
		return 0, false
	}
	v, err := strconv.ParseInt(strings.TrimPrefix(c.Value, "+"), 10, 64)
	return v, err == nil
}

// Float returns the value of a numeric card. Fortran D exponents are
// accepted.
func (c Card) Float() (float64, bool) {
	if !c.HasValue || c.IsString {
		return 0, false
	}
	s := strings.NewReplacer("D", "E", "d", "e").Replace(c.Value)
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

// MarshalBinary encodes the card as 80 bytes.
func (c Card) MarshalBinary() ([]byte, error) {
	if len(c.Key) > 8 {
		return nil, fmt.Errorf("fits: keyword %q longer than 8 characters", c.Key)
	}
	var sb strings.Builder
	sb.WriteString(c.Key)
	sb.WriteString(strings.Repeat(" ", 8-len(c.Key)))
	if c.HasValue {
		sb.WriteString("= ")
		if c.IsString {
			s := "'" + strings.ReplaceAll(c.Value, "'", "''")
			if len(s) < 9 {
				s += strings.Repeat(" ", 9-len(s))
			}
			sb.WriteString(s + "'")
		} else {
			sb.WriteString(fmt.Sprintf("%20s", c.Value))
		}
		if sb.Len() > CardSize {
			return nil, fmt.Errorf("fits: value of %q too long", c.Key)
		}
		if c.Comment != "" {
			sb.WriteString(" / " + c.Comment)
		}
	} else if c.Comment != "" {
		sb.WriteString(c.Comment)
	}
	s := sb.String()
	if len(s) > CardSize {
		s = s[:CardSize]
	}
	return []byte(s + strings.Repeat(" ", CardSize-len(s))), nil
}

// ValueCard builds a keyword card from a Go value. Supported values are
// bool, integers, float32, float64 and string.
func ValueCard(key string, value any, comment string) (Card, error) {
	c := Card{Key: key, Comment: comment, HasValue: true}
	switch v := value.(type) {
	case bool:
		c.Value = "F"
		if v {
			c.Value = "T"
		}
	case int:
		c.Value = strconv.Itoa(v)
	case int8, int16, int32, int64, uint8, uint16, uint32:
		c.Value = fmt.Sprint(v)
	case float32:
		c.Value = formatFloat(float64(v))
	case float64:
		c.Value = formatFloat(v)
	case string:
		c.Value = v
		c.IsString = true
	default:
		return Card{}, fmt.Errorf("fits: unsupported card value type %T", value)
	}
	return c, nil
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'G', -1, 64)
	if strings.ContainsAny(s, ".N") {
		return s
	}
	if i := strings.IndexByte(s, 'E'); i >= 0 {
		return s[:i] + ".0" + s[i:]
	}
	return s + ".0"
}

// Header is an ordered list of cards, excluding the END card.
type Header struct {
	cards []Card
}

// NewHeader creates a header from cards.
func NewHeader(cards ...Card) *Header {
	return &Header{cards: cards}
}

// Cards returns the header cards in order.
func (h *Header) Cards() []Card { return h.cards }

// Len returns the number of cards.
func (h *Header) Len() int { return len(h.cards) }

// Add appends a card.
func (h *Header) Add(c Card) { h.cards = append(h.cards, c) }

// Set appends a keyword card holding value.
func (h *Header) Set(key string, value any, comment string) error {
	c, err := ValueCard(key, value, comment)
	if err != nil {
		return err
	}
	h.Add(c)
	return nil
}

// Card returns the first card with the given keyword.
func (h *Header) Card(key string) (Card, bool) {
	for _, c := range h.cards {
		if c.Key == key && c.HasValue {
			return c, true
		}
	}
	return Card{}, false
}

// Has reports whether a valued card with the keyword exists.
func (h *Header) Has(key string) bool {
	_, ok := h.Card(key)
	return ok
}

// Int returns an integer keyword value.
func (h *Header) Int(key string) (int64, bool) {
	c, ok := h.Card(key)
	if !ok {
		return 0, false
	}
	return c.Int()
}

// Float returns a numeric keyword value.
func (h *Header) Float(key string) (float64, bool) {
	c, ok := h.Card(key)
	if !ok {
		return 0, false
	}
	return c.Float()
}

// Bool returns a logical keyword value.
func (h *Header) Bool(key string) (bool, bool) {
	c, ok := h.Card(key)
	if !ok {
		return false, false
	}
	return c.Bool()
}

// String returns a string keyword value.
func (h *Header) String(key string) (string, bool) {
	c, ok := h.Card(key)
	if !ok || !c.IsString {
		return "", false
	}
	return c.Value, true
}

// RequireInt returns an integer keyword value or a format error.
func (h *Header) RequireInt(key string) (int64, error) {
	v, ok := h.Int(key)
	if !ok {
		return 0, table.Formatf(formatName, "missing or bad %s keyword", key)
	}
	return v, nil
}

// ReadHeader reads header blocks from r up to and including the block
// holding the END card. It returns the header and the number of bytes read.
func ReadHeader(r io.Reader) (*Header, int64, error) {
	h := &Header{}
	block := make([]byte, BlockSize)
	var n int64
	for {
		if _, err := io.ReadFull(r, block); err != nil {
			if n == 0 && errors.Is(err, io.EOF) {
				return nil, 0, io.EOF
			}
			return nil, n, table.NewFormatError(formatName, "truncated header", err)
		}
		n += BlockSize
		for i := 0; i < cardsPerBlock; i++ {
			raw := block[i*CardSize : (i+1)*CardSize]
			if bytes.Equal(bytes.TrimRight(raw, " "), []byte("END")) {
				return h, n, nil
			}
			c, err := ParseCard(raw)
			if err != nil {
				return nil, n, err
			}
			h.Add(c)
		}
	}
}

// WriteHeader writes the cards of h, an END card and block padding.
func WriteHeader(w io.Writer, h *Header) (int64, error) {
	var buf bytes.Buffer
	for _, c := range h.cards {
		b, err := c.MarshalBinary()
		if err != nil {
			return 0, err
		}
		buf.Write(b)
	}
	end, _ := Card{Key: "END"}.MarshalBinary()
	buf.Write(end)
	buf.Write(bytes.Repeat([]byte{' '}, int(Padding(int64(buf.Len())))))
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// Padding returns the number of bytes needed to fill n up to a block.
func Padding(n int64) int64 {
	return (BlockSize - n%BlockSize) % BlockSize
}

// RawDataSize returns the unpadded size in bytes of the data unit
// described by h: |BITPIX|/8 * GCOUNT * (PCOUNT + NAXIS1*...*NAXISn).
func RawDataSize(h *Header) (int64, error) {
	naxis, err := h.RequireInt("NAXIS")
	if err != nil {
		return 0, err
	}
	if naxis == 0 {
		return 0, nil
	}
	bitpix, err := h.RequireInt("BITPIX")
	if err != nil {
		return 0, err
	}
	if bitpix < 0 {
		bitpix = -bitpix
	}
	prod := int64(1)
	for i := int64(1); i <= naxis; i++ {
		d, err := h.RequireInt("NAXIS" + strconv.FormatInt(i, 10))
		if err != nil {
			return 0, err
		}
		if d < 0 {
			return 0, table.Formatf(formatName, "negative NAXIS%d", i)
		}
		prod *= d
	}
	gcount, ok := h.Int("GCOUNT")
	if !ok {
		gcount = 1
	}
	pcount, _ := h.Int("PCOUNT")
	return bitpix / 8 * gcount * (pcount + prod), nil
}

// DataSize returns the block-padded size in bytes of the data unit
// described by h.
func DataSize(h *Header) (int64, error) {
	n, err := RawDataSize(h)
	if err != nil {
		return 0, err
	}
	return n + Padding(n), nil
}

// Skip discards n bytes from r.
func Skip(r io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	if s, ok := r.(io.Seeker); ok {
		_, err := s.Seek(n, io.SeekCurrent)
		return err
	}
	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		return table.NewFormatError(formatName, "truncated data unit", err)
	}
	return nil
}
