package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxQuantity caps a line quantity read back from a record.
const MaxQuantity = 1_000_000

var maxID = decimal.NewFromInt(math.MaxInt64)

// ErrMalformedRecord is returned by DecodeLines when a persisted cart is not
// a JSON array.
var ErrMalformedRecord = errors.New("malformed cart record")

// persistedLine is the on-device shape. price duplicates retail_price for
// readers that only know the older field name.
type persistedLine struct {
	ID                 int64       `json:"id"`
	Name               string      `json:"name"`
	Price              json.Number `json:"price"`
	RetailPrice        json.Number `json:"retail_price"`
	WholesalePrice     json.Number `json:"wholesale_price,omitempty"`
	WholesaleThreshold int         `json:"wholesale_threshold,omitempty"`
	Quantity           int         `json:"quantity"`
	ImageURL           string      `json:"image_url"`
}

// EncodeLines serializes lines into the persisted record format.
func EncodeLines(lines []CartLine) ([]byte, error) {
	out := make([]persistedLine, 0, len(lines))
	for _, l := range lines {
		retail := json.Number(l.RetailPrice.String())
		p := persistedLine{
			ID:                 l.ID,
			Name:               l.Name,
			Price:              retail,
			RetailPrice:        retail,
			WholesaleThreshold: l.WholesaleThreshold,
			Quantity:           l.Quantity,
			ImageURL:           l.ImageURL,
		}
		if l.WholesalePrice != nil {
			p.WholesalePrice = json.Number(l.WholesalePrice.String())
		}
		out = append(out, p)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode cart record: %w", err)
	}
	return data, nil
}

// DecodeLines parses a persisted record. Anything that is not a JSON array
// yields ErrMalformedRecord. Elements are coerced field by field rather than
// rejected:
//
//   - id: integer, else 0
//   - name, image_url: string, else ""
//   - retail_price: positive number, else price, else 0
//   - wholesale_price: kept when a non-negative number
//   - wholesale_threshold: kept when a positive integer up to MaxQuantity
//   - quantity: truncated to an integer; anything below 1 becomes 1 and
//     anything above MaxQuantity becomes MaxQuantity
//
// Numbers may be JSON numbers or numeric strings. Lines repeating an earlier
// id are folded into the first one by adding their quantities.
func DecodeLines(data []byte) ([]CartLine, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformedRecord)
	}

	elems, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: got %T, want array", ErrMalformedRecord, raw)
	}

	lines := make([]CartLine, 0, len(elems))
	seen := make(map[int64]int, len(elems))
	for _, e := range elems {
		obj, _ := e.(map[string]any)
		line := coerceLine(obj)

		if i, dup := seen[line.ID]; dup {
			lines[i].Quantity = min(lines[i].Quantity+line.Quantity, MaxQuantity)
			continue
		}
		seen[line.ID] = len(lines)
		lines = append(lines, line)
	}
	return lines, nil
}

func coerceLine(obj map[string]any) CartLine {
	line := CartLine{
		Name:     stringField(obj, "name"),
		ImageURL: stringField(obj, "image_url", "imageUrl"),
		Quantity: 1,
	}

	if id, ok := number(field(obj, "id")); ok && id.IsInteger() && id.Abs().LessThanOrEqual(maxID) {
		line.ID = id.IntPart()
	}

	line.RetailPrice = decimal.Zero
	for _, v := range []any{field(obj, "retail_price", "retailPrice"), field(obj, "price")} {
		if d, ok := number(v); ok && d.IsPositive() {
			line.RetailPrice = d
			break
		}
	}

	if w, ok := number(field(obj, "wholesale_price", "wholesalePrice")); ok && !w.IsNegative() {
		line.WholesalePrice = &w
	}

	if th, ok := number(field(obj, "wholesale_threshold", "wholesaleThreshold")); ok && th.IsInteger() && th.IsPositive() && th.LessThanOrEqual(decimal.NewFromInt(MaxQuantity)) {
		line.WholesaleThreshold = int(th.IntPart())
	}

	if q, ok := number(field(obj, "quantity")); ok && q.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		line.Quantity = int(decimal.Min(q, decimal.NewFromInt(MaxQuantity)).IntPart())
	}

	return line
}

// field returns the first present value among keys.
func field(obj map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func stringField(obj map[string]any, keys ...string) string {
	s, _ := field(obj, keys...).(string)
	return s
}

func number(v any) (decimal.Decimal, bool) {
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = strings.TrimSpace(t)
	default:
		return decimal.Zero, false
	}
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
