package delivery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/uniorder/backend/internal/domain/ordering"
)

// addressSeparator joins structured address components
const addressSeparator = ", "

// orderPath builds a partner order resource path. The id is escaped as a
// single path segment so ids carrying '/', '?' or '#' stay on their own order.
func orderPath(platformOrderID string, suffix ...string) string {
	p := "/orders/" + url.PathEscape(platformOrderID)
	for _, s := range suffix {
		p += "/" + s
	}
	return p
}

// payload is a decoded partner JSON object. Numbers are kept as json.Number
// so prices never pass through float64.
type payload map[string]any

// decodePayload decodes a JSON object, tolerating unknown fields
func decodePayload(raw []byte) (payload, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var p map[string]any
	if err := dec.Decode(&p); err != nil {
		return nil, ordering.NewValidationError("payload", "must be a JSON object")
	}
	if p == nil {
		return nil, ordering.NewValidationError("payload", "must be a JSON object")
	}
	return payload(p), nil
}

// str returns the first non-empty value among keys, rendered as a string
func (p payload) str(keys ...string) string {
	for _, key := range keys {
		v, ok := p[key]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case json.Number:
			s = t.String()
		case bool:
			s = strconv.FormatBool(t)
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			continue
		}
		if s = cleanText(s); s != "" {
			return s
		}
	}
	return ""
}

// obj returns a nested object, or nil if absent or not an object
func (p payload) obj(key string) payload {
	if m, ok := p[key].(map[string]any); ok {
		return payload(m)
	}
	return nil
}

// list returns the objects of an array field, skipping non-object elements
func (p payload) list(keys ...string) []payload {
	for _, key := range keys {
		arr, ok := p[key].([]any)
		if !ok {
			continue
		}
		out := make([]payload, 0, len(arr))
		for _, el := range arr {
			if m, ok := el.(map[string]any); ok {
				out = append(out, payload(m))
			}
		}
		return out
	}
	return nil
}

// dec returns the first present numeric value among keys. A present value
// that does not parse yields zero so validation reports it.
func (p payload) dec(keys ...string) (decimal.Decimal, bool) {
	for _, key := range keys {
		v, ok := p[key]
		if !ok || v == nil {
			continue
		}
		d, err := toDecimal(v)
		if err != nil {
			return decimal.Zero, true
		}
		return d, true
	}
	return decimal.Zero, false
}

// decPtr is dec returning nil when no key is present
func (p payload) decPtr(keys ...string) *decimal.Decimal {
	d, ok := p.dec(keys...)
	if !ok {
		return nil
	}
	return &d
}

// integer returns the first present whole-number value among keys.
// Fractional or unparsable values yield zero.
func (p payload) integer(keys ...string) int {
	d, ok := p.dec(keys...)
	if !ok || !d.Equal(d.Truncate(0)) {
		return 0
	}
	return int(d.IntPart())
}

// timestamp parses the first present timestamp among keys: RFC 3339 strings or
// unix seconds
func (p payload) timestamp(keys ...string) *time.Time {
	for _, key := range keys {
		switch v := p[key].(type) {
		case string:
			if t, ok := parseTimestamp(v); ok {
				return &t
			}
		case json.Number:
			if n, err := v.Int64(); err == nil && n > 0 {
				t := time.Unix(n, 0).UTC()
				return &t
			}
		}
	}
	return nil
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		return time.Unix(n, 0).UTC(), true
	}
	return time.Time{}, false
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case json.Number:
		return decimal.NewFromString(t.String())
	case string:
		return decimal.NewFromString(strings.TrimSpace(t))
	case float64:
		return decimal.NewFromFloat(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	default:
		return decimal.Zero, fmt.Errorf("not a number: %T", v)
	}
}

// cleanText applies NFC normalization and collapses runs of whitespace
func cleanText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// joinAddress joins non-empty address components with a fixed separator
func joinAddress(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = cleanText(part); part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, addressSeparator)
}

// addressFrom reads an address that is either a pre-formatted string at key,
// a nested object holding formattedKey, or a nested object of components
func addressFrom(p payload, key, formattedKey string, components ...string) string {
	if s := p.str(key); s != "" {
		return s
	}
	nested := p.obj(key)
	if nested == nil {
		return ""
	}
	if s := nested.str(formattedKey); s != "" {
		return s
	}
	values := make([]string, len(components))
	for i, c := range components {
		values[i] = nested.str(c)
	}
	return joinAddress(values...)
}

// itemFields lists the alias keys a partner uses for item attributes
type itemFields struct {
	name     []string
	quantity []string
	price    []string
	notes    []string
	category []string
	sku      []string
}

// parseItems maps partner item objects onto canonical items without validating them
func parseItems(list []payload, f itemFields) []ordering.OrderItem {
	items := make([]ordering.OrderItem, 0, len(list))
	for _, it := range list {
		price, _ := it.dec(f.price...)
		items = append(items, ordering.OrderItem{
			Name:      it.str(f.name...),
			Quantity:  it.integer(f.quantity...),
			UnitPrice: price,
			Notes:     it.str(f.notes...),
			Category:  it.str(f.category...),
			SKU:       it.str(f.sku...),
		})
	}
	return items
}

// finishOrder resolves the total and validates the result
func finishOrder(n *ordering.NormalizedOrder, declaredTotal *decimal.Decimal, raw []byte) (*ordering.NormalizedOrder, error) {
	n.TotalAmount = ordering.ResolveTotal(declaredTotal, n.Items)
	n.Customer = n.Customer.WithDefaults()
	n.RawPayload = append(json.RawMessage(nil), raw...)
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}
