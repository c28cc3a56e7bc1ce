// Package metadata encodes and decodes the order snapshot stored in a
// notification's metadata column.
package metadata

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrMalformed is returned when metadata is present but is not valid JSON.
var ErrMalformed = errors.New("malformed notification metadata")

// Item is one line of the snapshot.
type Item struct {
	Name      string          `json:"name"`
	ProductID FlexString      `json:"product_id"`
	Quantity  FlexInt         `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Snapshot is the order state captured when a notification is written.
type Snapshot struct {
	Items           []Item          `json:"items,omitempty"`
	ProductID       FlexString      `json:"product_id,omitempty"`
	ProductIDs      []FlexString    `json:"product_ids,omitempty"`
	OrderID         FlexString      `json:"order_id,omitempty"`
	OrderIDs        []FlexString    `json:"order_ids,omitempty"`
	OrderDate       FlexString      `json:"order_date,omitempty"`
	OrderStatus     string          `json:"order_status,omitempty"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	CustomerName    string          `json:"customer_name,omitempty"`
	CustomerEmail   string          `json:"customer_email,omitempty"`
	PaymentStatus   string          `json:"payment_status,omitempty"`
	ShippingAddress string          `json:"shipping_address,omitempty"`
	ShippingPincode string          `json:"shipping_pincode,omitempty"`

	// Older writers used these keys for the order reference.
	CamelOrderID   FlexString `json:"orderId,omitempty"`
	PrimaryOrderID FlexString `json:"primary_order_id,omitempty"`
}

// Encode renders the snapshot as the JSON text stored in the column.
func Encode(s *Snapshot) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(b), nil
}

// Decode parses metadata that may arrive as JSON text, raw bytes, a value
// already decoded into a map, or a Snapshot. Nil and empty input yield an
// empty snapshot.
func Decode(raw interface{}) (*Snapshot, error) {
	switch v := raw.(type) {
	case nil:
		return &Snapshot{}, nil
	case *Snapshot:
		if v == nil {
			return &Snapshot{}, nil
		}
		return v, nil
	case Snapshot:
		return &v, nil
	case string:
		return decodeBytes([]byte(v), true)
	case []byte:
		return decodeBytes(v, true)
	case json.RawMessage:
		return decodeBytes(v, true)
	case Column:
		return decodeBytes(v, true)
	case map[string]interface{}:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return decodeBytes(b, false)
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrMalformed, raw)
	}
}

func decodeBytes(b []byte, allowNested bool) (*Snapshot, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return &Snapshot{}, nil
	}

	// Some rows hold the object double-encoded as a JSON string.
	if allowNested && b[0] == '"' {
		var inner string
		if err := json.Unmarshal(b, &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return decodeBytes([]byte(inner), false)
	}

	var s Snapshot
	err := json.Unmarshal(b, &s)
	if err == nil {
		return &s, nil
	}
	if !json.Valid(b) {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	// Valid JSON with loosely typed fields: keep what fits.
	loose, lerr := decodeLoose(b)
	if lerr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, lerr)
	}
	return loose, nil
}

// decodeLoose decodes an object key by key, dropping values whose type
// does not fit the snapshot.
func decodeLoose(b []byte) (*Snapshot, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, err
	}

	var s Snapshot
	for key, raw := range fields {
		switch key {
		case "items":
			s.Items = looseItems(raw)
		case "order_ids":
			s.OrderIDs = looseIDs(raw)
		case "product_ids":
			s.ProductIDs = looseIDs(raw)
		default:
			setField(&s, key, raw)
		}
	}
	return &s, nil
}

func looseItems(raw json.RawMessage) []Item {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil
	}
	items := make([]Item, 0, len(elems))
	for _, elem := range elems {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(elem, &fields); err != nil {
			continue
		}
		var item Item
		for key, v := range fields {
			setField(&item, key, v)
		}
		items = append(items, item)
	}
	return items
}

func looseIDs(raw json.RawMessage) []FlexString {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		var single FlexString
		if single.UnmarshalJSON(raw) == nil && single != "" {
			return []FlexString{single}
		}
		return nil
	}
	ids := make([]FlexString, 0, len(elems))
	for _, elem := range elems {
		var id FlexString
		if err := id.UnmarshalJSON(elem); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// setField decodes a single key into dst; a value of the wrong type is
// ignored.
func setField(dst interface{}, key string, raw json.RawMessage) {
	obj, err := json.Marshal(map[string]json.RawMessage{key: raw})
	if err != nil {
		return
	}
	_ = json.Unmarshal(obj, dst)
}

// CandidateOrderIDs merges every order reference the snapshot carries,
// first match first, without duplicates.
func (s *Snapshot) CandidateOrderIDs() []string {
	candidates := []FlexString{s.OrderID, s.CamelOrderID, s.PrimaryOrderID}
	candidates = append(candidates, s.OrderIDs...)
	return MergeIDs(candidates...)
}

// MergeIDs drops blanks and duplicates while keeping order.
func MergeIDs[T ~string](ids ...T) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		v := strings.TrimSpace(string(id))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// FlexString accepts a JSON string or number.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(b))
	}
	if i, err := n.Int64(); err == nil {
		*f = FlexString(strconv.FormatInt(i, 10))
		return nil
	}
	*f = FlexString(n.String())
	return nil
}

// FlexInt accepts a JSON number or a numeric string. Empty strings
// decode to zero.
type FlexInt int

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexInt) UnmarshalJSON(b []byte) error {
	var s FlexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	text := strings.TrimSpace(string(s))
	if text == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("expected integer, got %s", string(b))
	}
	*f = FlexInt(n)
	return nil
}

// Column is the raw metadata column. It scans from both []byte and string
// driver values and marshals to clients as a JSON object.
type Column []byte

// Value implements driver.Valuer.
func (c Column) Value() (driver.Value, error) {
	if len(c) == 0 {
		return nil, nil
	}
	return string(c), nil
}

// Scan implements sql.Scanner.
func (c *Column) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*c = nil
	case []byte:
		*c = append((*c)[:0], v...)
	case string:
		*c = Column(v)
	default:
		return fmt.Errorf("metadata: cannot scan %T", value)
	}
	return nil
}

// MarshalJSON emits the stored JSON as is, or null when it is empty or
// not valid JSON.
func (c Column) MarshalJSON() ([]byte, error) {
	trimmed := bytes.TrimSpace(c)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return []byte("null"), nil
	}
	out := make([]byte, len(trimmed))
	copy(out, trimmed)
	return out, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Column) UnmarshalJSON(b []byte) error {
	*c = append((*c)[:0], b...)
	return nil
}

// Snapshot decodes the column.
func (c Column) Snapshot() (*Snapshot, error) {
	return Decode(c)
}

// NewColumn encodes s into a column value.
func NewColumn(s *Snapshot) (Column, error) {
	text, err := Encode(s)
	if err != nil {
		return nil, err
	}
	return Column(text), nil
}
