package social

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/go-playground/validator/v10"

	"socialgraph/internal/database/graph"
)

// Person is one user record from the upstream dataset.
type Person struct {
	ID       string `json:"id" validate:"required,max=128"`
	Username string `json:"username" validate:"required,max=256"`

	decodeErr error
}

// MalformedPerson stands in for a person record that could not be decoded.
// It keeps the record's position in the batch and is rejected on ingestion.
func MalformedPerson(err error) Person {
	return Person{decodeErr: err}
}

// DecodeErr is the decoding failure of a MalformedPerson, nil otherwise.
func (p Person) DecodeErr() error { return p.decodeErr }

// UnmarshalJSON accepts the id as either a JSON string or a JSON number.
func (p *Person) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID       json.RawMessage `json:"id"`
		Username *string         `json:"username"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id, err := decodeID(raw.ID)
	if err != nil {
		return fmt.Errorf("person id: %w", err)
	}
	p.ID = id
	p.Username = ""
	p.decodeErr = nil
	if raw.Username != nil {
		p.Username = *raw.Username
	}
	return nil
}

// Connection is an acquaintance between two person ids. Order is irrelevant.
type Connection struct {
	A string `json:"id_a" validate:"required,max=128"`
	B string `json:"id_b" validate:"required,max=128,nefield=A"`

	decodeErr error
}

// MalformedConnection stands in for a connection record that could not be
// decoded.
func MalformedConnection(err error) Connection {
	return Connection{decodeErr: err}
}

// DecodeErr is the decoding failure of a MalformedConnection, nil otherwise.
func (c Connection) DecodeErr() error { return c.decodeErr }

// UnmarshalJSON accepts both the id_a/id_b and the user1_id/user2_id field
// names, with string or numeric ids.
func (c *Connection) UnmarshalJSON(data []byte) error {
	var raw struct {
		A     json.RawMessage `json:"id_a"`
		B     json.RawMessage `json:"id_b"`
		User1 json.RawMessage `json:"user1_id"`
		User2 json.RawMessage `json:"user2_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a, b := raw.A, raw.B
	if len(a) == 0 && len(b) == 0 {
		a, b = raw.User1, raw.User2
	}
	c.decodeErr = nil
	var err error
	if c.A, err = decodeID(a); err != nil {
		return fmt.Errorf("connection id_a: %w", err)
	}
	if c.B, err = decodeID(b); err != nil {
		return fmt.Errorf("connection id_b: %w", err)
	}
	return nil
}

// key identifies the unordered pair.
func (c Connection) key() string {
	if c.A < c.B {
		return c.A + "\x00" + c.B
	}
	return c.B + "\x00" + c.A
}

func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return "", fmt.Errorf("must be a string or a number: %w", err)
	}
	return canonicalNumber(n), nil
}

// canonicalNumber writes whole numbers in integer form, so 1, 1.0 and 1e0
// name the same person.
func canonicalNumber(n json.Number) string {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		return s
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok || !r.IsInt() {
		return s
	}
	return r.Num().String()
}

// Rejection reports an input record refused at the ingestion boundary.
type Rejection struct {
	Kind   string `json:"kind"` // "person" or "connection"
	Index  int    `json:"index"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

func (s *Service) normalizePerson(p Person) (Person, error) {
	if p.decodeErr != nil {
		return p, graph.Validationf("decode person", "%v", p.decodeErr)
	}
	p.ID = strings.TrimSpace(p.ID)
	p.Username = strings.TrimSpace(p.Username)
	if err := s.validate.Struct(p); err != nil {
		return p, graph.Validationf("validate person", "%s", describeValidation(err))
	}
	return p, nil
}

func (s *Service) normalizeConnection(c Connection) (Connection, error) {
	if c.decodeErr != nil {
		return c, graph.Validationf("decode connection", "%v", c.decodeErr)
	}
	c.A = strings.TrimSpace(c.A)
	c.B = strings.TrimSpace(c.B)
	if err := s.validate.Struct(c); err != nil {
		return c, graph.Validationf("validate connection", "%s", describeValidation(err))
	}
	return c, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fe.Field()+" is required")
		case "nefield":
			parts = append(parts, fe.Field()+" must differ from "+fe.Param())
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		}
	}
	return strings.Join(parts, "; ")
}
