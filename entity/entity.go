package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Properties is an insertion-ordered map of property names to typed values.
// The zero value is ready to use.
type Properties struct {
	names  []string
	values map[string]TypedValue
}

// Set stores v under name. Re-setting a name keeps its original position.
func (p *Properties) Set(name string, v TypedValue) {
	if p.values == nil {
		p.values = make(map[string]TypedValue)
	}
	if _, ok := p.values[name]; !ok {
		p.names = append(p.names, name)
	}
	p.values[name] = v
}

func (p *Properties) Get(name string) (TypedValue, bool) {
	v, ok := p.values[name]
	return v, ok
}

func (p *Properties) Len() int {
	return len(p.names)
}

// Names returns property names in insertion order.
func (p *Properties) Names() []string {
	return append([]string(nil), p.names...)
}

// Range calls fn for each property in insertion order until fn returns false.
func (p *Properties) Range(fn func(name string, v TypedValue) bool) {
	for _, n := range p.names {
		if !fn(n, p.values[n]) {
			return
		}
	}
}

func (p Properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, n := range p.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(n)
		if err != nil {
			return nil, err
		}
		val, err := p.values[n].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", n, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (p *Properties) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("properties: expected object, got %v", tok)
	}

	*p = Properties{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("properties: expected name, got %v", tok)
		}
		var v TypedValue
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("property %q: %w", name, err)
		}
		p.Set(name, v)
	}
	_, err = dec.Token()
	return err
}

// EncodedEntity is the storable form of one log record.
type EncodedEntity struct {
	PartitionKey string     `json:"partition_key"`
	RowKey       string     `json:"row_key"`
	Properties   Properties `json:"properties"`
}

// Document flattens the entity into a plain map, the shape document stores index.
func (e EncodedEntity) Document() map[string]any {
	doc := make(map[string]any, e.Properties.Len()+2)
	e.Properties.Range(func(name string, v TypedValue) bool {
		doc[name] = v.Any()
		return true
	})
	doc["PartitionKey"] = e.PartitionKey
	doc["RowKey"] = e.RowKey
	return doc
}

// Size estimates the stored size of the entity in bytes.
func (e EncodedEntity) Size() int {
	size := 2 * (len(e.PartitionKey) + len(e.RowKey))
	e.Properties.Range(func(name string, v TypedValue) bool {
		size += 2*len(name) + v.Size()
		return true
	})
	return size
}
