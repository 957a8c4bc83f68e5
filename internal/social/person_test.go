package social

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersonUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Person
	}{
		{"string id", `{"id":"u-1","username":"Alice"}`, Person{ID: "u-1", Username: "Alice"}},
		{"numeric id", `{"id":42,"username":"Bob"}`, Person{ID: "42", Username: "Bob"}},
		{"large id keeps digits", `{"id":90071992547409931,"username":"Big"}`, Person{ID: "90071992547409931", Username: "Big"}},
		{"missing fields", `{}`, Person{}},
		{"whole float id", `{"id":1.0,"username":"Alice"}`, Person{ID: "1", Username: "Alice"}},
		{"exponent id", `{"id":1e3,"username":"Kay"}`, Person{ID: "1000", Username: "Kay"}},
		{"fractional id kept", `{"id":1.5,"username":"Half"}`, Person{ID: "1.5", Username: "Half"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Person
			require.NoError(t, json.Unmarshal([]byte(tt.in), &p))
			assert.Equal(t, tt.want, p)
		})
	}

	var p Person
	assert.Error(t, json.Unmarshal([]byte(`{"id":true,"username":"x"}`), &p))
}

func TestConnectionUnmarshal(t *testing.T) {
	var got []Connection
	in := `[{"id_a":"1","id_b":"2"},{"user1_id":3,"user2_id":4}]`
	require.NoError(t, json.Unmarshal([]byte(in), &got))
	assert.Equal(t, []Connection{{A: "1", B: "2"}, {A: "3", B: "4"}}, got)

	var c Connection
	require.NoError(t, json.Unmarshal([]byte(`{"user1_id":1.0,"user2_id":2}`), &c))
	assert.Equal(t, Connection{A: "1", B: "2"}, c)
}

func TestConnectionKeyIsUnordered(t *testing.T) {
	assert.Equal(t, Connection{A: "1", B: "2"}.key(), Connection{A: "2", B: "1"}.key())
	assert.NotEqual(t, Connection{A: "1", B: "23"}.key(), Connection{A: "12", B: "3"}.key())
}
