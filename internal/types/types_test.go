package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntity_UnmarshalDisabledFlag(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{`{"id":"12"}`, false},
		{`{"id":"12","disabled":true}`, true},
		{`{"id":"12","disabled":1}`, true},
		{`{"id":"12","disabled":"1"}`, true},
		{`{"id":"12","disabled":"0"}`, false},
		{`{"id":"12","disabled":null}`, false},
	}
	for _, tt := range tests {
		var e Entity
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &e), tt.raw)
		assert.Equal(t, tt.want, e.Disabled, tt.raw)
		assert.Equal(t, "12", e.ID)
	}

	var e Entity
	assert.Error(t, json.Unmarshal([]byte(`{"disabled":"maybe"}`), &e))
}

func TestEntity_UnmarshalKeepsOtherFields(t *testing.T) {
	var e Entity
	require.NoError(t, json.Unmarshal([]byte(`{"id":"12","name":"Ezlo Bridge","ip":"10.0.0.4","disabled":"1"}`), &e))
	assert.Equal(t, Entity{ID: "12", Name: "Ezlo Bridge", NetworkAddress: "10.0.0.4", Disabled: true}, e)
}
