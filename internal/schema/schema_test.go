package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canonmorph/canonmorph/internal/util"
)

func validCanonicalRecord() Record {
	return Record{
		Subject:    "orders",
		Type:       TypeCanonical,
		Version:    "1.0.0",
		Definition: json.RawMessage(`{"type":"object"}`),
	}
}

func validConsumerOutputRecord() Record {
	return Record{
		Subject:    "orders",
		Type:       TypeConsumerOutput,
		ConsumerID: "billing-app",
		Version:    "1.0.0",
		Definition: json.RawMessage(`{"type":"object"}`),
	}
}

func TestParseType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tag       string
		want      Type
		expectErr bool
	}{
		{tag: "canonical", want: TypeCanonical},
		{tag: "consumer-output", want: TypeConsumerOutput},
		{tag: "", expectErr: true},
		{tag: "Canonical", expectErr: true},
		{tag: "avro", expectErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run("tag "+tt.tag, func(t *testing.T) {
			t.Parallel()

			got, err := ParseType(tt.tag)
			if tt.expectErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, util.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTypes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []Type{TypeCanonical, TypeConsumerOutput}, Types())
}

func TestRecord_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(r *Record)
		wantMsg string
	}{
		{
			name:   "valid canonical",
			mutate: func(r *Record) {},
		},
		{
			name:   "valid prerelease version",
			mutate: func(r *Record) { r.Version = "2.0.0-beta.1" },
		},
		{
			name:    "missing subject",
			mutate:  func(r *Record) { r.Subject = "" },
			wantMsg: "subject",
		},
		{
			name:    "invalid subject",
			mutate:  func(r *Record) { r.Subject = "orders topic!" },
			wantMsg: "subject",
		},
		{
			name:    "unknown type",
			mutate:  func(r *Record) { r.Type = "avro" },
			wantMsg: "schema type",
		},
		{
			name:    "canonical with consumer",
			mutate:  func(r *Record) { r.ConsumerID = "billing-app" },
			wantMsg: "must not set consumerId",
		},
		{
			name:    "missing version",
			mutate:  func(r *Record) { r.Version = "" },
			wantMsg: "version is required",
		},
		{
			name:    "invalid version",
			mutate:  func(r *Record) { r.Version = "not-a-version" },
			wantMsg: "not a valid semantic version",
		},
		{
			name:    "missing definition",
			mutate:  func(r *Record) { r.Definition = nil },
			wantMsg: "definition is required",
		},
		{
			name:    "invalid definition",
			mutate:  func(r *Record) { r.Definition = json.RawMessage("{oops") },
			wantMsg: "valid JSON",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			record := validCanonicalRecord()
			tt.mutate(&record)

			err := record.Validate()
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, util.ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestRecord_Validate_ConsumerOutput(t *testing.T) {
	t.Parallel()

	record := validConsumerOutputRecord()
	assert.NoError(t, record.Validate())

	record.ConsumerID = ""
	err := record.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "require consumerId")
}

func TestNewCanonicalReference(t *testing.T) {
	t.Parallel()

	ref := NewCanonicalReference("orders", "1.2.0")
	assert.Equal(t, "orders", ref.Subject)
	assert.Empty(t, ref.ConsumerID)
	assert.Equal(t, "1.2.0", ref.Version)
}

func TestNewConsumerOutputReference(t *testing.T) {
	t.Parallel()

	ref := NewConsumerOutputReference("orders", "billing-app", "")
	assert.Equal(t, "orders", ref.Subject)
	assert.Equal(t, "billing-app", ref.ConsumerID)
	assert.Empty(t, ref.Version)
}
