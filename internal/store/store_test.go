package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextSequenceFromColumn(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   int
	}{
		{"empty sheet", nil, 1},
		{"header only", []string{"seq_number"}, 1},
		{"sequential", []string{"seq_number", "1", "2", "3"}, 4},
		{"gaps take the max", []string{"seq_number", "5", "2", "9"}, 10},
		{"non-numeric values skipped", []string{"seq_number", "1", "x", "", "7"}, 8},
		{"negative values skipped", []string{"seq_number", "-3"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextSequenceFromColumn(tt.values))
		})
	}
}

func TestHeadersMatchColumnCount(t *testing.T) {
	assert.Len(t, Headers, ColumnCount)
}
