package card

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		number string
		want   bool
	}{
		{"valid 16 digits", "8600123412341234", true},
		{"valid with spaces", "8600 1234 1234 1234", true},
		{"too short", "860012341234123", false},
		{"too long", "86001234123412345", false},
		{"valid with tabs", "8600\t1234\t1234\t1234", true},
		{"valid with nbsp", "8600 1234 1234 1234", true},
		{"valid with newline from paste", "8600 1234 1234\n1234", true},
		{"letters", "8600abcd12341234", false},
		{"empty", "", false},
		{"only spaces", "    ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Validate(tt.number))
		})
	}
}

func TestMask(t *testing.T) {
	assert.Equal(t, "8600 **** **** 1234", Mask("8600 1234 1234 1234"))
	assert.Equal(t, "12345", Mask("12345"))
}
