package wasmtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLEB128(t *testing.T) {
	tests := []struct {
		name string
		got  []byte
		want []byte
	}{
		{"uleb zero", uleb(0), []byte{0x00}},
		{"uleb 624485", uleb(624485), []byte{0xe5, 0x8e, 0x26}},
		{"sleb -1", sleb(-1), []byte{0x7f}},
		{"sleb 63", sleb(63), []byte{0x3f}},
		{"sleb 64", sleb(64), []byte{0xc0, 0x00}},
		{"sleb -123456", sleb(-123456), []byte{0xc0, 0xbb, 0x78}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestHeader(t *testing.T) {
	data := NewBuilder().Bytes()
	assert.Equal(t, []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}, data[:8])
}

func TestStrOffsets(t *testing.T) {
	p := &Plugin{Strings: []string{"ab", "cde"}}
	assert.Equal(t, append(I32Const(stringsOffset), I32Const(2)...), p.Str(0))
	assert.Equal(t, append(I32Const(stringsOffset+2), I32Const(3)...), p.Str(1))
}

func TestImportPanicsWhenMissing(t *testing.T) {
	p := &Plugin{}
	assert.Panics(t, func() { p.Import("open") })
}
