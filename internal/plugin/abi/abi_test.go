package abi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackUnpack(t *testing.T) {
	packed := Pack(1024, 37)
	ptr, length := Unpack(packed)
	assert.Equal(t, uint32(1024), ptr)
	assert.Equal(t, uint32(37), length)
	assert.Equal(t, uint64(0), Pack(0, 0))
}

func TestDecodeMetadata(t *testing.T) {
	m, err := DecodeMetadata([]byte(`{"id":"alpha","title":"Alpha","subtitle":"first","icon":"star","keywords":["a","first"]}`))
	require.NoError(t, err)
	assert.Equal(t, Metadata{
		ID:       "alpha",
		Title:    "Alpha",
		Subtitle: "first",
		Icon:     "star",
		Keywords: []string{"a", "first"},
	}, m)
}

func TestDecodeMetadataErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{"id":`},
		{"array", `[]`},
		{"missing id", `{"title":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeMetadata([]byte(tt.data))
			assert.ErrorIs(t, err, ErrInvalidMetadata)
		})
	}
}

func TestMetadataListEncoding(t *testing.T) {
	list := []Metadata{
		{ID: "alpha", Title: "Alpha"},
		{ID: "beta", Title: "Beta", Keywords: []string{"b"}},
	}
	data, err := EncodeMetadataList(list)
	require.NoError(t, err)

	got, err := DecodeMetadataList(data)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alpha", got[0].ID)
	assert.Empty(t, got[0].Keywords)
	assert.Equal(t, []string{"b"}, got[1].Keywords)
}

func TestEncodeEmptyList(t *testing.T) {
	data, err := EncodeMetadataList(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestAppDataEncoding(t *testing.T) {
	data, err := EncodeAppData(AppData{ID: "firefox", Name: "Firefox", Tag: "Application", Keywords: []string{"web"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"firefox","name":"Firefox","icon":"","icon_path":"","keywords":["web"],"tag":"Application"}`, string(data))

	back, err := DecodeAppData(data)
	require.NoError(t, err)
	assert.Equal(t, "Firefox", back.Name)
}
