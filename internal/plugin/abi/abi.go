// Package abi defines the data exchanged between orbit and command plugins
// and its wire encoding.
//
// Plugins are WebAssembly core modules. Structured values cross the boundary
// as JSON documents in guest linear memory, addressed by a packed i64 whose
// high 32 bits are the pointer and low 32 bits the length. A packed value of
// zero means "nothing".
package abi

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Guest exports every plugin must (or may) provide.
const (
	ExportMemory     = "memory"
	ExportAlloc      = "orbit_alloc"
	ExportInit       = "orbit_init"
	ExportRun        = "orbit_run"
	ExportInitialize = "_initialize"
)

// HostModule is the import module name of the capability surface.
const HostModule = "orbit"

// Host functions a plugin may import from HostModule.
const (
	FuncIsOpen      = "is_open"
	FuncOpen        = "open"
	FuncClose       = "close"
	FuncToggle      = "toggle"
	FuncGetCommands = "get_commands"
	FuncRunCommand  = "run_command"
	FuncGetAppData  = "get_app_data"
	FuncLog         = "log"
)

// ErrInvalidMetadata is returned when a plugin's metadata cannot be decoded.
var ErrInvalidMetadata = errors.New("invalid metadata")

// Metadata describes a plugin-provided command.
type Metadata struct {
	ID       string
	Title    string
	Subtitle string
	Icon     string
	Keywords []string
}

// AppData describes an installed application.
type AppData struct {
	ID       string
	Name     string
	Icon     string
	IconPath string
	Keywords []string
	Tag      string
}

// Pack combines a guest pointer and length into one i64 result.
func Pack(ptr, length uint32) uint64 {
	return uint64(ptr)<<32 | uint64(length)
}

// Unpack splits a packed i64 into pointer and length.
func Unpack(v uint64) (ptr, length uint32) {
	return uint32(v >> 32), uint32(v)
}

// DecodeMetadata parses the document returned by a plugin's init export.
// The id field is required.
func DecodeMetadata(data []byte) (Metadata, error) {
	if !gjson.ValidBytes(data) {
		return Metadata{}, fmt.Errorf("%w: not valid JSON", ErrInvalidMetadata)
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return Metadata{}, fmt.Errorf("%w: expected an object", ErrInvalidMetadata)
	}
	m := metadataFrom(doc)
	if m.ID == "" {
		return Metadata{}, fmt.Errorf("%w: missing id", ErrInvalidMetadata)
	}
	return m, nil
}

func metadataFrom(doc gjson.Result) Metadata {
	return Metadata{
		ID:       doc.Get("id").String(),
		Title:    doc.Get("title").String(),
		Subtitle: doc.Get("subtitle").String(),
		Icon:     doc.Get("icon").String(),
		Keywords: stringsFrom(doc.Get("keywords")),
	}
}

func stringsFrom(r gjson.Result) []string {
	out := []string{}
	r.ForEach(func(_, v gjson.Result) bool {
		out = append(out, v.String())
		return true
	})
	return out
}

// EncodeMetadata renders m as a JSON object.
func EncodeMetadata(m Metadata) ([]byte, error) {
	return setMetadata([]byte(`{}`), "", m)
}

func setMetadata(doc []byte, prefix string, m Metadata) ([]byte, error) {
	keywords := m.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	fields := []struct {
		key   string
		value any
	}{
		{"id", m.ID},
		{"title", m.Title},
		{"subtitle", m.Subtitle},
		{"icon", m.Icon},
		{"keywords", keywords},
	}
	var err error
	for _, f := range fields {
		doc, err = sjson.SetBytes(doc, prefix+f.key, f.value)
		if err != nil {
			return nil, fmt.Errorf("encoding metadata %s: %w", f.key, err)
		}
	}
	return doc, nil
}

// EncodeMetadataList renders a JSON array of metadata objects.
func EncodeMetadataList(list []Metadata) ([]byte, error) {
	doc := []byte(`[]`)
	var err error
	for i, m := range list {
		doc, err = setMetadata(doc, fmt.Sprintf("%d.", i), m)
		if err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// DecodeMetadataList parses a JSON array of metadata objects.
func DecodeMetadataList(data []byte) ([]Metadata, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrInvalidMetadata)
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsArray() {
		return nil, fmt.Errorf("%w: expected an array", ErrInvalidMetadata)
	}
	out := []Metadata{}
	doc.ForEach(func(_, v gjson.Result) bool {
		out = append(out, metadataFrom(v))
		return true
	})
	return out, nil
}

// EncodeAppData renders a as a JSON object.
func EncodeAppData(a AppData) ([]byte, error) {
	keywords := a.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	doc := []byte(`{}`)
	fields := []struct {
		key   string
		value any
	}{
		{"id", a.ID},
		{"name", a.Name},
		{"icon", a.Icon},
		{"icon_path", a.IconPath},
		{"keywords", keywords},
		{"tag", a.Tag},
	}
	var err error
	for _, f := range fields {
		doc, err = sjson.SetBytes(doc, f.key, f.value)
		if err != nil {
			return nil, fmt.Errorf("encoding app data %s: %w", f.key, err)
		}
	}
	return doc, nil
}

// DecodeAppData parses a JSON app data object.
func DecodeAppData(data []byte) (AppData, error) {
	if !gjson.ValidBytes(data) {
		return AppData{}, errors.New("app data: not valid JSON")
	}
	doc := gjson.ParseBytes(data)
	return AppData{
		ID:       doc.Get("id").String(),
		Name:     doc.Get("name").String(),
		Icon:     doc.Get("icon").String(),
		IconPath: doc.Get("icon_path").String(),
		Keywords: stringsFrom(doc.Get("keywords")),
		Tag:      doc.Get("tag").String(),
	}, nil
}
