package panel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/matthewbaird/bridgepanel/internal/types"
)

// ParseDeviceList decodes the JSON device list kept in a state variable.
// Ids may be JSON strings or numbers. An empty or malformed document is an
// error.
func ParseDeviceList(raw string) ([]types.DeviceListEntry, error) {
	var items []struct {
		ID   json.RawMessage `json:"id"`
		Name string          `json:"name"`
	}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("parsing device list: %w", err)
	}
	out := make([]types.DeviceListEntry, len(items))
	for i, it := range items {
		id, err := entryID(it.ID)
		if err != nil {
			return nil, fmt.Errorf("parsing device list entry %d: %w", i, err)
		}
		out[i] = types.DeviceListEntry{ID: id, Name: it.Name}
	}
	return out, nil
}

func entryID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

// Sorter orders device list entries by name using locale collation.
type Sorter struct {
	tag language.Tag
}

// NewSorter returns a sorter for the given BCP 47 locale. An unparsable
// locale falls back to language.Und.
func NewSorter(locale string) Sorter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Und
	}
	return Sorter{tag: tag}
}

// Sort returns a copy of entries ordered by name. Equal names keep their
// input order.
func (s Sorter) Sort(entries []types.DeviceListEntry) []types.DeviceListEntry {
	out := slices.Clone(entries)
	// Collators keep internal buffers, so each call gets its own.
	c := collate.New(s.tag)
	sort.SliceStable(out, func(i, j int) bool {
		return c.CompareString(out[i].Name, out[j].Name) < 0
	})
	return out
}
