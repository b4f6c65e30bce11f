package domain

import (
	"encoding/json"
	"fmt"
	"io"
)

// Catalog lists the products and dates the upstream offers for navigation
type Catalog struct {
	Products []string `json:"products"`
	Dates    []string `json:"dates"`
}

// DatasetKey scopes one dataset fetch
type DatasetKey struct {
	Channel string `json:"channel"`
	Product string `json:"product"`
	Date    string `json:"date"`
}

func (k DatasetKey) String() string {
	return k.Channel + "/" + k.Product + "/" + k.Date
}

// Patch is a repository revision that touched a frame's source location
type Patch struct {
	Node     string `json:"node"`
	PushDate string `json:"pushdate"`
}

// Location is the source position of a frame
type Location struct {
	Filename string  `json:"filename"`
	Node     string  `json:"node,omitempty"`
	Line     int     `json:"line,omitempty"`
	Patches  []Patch `json:"patches"`
}

// Frame is one call-stack entry, encoded upstream as a [function, location] pair
type Frame struct {
	Function string
	Location Location
}

// UnmarshalJSON decodes the upstream [function, location] pair
func (f *Frame) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("frame: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("frame: expected [function, location], got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &f.Function); err != nil {
		return fmt.Errorf("frame function: %w", err)
	}
	if err := json.Unmarshal(pair[1], &f.Location); err != nil {
		return fmt.Errorf("frame location: %w", err)
	}
	return nil
}

// MarshalJSON encodes the frame back into the upstream pair shape
func (f Frame) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{f.Function, f.Location})
}

// Backtrace is one distinct call-stack shape observed for a signature
type Backtrace struct {
	Count      int      `json:"count"`
	UUIDs      []string `json:"uuids"`
	Frames     []Frame  `json:"bt"`
	HasPatches bool     `json:"haspatches"`
}

// UnmarshalJSON accepts both "bt" and "frames" for the frame list and
// derives haspatches from the frames when the upstream omits it
func (b *Backtrace) UnmarshalJSON(data []byte) error {
	var aux struct {
		Count      int      `json:"count"`
		UUIDs      []string `json:"uuids"`
		BT         []Frame  `json:"bt"`
		Frames     []Frame  `json:"frames"`
		HasPatches *bool    `json:"haspatches"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	b.Count = aux.Count
	b.UUIDs = aux.UUIDs
	b.Frames = aux.BT
	if b.Frames == nil {
		b.Frames = aux.Frames
	}
	if aux.HasPatches != nil {
		b.HasPatches = *aux.HasPatches
	} else {
		b.HasPatches = framesHavePatches(b.Frames)
	}
	return nil
}

// Representative returns the report id used for the deep link
func (b Backtrace) Representative() string {
	if len(b.UUIDs) == 0 {
		return ""
	}
	return b.UUIDs[0]
}

// Normalized returns a copy that honors the backtrace invariants:
// count is never negative and uuids is never empty
func (b Backtrace) Normalized() Backtrace {
	if b.Count < 0 {
		b.Count = 0
	}
	if len(b.UUIDs) == 0 {
		b.UUIDs = []string{""}
	}
	if b.Frames == nil {
		b.Frames = []Frame{}
	}
	return b
}

func framesHavePatches(frames []Frame) bool {
	for _, f := range frames {
		if len(f.Location.Patches) > 0 {
			return true
		}
	}
	return false
}

// Dataset maps a crash signature to its backtraces for one (product, channel, date)
type Dataset map[string][]Backtrace

// Normalize applies the backtrace invariants to every entry.
// The receiver is left untouched.
func (d Dataset) Normalize() Dataset {
	out := make(Dataset, len(d))
	for sgn, bts := range d {
		list := make([]Backtrace, 0, len(bts))
		for _, bt := range bts {
			bt = bt.Normalized()
			frames := make([]Frame, len(bt.Frames))
			for i, f := range bt.Frames {
				if f.Location.Patches == nil {
					f.Location.Patches = []Patch{}
				}
				frames[i] = f
			}
			bt.Frames = frames
			list = append(list, bt)
		}
		out[sgn] = list
	}
	return out
}

// DecodeDataset parses an upstream dataset payload and normalizes it
func DecodeDataset(r io.Reader) (Dataset, error) {
	var ds Dataset
	if err := json.NewDecoder(r).Decode(&ds); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	return ds.Normalize(), nil
}

// DecodeCatalog parses an upstream catalog payload
func DecodeCatalog(r io.Reader) (Catalog, error) {
	var c Catalog
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}
	if c.Products == nil {
		c.Products = []string{}
	}
	if c.Dates == nil {
		c.Dates = []string{}
	}
	return c, nil
}
