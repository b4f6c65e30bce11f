// Package navigation holds the dashboard selection state and the session
// runtime that applies events to it.
//
// State is a value: Dispatch takes a State and an Event and returns the
// next State plus the fetch commands the runtime must execute. Dispatch
// never performs I/O.
package navigation

import (
	"github.com/mozilla/clouseau/internal/aggregate"
	"github.com/mozilla/clouseau/internal/domain"
)

// State is the current selection and the data loaded for it
type State struct {
	Product   string         `json:"product"`
	Channel   string         `json:"channel"`
	Date      string         `json:"date"`
	Signature string         `json:"signature"`
	Catalog   domain.Catalog `json:"catalog"`
	Dataset   domain.Dataset `json:"-"`
	Loaded    bool           `json:"loaded"`

	// HasSignature is false until a signature is selected or derived from a
	// loaded dataset. "" is a legal signature, so Signature alone cannot say.
	HasSignature bool `json:"has_signature"`

	// LoadedKey is the key Dataset was fetched for. It differs from Key
	// after a selection whose fetch failed or is still running.
	LoadedKey domain.DatasetKey `json:"loaded_key"`

	// Generations of the most recent requests. Completions carrying an
	// older generation are discarded.
	CatalogGeneration uint64 `json:"catalog_generation"`
	DatasetGeneration uint64 `json:"dataset_generation"`
	CatalogPending    bool   `json:"catalog_pending"`
	DatasetPending    bool   `json:"dataset_pending"`

	// DeferDataset is set while product or date are unknown and the
	// catalog must supply them before the first dataset fetch.
	DeferDataset bool `json:"defer_dataset"`

	// LastError is the most recent load failure, cleared by the next
	// successful dataset load
	LastError string `json:"last_error,omitempty"`
}

// Idle reports whether no current-generation fetch is outstanding
func (s State) Idle() bool {
	return !s.CatalogPending && !s.DatasetPending
}

// Key is the dataset key for the current selection
func (s State) Key() domain.DatasetKey {
	return domain.DatasetKey{Channel: s.Channel, Product: s.Product, Date: s.Date}
}

// Stale reports whether ev is a completion for a superseded request
func (s State) Stale(ev Event) bool {
	switch ev.Kind {
	case EventCatalogLoaded, EventCatalogFailed:
		return ev.Generation != s.CatalogGeneration
	case EventDatasetLoaded, EventDatasetFailed:
		return ev.Generation != s.DatasetGeneration
	}
	return false
}

// CommandKind names a side effect requested by a transition
type CommandKind string

const (
	CommandFetchCatalog CommandKind = "fetch_catalog"
	CommandFetchDataset CommandKind = "fetch_dataset"
)

// Command is a fetch the session runtime must start
type Command struct {
	Kind       CommandKind
	Key        domain.DatasetKey
	Generation uint64
}

type transition func(State, Event) (State, []Command)

var transitions = map[EventKind]transition{
	EventInitialize:      initialize,
	EventSelectProduct:   selectProduct,
	EventSelectDate:      selectDate,
	EventSelectSignature: selectSignature,
	EventCatalogLoaded:   catalogLoaded,
	EventCatalogFailed:   catalogFailed,
	EventDatasetLoaded:   datasetLoaded,
	EventDatasetFailed:   datasetFailed,
}

// Dispatch applies ev to s. Unknown event kinds and stale completions leave
// s unchanged.
func Dispatch(s State, ev Event) (State, []Command) {
	apply, ok := transitions[ev.Kind]
	if !ok || s.Stale(ev) {
		return s, nil
	}
	return apply(s, ev)
}

// initialize resets the selection but keeps the generation counters so that
// fetches issued before a re-initialization are still recognized as stale
func initialize(prev State, ev Event) (State, []Command) {
	s := State{
		Product:           ev.Product,
		Channel:           ev.Channel,
		Date:              ev.Date,
		Signature:         domain.NoSignature,
		Catalog:           domain.Catalog{Products: []string{}, Dates: []string{}},
		Dataset:           domain.Dataset{},
		CatalogGeneration: prev.CatalogGeneration,
		DatasetGeneration: prev.DatasetGeneration,
	}

	s.CatalogGeneration++
	s.CatalogPending = true
	cmds := []Command{{Kind: CommandFetchCatalog, Generation: s.CatalogGeneration}}

	if s.Product == "" || s.Date == "" {
		s.DeferDataset = true
		return s, cmds
	}
	s, cmd := requestDataset(s)
	return s, append(cmds, cmd)
}

func selectProduct(s State, ev Event) (State, []Command) {
	if ev.Product == "" {
		return s, nil
	}
	s.Product = ev.Product
	return requestIfReady(s)
}

func selectDate(s State, ev Event) (State, []Command) {
	if ev.Date == "" {
		return s, nil
	}
	s.Date = ev.Date
	return requestIfReady(s)
}

func selectSignature(s State, ev Event) (State, []Command) {
	if _, ok := s.Dataset[ev.Signature]; ok {
		s.Signature = ev.Signature
		s.HasSignature = true
	}
	return s, nil
}

func catalogLoaded(s State, ev Event) (State, []Command) {
	s.Catalog = ev.Catalog
	s.CatalogPending = false

	if !s.DeferDataset {
		return s, nil
	}
	if s.Product == "" && len(s.Catalog.Products) > 0 {
		s.Product = s.Catalog.Products[0]
	}
	if s.Date == "" && len(s.Catalog.Dates) > 0 {
		s.Date = s.Catalog.Dates[0]
	}
	return requestIfReady(s)
}

func catalogFailed(s State, ev Event) (State, []Command) {
	s.CatalogPending = false
	s.LastError = errorText("catalog", ev.Err)
	return s, nil
}

func datasetLoaded(s State, ev Event) (State, []Command) {
	ds := ev.Dataset
	if ds == nil {
		ds = domain.Dataset{}
	}
	s.Dataset = ds
	s.Loaded = true
	s.LoadedKey = s.Key()
	s.DatasetPending = false
	s.LastError = ""
	s.Signature, s.HasSignature = aggregate.ResolveSignature(ds, s.Signature, s.HasSignature)
	return s, nil
}

func datasetFailed(s State, ev Event) (State, []Command) {
	s.DatasetPending = false
	s.LastError = errorText("dataset "+s.Key().String(), ev.Err)
	if s.Loaded && s.LoadedKey != s.Key() {
		s.LastError += " (showing " + s.LoadedKey.String() + ")"
	}
	return s, nil
}

// requestIfReady issues a dataset fetch once product and date are both known
func requestIfReady(s State) (State, []Command) {
	if s.Product == "" || s.Date == "" {
		s.DeferDataset = true
		return s, nil
	}
	s.DeferDataset = false
	s, cmd := requestDataset(s)
	return s, []Command{cmd}
}

func requestDataset(s State) (State, Command) {
	s.DatasetGeneration++
	s.DatasetPending = true
	return s, Command{Kind: CommandFetchDataset, Key: s.Key(), Generation: s.DatasetGeneration}
}

func errorText(what string, err error) string {
	if err == nil {
		return "failed to load " + what
	}
	return "failed to load " + what + ": " + err.Error()
}
