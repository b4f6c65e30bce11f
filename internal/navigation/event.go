package navigation

import (
	"fmt"
	"strings"

	"github.com/mozilla/clouseau/internal/common"
	"github.com/mozilla/clouseau/internal/domain"
)

// EventKind names a state transition
type EventKind string

const (
	EventInitialize      EventKind = "initialize"
	EventSelectProduct   EventKind = "select_product"
	EventSelectDate      EventKind = "select_date"
	EventSelectSignature EventKind = "select_signature"
	EventCatalogLoaded   EventKind = "catalog_loaded"
	EventCatalogFailed   EventKind = "catalog_failed"
	EventDatasetLoaded   EventKind = "dataset_loaded"
	EventDatasetFailed   EventKind = "dataset_failed"
)

// Event is a user action or a fetch completion
type Event struct {
	Kind       EventKind
	Product    string
	Channel    string
	Date       string
	Signature  string
	Generation uint64
	Catalog    domain.Catalog
	Dataset    domain.Dataset
	Err        error
}

// completion reports whether ev is the result of a fetch
func (ev Event) completion() bool {
	switch ev.Kind {
	case EventCatalogLoaded, EventCatalogFailed, EventDatasetLoaded, EventDatasetFailed:
		return true
	}
	return false
}

func Initialize(product, channel, date string) Event {
	return Event{Kind: EventInitialize, Product: product, Channel: channel, Date: date}
}

func SelectProduct(product string) Event {
	return Event{Kind: EventSelectProduct, Product: product}
}

func SelectDate(date string) Event {
	return Event{Kind: EventSelectDate, Date: date}
}

func SelectSignature(signature string) Event {
	return Event{Kind: EventSelectSignature, Signature: signature}
}

func CatalogLoaded(generation uint64, catalog domain.Catalog) Event {
	return Event{Kind: EventCatalogLoaded, Generation: generation, Catalog: catalog}
}

func CatalogFailed(generation uint64, err error) Event {
	return Event{Kind: EventCatalogFailed, Generation: generation, Err: err}
}

func DatasetLoaded(generation uint64, ds domain.Dataset) Event {
	return Event{Kind: EventDatasetLoaded, Generation: generation, Dataset: ds}
}

func DatasetFailed(generation uint64, err error) Event {
	return Event{Kind: EventDatasetFailed, Generation: generation, Err: err}
}

// userEvents are the events a client may issue by name
var userEvents = map[EventKind]func(string) Event{
	EventSelectProduct:   SelectProduct,
	EventSelectDate:      SelectDate,
	EventSelectSignature: SelectSignature,
}

// ParseUserEvent builds a select event from its wire name and value. Product
// and date must be non-empty; "" is a legal signature.
func ParseUserEvent(kind, value string) (Event, error) {
	build, ok := userEvents[EventKind(kind)]
	if !ok {
		return Event{}, fmt.Errorf("%w: %q", common.ErrUnknownEvent, kind)
	}
	if EventKind(kind) != EventSelectSignature && strings.TrimSpace(value) == "" {
		return Event{}, fmt.Errorf("%w: %s needs a value", common.ErrInvalidInput, kind)
	}
	return build(value), nil
}
