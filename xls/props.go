package xls

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/richardlehane/msoleps"

	"github.com/yamitzky/xlbiff-go/cfb"
)

// Property set streams of a compound document.
const (
	SummaryInformation         = "\x05SummaryInformation"
	DocumentSummaryInformation = "\x05DocumentSummaryInformation"
)

// pivotCacheStorage holds one stream per pivot table cache.
const pivotCacheStorage = "_SX_DB_CUR"

// Property is one entry of a document property set.
type Property struct {
	Set   string // stream the property was read from
	Name  string
	Value string
}

// Properties returns the summary and document summary properties stored
// next to the workbook. Missing property streams are skipped.
func (b *Book) Properties() ([]Property, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.container == nil {
		return nil, NewXLSError("workbook is not loaded")
	}
	var out []Property
	reader := msoleps.New()
	for _, set := range []string{SummaryInformation, DocumentSummaryInformation} {
		data, err := b.container.Stream(set)
		if errors.Is(err, cfb.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := reader.Reset(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("xls: %q: %w", set[1:], err)
		}
		for _, p := range reader.Property {
			if p == nil || p.T == nil || p.Name == "Dictionary" {
				continue
			}
			out = append(out, Property{Set: set[1:], Name: p.Name, Value: p.String()})
		}
	}
	return out, nil
}

// PivotCaches lists the pivot cache streams of the workbook. Failures are
// logged and give an empty list.
func (b *Book) PivotCaches() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.container == nil {
		return nil
	}
	dir, err := b.container.Directory()
	if err != nil {
		b.warnf("pivot caches: %v", err)
		return nil
	}
	e, err := dir.Lookup(pivotCacheStorage)
	if err != nil {
		if !errors.Is(err, cfb.ErrNotFound) {
			b.warnf("pivot caches: %v", err)
		}
		return nil
	}
	var out []string
	for _, c := range e.Children() {
		if c.Type == cfb.TypeStream {
			out = append(out, c.Name)
		}
	}
	return out
}
