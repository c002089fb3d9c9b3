// Package instrument maps subarray and array element identifiers to their
// definitions. The registry is loaded explicitly, once, and passed by handle
// to whoever needs it; there is no package level cache.
package instrument

import (
	"embed"
	"encoding/json"
	"fmt"

	"telemux/internal/domain"
)

//go:embed resources/*.json
var resources embed.FS

// ArrayElement is one telescope or auxiliary instrument of the array.
type ArrayElement struct {
	ID   domain.TelescopeID `json:"id"`
	Name string             `json:"name"`
}

// Subarray is a named grouping of array elements that triggers together.
type Subarray struct {
	ID            int                  `json:"id"`
	Name          string               `json:"name"`
	ArrayElements []domain.TelescopeID `json:"array_elements"`
}

// Registry resolves ids against the embedded instrument description.
type Registry struct {
	elements  map[domain.TelescopeID]ArrayElement
	subarrays map[int]Subarray
}

// Load parses the embedded instrument description.
func Load() (*Registry, error) {
	var elements struct {
		ArrayElements []ArrayElement `json:"array_elements"`
	}
	if err := loadResource("resources/array-element-ids.json", &elements); err != nil {
		return nil, err
	}
	var subarrays struct {
		Subarrays []Subarray `json:"subarrays"`
	}
	if err := loadResource("resources/subarray-ids.json", &subarrays); err != nil {
		return nil, err
	}

	r := &Registry{
		elements:  make(map[domain.TelescopeID]ArrayElement, len(elements.ArrayElements)),
		subarrays: make(map[int]Subarray, len(subarrays.Subarrays)),
	}
	for _, ae := range elements.ArrayElements {
		r.elements[ae.ID] = ae
	}
	for _, sub := range subarrays.Subarrays {
		for _, id := range sub.ArrayElements {
			if _, ok := r.elements[id]; !ok {
				return nil, fmt.Errorf("subarray %d references unknown array element %d", sub.ID, id)
			}
		}
		r.subarrays[sub.ID] = sub
	}
	return r, nil
}

func loadResource(name string, v any) error {
	data, err := resources.ReadFile(name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

// ArrayElement resolves one element id.
func (r *Registry) ArrayElement(id domain.TelescopeID) (ArrayElement, bool) {
	ae, ok := r.elements[id]
	return ae, ok
}

// ElementName returns the element's name, or a synthesized placeholder for
// unknown ids so log output stays usable.
func (r *Registry) ElementName(id domain.TelescopeID) string {
	if ae, ok := r.elements[id]; ok {
		return ae.Name
	}
	return fmt.Sprintf("UNKNOWN-%d", id)
}

// Subarray resolves one subarray id.
func (r *Registry) Subarray(id int) (Subarray, bool) {
	sub, ok := r.subarrays[id]
	return sub, ok
}

// SubarrayTelescopes returns the element ids of one subarray.
func (r *Registry) SubarrayTelescopes(id int) ([]domain.TelescopeID, error) {
	sub, ok := r.subarrays[id]
	if !ok {
		return nil, fmt.Errorf("unknown subarray id %d", id)
	}
	return sub.ArrayElements, nil
}
