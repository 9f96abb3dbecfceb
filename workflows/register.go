// Package workflows wires the industry workflow packages into a registry.
package workflows

import (
	"github.com/Yosef-Ali/erpnext-workflows/registry"
	"github.com/Yosef-Ali/erpnext-workflows/workflows/education"
	"github.com/Yosef-Ali/erpnext-workflows/workflows/hospital"
	"github.com/Yosef-Ali/erpnext-workflows/workflows/hotel"
	"github.com/Yosef-Ali/erpnext-workflows/workflows/manufacturing"
	"github.com/Yosef-Ali/erpnext-workflows/workflows/retail"
)

// Definitions returns every industry workflow definition in listing order.
func Definitions() []registry.Definition {
	return []registry.Definition{
		hotel.Definition(),
		hospital.Definition(),
		manufacturing.Definition(),
		retail.Definition(),
		education.Definition(),
	}
}

// RegisterAll registers the full workflow catalog on r.
func RegisterAll(r *registry.Registry) error {
	for _, def := range Definitions() {
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}
