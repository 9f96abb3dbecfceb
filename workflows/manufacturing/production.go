// Package manufacturing implements the production workflow: material
// availability check, work order, material request, stock entry, and quality
// inspection. Procurement (on shortage) and quality both gate on approval.
package manufacturing

import (
	"context"
	"fmt"
	"strings"

	"github.com/Yosef-Ali/erpnext-workflows/graph"
	"github.com/Yosef-Ali/erpnext-workflows/registry"
	"github.com/Yosef-Ali/erpnext-workflows/state"
	"github.com/Yosef-Ali/erpnext-workflows/steps"
)

// GraphName is the registry name of this workflow.
const GraphName = "manufacturing_production"

// Material is one BOM line with its computed requirement and shortage for
// the planned quantity.
type Material struct {
	ItemCode     string  `json:"item_code"`
	ItemName     string  `json:"item_name"`
	QtyPerUnit   float64 `json:"qty_per_unit"`
	UOM          string  `json:"uom"`
	Rate         float64 `json:"rate"`
	AvailableQty float64 `json:"available_qty"`
	RequiredQty  float64 `json:"required_qty"`
	Shortage     float64 `json:"shortage"`
}

// QualityParameter is one row of an inspection checklist.
type QualityParameter struct {
	Parameter     string `json:"parameter"`
	Specification string `json:"specification"`
}

// State carries a production order from material check to quality sign-off.
type State struct {
	state.Base

	ItemCode       string  `json:"item_code"`
	ItemName       string  `json:"item_name"`
	QtyToProduce   float64 `json:"qty_to_produce"`
	ProductionDate string  `json:"production_date"`
	Warehouse      string  `json:"warehouse"`

	BOMID               string     `json:"bom_id,omitempty"`
	RequiredMaterials   []Material `json:"required_materials,omitempty"`
	MaterialShortage    bool       `json:"material_shortage"`
	WorkOrderID         string     `json:"work_order_id,omitempty"`
	MaterialRequestID   string     `json:"material_request_id,omitempty"`
	StockEntryID        string     `json:"stock_entry_id,omitempty"`
	QualityInspectionID string     `json:"quality_inspection_id,omitempty"`
}

// Definition describes the workflow for registry registration.
func Definition() registry.Definition {
	return registry.Definition{
		Descriptor: registry.Descriptor{
			Name:        GraphName,
			Description: "Manufacturing Production: Material check → Work order → Material request → Stock entry → Quality inspection",
			Industry:    "manufacturing",
			Tags:        []string{"production", "procurement", "quality"},
			Schema: registry.Schema{
				{Name: "item_code", Hint: "str"},
				{Name: "item_name", Hint: "str"},
				{Name: "qty_to_produce", Hint: "float"},
				{Name: "production_date", Hint: "str"},
				{Name: "warehouse", Hint: "str"},
			},
			EstimatedSteps: 5,
			Capabilities: registry.Capabilities{
				SupportsInterrupts: true,
				RequiresApproval:   true,
				Domain:             []string{"bom_explosion", "quality_inspection"},
			},
		},
		Loader: Load,
	}
}

// Load compiles the workflow graph.
func Load() (registry.Workflow, error) {
	g := graph.NewStateGraph[State]()

	g.AddNode("check_materials", "Explode the BOM and check stock levels", checkMaterials)
	g.AddNode("create_work_order", "Open the production work order", createWorkOrder)
	g.AddNode("create_material_request", "Request procurement when materials are short", createMaterialRequest)
	g.AddNode("create_stock_entry", "Transfer materials to the production floor", createStockEntry)
	g.AddNode("create_quality_inspection", "Inspect the finished goods before stock acceptance", createQualityInspection)

	g.SetEntryPoint("check_materials")
	g.AddEdge("check_materials", "create_work_order")
	g.AddEdge("create_work_order", "create_material_request")
	g.AddEdge("create_stock_entry", "create_quality_inspection")

	runnable, err := g.Compile()
	if err != nil {
		return nil, err
	}
	return registry.Bind(runnable), nil
}

func checkMaterials(ctx context.Context, s State) (graph.Outcome[State], error) {
	s.BOMID = fmt.Sprintf("BOM-%s-001", s.ItemCode)
	s.RequiredMaterials = bomMaterials(s.ItemCode, s.QtyToProduce)
	s.MaterialShortage = false
	for _, m := range s.RequiredMaterials {
		if m.Shortage > 0 {
			s.MaterialShortage = true
			break
		}
	}
	s.RecordStep("check_materials")
	return graph.Advance(s), nil
}

func createWorkOrder(ctx context.Context, s State) (graph.Outcome[State], error) {
	s.WorkOrderID = fmt.Sprintf("WO-%s-001", s.ItemCode)
	s.RecordStep("create_work_order")
	return graph.Advance(s), nil
}

// createMaterialRequest gates procurement on approval, but only when the
// material check found a shortage; a fully stocked run skips straight to the
// stock entry.
func createMaterialRequest(ctx context.Context, s State) (graph.Outcome[State], error) {
	if !s.MaterialShortage {
		s.RecordStep("skip_material_request")
		return graph.Goto("create_stock_entry", s), nil
	}

	var shortage []Material
	totalCost := 0.0
	for _, m := range s.RequiredMaterials {
		if m.Shortage > 0 {
			shortage = append(shortage, m)
			totalCost += m.Shortage * m.Rate
		}
	}

	decision, suspend := steps.Approval(ctx, steps.Request{
		Operation:     "create_material_request",
		OperationType: "manufacturing_procurement",
		RiskLevel:     graph.RiskHigh,
		Details: map[string]any{
			"work_order_id":  s.WorkOrderID,
			"item_code":      s.ItemCode,
			"item_name":      s.ItemName,
			"shortage_items": shortage,
			"total_items":    len(shortage),
			"estimated_cost": totalCost,
		},
		Preview: materialRequestPreview(s, shortage, totalCost),
		Action:  "⚠️ Material purchase required - approval needed for procurement",
	})
	if suspend != nil {
		return graph.Suspend[State](suspend), nil
	}
	if !decision.Approved {
		s.Reject()
		s.RecordError(state.StepError{Step: "create_material_request", Reason: "Material procurement rejected"})
		return graph.Goto(graph.NodeWorkflowRejected, s), nil
	}

	s.Approve()
	s.MaterialRequestID = "MR-" + s.WorkOrderID
	s.RecordStep("create_material_request")
	return graph.Goto("create_stock_entry", s), nil
}

func createStockEntry(ctx context.Context, s State) (graph.Outcome[State], error) {
	s.StockEntryID = "STE-" + s.WorkOrderID
	s.RecordStep("create_stock_entry")
	return graph.Advance(s), nil
}

// createQualityInspection gates stock acceptance on the quality sign-off.
func createQualityInspection(ctx context.Context, s State) (graph.Outcome[State], error) {
	params := qualityParameters(s.ItemCode)

	decision, suspend := steps.Approval(ctx, steps.Request{
		Operation:     "create_quality_inspection",
		OperationType: "manufacturing_quality",
		RiskLevel:     graph.RiskHigh,
		Details: map[string]any{
			"work_order_id":             s.WorkOrderID,
			"item_code":                 s.ItemCode,
			"item_name":                 s.ItemName,
			"qty_inspected":             s.QtyToProduce,
			"inspection_parameters":     params,
			"total_parameters":          len(params),
			"requires_quality_approval": true,
		},
		Preview: qualityInspectionPreview(s, params),
		Action:  "⚠️ CRITICAL: Quality inspection requires approval before stock acceptance",
	})
	if suspend != nil {
		return graph.Suspend[State](suspend), nil
	}
	if !decision.Approved {
		s.Reject()
		s.RecordError(state.StepError{
			Step:    "quality_inspection",
			Reason:  "Product failed quality inspection",
			Details: map[string]any{"quality_critical": true},
		})
		return graph.Goto(graph.NodeWorkflowRejected, s), nil
	}

	s.Approve()
	s.QualityInspectionID = "QI-" + s.WorkOrderID
	s.RecordStep("quality_inspection")
	return graph.Goto(graph.NodeWorkflowCompleted, s), nil
}

// bomMaterials explodes the item's bill of materials for the planned
// quantity. Items without a modeled BOM consume one generic raw material.
func bomMaterials(itemCode string, qty float64) []Material {
	var lines []Material
	switch itemCode {
	case "CHAIR-WOODEN":
		lines = []Material{
			{ItemCode: "WOOD-OAK", ItemName: "Oak Wood", QtyPerUnit: 2.5, UOM: "kg", Rate: 15.00, AvailableQty: 20.0},
			{ItemCode: "SCREWS-M6", ItemName: "M6 Screws", QtyPerUnit: 12, UOM: "nos", Rate: 0.25, AvailableQty: 100},
			{ItemCode: "VARNISH", ItemName: "Wood Varnish", QtyPerUnit: 0.5, UOM: "L", Rate: 25.00, AvailableQty: 3.0},
			{ItemCode: "SANDPAPER", ItemName: "Sandpaper 120-grit", QtyPerUnit: 2, UOM: "sheets", Rate: 1.50, AvailableQty: 50},
		}
	default:
		lines = []Material{
			{ItemCode: "RAW-MAT-001", ItemName: "Raw Material", QtyPerUnit: 1.0, UOM: "kg", Rate: 10.00, AvailableQty: 100.0},
		}
	}

	for i := range lines {
		lines[i].RequiredQty = lines[i].QtyPerUnit * qty
		if short := lines[i].RequiredQty - lines[i].AvailableQty; short > 0 {
			lines[i].Shortage = short
		}
	}
	return lines
}

// qualityParameters returns the inspection checklist for an item. Items
// without a template get the generic two-point check.
func qualityParameters(itemCode string) []QualityParameter {
	if itemCode == "CHAIR-WOODEN" {
		return []QualityParameter{
			{Parameter: "Dimensions", Specification: "45cm x 45cm x 90cm ± 2cm"},
			{Parameter: "Weight", Specification: "8-10 kg"},
			{Parameter: "Surface Finish", Specification: "Smooth, no rough edges"},
			{Parameter: "Structural Integrity", Specification: "Supports 150kg without wobble"},
			{Parameter: "Varnish Quality", Specification: "Even coating, no drips"},
		}
	}
	return []QualityParameter{
		{Parameter: "Visual Inspection", Specification: "No defects"},
		{Parameter: "Dimensional Check", Specification: "Within tolerance"},
	}
}

func materialRequestPreview(s State, shortage []Material, totalCost float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Material Request:\n\n")
	fmt.Fprintf(&b, "Work Order: %s\n", s.WorkOrderID)
	fmt.Fprintf(&b, "Production Item: %s\n", s.ItemName)
	fmt.Fprintf(&b, "Quantity: %v\n\n", s.QtyToProduce)
	fmt.Fprintf(&b, "Materials Needed (%d items):\n", len(shortage))
	for _, m := range shortage {
		fmt.Fprintf(&b, "  - %s: %.2f %s @ $%.2f = $%.2f\n",
			m.ItemName, m.Shortage, m.UOM, m.Rate, m.Shortage*m.Rate)
	}
	fmt.Fprintf(&b, "\nTotal Estimated Cost: $%.2f", totalCost)
	return b.String()
}

func qualityInspectionPreview(s State, params []QualityParameter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Quality Inspection:\n\n")
	fmt.Fprintf(&b, "Work Order: %s\n", s.WorkOrderID)
	fmt.Fprintf(&b, "Item: %s\n", s.ItemName)
	fmt.Fprintf(&b, "Quantity: %v\n\n", s.QtyToProduce)
	fmt.Fprintf(&b, "Inspection Parameters (%d):\n", len(params))
	for _, p := range params {
		fmt.Fprintf(&b, "  - %s: %s\n", p.Parameter, p.Specification)
	}
	fmt.Fprintf(&b, "\nAcceptance Criteria:\n")
	fmt.Fprintf(&b, "  - All parameters within specification\n")
	fmt.Fprintf(&b, "  - Visual inspection passed\n")
	fmt.Fprintf(&b, "  - Packaging quality verified")
	return b.String()
}
