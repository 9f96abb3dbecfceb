// Package hotel implements the hotel order-to-cash workflow: guest check-in
// through folio creation, room charges, check-out, and invoice generation.
// Check-in and invoicing gate on human approval.
package hotel

import (
	"context"
	"fmt"

	"github.com/Yosef-Ali/erpnext-workflows/graph"
	"github.com/Yosef-Ali/erpnext-workflows/registry"
	"github.com/Yosef-Ali/erpnext-workflows/state"
	"github.com/Yosef-Ali/erpnext-workflows/steps"
)

// GraphName is the registry name of this workflow.
const GraphName = "hotel_o2c"

// Room pricing used until the folio service exposes real rates.
const (
	roomRate = 150.00
	taxRate  = 0.10
)

// State carries a reservation through the order-to-cash steps.
type State struct {
	state.Base

	ReservationID string `json:"reservation_id"`
	GuestName     string `json:"guest_name"`
	RoomNumber    string `json:"room_number"`
	CheckInDate   string `json:"check_in_date"`
	CheckOutDate  string `json:"check_out_date"`

	FolioID      string  `json:"folio_id,omitempty"`
	InvoiceID    string  `json:"invoice_id,omitempty"`
	TotalCharges float64 `json:"total_charges,omitempty"`
	GrandTotal   float64 `json:"grand_total,omitempty"`
}

// Definition describes the workflow for registry registration.
func Definition() registry.Definition {
	return registry.Definition{
		Descriptor: registry.Descriptor{
			Name:        GraphName,
			Description: "Hotel Order-to-Cash: Check-in → Folio → Check-out → Invoice",
			Industry:    "hotel",
			Tags:        []string{"o2c", "billing", "front-desk"},
			Schema: registry.Schema{
				{Name: "reservation_id", Hint: "str"},
				{Name: "guest_name", Hint: "str"},
				{Name: "room_number", Hint: "str"},
				{Name: "check_in_date", Hint: "str"},
				{Name: "check_out_date", Hint: "str"},
			},
			EstimatedSteps: 5,
			Capabilities: registry.Capabilities{
				SupportsInterrupts: true,
				RequiresApproval:   true,
				Domain:             []string{"folio_management", "guest_billing"},
			},
		},
		Loader: Load,
	}
}

// Load compiles the workflow graph.
func Load() (registry.Workflow, error) {
	g := graph.NewStateGraph[State]()

	g.AddNode("check_in_guest", "Check in the guest after front desk approval", checkInGuest)
	g.AddNode("create_folio", "Open the guest folio", createFolio)
	g.AddNode("add_charges", "Post room charges to the folio", addCharges)
	g.AddNode("check_out_guest", "Check out the guest and release the room", checkOutGuest)
	g.AddNode("generate_invoice", "Generate the sales invoice after approval", generateInvoice)

	g.SetEntryPoint("check_in_guest")
	g.AddEdge("create_folio", "add_charges")
	g.AddEdge("add_charges", "check_out_guest")
	g.AddEdge("check_out_guest", "generate_invoice")

	runnable, err := g.Compile()
	if err != nil {
		return nil, err
	}
	return registry.Bind(runnable), nil
}

// checkInGuest gates the stay on front desk approval before any documents
// are created.
func checkInGuest(ctx context.Context, s State) (graph.Outcome[State], error) {
	decision, suspend := steps.Approval(ctx, steps.Request{
		Operation:     "check_in_guest",
		OperationType: "hotel_check_in",
		RiskLevel:     graph.RiskMedium,
		Details: map[string]any{
			"guest_name":     s.GuestName,
			"room_number":    s.RoomNumber,
			"check_in_date":  s.CheckInDate,
			"check_out_date": s.CheckOutDate,
			"reservation_id": s.ReservationID,
		},
		Preview: steps.Preview("Check-in Details",
			steps.Field{Label: "Guest", Value: s.GuestName},
			steps.Field{Label: "Room", Value: s.RoomNumber},
			steps.Field{Label: "Check-in", Value: s.CheckInDate},
			steps.Field{Label: "Check-out", Value: s.CheckOutDate},
		),
		Action: "Please approve guest check-in",
	})
	if suspend != nil {
		return graph.Suspend[State](suspend), nil
	}
	if !decision.Approved {
		s.Reject()
		s.RecordError(state.StepError{Step: "check_in", Reason: "User rejected check-in"})
		return graph.Goto(graph.NodeWorkflowRejected, s), nil
	}

	s.Approve()
	s.RecordStep("check_in")
	return graph.Goto("create_folio", s), nil
}

func createFolio(ctx context.Context, s State) (graph.Outcome[State], error) {
	s.FolioID = "FO-" + s.ReservationID
	s.RecordStep("create_folio")
	return graph.Advance(s), nil
}

// addCharges posts the stay's charges. Rate and duration are fixed until the
// reservation service exposes them.
func addCharges(ctx context.Context, s State) (graph.Outcome[State], error) {
	nights := 1
	s.TotalCharges = roomRate * float64(nights)
	s.GrandTotal = s.TotalCharges * (1 + taxRate)
	s.RecordStep("add_charges")
	return graph.Advance(s), nil
}

func checkOutGuest(ctx context.Context, s State) (graph.Outcome[State], error) {
	s.RecordStep("check_out")
	return graph.Advance(s), nil
}

// generateInvoice gates the financial document on a high-risk approval.
func generateInvoice(ctx context.Context, s State) (graph.Outcome[State], error) {
	tax := s.TotalCharges * taxRate
	decision, suspend := steps.Approval(ctx, steps.Request{
		Operation:     "generate_invoice",
		OperationType: "hotel_invoice",
		RiskLevel:     graph.RiskHigh,
		Details: map[string]any{
			"guest_name":  s.GuestName,
			"folio_id":    s.FolioID,
			"room_number": s.RoomNumber,
			"room_rate":   roomRate,
			"tax":         tax,
			"grand_total": s.GrandTotal,
		},
		Preview: steps.Preview("Invoice Details",
			steps.Field{Label: "Guest", Value: s.GuestName},
			steps.Field{Label: "Folio", Value: s.FolioID},
			steps.Field{Label: "Room Rate", Value: fmt.Sprintf("$%.2f", roomRate)},
			steps.Field{Label: "Tax", Value: fmt.Sprintf("$%.2f", tax)},
			steps.Field{Label: "Grand Total", Value: fmt.Sprintf("$%.2f", s.GrandTotal)},
		),
		Action: "Please approve invoice generation",
	})
	if suspend != nil {
		return graph.Suspend[State](suspend), nil
	}
	if !decision.Approved {
		s.Reject()
		s.RecordError(state.StepError{Step: "generate_invoice", Reason: "User rejected invoice"})
		return graph.Goto(graph.NodeWorkflowRejected, s), nil
	}

	s.Approve()
	s.InvoiceID = "INV-" + s.ReservationID
	s.RecordStep("generate_invoice")
	return graph.Goto(graph.NodeWorkflowCompleted, s), nil
}
