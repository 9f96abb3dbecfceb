// Package hospital implements the patient admissions workflow: patient
// record, admission scheduling, clinical orders, encounter documentation,
// and billing. Clinical orders gate on physician approval; patient safety
// rides on that gate.
package hospital

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
const GraphName = "hospital_admissions"

// Billing line items, pending an integration with the charge master.
const (
	admissionFee       = 500.00
	labCharges         = 350.00
	medicationCharges  = 250.00
	procedureCharges   = 400.00
	orderEstimatedCost = 1500.00
)

// State carries a patient through admission, orders, encounter, and billing.
type State struct {
	state.Base

	PatientName      string `json:"patient_name"`
	AdmissionDate    string `json:"admission_date"`
	PrimaryDiagnosis string `json:"primary_diagnosis"`
	ClinicalProtocol string `json:"clinical_protocol,omitempty"`

	PatientID     string `json:"patient_id,omitempty"`
	AppointmentID string `json:"appointment_id,omitempty"`
	OrderSetID    string `json:"order_set_id,omitempty"`
	EncounterID   string `json:"encounter_id,omitempty"`
	InvoiceID     string `json:"invoice_id,omitempty"`
}

// Definition describes the workflow for registry registration.
func Definition() registry.Definition {
	return registry.Definition{
		Descriptor: registry.Descriptor{
			Name:        GraphName,
			Description: "Patient admission: Record → Orders → Encounter → Billing",
			Industry:    "hospital",
			Tags:        []string{"admissions", "clinical", "billing"},
			Schema: registry.Schema{
				{Name: "patient_name", Hint: "str"},
				{Name: "admission_date", Hint: "str"},
				{Name: "primary_diagnosis", Hint: "str"},
				{Name: "clinical_protocol", Hint: "str (optional)"},
			},
			EstimatedSteps: 6,
			Capabilities: registry.Capabilities{
				SupportsInterrupts: true,
				RequiresApproval:   true,
				Domain:             []string{"clinical_orders", "patient_billing"},
			},
		},
		Loader: Load,
	}
}

// Load compiles the workflow graph.
func Load() (registry.Workflow, error) {
	g := graph.NewStateGraph[State]()

	g.AddNode("create_patient", "Create the patient record", createPatient)
	g.AddNode("schedule_admission", "Schedule the admission appointment", scheduleAdmission)
	g.AddNode("create_order_set", "Create the clinical order set after physician approval", createOrderSet)
	g.AddNode("create_encounter", "Document the clinical encounter", createEncounter)
	g.AddNode("generate_invoice", "Generate the patient invoice after approval", generateInvoice)

	g.SetEntryPoint("create_patient")
	g.AddEdge("create_patient", "schedule_admission")
	g.AddEdge("schedule_admission", "create_order_set")
	g.AddEdge("create_encounter", "generate_invoice")

	runnable, err := g.Compile()
	if err != nil {
		return nil, err
	}
	return registry.Bind(runnable), nil
}

// PatientID derives the record id from the patient name: spaces become
// dashes, truncated to ten characters.
func PatientID(patientName string) string {
	slug := strings.ReplaceAll(patientName, " ", "-")
	if len(slug) > 10 {
		slug = slug[:10]
	}
	return "PAT-" + slug
}

func createPatient(ctx context.Context, s State) (graph.Outcome[State], error) {
	s.PatientID = PatientID(s.PatientName)
	s.RecordStep("create_patient")
	return graph.Advance(s), nil
}

func scheduleAdmission(ctx context.Context, s State) (graph.Outcome[State], error) {
	s.AppointmentID = fmt.Sprintf("APT-%s-001", s.PatientID)
	s.RecordStep("schedule_admission")
	return graph.Advance(s), nil
}

// createOrderSet expands the admission protocol into concrete orders and
// gates them on physician approval before anything touches the chart.
func createOrderSet(ctx context.Context, s State) (graph.Outcome[State], error) {
	protocol := s.ClinicalProtocol
	if protocol == "" {
		protocol = "standard_admission"
	}
	orders := protocolOrders(protocol)

	decision, suspend := steps.Approval(ctx, steps.Request{
		Operation:     "create_order_set",
		OperationType: "clinical_orders",
		RiskLevel:     graph.RiskHigh,
		Details: map[string]any{
			"patient_id":                  s.PatientID,
			"patient_name":                s.PatientName,
			"primary_diagnosis":           s.PrimaryDiagnosis,
			"protocol":                    protocol,
			"orders":                      orders.all(),
			"total_orders":                orders.total(),
			"estimated_cost":              orderEstimatedCost,
			"requires_physician_approval": true,
		},
		Preview: orderSetPreview(s, protocol, orders),
		Action:  "⚠️ CRITICAL: Clinical orders require approval for patient safety",
	})
	if suspend != nil {
		return graph.Suspend[State](suspend), nil
	}
	if !decision.Approved {
		s.Reject()
		s.RecordError(state.StepError{
			Step:    "create_orders",
			Reason:  "Clinical orders rejected by physician",
			Details: map[string]any{"safety_critical": true},
		})
		return graph.Goto(graph.NodeWorkflowRejected, s), nil
	}

	s.Approve()
	s.OrderSetID = fmt.Sprintf("OS-%s-001", s.PatientID)
	s.RecordStep("create_orders")
	return graph.Goto("create_encounter", s), nil
}

func createEncounter(ctx context.Context, s State) (graph.Outcome[State], error) {
	s.EncounterID = fmt.Sprintf("ENC-%s-001", s.PatientID)
	s.RecordStep("create_encounter")
	return graph.Advance(s), nil
}

// generateInvoice gates the financial document on a high-risk approval.
// Hospital services bill tax-exempt.
func generateInvoice(ctx context.Context, s State) (graph.Outcome[State], error) {
	subtotal := admissionFee + labCharges + medicationCharges + procedureCharges
	tax := 0.0
	grandTotal := subtotal + tax

	decision, suspend := steps.Approval(ctx, steps.Request{
		Operation:     "generate_invoice",
		OperationType: "hospital_billing",
		RiskLevel:     graph.RiskHigh,
		Details: map[string]any{
			"patient_id":         s.PatientID,
			"patient_name":       s.PatientName,
			"encounter_id":       s.EncounterID,
			"admission_fee":      admissionFee,
			"lab_charges":        labCharges,
			"medication_charges": medicationCharges,
			"procedure_charges":  procedureCharges,
			"subtotal":           subtotal,
			"tax":                tax,
			"grand_total":        grandTotal,
		},
		Preview: invoicePreview(s, subtotal, tax, grandTotal),
		Action:  "Please approve invoice generation",
	})
	if suspend != nil {
		return graph.Suspend[State](suspend), nil
	}
	if !decision.Approved {
		s.Reject()
		s.RecordError(state.StepError{Step: "generate_invoice", Reason: "Invoice rejected"})
		return graph.Goto(graph.NodeWorkflowRejected, s), nil
	}

	s.Approve()
	s.InvoiceID = fmt.Sprintf("INV-%s-001", s.PatientID)
	s.RecordStep("generate_invoice")
	return graph.Goto(graph.NodeWorkflowCompleted, s), nil
}

// orderSet is the clinical order bundle a protocol expands to.
type orderSet struct {
	Labs       []string
	Meds       []string
	Procedures []string
}

func (o orderSet) all() []string {
	out := make([]string, 0, o.total())
	out = append(out, o.Labs...)
	out = append(out, o.Meds...)
	out = append(out, o.Procedures...)
	return out
}

func (o orderSet) total() int {
	return len(o.Labs) + len(o.Meds) + len(o.Procedures)
}

// protocolOrders expands an admission protocol. Unknown protocols fall back
// to the standard admission bundle.
func protocolOrders(protocol string) orderSet {
	switch protocol {
	case "sepsis_protocol":
		return orderSet{
			Labs: []string{
				"CBC with differential",
				"Blood cultures x2 (aerobic + anaerobic)",
				"Lactate level",
				"Comprehensive metabolic panel",
			},
			Meds: []string{
				"Ceftriaxone 2g IV q24h",
				"Azithromycin 500mg IV daily",
				"Normal saline 30mL/kg IV bolus",
			},
			Procedures: []string{
				"Continuous vital signs monitoring",
				"Central line placement",
			},
		}
	case "pneumonia_protocol":
		return orderSet{
			Labs: []string{
				"CBC with differential",
				"Blood cultures",
				"Chest X-ray",
			},
			Meds: []string{
				"Azithromycin 500mg IV daily",
				"Ceftriaxone 1g IV q24h",
			},
			Procedures: []string{
				"Oxygen therapy",
				"Pulse oximetry monitoring",
			},
		}
	default:
		return orderSet{
			Labs:       []string{"CBC", "Basic metabolic panel"},
			Meds:       []string{"As needed per condition"},
			Procedures: []string{"Vital signs q4h"},
		}
	}
}

func orderSetPreview(s State, protocol string, orders orderSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Clinical Order Set:\n\n")
	fmt.Fprintf(&b, "Patient: %s (%s)\n", s.PatientName, s.PatientID)
	fmt.Fprintf(&b, "Diagnosis: %s\n", s.PrimaryDiagnosis)
	fmt.Fprintf(&b, "Protocol: %s\n", protocol)

	fmt.Fprintf(&b, "\nLab Tests (%d):\n", len(orders.Labs))
	for _, lab := range orders.Labs {
		fmt.Fprintf(&b, "  - %s\n", lab)
	}
	fmt.Fprintf(&b, "\nMedications (%d):\n", len(orders.Meds))
	for _, med := range orders.Meds {
		fmt.Fprintf(&b, "  - %s\n", med)
	}
	fmt.Fprintf(&b, "\nProcedures (%d):\n", len(orders.Procedures))
	for _, proc := range orders.Procedures {
		fmt.Fprintf(&b, "  - %s\n", proc)
	}

	fmt.Fprintf(&b, "\nTotal Orders: %d\n", orders.total())
	fmt.Fprintf(&b, "Estimated Cost: $%.2f", orderEstimatedCost)
	return b.String()
}

func invoicePreview(s State, subtotal, tax, grandTotal float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Invoice Details:\n\n")
	fmt.Fprintf(&b, "Patient: %s (%s)\n", s.PatientName, s.PatientID)
	fmt.Fprintf(&b, "Encounter: %s\n\n", s.EncounterID)
	fmt.Fprintf(&b, "Charges:\n")
	fmt.Fprintf(&b, "  - Admission Fee: $%.2f\n", admissionFee)
	fmt.Fprintf(&b, "  - Lab Tests: $%.2f\n", labCharges)
	fmt.Fprintf(&b, "  - Medications: $%.2f\n", medicationCharges)
	fmt.Fprintf(&b, "  - Procedures: $%.2f\n", procedureCharges)
	fmt.Fprintf(&b, "  Subtotal: $%.2f\n", subtotal)
	fmt.Fprintf(&b, "  Tax: $%.2f\n", tax)
	fmt.Fprintf(&b, "  Grand Total: $%.2f", grandTotal)
	return b.String()
}
