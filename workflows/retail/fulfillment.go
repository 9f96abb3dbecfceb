// Package retail implements the order fulfillment workflow: inventory check,
// sales order, pick list, delivery note, and payment. Orders gate on
// approval when stock runs low or the value is large; payments gate above
// the auto-approval threshold.
package retail

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
const GraphName = "retail_fulfillment"

// Order value thresholds.
const (
	largeOrderThreshold  = 5000.00
	autoPaymentThreshold = 1000.00
)

// OrderItem is one line of the customer order.
type OrderItem struct {
	ItemCode string  `json:"item_code"`
	ItemName string  `json:"item_name"`
	Qty      float64 `json:"qty"`
	Rate     float64 `json:"rate"`
}

// Code falls back to the item name when no code is set.
func (i OrderItem) Code() string {
	if i.ItemCode != "" {
		return i.ItemCode
	}
	if i.ItemName != "" {
		return i.ItemName
	}
	return "UNKNOWN"
}

// Name falls back to the code when no display name is set.
func (i OrderItem) Name() string {
	if i.ItemName != "" {
		return i.ItemName
	}
	return i.Code()
}

// StockLevel is the availability snapshot for one ordered item.
type StockLevel struct {
	Available  float64 `json:"available"`
	Required   float64 `json:"required"`
	Sufficient bool    `json:"sufficient"`
}

// LowStockItem flags an item that fulfillment would leave short.
type LowStockItem struct {
	ItemCode       string  `json:"item_code"`
	ItemName       string  `json:"item_name"`
	Required       float64 `json:"required"`
	Available      float64 `json:"available"`
	RemainingAfter float64 `json:"remaining_after"`
}

// State carries a customer order from inventory check to payment.
type State struct {
	state.Base

	CustomerName string      `json:"customer_name"`
	CustomerID   string      `json:"customer_id"`
	OrderItems   []OrderItem `json:"order_items"`
	DeliveryDate string      `json:"delivery_date"`
	Warehouse    string      `json:"warehouse"`

	StockAvailability map[string]StockLevel `json:"stock_availability,omitempty"`
	LowStockItems     []LowStockItem        `json:"low_stock_items,omitempty"`
	OrderTotal        float64               `json:"order_total,omitempty"`
	SalesOrderID      string                `json:"sales_order_id,omitempty"`
	PickListID        string                `json:"pick_list_id,omitempty"`
	DeliveryNoteID    string                `json:"delivery_note_id,omitempty"`
	PaymentEntryID    string                `json:"payment_entry_id,omitempty"`
}

// Definition describes the workflow for registry registration.
func Definition() registry.Definition {
	return registry.Definition{
		Descriptor: registry.Descriptor{
			Name:        GraphName,
			Description: "Retail Order Fulfillment: Inventory check → Sales order → Pick list → Delivery → Payment",
			Industry:    "retail",
			Tags:        []string{"fulfillment", "inventory", "billing"},
			Schema: registry.Schema{
				{Name: "customer_name", Hint: "str"},
				{Name: "customer_id", Hint: "str"},
				{Name: "order_items", Hint: "list[dict]"},
				{Name: "delivery_date", Hint: "str"},
				{Name: "warehouse", Hint: "str"},
			},
			EstimatedSteps: 5,
			Capabilities: registry.Capabilities{
				SupportsInterrupts: true,
				RequiresApproval:   true,
				Domain:             []string{"stock_management", "payment_processing"},
			},
		},
		Loader: Load,
	}
}

// Load compiles the workflow graph.
func Load() (registry.Workflow, error) {
	g := graph.NewStateGraph[State]()

	g.AddNode("check_inventory", "Check stock levels for every ordered item", checkInventory)
	g.AddNode("create_sales_order", "Create the sales order, gated on stock or value", createSalesOrder)
	g.AddNode("create_pick_list", "Generate picking instructions for the warehouse", createPickList)
	g.AddNode("create_delivery_note", "Document the outgoing shipment", createDeliveryNote)
	g.AddNode("create_payment_entry", "Collect payment, gated above the auto threshold", createPaymentEntry)

	g.SetEntryPoint("check_inventory")
	g.AddEdge("check_inventory", "create_sales_order")
	g.AddEdge("create_pick_list", "create_delivery_note")
	g.AddEdge("create_delivery_note", "create_payment_entry")

	runnable, err := g.Compile()
	if err != nil {
		return nil, err
	}
	return registry.Bind(runnable), nil
}

// checkInventory snapshots availability per item and flags anything that
// fulfillment would leave below 20% of the requirement or under 10 units.
func checkInventory(ctx context.Context, s State) (graph.Outcome[State], error) {
	s.StockAvailability = make(map[string]StockLevel, len(s.OrderItems))
	s.LowStockItems = nil

	for _, item := range s.OrderItems {
		code := item.Code()
		available := availableStock(code)
		required := item.Qty

		s.StockAvailability[code] = StockLevel{
			Available:  available,
			Required:   required,
			Sufficient: available >= required,
		}

		remaining := available - required
		if remaining < required*0.2 || remaining < 10 {
			s.LowStockItems = append(s.LowStockItems, LowStockItem{
				ItemCode:       code,
				ItemName:       item.Name(),
				Required:       required,
				Available:      available,
				RemainingAfter: remaining,
			})
		}
	}

	s.RecordStep("check_inventory")
	return graph.Advance(s), nil
}

// createSalesOrder gates on approval when stock runs low or the order value
// crosses the large-order threshold; clean orders go straight through.
func createSalesOrder(ctx context.Context, s State) (graph.Outcome[State], error) {
	orderTotal := 0.0
	for _, item := range s.OrderItems {
		orderTotal += item.Qty * item.Rate
	}

	hasLowStock := len(s.LowStockItems) > 0
	isLargeOrder := orderTotal > largeOrderThreshold

	if !hasLowStock && !isLargeOrder {
		s.SalesOrderID = fmt.Sprintf("SO-%s-001", s.CustomerID)
		s.OrderTotal = orderTotal
		s.RecordStep("create_sales_order")
		return graph.Goto("create_pick_list", s), nil
	}

	var warnings []string
	if hasLowStock {
		warnings = append(warnings, fmt.Sprintf("⚠️ %d items will have low stock after fulfillment", len(s.LowStockItems)))
	}
	if isLargeOrder {
		warnings = append(warnings, fmt.Sprintf("⚠️ Large order: $%.2f (threshold: $5,000)", orderTotal))
	}

	risk := graph.RiskMedium
	if isLargeOrder {
		risk = graph.RiskHigh
	}

	decision, suspend := steps.Approval(ctx, steps.Request{
		Operation:     "create_sales_order",
		OperationType: "retail_order",
		RiskLevel:     risk,
		Details: map[string]any{
			"customer_name":   s.CustomerName,
			"customer_id":     s.CustomerID,
			"order_items":     s.OrderItems,
			"order_total":     orderTotal,
			"total_items":     len(s.OrderItems),
			"low_stock_items": s.LowStockItems,
			"warnings":        warnings,
		},
		Preview: salesOrderPreview(s, orderTotal, warnings),
		Action:  "⚠️ Order requires approval - review inventory impact or order value",
	})
	if suspend != nil {
		return graph.Suspend[State](suspend), nil
	}
	if !decision.Approved {
		s.Reject()
		s.RecordError(state.StepError{
			Step:   "create_sales_order",
			Reason: "Sales order rejected due to inventory concerns or order value",
		})
		return graph.Goto(graph.NodeWorkflowRejected, s), nil
	}

	s.Approve()
	s.SalesOrderID = fmt.Sprintf("SO-%s-001", s.CustomerID)
	s.OrderTotal = orderTotal
	s.RecordStep("create_sales_order")
	return graph.Goto("create_pick_list", s), nil
}

func createPickList(ctx context.Context, s State) (graph.Outcome[State], error) {
	s.PickListID = "PL-" + s.SalesOrderID
	s.RecordStep("create_pick_list")
	return graph.Advance(s), nil
}

func createDeliveryNote(ctx context.Context, s State) (graph.Outcome[State], error) {
	s.DeliveryNoteID = "DN-" + s.SalesOrderID
	s.RecordStep("create_delivery_note")
	return graph.Advance(s), nil
}

// createPaymentEntry auto-approves small payments; larger ones gate on a
// high-risk approval.
func createPaymentEntry(ctx context.Context, s State) (graph.Outcome[State], error) {
	if s.OrderTotal < autoPaymentThreshold {
		s.PaymentEntryID = "PE-" + s.SalesOrderID
		s.RecordStep("create_payment")
		return graph.Goto(graph.NodeWorkflowCompleted, s), nil
	}

	decision, suspend := steps.Approval(ctx, steps.Request{
		Operation:     "create_payment_entry",
		OperationType: "retail_payment",
		RiskLevel:     graph.RiskHigh,
		Details: map[string]any{
			"customer_name":    s.CustomerName,
			"customer_id":      s.CustomerID,
			"sales_order_id":   s.SalesOrderID,
			"delivery_note_id": s.DeliveryNoteID,
			"amount":           s.OrderTotal,
			"payment_method":   "Credit Card",
		},
		Preview: paymentPreview(s),
		Action:  "Please approve payment processing",
	})
	if suspend != nil {
		return graph.Suspend[State](suspend), nil
	}
	if !decision.Approved {
		s.Reject()
		s.RecordError(state.StepError{Step: "create_payment", Reason: "Payment processing rejected"})
		return graph.Goto(graph.NodeWorkflowRejected, s), nil
	}

	s.Approve()
	s.PaymentEntryID = "PE-" + s.SalesOrderID
	s.RecordStep("create_payment")
	return graph.Goto(graph.NodeWorkflowCompleted, s), nil
}

// availableStock returns the mock on-hand quantity until the stock service
// is wired in. Unknown items report a comfortable default.
func availableStock(itemCode string) float64 {
	switch itemCode {
	case "LAPTOP-DELL-I5":
		return 25.0
	case "MOUSE-WIRELESS":
		return 150.0
	case "KEYBOARD-MECH":
		return 45.0
	case "MONITOR-24":
		return 12.0
	case "HDMI-CABLE":
		return 200.0
	}
	return 100.0
}

func salesOrderPreview(s State, orderTotal float64, warnings []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sales Order Review:\n\n")
	fmt.Fprintf(&b, "Customer: %s (%s)\n", s.CustomerName, s.CustomerID)
	fmt.Fprintf(&b, "Delivery Date: %s\n\n", s.DeliveryDate)
	fmt.Fprintf(&b, "Order Items (%d):\n", len(s.OrderItems))
	for _, item := range s.OrderItems {
		fmt.Fprintf(&b, "  - %s: %v @ $%.2f = $%.2f\n", item.Name(), item.Qty, item.Rate, item.Qty*item.Rate)
	}
	fmt.Fprintf(&b, "\nOrder Total: $%.2f\n", orderTotal)
	for _, w := range warnings {
		fmt.Fprintf(&b, "\n%s", w)
	}
	if len(s.LowStockItems) > 0 {
		fmt.Fprintf(&b, "\n\nLow Stock Items (%d):\n", len(s.LowStockItems))
		for _, item := range s.LowStockItems {
			fmt.Fprintf(&b, "  - %s: %.0f remaining (was %.0f)\n", item.ItemName, item.RemainingAfter, item.Available)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func paymentPreview(s State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Payment Entry:\n\n")
	fmt.Fprintf(&b, "Customer: %s\n", s.CustomerName)
	fmt.Fprintf(&b, "Sales Order: %s\n", s.SalesOrderID)
	fmt.Fprintf(&b, "Delivery Note: %s\n\n", s.DeliveryNoteID)
	fmt.Fprintf(&b, "Payment Details:\n")
	fmt.Fprintf(&b, "  - Amount: $%.2f\n", s.OrderTotal)
	fmt.Fprintf(&b, "  - Payment Method: Credit Card\n")
	fmt.Fprintf(&b, "  - Status: Pending Approval\n\n")
	fmt.Fprintf(&b, "⚠️ Large payment - requires approval")
	return b.String()
}
