package registry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yosef-Ali/erpnext-workflows/graph"
	"github.com/Yosef-Ali/erpnext-workflows/state"
)

type demoState struct {
	state.Base

	ReservationID string `json:"reservation_id"`
	GuestName     string `json:"guest_name,omitempty"`
}

func demoGraph(t *testing.T) *graph.Runnable[demoState] {
	t.Helper()
	g := graph.NewStateGraph[demoState]()
	g.AddNode("confirm", "", func(_ context.Context, s demoState) (graph.Outcome[demoState], error) {
		s.RecordStep("confirm")
		return graph.Goto(graph.NodeWorkflowCompleted, s), nil
	})
	g.SetEntryPoint("confirm")

	run, err := g.Compile()
	require.NoError(t, err)
	return run
}

func demoDefinition(t *testing.T, name, industry string, tags ...string) Definition {
	t.Helper()
	return Definition{
		Descriptor: Descriptor{
			Name:        name,
			Description: "demo workflow",
			Industry:    industry,
			Tags:        tags,
			Schema: Schema{
				{Name: "reservation_id", Hint: "str"},
				{Name: "guest_name", Hint: "str (optional)"},
			},
			EstimatedSteps: 1,
			Capabilities:   Capabilities{SupportsInterrupts: true, RequiresApproval: true},
		},
		Loader: func() (Workflow, error) {
			return Bind(demoGraph(t)), nil
		},
	}
}

func TestRegister_RejectsDuplicatesAndEmptyNames(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(demoDefinition(t, "hotel_o2c", "hotel")))

	err := r.Register(demoDefinition(t, "hotel_o2c", "hotel"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	err = r.Register(Definition{})
	require.Error(t, err)

	assert.Panics(t, func() {
		r.MustRegister(demoDefinition(t, "hotel_o2c", "hotel"))
	})
}

func TestGet(t *testing.T) {
	r := New()
	r.MustRegister(demoDefinition(t, "hotel_o2c", "hotel"))

	d, err := r.Get("hotel_o2c")
	require.NoError(t, err)
	assert.Equal(t, "hotel", d.Industry)
	assert.Equal(t, 1, d.EstimatedSteps)

	_, err = r.Get("ghost")
	assert.ErrorIs(t, err, ErrUnknownGraph)
}

func TestList_OrderAndFilters(t *testing.T) {
	r := New()
	r.MustRegister(demoDefinition(t, "hotel_o2c", "hotel", "billing"))
	r.MustRegister(demoDefinition(t, "hospital_admissions", "hospital", "clinical"))
	r.MustRegister(demoDefinition(t, "retail_fulfillment", "retail", "billing", "inventory"))

	all := r.List(Filter{})
	require.Len(t, all, 3)
	assert.Equal(t, "hotel_o2c", all[0].Name)
	assert.Equal(t, "hospital_admissions", all[1].Name)
	assert.Equal(t, "retail_fulfillment", all[2].Name)

	hotel := r.List(Filter{Industry: "hotel"})
	require.Len(t, hotel, 1)
	assert.Equal(t, "hotel_o2c", hotel[0].Name)

	billing := r.List(Filter{Tags: []string{"billing"}})
	require.Len(t, billing, 2)

	// Tag filters intersect: any listed tag qualifies a descriptor.
	either := r.List(Filter{Tags: []string{"clinical", "inventory"}})
	require.Len(t, either, 2)
	assert.Equal(t, "hospital_admissions", either[0].Name)
	assert.Equal(t, "retail_fulfillment", either[1].Name)

	interruptible := r.List(Filter{Capability: func(c Capabilities) bool { return c.SupportsInterrupts }})
	assert.Len(t, interruptible, 3)
}

func TestLoad_CachesCompiledGraph(t *testing.T) {
	builds := 0
	r := New()
	def := demoDefinition(t, "hotel_o2c", "hotel")
	def.Loader = func() (Workflow, error) {
		builds++
		return Bind(demoGraph(t)), nil
	}
	r.MustRegister(def)

	first, err := r.Load("hotel_o2c")
	require.NoError(t, err)
	second, err := r.Load("hotel_o2c")
	require.NoError(t, err)

	assert.Equal(t, 1, builds)
	assert.Equal(t, first, second)
}

func TestLoad_UnknownGraphNamesAvailable(t *testing.T) {
	r := New()
	r.MustRegister(demoDefinition(t, "hotel_o2c", "hotel"))

	_, err := r.Load("ghost")
	require.ErrorIs(t, err, ErrUnknownGraph)
	assert.Contains(t, err.Error(), "hotel_o2c")
}

func TestLoad_FactoryFailureIsLoadError(t *testing.T) {
	r := New()
	def := demoDefinition(t, "broken", "hotel")
	def.Loader = func() (Workflow, error) {
		return nil, errors.New("entry point not set")
	}
	r.MustRegister(def)

	_, err := r.Load("broken")
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "broken", le.Graph)
	assert.Contains(t, le.Error(), "failed to load workflow graph broken")
}

func TestStats(t *testing.T) {
	r := New()
	r.MustRegister(demoDefinition(t, "hotel_o2c", "hotel"))
	r.MustRegister(demoDefinition(t, "hospital_admissions", "hospital"))
	r.MustRegister(demoDefinition(t, "hotel_bookings", "hotel"))

	s := r.Stats()
	assert.Equal(t, 3, s.TotalWorkflows)
	assert.Equal(t, map[string]int{"hotel": 2, "hospital": 1}, s.ByIndustry)
	assert.Equal(t, 0, s.LoadedGraphs)
	assert.Equal(t, []string{"hotel", "hospital"}, s.AvailableIndustries)

	_, err := r.Load("hotel_o2c")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Stats().LoadedGraphs)
}

func TestSchema_JSONPreservesOrder(t *testing.T) {
	s := Schema{
		{Name: "reservation_id", Hint: "str"},
		{Name: "guest_name", Hint: "str"},
		{Name: "room_number", Hint: "str"},
	}

	blob, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `{"reservation_id":"str","guest_name":"str","room_number":"str"}`, string(blob))

	var back Schema
	require.NoError(t, json.Unmarshal(blob, &back))
	assert.Equal(t, s, back)
}
