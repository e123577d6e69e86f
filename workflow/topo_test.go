package workflow

import (
	"reflect"
	"testing"
)

func TestTopoOrder(t *testing.T) {
	t.Run("linear chain follows edges", func(t *testing.T) {
		wf := NewWorkflow().
			AddNode("a", &Node{Type: NodeStart}).
			AddNode("b", &Node{Type: NodeEnd}).
			AddNode("c", &Node{Type: NodeEnd}).
			Connect("c1", "a", "b").
			Connect("c2", "b", "c")
		got := topoOrder(wf)
		want := []string{"a", "b", "c"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("topoOrder() = %v, want %v", got, want)
		}
	})

	t.Run("ties break on document order", func(t *testing.T) {
		// Three roots with no edges: document order decides.
		wf := NewWorkflow().
			AddNode("b", &Node{Type: NodeStart}).
			AddNode("a", &Node{Type: NodeStart}).
			AddNode("c", &Node{Type: NodeStart})
		got := topoOrder(wf)
		want := []string{"b", "a", "c"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("topoOrder() = %v, want %v", got, want)
		}
	})

	t.Run("diamond keeps branch order deterministic", func(t *testing.T) {
		wf := NewWorkflow().
			AddNode("s", &Node{Type: NodeStart}).
			AddNode("left", &Node{Type: NodeEnd}).
			AddNode("right", &Node{Type: NodeEnd}).
			AddNode("join", &Node{Type: NodeEnd}).
			Connect("c1", "s", "left").
			Connect("c2", "s", "right").
			Connect("c3", "left", "join").
			Connect("c4", "right", "join")
		got := topoOrder(wf)
		want := []string{"s", "left", "right", "join"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("topoOrder() = %v, want %v", got, want)
		}
	})

	t.Run("cycle falls back to document order without crashing", func(t *testing.T) {
		wf := NewWorkflow().
			AddNode("a", &Node{Type: NodeStart}).
			AddNode("x", &Node{Type: NodeEnd}).
			AddNode("y", &Node{Type: NodeEnd}).
			Connect("c1", "x", "y").
			Connect("c2", "y", "x")
		got := topoOrder(wf)
		want := []string{"a", "x", "y"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("topoOrder() = %v, want %v", got, want)
		}
	})

	t.Run("edges naming missing nodes are ignored", func(t *testing.T) {
		wf := NewWorkflow().
			AddNode("a", &Node{Type: NodeStart}).
			Connect("c1", "a", "ghost").
			Connect("c2", "ghost", "a")
		got := topoOrder(wf)
		want := []string{"a"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("topoOrder() = %v, want %v", got, want)
		}
	})
}

func TestWorkflowUnmarshalPreservesOrder(t *testing.T) {
	doc := []byte(`{
		"nodes": {
			"beta": {"type": "start"},
			"alpha": {"type": "start"},
			"gamma": {"type": "start"}
		},
		"connections": {}
	}`)
	var wf Workflow
	if err := wf.UnmarshalJSON(doc); err != nil {
		t.Fatalf("UnmarshalJSON() error = %v", err)
	}
	want := []string{"beta", "alpha", "gamma"}
	if !reflect.DeepEqual(wf.NodeOrder(), want) {
		t.Errorf("NodeOrder() = %v, want %v", wf.NodeOrder(), want)
	}
	if got := topoOrder(&wf); !reflect.DeepEqual(got, want) {
		t.Errorf("topoOrder() = %v, want %v", got, want)
	}
}
