package tracker

import (
	"apimatch/internal/core/ports"
	"testing"
)

func TestRecord(t *testing.T) {
	tr := New()
	step := ports.DesignStep{
		StepNumber:      1,
		Title:           "Create reference planes",
		Description:     "Create Plane.1 offset from the XY plane and a point 2 at the origin",
		ExpectedOutcome: "A spline through the points",
	}
	matches := []ports.MethodMatch{{MethodName: "add_new_plane_offset"}, {MethodName: "add_new_point_coord"}}

	added := tr.Record(step, matches)
	names := make([]string, 0, len(added))
	for _, obj := range added {
		names = append(names, obj.Name)
	}
	want := []string{"Plane.1", "point 2", "spline"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}

	plane, ok := tr.Lookup("Plane.1")
	if !ok {
		t.Fatal("expected Plane.1 to be recorded")
	}
	if plane.InferredType != "reference_plane" || plane.CreationMethod != "add_new_plane_offset" || plane.CreationStep != 1 {
		t.Errorf("unexpected object %+v", plane)
	}
	if plane.Properties["description"] != step.Description {
		t.Errorf("expected description property, got %v", plane.Properties)
	}
	if spline, _ := tr.Lookup("spline"); spline.InferredType != "curve" {
		t.Errorf("expected curve type for spline, got %q", spline.InferredType)
	}
}

func TestRecordKeepsWrittenNames(t *testing.T) {
	tr := New()
	tr.Record(ports.DesignStep{StepNumber: 1, Description: "Create spline1 through the points"}, []ports.MethodMatch{{MethodName: "add_new_spline"}})

	obj, ok := tr.Lookup("spline1")
	if !ok {
		t.Fatalf("expected spline1 to be recorded, got %+v", tr.Entries())
	}
	if obj.InferredType != "curve" || obj.CreationMethod != "add_new_spline" {
		t.Errorf("unexpected object %+v", obj)
	}
	if _, ok := tr.Lookup("spline.1"); ok {
		t.Error("recorded name must not be rewritten")
	}

	later := ports.DesignStep{StepNumber: 2, Description: "Add a point to spline1"}
	refs := tr.Referenced(later)
	if len(refs) != 1 || refs[0].Name != "spline1" {
		t.Fatalf("expected spline1 to be referenced, got %+v", refs)
	}
	want := "Available objects from previous steps: spline1 | Referenced objects: spline1 (created in step 1)"
	if got := tr.ContextFor(later); got != want {
		t.Errorf("unexpected context\n got: %s\nwant: %s", got, want)
	}
}

func TestRecordWithoutMatches(t *testing.T) {
	tr := New()
	tr.Record(ports.DesignStep{StepNumber: 4, Description: "Extrude the sketch"}, nil)
	obj, ok := tr.Lookup("sketch")
	if !ok {
		t.Fatal("expected sketch to be recorded")
	}
	if obj.CreationMethod != "unknown" {
		t.Errorf("expected unknown creation method, got %q", obj.CreationMethod)
	}
	if tr.Len() != 2 {
		t.Errorf("expected extrude and sketch, got %d entries", tr.Len())
	}
}

func TestLookupShadowing(t *testing.T) {
	tr := New()
	tr.Add(ObjectContext{Name: "spline1", InferredType: "SplineFactory", CreationStep: 1})
	tr.Add(ObjectContext{Name: "spline1", InferredType: "SplineCurve", CreationStep: 3})
	tr.Add(ObjectContext{Name: "spline10", InferredType: "Other", CreationStep: 4})

	obj, ok := tr.Lookup("spline1")
	if !ok || obj.InferredType != "SplineCurve" {
		t.Fatalf("expected most recent spline1, got %+v", obj)
	}
	if _, ok := tr.Lookup("spline"); ok {
		t.Fatal("lookup must not match by substring")
	}
}

func TestBeforeAndContextFor(t *testing.T) {
	tr := New()
	for i := 1; i <= 7; i++ {
		tr.Add(ObjectContext{Name: "obj" + string(rune('0'+i)), CreationStep: i})
	}
	tr.Add(ObjectContext{Name: "plane.1", InferredType: "reference_plane", CreationStep: 2})

	before := tr.Before(4)
	if len(before) != 4 {
		t.Fatalf("expected 4 objects before step 4, got %d", len(before))
	}

	step := ports.DesignStep{StepNumber: 8, Description: "Project the point onto plane.1."}
	got := tr.ContextFor(step)
	want := "Available objects from previous steps: obj4, obj5, obj6, obj7, plane.1 | Referenced objects: plane.1 (created in step 2)"
	if got != want {
		t.Errorf("unexpected context\n got: %s\nwant: %s", got, want)
	}

	if ctx := tr.ContextFor(ports.DesignStep{StepNumber: 1, Description: "Start"}); ctx != "" {
		t.Errorf("expected empty context for the first step, got %q", ctx)
	}
}

func TestReferencedExcludesLaterAndShadowed(t *testing.T) {
	tr := New()
	tr.Add(ObjectContext{Name: "plane.1", InferredType: "old", CreationStep: 1})
	tr.Add(ObjectContext{Name: "plane.1", InferredType: "new", CreationStep: 2})
	tr.Add(ObjectContext{Name: "plane.12", CreationStep: 2})
	tr.Add(ObjectContext{Name: "point.3", CreationStep: 5})

	refs := tr.Referenced(ports.DesignStep{StepNumber: 3, Description: "Offset plane.1 and point.3"})
	if len(refs) != 1 {
		t.Fatalf("expected a single reference, got %+v", refs)
	}
	if refs[0].InferredType != "new" {
		t.Errorf("expected the shadowing entry, got %+v", refs[0])
	}
}
