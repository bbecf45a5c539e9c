package parser

import (
	"apimatch/internal/core/errors"
	"testing"
)

type fakeOracle struct {
	returns map[string]string
	nouns   map[string]string
	classes map[string]bool
}

func (o fakeOracle) ReturnType(receiverType, method string) string {
	return o.returns[receiverType+"."+method]
}

func (o fakeOracle) ClassForNoun(noun string) string {
	return o.nouns[noun]
}

func (o fakeOracle) HasClass(name string) bool {
	return o.classes[name]
}

func newTestOracle() fakeOracle {
	return fakeOracle{
		returns: map[string]string{
			"Part.hybrid_shape_factory":               "HybridShapeFactory",
			"HybridShapeFactory.add_new_plane_offset": "HybridShapePlaneOffset",
			"Part.origin":                             "OriginElements",
		},
		nouns: map[string]string{
			"point_coord": "HybridShapePointCoord",
		},
		classes: map[string]bool{
			"Part":                  true,
			"HybridShapeFactory":    true,
			"HybridShapePointCoord": true,
			"SplineCurve":           true,
		},
	}
}

const workflowSource = `import catia

doc = catia.active_document
part: Part = doc.part

def step_1_create_factory():
    """Get the shape factory.

    More detail that is not part of the title.
    """
    factory = part.hybrid_shape_factory
    point = factory.add_new_point_coord(1, 2.5, -3)
    factory.add_new_point_coord(1, 2.5, -3)
    factory.add_new_point_coord(1, 2.5, -3)

def step_2_reference_plane():
    plane = factory.add_new_plane_offset(ref=point, offset=10.0)
    part.update_object(plane)

def create_step():
    spline1 = SplineCurve()
    alias = spline1
    spline1.add_point(point, "tangent", part.origin, [1, 2])
    helper()

    def nested():
        alias.close()

app.quit()
`

func TestParseFileWorkflow(t *testing.T) {
	p := NewParser(newTestOracle())
	unit, err := p.ParseFile("workflow.py", []byte(workflowSource))
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}

	type want struct {
		chain, method, function, receiver string
		step                              int
	}
	expected := []want{
		{"factory", "add_new_point_coord", "step_1_create_factory", "HybridShapeFactory", 1},
		{"factory", "add_new_plane_offset", "step_2_reference_plane", "HybridShapeFactory", 2},
		{"part", "update_object", "step_2_reference_plane", "Part", 2},
		{"spline1", "add_point", "create_step", "SplineCurve", 3},
		{"alias", "close", "nested", "SplineCurve", 3},
		{"app", "quit", "", "", 0},
	}
	if len(unit.Calls) != len(expected) {
		for _, c := range unit.Calls {
			t.Logf("call %s.%s step=%d", c.ObjectChain, c.MethodName, c.StepNumber)
		}
		t.Fatalf("expected %d calls, got %d", len(expected), len(unit.Calls))
	}
	for i, w := range expected {
		c := unit.Calls[i]
		if c.ObjectChain != w.chain || c.MethodName != w.method {
			t.Errorf("call %d: expected %s.%s, got %s.%s", i, w.chain, w.method, c.ObjectChain, c.MethodName)
		}
		if c.FunctionName != w.function || c.StepNumber != w.step {
			t.Errorf("call %d: expected %s/step %d, got %s/step %d", i, w.function, w.step, c.FunctionName, c.StepNumber)
		}
		if c.ReceiverType != w.receiver {
			t.Errorf("call %d: expected receiver type %q, got %q", i, w.receiver, c.ReceiverType)
		}
	}

	t.Run("Arguments", func(t *testing.T) {
		args := unit.Calls[0].Arguments
		if len(args) != 3 {
			t.Fatalf("expected 3 args, got %d", len(args))
		}
		if args[0].Kind != ArgConstant || args[0].Value != "1" || args[2].Value != "-3" {
			t.Errorf("unexpected constants %+v", args)
		}

		kw := unit.Calls[1].Arguments
		if len(kw) != 2 || kw[0].Keyword != "ref" || kw[0].Kind != ArgVariable || kw[0].Value != "point" {
			t.Errorf("unexpected keyword args %+v", kw)
		}
		if kw[1].Keyword != "offset" || kw[1].Kind != ArgConstant || kw[1].Value != "10.0" {
			t.Errorf("unexpected keyword constant %+v", kw[1])
		}

		mixed := unit.Calls[3].Arguments
		if len(mixed) != 4 {
			t.Fatalf("expected 4 args, got %d", len(mixed))
		}
		if mixed[1].Kind != ArgConstant || mixed[1].Value != "tangent" {
			t.Errorf("expected unquoted string constant, got %+v", mixed[1])
		}
		if mixed[2].Kind != ArgAttribute || mixed[2].Value != "part.origin" {
			t.Errorf("expected attribute argument, got %+v", mixed[2])
		}
		if mixed[3].Kind != ArgComplex || mixed[3].NodeKind != "list" {
			t.Errorf("expected complex list argument, got %+v", mixed[3])
		}
	})

	t.Run("VariableTypes", func(t *testing.T) {
		cases := map[string]string{
			"doc":     Unknown,
			"part":    "Part",
			"factory": "HybridShapeFactory",
			"point":   "HybridShapePointCoord",
			"plane":   "HybridShapePlaneOffset",
			"spline1": "SplineCurve",
			"alias":   "SplineCurve",
		}
		for name, typ := range cases {
			if got := unit.VariableTypes[name]; got != typ {
				t.Errorf("%s: expected type %q, got %q", name, typ, got)
			}
		}
	})

	t.Run("Assignments", func(t *testing.T) {
		var point *Assignment
		for i := range unit.Assignments {
			if unit.Assignments[i].Name == "point" {
				point = &unit.Assignments[i]
			}
		}
		if point == nil {
			t.Fatal("expected an assignment for point")
		}
		if point.Method != "add_new_point_coord" || point.StepNumber != 1 || point.Type != "HybridShapePointCoord" {
			t.Errorf("unexpected assignment %+v", *point)
		}
	})

	t.Run("StepTitles", func(t *testing.T) {
		if got := unit.StepTitles[1]; got != "create factory: Get the shape factory." {
			t.Errorf("unexpected step 1 title %q", got)
		}
		if got := unit.StepTitles[2]; got != "reference plane" {
			t.Errorf("unexpected step 2 title %q", got)
		}
		if got := unit.StepTitles[3]; got != "create step" {
			t.Errorf("unexpected step 3 title %q", got)
		}
	})

	t.Run("Locations", func(t *testing.T) {
		if loc := unit.Calls[0].Location; loc.File != "workflow.py" || loc.Line != 12 {
			t.Errorf("unexpected location %+v", loc)
		}
	})

	if unit.Hash == "" {
		t.Error("expected content hash")
	}
}

func TestParseFileChains(t *testing.T) {
	p := NewParser(nil)
	src := "doc.parts[0].bodies.item(1).shapes.add(x)\n(a + b).method()\n"
	unit, err := p.ParseFile("chains.py", []byte(src))
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if len(unit.Calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", len(unit.Calls))
	}
	if c := unit.Calls[0]; c.ObjectChain != "doc.parts.bodies" || c.MethodName != "item" {
		t.Errorf("unexpected inner call %s.%s", c.ObjectChain, c.MethodName)
	}
	if c := unit.Calls[1]; c.ObjectChain != "doc.parts.bodies.item.shapes" || c.MethodName != "add" {
		t.Errorf("unexpected outer call %s.%s", c.ObjectChain, c.MethodName)
	}
	if c := unit.Calls[2]; c.ObjectChain != Unknown {
		t.Errorf("expected unknown chain, got %s", c.ObjectChain)
	}
	if base := unit.Calls[1].BaseVariable(); base != "doc" {
		t.Errorf("expected base variable doc, got %q", base)
	}
}

func TestNamingHeuristicWithoutOracle(t *testing.T) {
	p := NewParser(nil)
	src := "plane = factory.create_reference_plane()\nshape = factory.fetch()\n"
	unit, err := p.ParseFile("naming.py", []byte(src))
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if got := unit.VariableTypes["plane"]; got != "ReferencePlane" {
		t.Errorf("expected ReferencePlane, got %q", got)
	}
	if got := unit.VariableTypes["shape"]; got != Unknown {
		t.Errorf("expected unknown, got %q", got)
	}
}

func TestParseFileSyntaxError(t *testing.T) {
	p := NewParser(nil)
	_, err := p.ParseFile("broken.py", []byte("def broken(:\n    pass\n"))
	if !errors.IsCode(err, errors.CodeParseError) {
		t.Fatalf("expected PARSE_ERROR, got %v", err)
	}
}

func TestIsSupportedPath(t *testing.T) {
	p := NewParser(nil)
	if !p.IsSupportedPath("scripts/step_1.PY") {
		t.Error("expected .py to be supported")
	}
	if p.IsSupportedPath("README.md") {
		t.Error("markdown should not be supported")
	}
}
