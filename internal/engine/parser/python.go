package parser

import (
	"regexp"
	"strconv"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

var stepPattern = regexp.MustCompile(`^step_?(\d+)`)

// creationPrefixes are method-name prefixes implying the call returns a new
// object of the named kind, e.g. add_new_plane -> Plane.
var creationPrefixes = []string{"add_new_", "create_", "new_", "make_", "build_"}

type PythonExtractor struct {
	oracle TypeOracle
}

func (e *PythonExtractor) Extract(root *sitter.Node, source []byte, unit *Unit) {
	ctx := newExtractionContext(source, unit, e.oracle, map[string]NodeHandler{
		"function_definition":  e.extractFunction,
		"assignment":           e.extractAssignment,
		"augmented_assignment": e.extractAugmented,
		"call":                 e.extractCall,
	})
	ctx.Walk(root)
}

func (e *PythonExtractor) extractFunction(ctx *ExtractionContext, node *sitter.Node) bool {
	name := ctx.Text(node.ChildByFieldName("name"))
	if name == "" {
		return false
	}

	prevStep, prevFunction := ctx.step, ctx.function
	ctx.step = e.stepFor(ctx, name)
	ctx.function = name

	body := node.ChildByFieldName("body")
	if ctx.step != prevStep {
		if _, seen := ctx.Unit.StepTitles[ctx.step]; !seen {
			ctx.Unit.StepTitles[ctx.step] = stepTitle(name, docstring(ctx, body))
		}
	}
	ctx.Walk(body)

	ctx.step, ctx.function = prevStep, prevFunction
	return true
}

// stepFor numbers a function: an explicit step_<N> wins, any other name
// containing "step" continues the count, anything else inherits the
// enclosing step.
func (e *PythonExtractor) stepFor(ctx *ExtractionContext, name string) int {
	lower := strings.ToLower(name)
	if m := stepPattern.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			ctx.lastStep = n
			return n
		}
	}
	if strings.Contains(lower, "step") {
		ctx.lastStep++
		return ctx.lastStep
	}
	return ctx.step
}

func (e *PythonExtractor) extractCall(ctx *ExtractionContext, node *sitter.Node) bool {
	fn := node.ChildByFieldName("function")
	args := node.ChildByFieldName("arguments")

	// Receiver and arguments run before the call itself.
	ctx.Walk(fn)
	ctx.Walk(args)

	if fn == nil || fn.Kind() != "attribute" {
		return true
	}
	object := fn.ChildByFieldName("object")
	method := ctx.Text(fn.ChildByFieldName("attribute"))
	chain := renderChain(ctx, object)
	text := ctx.Text(node)

	key := chain + "." + method + "|" + text
	if key == ctx.lastCall {
		return true
	}
	ctx.lastCall = key

	ctx.Unit.Calls = append(ctx.Unit.Calls, CallSite{
		ObjectChain:  chain,
		MethodName:   method,
		Arguments:    e.extractArguments(ctx, args),
		StepNumber:   ctx.step,
		FunctionName: ctx.function,
		Location:     ctx.Location(node),
		ReceiverType: chainType(ctx, chain),
		Text:         text,
	})
	return true
}

func (e *PythonExtractor) extractArguments(ctx *ExtractionContext, args *sitter.Node) []Argument {
	if args == nil {
		return nil
	}
	var out []Argument
	for i := uint(0); i < args.NamedChildCount(); i++ {
		child := args.NamedChild(i)
		switch child.Kind() {
		case "comment":
			continue
		case "keyword_argument":
			arg := describeArgument(ctx, child.ChildByFieldName("value"))
			arg.Keyword = ctx.Text(child.ChildByFieldName("name"))
			out = append(out, arg)
		default:
			out = append(out, describeArgument(ctx, child))
		}
	}
	return out
}

func describeArgument(ctx *ExtractionContext, node *sitter.Node) Argument {
	if node == nil {
		return Argument{Kind: ArgComplex, NodeKind: "missing"}
	}
	switch node.Kind() {
	case "string", "concatenated_string":
		return Argument{Kind: ArgConstant, Value: unquote(ctx.Text(node))}
	case "integer", "float", "true", "false", "none":
		return Argument{Kind: ArgConstant, Value: ctx.Text(node)}
	case "unary_operator":
		operand := node.ChildByFieldName("argument")
		if operand != nil && (operand.Kind() == "integer" || operand.Kind() == "float") {
			return Argument{Kind: ArgConstant, Value: ctx.Text(node)}
		}
	case "identifier":
		return Argument{Kind: ArgVariable, Value: ctx.Text(node)}
	case "attribute":
		return Argument{Kind: ArgAttribute, Value: renderChain(ctx, node)}
	}
	return Argument{Kind: ArgComplex, Value: ctx.Text(node), NodeKind: node.Kind()}
}

func (e *PythonExtractor) extractAssignment(ctx *ExtractionContext, node *sitter.Node) bool {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	annotation := node.ChildByFieldName("type")

	ctx.Walk(right)

	if left == nil || left.Kind() != "identifier" {
		ctx.Walk(left)
		return true
	}
	name := ctx.Text(left)
	inferred := ""
	if annotation != nil {
		inferred = strings.TrimSpace(ctx.Text(annotation))
	}
	if inferred == "" {
		inferred = inferType(ctx, right)
	}
	if inferred == "" {
		inferred = Unknown
	}
	ctx.Unit.VariableTypes[name] = inferred
	ctx.Unit.Assignments = append(ctx.Unit.Assignments, Assignment{
		Name:       name,
		Type:       inferred,
		Method:     creatingMethod(ctx, right),
		StepNumber: ctx.step,
		Location:   ctx.Location(node),
	})
	return true
}

func creatingMethod(ctx *ExtractionContext, expr *sitter.Node) string {
	if expr == nil || expr.Kind() != "call" {
		return ""
	}
	fn := expr.ChildByFieldName("function")
	if fn == nil {
		return ""
	}
	if fn.Kind() == "attribute" {
		return ctx.Text(fn.ChildByFieldName("attribute"))
	}
	return ctx.Text(fn)
}

func (e *PythonExtractor) extractAugmented(ctx *ExtractionContext, node *sitter.Node) bool {
	ctx.Walk(node.ChildByFieldName("right"))
	return true
}

// inferType resolves the type produced by expr: a catalog return type first,
// then creation naming, then constructors and plain copies.
func inferType(ctx *ExtractionContext, expr *sitter.Node) string {
	if expr == nil {
		return ""
	}
	switch expr.Kind() {
	case "call":
		fn := expr.ChildByFieldName("function")
		if fn == nil {
			return ""
		}
		switch fn.Kind() {
		case "attribute":
			method := ctx.Text(fn.ChildByFieldName("attribute"))
			receiver := chainType(ctx, renderChain(ctx, fn.ChildByFieldName("object")))
			if ctx.Oracle != nil {
				if rt := ctx.Oracle.ReturnType(receiver, method); rt != "" {
					return rt
				}
			}
			return typeFromMethodName(ctx.Oracle, method)
		case "identifier":
			name := ctx.Text(fn)
			if ctx.Oracle != nil && ctx.Oracle.HasClass(name) {
				return name
			}
			return typeFromMethodName(ctx.Oracle, name)
		}
	case "identifier":
		if t, ok := ctx.Unit.VariableTypes[ctx.Text(expr)]; ok && t != Unknown {
			return t
		}
	case "attribute":
		return chainType(ctx, renderChain(ctx, expr))
	case "parenthesized_expression":
		if expr.NamedChildCount() > 0 {
			return inferType(ctx, expr.NamedChild(0))
		}
	}
	return ""
}

func typeFromMethodName(oracle TypeOracle, method string) string {
	lower := strings.ToLower(method)
	for _, prefix := range creationPrefixes {
		if !strings.HasPrefix(lower, prefix) {
			continue
		}
		noun := method[len(prefix):]
		if noun == "" {
			return ""
		}
		if oracle != nil {
			if cls := oracle.ClassForNoun(noun); cls != "" {
				return cls
			}
		}
		return camelCase(noun)
	}
	return ""
}

// chainType follows a dotted chain from its base variable through the
// catalog's return types, e.g. part.hybrid_shape_factory -> HybridShapeFactory.
func chainType(ctx *ExtractionContext, chain string) string {
	if chain == "" || chain == Unknown {
		return ""
	}
	segments := strings.Split(chain, ".")
	t := ctx.Unit.VariableTypes[segments[0]]
	if t == Unknown {
		t = ""
	}
	if t == "" && ctx.Oracle != nil && ctx.Oracle.HasClass(segments[0]) {
		t = segments[0]
	}
	for _, seg := range segments[1:] {
		if t == "" || ctx.Oracle == nil {
			return ""
		}
		t = ctx.Oracle.ReturnType(t, seg)
	}
	return t
}

// renderChain renders the receiver expression as a dotted string. Subscripts
// collapse to their value and unsupported expressions render as "unknown".
func renderChain(ctx *ExtractionContext, node *sitter.Node) string {
	if node == nil {
		return Unknown
	}
	switch node.Kind() {
	case "identifier":
		return ctx.Text(node)
	case "attribute":
		return renderChain(ctx, node.ChildByFieldName("object")) + "." + ctx.Text(node.ChildByFieldName("attribute"))
	case "call":
		fn := node.ChildByFieldName("function")
		if fn != nil && (fn.Kind() == "attribute" || fn.Kind() == "identifier") {
			return renderChain(ctx, fn)
		}
	case "subscript":
		return renderChain(ctx, node.ChildByFieldName("value"))
	}
	return Unknown
}

func docstring(ctx *ExtractionContext, body *sitter.Node) string {
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first.Kind() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	str := first.NamedChild(0)
	if str.Kind() != "string" {
		return ""
	}
	doc := strings.TrimSpace(unquote(ctx.Text(str)))
	if i := strings.IndexByte(doc, '\n'); i >= 0 {
		doc = strings.TrimSpace(doc[:i])
	}
	return doc
}

// stepTitle turns step_3_create_plane into "create plane", appending the
// first docstring line when present.
func stepTitle(function, doc string) string {
	title := stepPattern.ReplaceAllString(strings.ToLower(function), "")
	title = strings.TrimSpace(strings.ReplaceAll(title, "_", " "))
	if doc == "" {
		return title
	}
	if title == "" {
		return doc
	}
	return title + ": " + doc
}

func unquote(s string) string {
	s = strings.TrimLeft(s, "rRbBuUfF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(s) >= 2*len(q) && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}

func camelCase(s string) string {
	var b strings.Builder
	upper := true
	for _, r := range s {
		if r == '_' {
			upper = true
			continue
		}
		if upper {
			b.WriteString(strings.ToUpper(string(r)))
			upper = false
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
