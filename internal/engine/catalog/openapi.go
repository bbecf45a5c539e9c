package catalog

import (
	"apimatch/internal/core/errors"
	"apimatch/internal/shared/util"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/getkin/kin-openapi/openapi3"
)

const maxSpecSizeBytes = 8 << 20 // 8 MiB

// LoadOpenAPI reads an OpenAPI 3 document from a file or http(s) URL and
// converts it into a manifest. Each operation becomes a method of the class
// named after its first tag; untagged operations fall back to the first path
// segment.
func LoadOpenAPI(source string) (*Manifest, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, errors.New(errors.CodeCatalogUnavailable, "openapi source is empty")
	}

	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	var (
		doc *openapi3.T
		err error
	)
	if isHTTPSource(source) {
		doc, err = loadSpecFromURL(loader, source)
	} else {
		if _, statErr := os.Stat(source); statErr != nil {
			return nil, errors.AddContext(errors.Wrap(statErr, errors.CodeCatalogUnavailable, "open openapi spec"), errors.CtxPath, source)
		}
		doc, err = loader.LoadFromFile(source)
	}
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeCatalogUnavailable, "load openapi spec"), errors.CtxPath, source)
	}
	if doc == nil {
		return nil, errors.AddContext(errors.New(errors.CodeCatalogUnavailable, "openapi spec resolved to nil document"), errors.CtxPath, source)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeCatalogUnavailable, "validate openapi spec"), errors.CtxPath, source)
	}

	m, err := ConvertOpenAPI(doc)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, source)
	}
	return m, nil
}

func isHTTPSource(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func loadSpecFromURL(loader *openapi3.Loader, source string) (*openapi3.T, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(source)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSpecSizeBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxSpecSizeBytes {
		return nil, fmt.Errorf("spec exceeds %d bytes", maxSpecSizeBytes)
	}
	return loader.LoadFromData(data)
}

// ConvertOpenAPI maps a loaded document onto the manifest model.
func ConvertOpenAPI(doc *openapi3.T) (*Manifest, error) {
	if doc == nil {
		return nil, errors.New(errors.CodeCatalogUnavailable, "openapi spec is nil")
	}
	if doc.Paths == nil || len(doc.Paths.Map()) == 0 {
		return nil, errors.New(errors.CodeCatalogUnavailable, "openapi spec has no paths")
	}

	api := "openapi"
	if doc.Info != nil && strings.TrimSpace(doc.Info.Title) != "" {
		api = strings.TrimSpace(doc.Info.Title)
	}
	m := &Manifest{
		Version: ManifestVersion,
		API:     api,
		Classes: make(map[string]ClassEntry),
	}

	tagPurpose := make(map[string]string, len(doc.Tags))
	for _, tag := range doc.Tags {
		if tag != nil {
			tagPurpose[tag.Name] = strings.TrimSpace(tag.Description)
		}
	}

	pathMap := doc.Paths.Map()
	for _, p := range util.SortedStringKeys(pathMap) {
		item := pathMap[p]
		if item == nil {
			continue
		}
		ops := item.Operations()
		for _, verb := range util.SortedStringKeys(ops) {
			op := ops[verb]
			if op == nil {
				continue
			}
			group := firstSegment(p)
			if len(op.Tags) > 0 && strings.TrimSpace(op.Tags[0]) != "" {
				group = strings.TrimSpace(op.Tags[0])
			}
			className := CamelCase(group)
			if className == "" {
				className = "Root"
			}

			entry, ok := m.Classes[className]
			if !ok {
				entry = ClassEntry{
					FullPath:      fmt.Sprintf("openapi.%s.%s", snakeCase(group), className),
					Purpose:       tagPurpose[group],
					Methods:       make(map[string]string),
					MethodDetails: make(map[string]MethodDetail),
				}
			}

			name := operationName(verb, p, op)
			if _, dup := entry.Methods[name]; dup {
				return nil, errors.New(errors.CodeCatalogUnavailable, fmt.Sprintf("duplicate operation %s.%s (%s %s)", className, name, strings.ToUpper(verb), p))
			}
			params := operationParams(item.Parameters, op)
			entry.Methods[name] = fmt.Sprintf("%s.%s(%s)", className, name, strings.Join(params, ", "))
			entry.MethodDetails[name] = MethodDetail{
				Parameters: params,
				ReturnType: responseType(op),
				Purpose:    operationPurpose(op),
			}
			m.Classes[className] = entry
		}
	}

	if len(m.Classes) == 0 {
		return nil, errors.New(errors.CodeCatalogUnavailable, "openapi spec produced zero operations")
	}
	return m, nil
}

func firstSegment(p string) string {
	for _, seg := range strings.Split(p, "/") {
		if seg != "" && !strings.HasPrefix(seg, "{") {
			return seg
		}
	}
	return "root"
}

// operationName is the snake_case operationId, or verb plus the literal path
// segments when the id is missing.
func operationName(verb, p string, op *openapi3.Operation) string {
	if id := strings.TrimSpace(op.OperationID); id != "" {
		return snakeCase(id)
	}
	parts := []string{strings.ToLower(verb)}
	for _, seg := range strings.Split(p, "/") {
		switch {
		case seg == "":
		case strings.HasPrefix(seg, "{"):
			parts = append(parts, "by", snakeCase(strings.Trim(seg, "{}")))
		default:
			parts = append(parts, snakeCase(seg))
		}
	}
	return strings.Join(parts, "_")
}

func operationParams(shared openapi3.Parameters, op *openapi3.Operation) []string {
	var params []string
	seen := make(map[string]bool)
	add := func(refs openapi3.Parameters) {
		for _, ref := range refs {
			if ref == nil || ref.Value == nil {
				continue
			}
			name := snakeCase(ref.Value.Name)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			params = append(params, name)
		}
	}
	add(shared)
	add(op.Parameters)
	if op.RequestBody != nil && !seen["body"] {
		params = append(params, "body")
	}
	return params
}

func operationPurpose(op *openapi3.Operation) string {
	if s := strings.TrimSpace(op.Summary); s != "" {
		return s
	}
	desc := strings.TrimSpace(op.Description)
	if i := strings.IndexAny(desc, ".\n"); i > 0 {
		return desc[:i]
	}
	return desc
}

// responseType names the schema referenced by the first successful JSON
// response, e.g. "#/components/schemas/Pet" -> "Pet".
func responseType(op *openapi3.Operation) string {
	if op.Responses == nil {
		return ""
	}
	responses := op.Responses.Map()
	codes := make([]string, 0, len(responses))
	for code := range responses {
		if strings.HasPrefix(code, "2") {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	for _, code := range codes {
		ref := responses[code]
		if ref == nil || ref.Value == nil {
			continue
		}
		media := ref.Value.Content.Get("application/json")
		if media == nil || media.Schema == nil || media.Schema.Ref == "" {
			continue
		}
		return path.Base(media.Schema.Ref)
	}
	return ""
}

func snakeCase(s string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range strings.TrimSpace(s) {
		switch {
		case unicode.IsUpper(r):
			if prevLower {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevLower = true
		default:
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
				b.WriteByte('_')
			}
			prevLower = false
		}
	}
	return strings.Trim(b.String(), "_")
}
