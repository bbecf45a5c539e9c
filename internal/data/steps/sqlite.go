package steps

import (
	"apimatch/internal/core/errors"
	"apimatch/internal/core/ports"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

const stepsQuery = `
SELECT step_number, action_short, COALESCE(details, ''), COALESCE(action_type, ''),
       COALESCE(target_object, ''), COALESCE(parameters, ''), COALESCE(purpose_notes, '')
FROM design_steps
WHERE template_id = ?
ORDER BY step_number
`

// LoadSQLite reads the steps of one template from a design database.
func LoadSQLite(ctx context.Context, dbPath string, templateID int) ([]ports.DesignStep, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, errors.AddContext(
			errors.Wrap(err, errors.CodeNotFound, "open design database"),
			errors.CtxPath, dbPath,
		)
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)", dbPath))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "open design database")
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, stepsQuery, templateID)
	if err != nil {
		return nil, errors.AddContext(
			errors.Wrap(err, errors.CodeValidationError, "query design steps"),
			errors.CtxPath, dbPath,
		)
	}
	defer rows.Close()

	var out []ports.DesignStep
	for rows.Next() {
		var number int
		var short, details, actionType, target, params, purpose string
		if err := rows.Scan(&number, &short, &details, &actionType, &target, &params, &purpose); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "scan design step")
		}
		out = append(out, stepFromRow(number, short, details, actionType, target, params, purpose))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "iterate design steps")
	}
	if len(out) == 0 {
		return nil, errors.AddContext(
			errors.New(errors.CodeNotFound, fmt.Sprintf("no design steps for template %d", templateID)),
			errors.CtxPath, dbPath,
		)
	}
	return Normalize(out)
}

func stepFromRow(number int, short, details, actionType, target, params, purpose string) ports.DesignStep {
	step := ports.DesignStep{
		StepNumber:      number,
		Title:           strings.TrimSpace(short),
		Description:     strings.TrimSpace(details),
		ExpectedOutcome: strings.TrimSpace(purpose),
	}
	if step.Title == "" {
		step.Title = fmt.Sprintf("Step %d", number)
	}
	if step.Description == "" {
		step.Description = step.Title
	}
	if step.ExpectedOutcome == "" {
		step.ExpectedOutcome = fmt.Sprintf("Complete step %d", number)
	}
	for _, k := range []string{actionType, target} {
		if k = strings.TrimSpace(k); k != "" {
			step.Keywords = append(step.Keywords, k)
		}
	}
	step.Keywords = append(step.Keywords, parameterKeywords(params)...)
	return step
}

// parameterKeywords returns the string values of a JSON parameter object in
// key order. Anything that is not a JSON object contributes nothing.
func parameterKeywords(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []string
	for _, k := range keys {
		if s, ok := params[k].(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// DBSource adapts LoadSQLite to ports.StepSource.
type DBSource struct {
	Path       string
	TemplateID int
}

func (d DBSource) Load(ctx context.Context) ([]ports.DesignStep, error) {
	return LoadSQLite(ctx, d.Path, d.TemplateID)
}
