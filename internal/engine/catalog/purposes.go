package catalog

import (
	"apimatch/internal/core/errors"
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"
)

const purposesQuery = `
SELECT m.class_name, m.method_name, COALESCE(m.return_annotation, ''), COALESCE(p.purpose, '')
FROM api_methods m
LEFT JOIN method_purposes p ON p.method_id = m.id
ORDER BY m.id, p.id
`

// ImportPurposes merges natural-language purposes and return annotations from
// a method purposes database into m. Existing manifest values are only
// replaced by non-empty database values. It returns the number of methods
// updated.
func ImportPurposes(dbPath string, m *Manifest) (int, error) {
	if m == nil {
		return 0, errors.New(errors.CodeCatalogUnavailable, "no manifest to merge purposes into")
	}
	if _, err := os.Stat(dbPath); err != nil {
		return 0, errors.AddContext(
			errors.Wrap(err, errors.CodeCatalogUnavailable, "open purposes database"),
			errors.CtxPath, dbPath,
		)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeCatalogUnavailable, "open purposes database")
	}
	defer db.Close()

	rows, err := db.Query(purposesQuery)
	if err != nil {
		return 0, errors.AddContext(
			errors.Wrap(err, errors.CodeCatalogUnavailable, "query method purposes"),
			errors.CtxPath, dbPath,
		)
	}
	defer rows.Close()

	updated := make(map[string]bool)
	for rows.Next() {
		var className, methodName, returnType, purpose string
		if err := rows.Scan(&className, &methodName, &returnType, &purpose); err != nil {
			return 0, errors.Wrap(err, errors.CodeCatalogUnavailable, "scan method purpose")
		}
		entry, ok := m.Classes[className]
		if !ok {
			continue
		}
		if _, declared := entry.Methods[methodName]; !declared {
			continue
		}
		if entry.MethodDetails == nil {
			entry.MethodDetails = make(map[string]MethodDetail)
		}
		detail := entry.MethodDetails[methodName]
		changed := false
		if p := strings.TrimSpace(purpose); p != "" && p != detail.Purpose {
			detail.Purpose = p
			changed = true
		}
		if rt := strings.TrimSpace(returnType); rt != "" && detail.ReturnType == "" {
			detail.ReturnType = rt
			changed = true
		}
		if changed {
			entry.MethodDetails[methodName] = detail
			m.Classes[className] = entry
			updated[className+"."+methodName] = true
		}
	}
	if err := rows.Err(); err != nil {
		return 0, errors.Wrap(err, errors.CodeCatalogUnavailable, "iterate method purposes")
	}
	return len(updated), nil
}
