package commands

import (
	"fmt"
	"strconv"
	"strings"

	"financetracker/internal/core"
)

// parseObject resolves an object argument such as "transaction" or "t".
func parseObject(arg string) (core.Kind, error) {
	kind, ok := core.ParseKind(strings.ToLower(strings.TrimSpace(arg)))
	if !ok {
		return "", core.NewValidationError("", "object", "unknown object "+strconv.Quote(arg))
	}
	return kind, nil
}

// parseFields turns KEY=VALUE arguments into a field set. Later keys win.
func parseFields(args []string) (core.Fields, error) {
	fields := make(core.Fields, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, &core.FormatError{Input: arg, Reason: "expected KEY=VALUE"}
		}
		fields[key] = value
	}
	return fields, nil
}

// takeID removes the id field from fields and returns it as a number.
func takeID(kind core.Kind, fields core.Fields) (int64, error) {
	raw, ok := fields[core.FieldID]
	if !ok {
		return 0, core.NewValidationError(kind, core.FieldID, "is required")
	}
	delete(fields, core.FieldID)
	return parseID(kind, fmt.Sprint(raw))
}

func parseID(kind core.Kind, s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id < 1 {
		return 0, core.NewValidationError(kind, core.FieldID, "must be a positive integer")
	}
	return id, nil
}

// periodIDForCode looks up the period with a YYYYMM code. An empty code
// returns 0, which selects the latest period.
func periodIDForCode(code string, find func(core.Fields) (*core.Period, error)) (int64, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, nil
	}
	if _, err := core.ParsePeriodCode(code); err != nil {
		return 0, err
	}
	p, err := find(core.Fields{core.FieldCode: code})
	if err != nil {
		return 0, err
	}
	if p == nil {
		return 0, &core.NotFoundError{Kind: core.KindPeriod, Key: "code=" + code}
	}
	return p.ID, nil
}
