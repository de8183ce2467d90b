package expression

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/dupelink/dupelink/pkg/fileindex"
	"github.com/dupelink/dupelink/pkg/logger"
)

func CheckRecordSingleMatch(ctx context.Context, rec fileindex.Record, expressions []CompiledExpression) (bool, error) {
	match, _, err := CheckRecordSingleMatchWithReason(ctx, rec, expressions)
	return match, err
}

func CheckRecordSingleMatchWithReason(ctx context.Context, rec fileindex.Record, expressions []CompiledExpression) (bool, string, error) {
	env := newEvalContext(ctx, rec)

	for _, expression := range expressions {
		result, err := expr.Run(expression.Program, env)
		if err != nil {
			return false, "", fmt.Errorf("check expression: %w", err)
		}

		expResult, ok := result.(bool)
		if !ok {
			return false, "", fmt.Errorf("type assert expression result: %T", result)
		}

		if expResult {
			return true, expression.Text, nil
		}
	}

	return false, "", nil
}

// Excluder returns a fileindex exclusion predicate matching any of expressions.
// Records whose evaluation fails are kept.
func Excluder(ctx context.Context, expressions []CompiledExpression) func(fileindex.Record) bool {
	if len(expressions) == 0 {
		return nil
	}

	log := logger.GetLogger("expression")

	return func(rec fileindex.Record) bool {
		match, reason, err := CheckRecordSingleMatchWithReason(ctx, rec, expressions)
		if err != nil {
			log.WithError(err).Warnf("Failed evaluating ignore expressions for %q", rec.Path)
			return false
		}

		if match {
			log.Tracef("Ignoring %q, matched: %s", rec.Path, reason)
		}
		return match
	}
}
