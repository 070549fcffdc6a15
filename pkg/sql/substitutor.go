package sql

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/fmpdb/pkg/apperrors"
	"github.com/ekaya-inc/fmpdb/pkg/logging"
)

// Substitutor binds parameters into generated SQL. It adds optional
// libinjection screening and logging on top of BindValues.
type Substitutor struct {
	rejectSuspicious bool
	logger           *zap.Logger
}

// NewSubstitutor creates a Substitutor. When rejectSuspicious is set, string
// values that libinjection flags are refused instead of quoted.
func NewSubstitutor(rejectSuspicious bool, logger *zap.Logger) *Substitutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Substitutor{
		rejectSuspicious: rejectSuspicious,
		logger:           logger.Named("substitutor"),
	}
}

// BindValue substitutes a single named parameter.
func (s *Substitutor) BindValue(sqlText, name string, value any) (string, error) {
	if err := s.screen(map[string]any{name: value}); err != nil {
		return "", err
	}
	return BindValue(sqlText, name, value), nil
}

// BindValues substitutes all parameters and returns a self-contained statement.
func (s *Substitutor) BindValues(sqlText string, params map[string]any) (string, error) {
	if err := s.screen(params); err != nil {
		return "", err
	}

	if quoted := FindParametersInStringLiterals(sqlText); len(quoted) > 0 {
		s.logger.Warn("Parameters inside string literals are not substituted",
			zap.Strings("params", quoted),
			zap.String("sql", logging.SanitizeStatement(sqlText)))
	}

	out, err := BindValues(sqlText, params)
	if err != nil {
		s.logger.Debug("Parameter binding failed",
			zap.String("sql", logging.SanitizeStatement(sqlText)),
			zap.Error(err))
		return "", err
	}
	return out, nil
}

func (s *Substitutor) screen(params map[string]any) error {
	if !s.rejectSuspicious || len(params) == 0 {
		return nil
	}

	results := CheckAllParameters(params)
	if len(results) == 0 {
		return nil
	}

	names := make([]string, 0, len(results))
	for _, r := range results {
		s.logger.Warn("Rejected suspicious parameter value",
			zap.String("param", r.ParamName),
			zap.String("fingerprint", r.Fingerprint))
		names = append(names, strings.TrimPrefix(r.ParamName, ":"))
	}
	sort.Strings(names)
	return fmt.Errorf("%w: %s", apperrors.ErrSuspiciousValue, strings.Join(names, ", "))
}
