package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/ekaya-inc/fmpdb/pkg/models"
)

// InjectionCheckResult describes a parameter value that looks like an
// injection attempt.
type InjectionCheckResult struct {
	ParamName   string
	ParamValue  any
	Fingerprint string // libinjection fingerprint of the detected pattern
}

// CheckParameterForInjection screens a single bound value with libinjection.
// Only strings are screened. Expressions are trusted caller SQL, but their
// own parameters are screened.
//
// Example:
//
//	result := CheckParameterForInjection("search", "'; DROP TABLE users--")
//	// result.Fingerprint == "s&1c" (or similar)
func CheckParameterForInjection(paramName string, value any) *InjectionCheckResult {
	switch v := value.(type) {
	case string:
		if isSQLi, fingerprint := libinjection.IsSQLi(v); isSQLi {
			return &InjectionCheckResult{
				ParamName:   paramName,
				ParamValue:  value,
				Fingerprint: string(fingerprint),
			}
		}
	case []string:
		for _, s := range v {
			if result := CheckParameterForInjection(paramName, s); result != nil {
				return result
			}
		}
	case models.Expression:
		for name, sub := range v.Params {
			if result := CheckParameterForInjection(name, sub); result != nil {
				return result
			}
		}
	}
	return nil
}

// CheckAllParameters screens every value in params and returns one result per
// suspicious parameter.
func CheckAllParameters(params map[string]any) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	for name, value := range params {
		if result := CheckParameterForInjection(name, value); result != nil {
			results = append(results, result)
		}
	}
	return results
}
