package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/fmpdb/pkg/apperrors"
)

func TestSubstitutor_BindValues(t *testing.T) {
	s := NewSubstitutor(false, zaptest.NewLogger(t))

	out, err := s.BindValues(`WHERE "Name" = :name`, map[string]any{"name": "' OR '1'='1"})
	require.NoError(t, err)
	assert.Equal(t, `WHERE "Name" = ''' OR ''1''=''1'`, out)
}

func TestSubstitutor_RejectSuspicious(t *testing.T) {
	s := NewSubstitutor(true, zaptest.NewLogger(t))

	_, err := s.BindValues(`WHERE "Name" = :name`, map[string]any{"name": "'; DROP TABLE users--"})
	require.ErrorIs(t, err, apperrors.ErrSuspiciousValue)
	assert.Contains(t, err.Error(), "name")

	_, err = s.BindValue(`WHERE "Name" = :name`, "name", "' OR '1'='1")
	require.ErrorIs(t, err, apperrors.ErrSuspiciousValue)

	out, err := s.BindValues(`WHERE "Name" = :name`, map[string]any{"name": "Jane"})
	require.NoError(t, err)
	assert.Equal(t, `WHERE "Name" = 'Jane'`, out)
}

func TestSubstitutor_Unbound(t *testing.T) {
	s := NewSubstitutor(false, nil)

	_, err := s.BindValues(`WHERE a = :a`, nil)
	require.ErrorIs(t, err, apperrors.ErrUnboundParameter)
}
