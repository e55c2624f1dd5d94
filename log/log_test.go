package log

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestGetLogger_Default(t *testing.T) {
	l := GetLogger()
	require.NotNil(t, l)

	e, err := ToLogrusEntry(l)
	require.NoError(t, err)
	require.Equal(t, logrus.StandardLogger(), e.Logger)
}

func TestGetLogger_FromContext(t *testing.T) {
	base := GetLogger().WithFields(Fields{"component": "test"})
	ctx := SetLogger(context.Background(), base)

	got := GetLogger(WithContext(ctx))
	require.Equal(t, base, got)
}

func TestGetLogger_ContextWithoutLogger(t *testing.T) {
	got := GetLogger(WithContext(context.Background()))
	require.NotNil(t, got)

	e, err := ToLogrusEntry(got)
	require.NoError(t, err)
	require.Equal(t, logrus.StandardLogger(), e.Logger)
}

func TestWithFields_Chaining(t *testing.T) {
	l := GetLogger().WithField("a", 1).WithFields(Fields{"b": 2})

	e, err := ToLogrusEntry(l)
	require.NoError(t, err)
	require.Equal(t, logrus.Fields{"a": 1, "b": 2}, e.Data)
}
