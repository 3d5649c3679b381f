package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newValidator(t *testing.T, action Action) (*RecordValidator, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.WarnLevel)
	v, err := NewRecordValidator(DefaultLimits, action, zap.New(core))
	require.NoError(t, err)
	return v, logs
}

func TestValidateAcceptsWellFormedRecord(t *testing.T) {
	v, _ := newValidator(t, ActionError)

	res, err := v.Validate([]byte(`{"learner_id":1,"class_id":10,"scores":[{"type":"exam","score":80},{"type":"project","score":5}]}`))
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Empty(t, res.Violations)
}

func TestValidateAcceptsLegacyStudentID(t *testing.T) {
	v, _ := newValidator(t, ActionError)

	res, err := v.Validate([]byte(`{"student_id":3,"class_id":10,"scores":[]}`))
	require.NoError(t, err)
	assert.True(t, res.Accepted)
}

func TestValidateRejectsStructuralProblemsRegardlessOfAction(t *testing.T) {
	for _, action := range []Action{ActionWarn, ActionError} {
		v, _ := newValidator(t, action)

		for _, doc := range []string{
			`{"class_id":10,"scores":[]}`,
			`{"learner_id":1,"scores":[]}`,
			`{"learner_id":1,"class_id":10}`,
			`{"learner_id":"2","class_id":"33390","scores":[]}`,
			`{"learner_id":1,"class_id":10,"scores":[{"type":"exam"}]}`,
		} {
			res, err := v.Validate([]byte(doc))
			require.NoError(t, err)
			assert.False(t, res.Accepted, "%s with %s", doc, action)
			assert.NotEmpty(t, res.Violations)
		}
	}
}

func TestValidateRangePolicy(t *testing.T) {
	doc := []byte(`{"learner_id":-1,"class_id":301,"scores":[]}`)

	strict, _ := newValidator(t, ActionError)
	res, err := strict.Validate(doc)
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.True(t, containsAny(res.Violations, "class_id"))

	lenient, logs := newValidator(t, ActionWarn)
	res, err = lenient.Validate(doc)
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.NotEmpty(t, res.Violations)
	assert.Equal(t, 1, logs.Len())
}

func TestValidateInvalidJSON(t *testing.T) {
	v, _ := newValidator(t, ActionError)
	_, err := v.Validate([]byte(`{"learner_id":`))
	assert.Error(t, err)
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction("WARN")
	require.NoError(t, err)
	assert.Equal(t, ActionWarn, a)

	a, err = ParseAction("")
	require.NoError(t, err)
	assert.Equal(t, ActionError, a)

	_, err = ParseAction("ignore")
	assert.Error(t, err)

	_, err = NewRecordValidator(Limits{ClassIDMin: 5, ClassIDMax: 1}, ActionError, nil)
	assert.Error(t, err)
}

func containsAny(values []string, needle string) bool {
	for _, v := range values {
		if strings.Contains(v, needle) {
			return true
		}
	}
	return false
}

func TestValidateClassID(t *testing.T) {
	v, _ := newValidator(t, ActionError)
	assert.True(t, v.ValidateClassID(300).Accepted)
	assert.False(t, v.ValidateClassID(301).Accepted)

	lenient, _ := newValidator(t, ActionWarn)
	res := lenient.ValidateClassID(-4)
	assert.True(t, res.Accepted)
	assert.NotEmpty(t, res.Violations)
}
