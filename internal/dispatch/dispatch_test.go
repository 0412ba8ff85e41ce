package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rororowyourboat/psuu/internal/paramspace"
	"github.com/rororowyourboat/psuu/internal/simresult"
)

func buildJitterSpace(t *testing.T) *paramspace.Space {
	t.Helper()
	a, err := paramspace.NewContinuous("a", 0, 1, "")
	require.NoError(t, err)
	b, err := paramspace.NewInteger("b", 1, 10, "")
	require.NoError(t, err)
	c, err := paramspace.NewCategorical("c", []any{"x", "y"}, "")
	require.NoError(t, err)
	sp, err := paramspace.NewSpace(a, b, c)
	require.NoError(t, err)
	return sp
}

func TestJitter_DeterministicAndBounded(t *testing.T) {
	sp := buildJitterSpace(t)
	vec := paramspace.Vector{"a": 0.5, "b": 5.0, "c": "x"}

	j1 := Jitter(sp, vec, 3)
	j2 := Jitter(sp, vec, 3)
	require.Equal(t, j1, j2, "jitter must be deterministic for a fixed attempt number")

	j3 := Jitter(sp, vec, 4)
	require.NotEqual(t, j1["a"], j3["a"], "different attempts should usually perturb differently")

	require.Equal(t, "x", j1["c"], "categorical values must not be perturbed")

	aVal := j1["a"].(float64)
	require.InDelta(t, 0.5, aVal, 0.5*0.011, "continuous jitter must stay within ~1%%")
}

func TestJitter_ClampsToBounds(t *testing.T) {
	sp := buildJitterSpace(t)
	vec := paramspace.Vector{"a": 1.0, "b": 10.0, "c": "x"}
	j := Jitter(sp, vec, 1)
	require.LessOrEqual(t, j["a"].(float64), 1.0)
	require.LessOrEqual(t, j["b"].(float64), 10.0)
}

func TestParseCSV_TypesNumericColumns(t *testing.T) {
	data := []byte("t,value,label\n0,1.5,ok\n1,2.5,ok\n2,3.5,bad\n")
	tbl, err := parseCSV(data)
	require.NoError(t, err)

	col, ok := tbl.Column("value")
	require.True(t, ok)
	require.Equal(t, []float64{1.5, 2.5, 3.5}, col)

	_, ok = tbl.Column("label")
	require.False(t, ok, "non-numeric column must not be exposed as numeric")
	raw, ok := tbl.RawColumn("label")
	require.True(t, ok)
	require.Equal(t, []string{"ok", "ok", "bad"}, raw)
}

func TestParseJSON_ArrayOfRows(t *testing.T) {
	data := []byte(`[{"t":0,"v":1.0},{"t":1,"v":2.0}]`)
	tbl, kpis, err := parseJSON(data)
	require.NoError(t, err)
	require.Nil(t, kpis)
	col, ok := tbl.Column("v")
	require.True(t, ok)
	require.Equal(t, []float64{1.0, 2.0}, col)
}

func TestParseJSON_ObjectWithTimeSeriesAndKPIs(t *testing.T) {
	data := []byte(`{"time_series":[{"v":1.0},{"v":2.0}],"kpis":{"score":9.5}}`)
	tbl, kpis, err := parseJSON(data)
	require.NoError(t, err)
	require.Equal(t, 9.5, kpis["score"])
	col, ok := tbl.Column("v")
	require.True(t, ok)
	require.Equal(t, []float64{1.0, 2.0}, col)
}

func TestSubprocess_CSVStdoutSuccess(t *testing.T) {
	sp := buildJitterSpace(t)
	cfg := SubprocessConfig{
		Command:      []string{"/bin/sh", "-c", "printf 't,value\\n0,1\\n1,2\\n'"},
		ParamFormat:  "",
		OutputFormat: CSVOutput,
	}
	d := NewSubprocess(cfg, sp)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err := d.Run(ctx, paramspace.Vector{"a": 0.1, "b": 2.0, "c": "x"}, 1)
	require.NoError(t, err)
	col, ok := res.TimeSeries.Column("value")
	require.True(t, ok)
	require.Equal(t, []float64{1, 2}, col)
}

func TestSubprocess_TimeoutKillsProcessGroup(t *testing.T) {
	sp := buildJitterSpace(t)
	cfg := SubprocessConfig{
		Command:      []string{"/bin/sh", "-c", "sleep 5"},
		OutputFormat: CSVOutput,
	}
	d := NewSubprocess(cfg, sp)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := d.Run(ctx, paramspace.Vector{"a": 0.1, "b": 2.0, "c": "x"}, 1)
	elapsed := time.Since(start)

	require.Error(t, err)
	var derr *Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, Timeout, derr.Kind)
	require.Less(t, elapsed, 2*time.Second, "timeout must terminate the process promptly")
}

func TestSubprocess_NonZeroExit(t *testing.T) {
	sp := buildJitterSpace(t)
	cfg := SubprocessConfig{
		Command:      []string{"/bin/sh", "-c", "echo boom 1>&2; exit 3"},
		OutputFormat: CSVOutput,
	}
	d := NewSubprocess(cfg, sp)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := d.Run(ctx, paramspace.Vector{"a": 0.1, "b": 2.0, "c": "x"}, 1)
	require.Error(t, err)
	var derr *Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, ExitNonzero, derr.Kind)
}

type fakeModel struct {
	table     *simresult.Table
	fail      bool
	validates bool
}

func (m *fakeModel) Run(ctx context.Context, params paramspace.Vector) (any, error) {
	if m.fail {
		return nil, assertError("model blew up")
	}
	return m.table, nil
}

func (m *fakeModel) ParameterSpace() *paramspace.Space { return nil }

func (m *fakeModel) ValidateParameters(params paramspace.Vector) error {
	if !m.validates {
		return assertError("invalid params")
	}
	return nil
}

func (m *fakeModel) Metadata() map[string]any { return map[string]any{"model": "fake"} }

type assertError string

func (e assertError) Error() string { return string(e) }

func TestInProcess_WrapsRawTable(t *testing.T) {
	tbl := simresult.NewTable(nil)
	require.NoError(t, tbl.SetColumn("v", []float64{1, 2, 3}))
	model := &fakeModel{table: tbl, validates: true}
	d := NewInProcess(model)

	res, err := d.Run(context.Background(), paramspace.Vector{"a": 1.0}, 1)
	require.NoError(t, err)
	require.Equal(t, tbl, res.TimeSeries)
	require.Equal(t, "fake", res.Metadata["model"])
}

func TestInProcess_ValidationFailure(t *testing.T) {
	model := &fakeModel{validates: false}
	d := NewInProcess(model)

	_, err := d.Run(context.Background(), paramspace.Vector{"a": 1.0}, 1)
	require.Error(t, err)
	var derr *Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, ValidationFailed, derr.Kind)
}
