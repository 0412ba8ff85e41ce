package dispatch

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/rororowyourboat/psuu/internal/paramspace"
	"github.com/rororowyourboat/psuu/internal/simresult"
)

// OutputFormat is the expected shape of a subprocess simulation's result.
type OutputFormat string

const (
	CSVOutput  OutputFormat = "csv"
	JSONOutput OutputFormat = "json"
)

// SubprocessConfig configures the subprocess Dispatcher backend (spec
// §4.3/§6).
type SubprocessConfig struct {
	// Command is the argv: Command[0] is the executable (or, when Shell is
	// true, a shell-interpreted command string run via "sh -c").
	Command []string
	Shell   bool

	// ParamFormat is a per-parameter template with {name}/{value}
	// placeholders, expanded once per parameter and concatenated with
	// spaces (or appended as separate argv entries in non-shell mode).
	ParamFormat string

	OutputFormat OutputFormat
	OutputFile   string // optional; empty means read stdout
	WorkingDir   string
	Env          map[string]string
}

// Subprocess is the Dispatcher backend that invokes an external simulation
// binary per spec §4.3.
type Subprocess struct {
	Config SubprocessConfig
	Space  *paramspace.Space
}

// NewSubprocess builds a subprocess Dispatcher backend.
func NewSubprocess(cfg SubprocessConfig, space *paramspace.Space) *Subprocess {
	return &Subprocess{Config: cfg, Space: space}
}

// Run materializes the command, spawns the child process in its own
// process group (so a deadline/cancel can terminate the whole group),
// waits subject to ctx, and parses the result.
func (d *Subprocess) Run(ctx context.Context, vec paramspace.Vector, attempt int) (*simresult.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyContextErr(ctx)
	}
	if errs := d.Space.Validate(vec); len(errs) > 0 {
		return nil, NewError(ValidationFailed, "parameters outside space", errs[0])
	}

	fragments := formatParamFragments(d.Config.ParamFormat, d.Space, vec)

	cmd, err := d.buildCmd(ctx, fragments)
	if err != nil {
		return nil, NewError(SpawnFailed, "failed to build command", err)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, NewError(SpawnFailed, "failed to start subprocess", err)
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		<-waitCh
		return nil, classifyContextErr(ctx)
	case err := <-waitCh:
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return nil, NewError(ExitNonzero, stderr.String(), err)
			}
			return nil, NewError(SpawnFailed, "subprocess wait failed", err)
		}
	}

	data, err := d.readOutput(stdout.Bytes())
	if err != nil {
		return nil, NewError(ParseFailed, "failed to read output", err)
	}

	tbl, kpis, err := parseOutput(d.Config.OutputFormat, data)
	if err != nil {
		return nil, NewError(ParseFailed, "failed to parse output", err)
	}

	return simresult.New(tbl, kpis, map[string]any{"attempt": attempt}, vec), nil
}

func (d *Subprocess) buildCmd(ctx context.Context, fragments []string) (*exec.Cmd, error) {
	if len(d.Config.Command) == 0 {
		return nil, fmt.Errorf("dispatch: subprocess command must not be empty")
	}

	var cmd *exec.Cmd
	if d.Config.Shell {
		full := d.Config.Command[0] + " " + strings.Join(fragments, " ")
		cmd = exec.CommandContext(ctx, "sh", "-c", full)
	} else {
		args := make([]string, 0, len(d.Config.Command)-1+len(fragments))
		args = append(args, d.Config.Command[1:]...)
		args = append(args, fragments...)
		cmd = exec.CommandContext(ctx, d.Config.Command[0], args...)
	}

	if d.Config.WorkingDir != "" {
		cmd.Dir = d.Config.WorkingDir
	}
	if len(d.Config.Env) > 0 {
		env := os.Environ()
		for k, v := range d.Config.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}
	return cmd, nil
}

func (d *Subprocess) readOutput(stdout []byte) ([]byte, error) {
	if d.Config.OutputFile == "" {
		return stdout, nil
	}
	path := d.Config.OutputFile
	if d.Config.WorkingDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(d.Config.WorkingDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)
	return data, nil
}

// formatParamFragments expands ParamFormat once per parameter in canonical
// space order, substituting {name} and {value} literally.
func formatParamFragments(tmpl string, space *paramspace.Space, vec paramspace.Vector) []string {
	names := space.Names()
	frags := make([]string, 0, len(names))
	for _, name := range names {
		spec, _ := space.Spec(name)
		frag := strings.ReplaceAll(tmpl, "{name}", name)
		frag = strings.ReplaceAll(frag, "{value}", formatValue(spec, vec[name]))
		frags = append(frags, frag)
	}
	return frags
}

// formatValue serializes a parameter value per spec §6: floats use the
// shortest round-tripping representation, integers decimal, booleans
// lower-case, categoricals as their string form.
func formatValue(spec paramspace.Spec, val any) string {
	switch spec.Kind {
	case paramspace.Integer:
		if f, ok := toFloat(val); ok {
			return strconv.FormatInt(int64(f), 10)
		}
	case paramspace.Continuous:
		if f, ok := toFloat(val); ok {
			return strconv.FormatFloat(f, 'g', -1, 64)
		}
	case paramspace.Categorical:
		switch v := val.(type) {
		case bool:
			if v {
				return "true"
			}
			return "false"
		case float64:
			return strconv.FormatFloat(v, 'g', -1, 64)
		case string:
			return v
		}
	}
	return fmt.Sprint(val)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func parseOutput(format OutputFormat, data []byte) (*simresult.Table, map[string]float64, error) {
	switch format {
	case CSVOutput:
		tbl, err := parseCSV(data)
		return tbl, nil, err
	case JSONOutput:
		return parseJSON(data)
	default:
		return nil, nil, fmt.Errorf("dispatch: unknown output format %q", format)
	}
}

func parseCSV(data []byte) (*simresult.Table, error) {
	r := csv.NewReader(bytes.NewReader(data))
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("csv output has no header row")
	}
	header := rows[0]
	body := rows[1:]

	tbl := simresult.NewTable(nil)
	for col, name := range header {
		numeric := make([]float64, len(body))
		raw := make([]string, len(body))
		allNumeric := true
		for i, row := range body {
			cell := ""
			if col < len(row) {
				cell = row[col]
			}
			raw[i] = cell
			f, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				allNumeric = false
				continue
			}
			numeric[i] = f
		}
		if allNumeric {
			if err := tbl.SetColumn(name, numeric); err != nil {
				return nil, err
			}
		} else {
			if err := tbl.SetRawColumn(name, raw); err != nil {
				return nil, err
			}
		}
	}
	return tbl, nil
}

func parseJSON(data []byte) (*simresult.Table, map[string]float64, error) {
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err == nil {
		return tableFromRows(rows), nil, nil
	}

	var obj struct {
		TimeSeries []map[string]any   `json:"time_series"`
		KPIs       map[string]float64 `json:"kpis"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, nil, err
	}
	return tableFromRows(obj.TimeSeries), obj.KPIs, nil
}

func tableFromRows(rows []map[string]any) *simresult.Table {
	seen := map[string]bool{}
	var columns []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	sort.Strings(columns)

	tbl := simresult.NewTable(nil)
	for _, col := range columns {
		numeric := make([]float64, len(rows))
		raw := make([]string, len(rows))
		allNumeric := true
		for i, row := range rows {
			v, ok := row[col]
			if !ok {
				allNumeric = false
				continue
			}
			if f, ok := v.(float64); ok {
				numeric[i] = f
			} else {
				allNumeric = false
				raw[i] = fmt.Sprint(v)
			}
		}
		if allNumeric {
			_ = tbl.SetColumn(col, numeric)
		} else {
			_ = tbl.SetRawColumn(col, raw)
		}
	}
	return tbl
}
