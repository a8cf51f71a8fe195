package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"openbq/internal/config"
	"openbq/internal/services"
	"openbq/internal/workunit"
)

const stderrTail = 2048

// Command scores units by running an external engine binary. The unit is
// written to stdin as JSON. The binary answers on stdout with either one
// result object or {"results": [...]}; each result carries "file", an
// optional "log" list and engine-defined attributes.
type Command struct {
	Binary string
	Args   []string
}

// NewCommand builds a scorer for the configured engine.
func NewCommand(cfg *config.Config, engine workunit.Engine) (*Command, error) {
	cmd, ok := cfg.Engine(string(engine))
	if !ok {
		return nil, fmt.Errorf("no command configured for engine %s", engine)
	}
	return &Command{Binary: cmd.Command, Args: append([]string(nil), cmd.Args...)}, nil
}

// Score implements Scorer.
func (c *Command) Score(ctx context.Context, unit workunit.WorkUnit) ([]workunit.ResultRecord, error) {
	binary := strings.TrimSpace(c.Binary)
	if binary == "" {
		return nil, errors.New("engine command not set")
	}
	payload, err := json.Marshal(unit)
	if err != nil {
		return nil, fmt.Errorf("encode unit: %w", err)
	}

	cmd := exec.CommandContext(ctx, binary, c.Args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "", binary, tail(stderr.String()), err)
	}
	return DecodeResponse(stdout.Bytes())
}

// DecodeResponse parses an engine response body into records.
func DecodeResponse(data []byte) ([]workunit.ResultRecord, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty engine response")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("decode engine response: %w", err)
	}
	if msg, ok := body["error"].(string); ok && msg != "" {
		return nil, errors.New(msg)
	}

	raw, batch := body["results"]
	if !batch {
		rec, err := toRecord(body)
		if err != nil {
			return nil, err
		}
		return []workunit.ResultRecord{rec}, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, errors.New("engine response: results is not a list")
	}
	records := make([]workunit.ResultRecord, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("engine response: result %d is not an object", i)
		}
		rec, err := toRecord(obj)
		if err != nil {
			return nil, fmt.Errorf("engine response: result %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func toRecord(obj map[string]any) (workunit.ResultRecord, error) {
	path, _ := obj[workunit.PathColumn].(string)
	if strings.TrimSpace(path) == "" {
		return workunit.ResultRecord{}, errors.New("result has no file path")
	}
	rec := workunit.ResultRecord{Path: path, Attributes: make(map[string]any, len(obj))}
	for k, v := range obj {
		switch k {
		case workunit.PathColumn:
		case "log":
			rec.Log = toLog(v)
		default:
			rec.Attributes[k] = v
		}
	}
	return rec, nil
}

func toLog(v any) []map[string]any {
	switch val := v.(type) {
	case []any:
		out := make([]map[string]any, 0, len(val))
		for _, item := range val {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			} else {
				out = append(out, map[string]any{"message": item})
			}
		}
		return out
	case map[string]any:
		return []map[string]any{val}
	case nil:
		return nil
	default:
		return []map[string]any{{"message": val}}
	}
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTail {
		s = "..." + s[len(s)-stderrTail:]
	}
	return s
}
