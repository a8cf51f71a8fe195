package artifacts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Entry is one diagnostic log entry. Entries are tagged with the file or
// folder they describe.
type Entry = map[string]any

// Entry keys written by the coordinator.
const (
	KeyFile      = "file"
	KeyFolder    = "folder"
	KeyInputs    = "inputs"
	KeyTaskError = "task error"
)

// Metadata heads a sealed log.
type Metadata struct {
	Version        string `json:"version"`
	Datetime       string `json:"datetime"`
	InputDirectory string `json:"input directory"`
	Engine         string `json:"engine"`
	Mode           string `json:"mode"`
	Fusion         int    `json:"fusion,omitempty"`
	Processed      int    `json:"processed"`
	Failed         int    `json:"failed"`
	Log            int    `json:"log"`
	ProcessTime    string `json:"process time"`
}

// SealedLog is the terminal shape of a log file.
type SealedLog struct {
	Metadata Metadata `json:"metadata"`
	Log      []Entry  `json:"log"`
}

// LogStore appends entries to an open JSON array on disk.
type LogStore struct {
	path string

	mu     sync.Mutex
	file   *os.File
	count  int
	sealed bool
}

// CreateLogStore opens a new log at path.
func CreateLogStore(path string) (*LogStore, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create log: %w", err)
	}
	if _, err := file.WriteString("["); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("open log array: %w", err)
	}
	return &LogStore{path: path, file: file}, nil
}

// Path returns the log location.
func (l *LogStore) Path() string {
	return l.path
}

// Count returns the number of appended entries.
func (l *LogStore) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Append writes one entry.
func (l *LogStore) Append(entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode log entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sealed {
		return errors.New("log already sealed")
	}
	sep := ",\n"
	if l.count == 0 {
		sep = "\n"
	}
	buf := make([]byte, 0, len(sep)+len(data))
	buf = append(buf, sep...)
	buf = append(buf, data...)
	if _, err := l.file.Write(buf); err != nil {
		return fmt.Errorf("append log entry: %w", err)
	}
	l.count++
	return nil
}

// Seal closes the open array, reloads the entries from disk and rewrites the
// file as {metadata, log}. build receives the reloaded entries and returns
// the metadata; its Log field is overwritten with the entry count. Seal runs
// once.
func (l *LogStore) Seal(build func(entries []Entry) Metadata) (*SealedLog, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sealed {
		return nil, errors.New("log already sealed")
	}
	l.sealed = true
	if _, err := l.file.WriteString("\n]\n"); err != nil {
		_ = l.file.Close()
		return nil, fmt.Errorf("close log array: %w", err)
	}
	if err := l.file.Close(); err != nil {
		return nil, fmt.Errorf("close log: %w", err)
	}

	raw, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("reload log: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode log: %w", err)
	}
	if entries == nil {
		entries = []Entry{}
	}

	sealed := &SealedLog{Log: entries}
	if build != nil {
		sealed.Metadata = build(entries)
	}
	sealed.Metadata.Log = len(entries)

	if err := writeJSONAtomic(l.path, sealed); err != nil {
		return nil, err
	}
	return sealed, nil
}

// ReadSealedLog parses a sealed log file.
func ReadSealedLog(path string) (*SealedLog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	var sealed SealedLog
	if err := json.Unmarshal(raw, &sealed); err != nil {
		return nil, fmt.Errorf("decode sealed log: %w", err)
	}
	return &sealed, nil
}

func writeJSONAtomic(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode sealed log: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".log-*.json")
	if err != nil {
		return fmt.Errorf("create sealed log: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write sealed log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close sealed log: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace log: %w", err)
	}
	return nil
}

// FailedInputs counts inputs that failed according to entries. An entry marks
// its tag as failed when it carries a task error or marker. Tags are the
// entry's file, or its folder when no file is set; a tag is counted once,
// weighted by the largest inputs value seen for it.
func FailedInputs(entries []Entry, marker string) int {
	weights := make(map[string]int)
	for _, entry := range entries {
		_, taskErr := entry[KeyTaskError]
		_, marked := entry[marker]
		if !taskErr && (marker == "" || !marked) {
			continue
		}
		tag, ok := entryTag(entry)
		if !ok {
			continue
		}
		weights[tag] = max(weights[tag], entryWeight(entry))
	}
	total := 0
	for _, w := range weights {
		total += w
	}
	return total
}

func entryTag(entry Entry) (string, bool) {
	if file, ok := entry[KeyFile].(string); ok && file != "" {
		return "file:" + file, true
	}
	if folder, ok := entry[KeyFolder].(string); ok && folder != "" {
		return "folder:" + folder, true
	}
	return "", false
}

func entryWeight(entry Entry) int {
	if file, ok := entry[KeyFile].(string); ok && file != "" {
		return 1
	}
	switch v := entry[KeyInputs].(type) {
	case float64:
		if v >= 1 {
			return int(v)
		}
	case int:
		if v >= 1 {
			return v
		}
	case json.Number:
		if n, err := v.Int64(); err == nil && n >= 1 {
			return int(n)
		}
	}
	return 1
}
