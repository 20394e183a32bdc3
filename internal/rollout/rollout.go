// Package rollout implements the session rollout persistence from spec §6:
// a line-oriented, append-only JSON stream, one record per committed step,
// plus a Replay routine that reads the records back in order. The records do
// not hold the next state, and Replay does not rebuild State itself.
//
// Adapted from the teacher's internal/agent/tape/tape.go (Tape/Turn/
// Marshal/Unmarshal), reshaped from one whole-tape JSON blob into the
// line-oriented stream spec §6 specifies.
package rollout

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/shellmind/agentcore/internal/core"
)

// Record is one committed step: the input and its kind, the decision kind and
// the resulting step counter.
type Record struct {
	SequenceNo int       `json:"sequence_no"`
	Time       time.Time `json:"time"`
	InputKind  string    `json:"input_kind"`
	Input      any       `json:"input"`
	DecisionKind string  `json:"decision_kind"`
	StepCounter uint64   `json:"step_counter"`
}

// Writer appends Records to an underlying io.Writer as one JSON object per
// line.
type Writer struct {
	w   io.Writer
	seq int
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Append writes one record, stamping it with the next sequence number.
func (w *Writer) Append(in core.Input, inputKind string, decisionKind string, stepCounter uint64) error {
	w.seq++
	rec := Record{
		SequenceNo:   w.seq,
		Time:         time.Now(),
		InputKind:    inputKind,
		Input:        in,
		DecisionKind: decisionKind,
		StepCounter:  stepCounter,
	}
	buf, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("rollout: marshal record: %w", err)
	}
	buf = append(buf, '\n')
	_, err = w.w.Write(buf)
	return err
}

// Reader replays a rollout log.
type Reader struct {
	scanner *bufio.Scanner
}

func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)
	return &Reader{scanner: scanner}
}

// Next returns the next Record, or io.EOF when the stream is exhausted.
func (r *Reader) Next() (Record, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return Record{}, err
		}
		return Record{}, io.EOF
	}
	var rec Record
	if err := json.Unmarshal(r.scanner.Bytes(), &rec); err != nil {
		return Record{}, fmt.Errorf("rollout: unmarshal record: %w", err)
	}
	return rec, nil
}

// Replay drains every record in r, calling apply for each in order. After
// decoding, Record.Input is generic JSON (for example map[string]any), not a
// typed core.Input, so the records cannot be fed back into Engine.Step as
// they are.
func Replay(r *Reader, apply func(Record) error) error {
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := apply(rec); err != nil {
			return err
		}
	}
}
