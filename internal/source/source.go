// Package source reads input records from JSON Lines files.
//
// Every line is checked against a CUE definition before it is decoded. A
// line that is not valid JSON or does not match its definition is logged,
// counted and skipped; it never aborts the read.
package source

import (
	"bufio"
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"

	"github.com/roach88/lastclick/internal/model"
)

//go:embed schema.cue
var schemaCUE string

// maxLineBytes bounds a single JSONL record.
const maxLineBytes = 16 << 20

// Definition names in schema.cue.
const (
	DefFetchedOrder = "#FetchedOrder"
	DefEvent        = "#Event"
)

// Result holds the records of one file and the number of lines rejected.
type Result[T any] struct {
	Records  []T
	Rejected int
}

// Validator checks JSON documents against one definition of the embedded
// schema. A Validator is not safe for concurrent use.
type Validator struct {
	ctx *cue.Context
	def cue.Value
}

// NewValidator compiles the embedded schema and selects def.
func NewValidator(def string) (*Validator, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	v := schema.LookupPath(cue.ParsePath(def))
	if !v.Exists() {
		return nil, fmt.Errorf("schema has no definition %s", def)
	}
	return &Validator{ctx: ctx, def: v}, nil
}

// Validate reports whether data is a JSON document matching the definition.
func (v *Validator) Validate(name string, data []byte) error {
	expr, err := cuejson.Extract(name, data)
	if err != nil {
		return fmt.Errorf("parse json: %w", err)
	}
	doc := v.ctx.BuildExpr(expr)
	if err := doc.Err(); err != nil {
		return firstError(err)
	}
	if err := v.def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return firstError(err)
	}
	return nil
}

// firstError trims a CUE error list to its first entry.
func firstError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	return errs[0]
}

// DecodeOrders reads fetched orders from r.
func DecodeOrders(r io.Reader) (Result[model.FetchedOrder], error) {
	return decode[model.FetchedOrder](r, DefFetchedOrder)
}

// DecodeEvents reads raw events from r.
func DecodeEvents(r io.Reader) (Result[model.Event], error) {
	return decode[model.Event](r, DefEvent)
}

// ReadOrdersFile reads fetched orders from the file at path.
func ReadOrdersFile(path string) (Result[model.FetchedOrder], error) {
	f, err := os.Open(path)
	if err != nil {
		return Result[model.FetchedOrder]{}, fmt.Errorf("open orders file: %w", err)
	}
	defer f.Close()
	return DecodeOrders(f)
}

// ReadEventsFile reads raw events from the file at path.
func ReadEventsFile(path string) (Result[model.Event], error) {
	f, err := os.Open(path)
	if err != nil {
		return Result[model.Event]{}, fmt.Errorf("open events file: %w", err)
	}
	defer f.Close()
	return DecodeEvents(f)
}

func decode[T any](r io.Reader, def string) (Result[T], error) {
	var res Result[T]
	v, err := NewValidator(def)
	if err != nil {
		return res, err
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		data := sc.Bytes()
		if len(bytes.TrimSpace(data)) == 0 {
			continue
		}

		name := fmt.Sprintf("line %d", line)
		if err := v.Validate(name, data); err != nil {
			res.Rejected++
			slog.Warn("rejecting input line", "line", line, "definition", def, "error", err)
			continue
		}

		var rec T
		if err := json.Unmarshal(data, &rec); err != nil {
			res.Rejected++
			slog.Warn("rejecting input line", "line", line, "definition", def, "error", err)
			continue
		}
		res.Records = append(res.Records, rec)
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("read line %d: %w", line+1, err)
	}

	slog.Debug("input decoded", "definition", def, "records", len(res.Records), "rejected", res.Rejected)
	return res, nil
}
