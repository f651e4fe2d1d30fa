// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kadirpekel/contextbridge/pkg/connector"
	"github.com/kadirpekel/contextbridge/pkg/querygen"
)

type execResult struct {
	rows []connector.Row
	err  error
}

// runSource is one source's unit of work. It always returns a result:
// generation and validation errors, execution errors, timeouts and panics
// are all folded into the outcome.
func (o *Orchestrator) runSource(ctx context.Context, question string, q connector.Querier) (res SourceResult) {
	name := q.Name()
	start := time.Now()
	res = SourceResult{Source: name}

	ctx, span := o.tracer.Start(ctx, "orchestrator.source")
	span.SetAttributes(attribute.String("source", name), attribute.String("kind", string(q.Kind())))

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Source unit panicked", "source", name, "panic", r)
			res.Outcome = Failed
			res.Reason = fmt.Sprintf("panic: %v", r)
			res.Rows = nil
		}
		d := time.Since(start)
		res.LatencyMS = d.Milliseconds()
		res.RowCount = len(res.Rows)
		span.SetAttributes(attribute.String("outcome", res.Outcome.String()), attribute.Int("rows", res.RowCount))
		span.End()
		o.metrics.RecordSource(name, res.Outcome.String(), d)
	}()

	if err := o.global.Acquire(ctx, 1); err != nil {
		return cancelled(res, err)
	}
	defer o.global.Release(1)

	limit := o.sourceLimit(name)
	if err := limit.Acquire(ctx, 1); err != nil {
		return cancelled(res, err)
	}
	defer limit.Release(1)

	raw, err := o.generator.Generate(ctx, querygen.Request{
		Question:   question,
		Source:     name,
		SchemaText: q.Schema().Text(q.Kind()),
		Kind:       q.Kind(),
	})
	if err != nil {
		if ctx.Err() != nil {
			return cancelled(res, err)
		}
		res.Outcome = Failed
		res.Reason = err.Error()
		return res
	}

	query, err := querygen.Validate(q.Kind(), raw)
	if err != nil {
		res.Outcome = Failed
		res.Reason = err.Error()
		return res
	}
	if querygen.IsNoQuery(query) {
		slog.Debug("No query possible", "source", name)
		res.Outcome = Skipped
		return res
	}
	res.Query = query

	execCtx, cancel := context.WithTimeout(ctx, o.cfg.SourceTimeout)
	defer cancel()

	done := make(chan execResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- execResult{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		rows, err := q.Execute(execCtx, query)
		done <- execResult{rows: rows, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, context.DeadlineExceeded) && execCtx.Err() != nil {
				return o.timedOut(ctx, res)
			}
			res.Outcome = Failed
			res.Reason = r.err.Error()
			slog.Warn("Source execution failed", "source", name, "error", r.err)
			return res
		}
		res.Outcome = Completed
		res.Rows = r.rows
		return res
	case <-execCtx.Done():
		return o.timedOut(ctx, res)
	}
}

func (o *Orchestrator) timedOut(ctx context.Context, res SourceResult) SourceResult {
	res.Outcome = TimedOut
	if ctx.Err() != nil {
		res.Reason = "cancelled at the overall deadline"
	} else {
		res.Reason = fmt.Sprintf("execution exceeded %s", o.cfg.SourceTimeout)
	}
	slog.Warn("Source timed out", "source", res.Source, "reason", res.Reason)
	return res
}

func cancelled(res SourceResult, err error) SourceResult {
	res.Outcome = TimedOut
	res.Reason = "cancelled before completion: " + err.Error()
	return res
}
