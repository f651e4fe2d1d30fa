package textify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/contextbridge/pkg/connector"
)

func TestToLines(t *testing.T) {
	rows := []connector.Row{
		{"status": "unpaid", "client": "ACME Corp", "amount": 1200.5, "note": nil, "ref": ""},
		{"id": int64(7), "tags": []any{"a", "b"}},
		{"empty": ""},
	}

	lines := ToLines(rows, "invoices_db")
	require.Len(t, lines, 2)
	assert.Equal(t, "[invoices_db] amount=1200.5 • client=ACME Corp • status=unpaid", lines[0])
	assert.Equal(t, `[invoices_db] id=7 • tags=["a","b"]`, lines[1])
}

func TestToLines_Deterministic(t *testing.T) {
	row := connector.Row{"b": 2, "a": 1, "c": "x", "d": 3.0}
	first := ToLines([]connector.Row{row}, "s")
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, ToLines([]connector.Row{row}, "s"))
	}
	assert.Equal(t, "[s] a=1 • b=2 • c=x • d=3", first[0])
}

func TestCompactRows(t *testing.T) {
	rows := []connector.Row{
		{"client": "ACME, Corp", "amount": 10.0},
		{"client": "Globex", "note": strings.Repeat("x", 20)},
		{"client": "Initech"},
	}

	out := CompactRows(rows, 2, 10)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "amount,client,note", lines[0])
	assert.Equal(t, `10,"ACME, Corp",`, lines[1])
	assert.Equal(t, ",Globex,xxxxxxx...", lines[2])

	assert.Equal(t, "", CompactRows(nil, 5, 10))
}

type fakeModel struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeModel) Complete(_ context.Context, _, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

func TestLLMSummarizer(t *testing.T) {
	model := &fakeModel{reply: "  ACME Corp has one unpaid invoice.  "}
	s := NewLLMSummarizer(model, nil, 30)

	out, err := s.Summarize(context.Background(), SummaryRequest{
		Question:   "unpaid invoices?",
		SchemaText: "invoices(client, status)",
		Rows:       []connector.Row{{"client": "ACME Corp", "status": "unpaid"}},
		Source:     "invoices_db",
		Query:      "SELECT * FROM invoices;",
	})
	require.NoError(t, err)
	assert.Equal(t, "[invoices_db] ACME Corp has one unpaid invoice.", out)
	assert.Contains(t, model.prompt, "SELECT * FROM invoices;")
	assert.Contains(t, model.prompt, "client,status")
}

func TestLLMSummarizer_Failures(t *testing.T) {
	rows := []connector.Row{{"a": 1}}

	_, err := NewLLMSummarizer(&fakeModel{err: errors.New("down")}, nil, 0).
		Summarize(context.Background(), SummaryRequest{Rows: rows, Source: "s"})
	assert.Error(t, err)

	_, err = NewLLMSummarizer(&fakeModel{reply: "   "}, nil, 0).
		Summarize(context.Background(), SummaryRequest{Rows: rows, Source: "s"})
	assert.ErrorIs(t, err, ErrEmptySummary)

	_, err = NewLLMSummarizer(&fakeModel{reply: "x"}, nil, 0).
		Summarize(context.Background(), SummaryRequest{Source: "s"})
	assert.ErrorIs(t, err, ErrEmptySummary)
}

func TestLLMSummarizer_PromptCarriesFirstFiveRows(t *testing.T) {
	rows := make([]connector.Row, 12)
	for i := range rows {
		rows[i] = connector.Row{"invoice": fmt.Sprintf("inv-%02d", i)}
	}
	model := &fakeModel{reply: "twelve invoices"}

	_, err := NewLLMSummarizer(model, nil, 30).Summarize(context.Background(), SummaryRequest{Rows: rows, Source: "invoices_db"})
	require.NoError(t, err)
	assert.Contains(t, model.prompt, "inv-00")
	assert.Contains(t, model.prompt, "inv-04")
	assert.NotContains(t, model.prompt, "inv-05")
}
