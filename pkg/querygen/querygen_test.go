package querygen

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/kadirpekel/contextbridge/pkg/connector"
)

func TestExtract_SQL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "plain",
			raw:  "SELECT * FROM invoices",
			want: "SELECT * FROM invoices;",
		},
		{
			name: "fenced_multiline",
			raw:  "```sql\nSELECT client, date, amount, status\nFROM invoices\nWHERE client = 'ACME Corp' AND status = 'unpaid';\n```",
			want: "SELECT client, date, amount, status FROM invoices WHERE client = 'ACME Corp' AND status = 'unpaid';",
		},
		{
			name: "preamble_and_comment",
			raw:  "Here is the query:\nselect id from t; -- all ids\nThanks!",
			want: "select id from t;",
		},
		{
			name: "sentinel",
			raw:  "-- NO SQL QUERY POSSIBLE FOR THIS QUESTION --",
			want: NoSQLQuery,
		},
		{
			name: "garbage",
			raw:  "  I cannot help with that. ",
			want: "I cannot help with that.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.raw, connector.KindTabular))
		})
	}
}

func TestExtract_REST(t *testing.T) {
	assert.Equal(t, "GET /customers?region=Europe", Extract("REST:\nGET /customers?region=Europe", connector.KindParameterized))
	assert.Equal(t, "GET /tickets?client=ACME+Corp", Extract("get /tickets?client=ACME Corp", connector.KindParameterized))
	assert.Equal(t, NoAPICall, Extract(NoAPICall, connector.KindParameterized))
	assert.Equal(t, "POST /customers", Extract("POST /customers", connector.KindParameterized))
}

func TestValidate(t *testing.T) {
	q, err := Validate(connector.KindTabular, "  SELECT 1;  ")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1;", q)

	q, err = Validate(connector.KindParameterized, NoAPICall)
	require.NoError(t, err)
	assert.True(t, IsNoQuery(q))

	_, err = Validate(connector.KindTabular, "DROP TABLE invoices;")
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Contains(t, err.Error(), "unsafe SQL")

	_, err = Validate(connector.KindParameterized, "POST /customers")
	require.True(t, errors.As(err, &vErr))
	assert.Contains(t, err.Error(), "only GET")
}

type scriptedModel struct {
	reply  string
	err    error
	calls  int
	system string
}

func (m *scriptedModel) Complete(_ context.Context, system, _ string) (string, error) {
	m.calls++
	m.system = system
	return m.reply, m.err
}

func TestLLMGenerator_Generate(t *testing.T) {
	model := &scriptedModel{reply: "```sql\nSELECT client FROM invoices WHERE status = 'unpaid'\n```"}
	gen := NewLLMGenerator(model, rate.NewLimiter(rate.Inf, 1))

	q, err := gen.Generate(context.Background(), Request{
		Question:   "unpaid invoices",
		Source:     "invoices_db",
		SchemaText: "invoices(client, status)",
		Kind:       connector.KindTabular,
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT client FROM invoices WHERE status = 'unpaid';", q)
	assert.Equal(t, sqlSystem, model.system)
}

func TestLLMGenerator_EmptySchemaShortCircuits(t *testing.T) {
	model := &scriptedModel{reply: "GET /x"}
	gen := NewLLMGenerator(model, nil)

	q, err := gen.Generate(context.Background(), Request{Source: "crm", Kind: connector.KindParameterized})
	require.NoError(t, err)
	assert.Equal(t, NoAPICall, q)
	assert.Zero(t, model.calls)
}

func TestLLMGenerator_Errors(t *testing.T) {
	gen := NewLLMGenerator(&scriptedModel{err: errors.New("connection refused")}, nil)

	_, err := gen.Generate(context.Background(), Request{Source: "crm", Kind: connector.KindParameterized, SchemaText: "GET /x"})
	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, "crm", genErr.Source)

	_, err = gen.Generate(context.Background(), Request{Source: "docs", Kind: connector.KindDocument, SchemaText: "x"})
	require.True(t, errors.As(err, &genErr))
}

func TestLLMGenerator_LimiterHonoursContext(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(1<<62), 1)
	limiter.Allow()
	gen := NewLLMGenerator(&scriptedModel{reply: "SELECT 1"}, limiter)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gen.Generate(ctx, Request{Source: "db", Kind: connector.KindTabular, SchemaText: "t(a)"})
	assert.Error(t, err)
}

func TestStatic(t *testing.T) {
	gen := Static{"invoices_db": "SELECT 1;"}

	q, err := gen.Generate(context.Background(), Request{Source: "invoices_db", Kind: connector.KindTabular})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1;", q)

	q, err = gen.Generate(context.Background(), Request{Source: "crm", Kind: connector.KindParameterized})
	require.NoError(t, err)
	assert.Equal(t, NoAPICall, q)
}
