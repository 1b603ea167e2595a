package mask_test

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/rise-and-shine/svcore/mask"
)

type dbConfig struct {
	Host     string `yaml:"host"`
	Password string `yaml:"password" mask:"true"`
}

type appConfig struct {
	Name     string   `json:"name"`
	Port     int      `yaml:"port"`
	Token    string   `mask:"true"`
	Internal string   `json:"-"`
	DB       dbConfig `yaml:"db"`
	Replica  *dbConfig
	private  string
}

func TestStructToOrdMap(t *testing.T) {
	// Arrange
	cfg := appConfig{
		Name:     "svc",
		Port:     8080,
		Token:    "secret",
		Internal: "hidden",
		DB:       dbConfig{Host: "localhost", Password: "p4ss"},
		private:  "x",
	}

	// Act
	om := mask.StructToOrdMap(cfg)

	// Assert
	keys := make([]string, 0, om.Len())
	for pair := om.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	assert.Equal(t, []string{"name", "port", "Token", "db.host", "db.password", "Replica"}, keys)
	assert.Equal(t, "***masked-string***", om.Value("Token"))
	assert.Equal(t, "***masked-string***", om.Value("db.password"))
	assert.Equal(t, "localhost", om.Value("db.host"))
	assert.Nil(t, om.Value("Replica"))
}

func TestStructToOrdMapNil(t *testing.T) {
	assert.Nil(t, mask.StructToOrdMap(nil))
}

type card struct {
	Number string `json:"number" mask:"true"`
	Holder string `json:"holder"`
}

type Base struct {
	ID string `json:"id"`
}

type payment struct {
	Base

	Amount   int               `json:"amount"`
	Card     card              `json:"card"`
	Cards    []card            `json:"cards,omitempty"`
	Note     string            `json:"note,omitempty"`
	PIN      int               `json:"pin" mask:"true"`
	Extra    map[string]any    `json:"extra,omitempty"`
	Labels   map[string]string `json:"labels,omitempty"`
	PaidAt   time.Time         `json:"paidAt"`
	Secret   *string           `json:"secret" mask:"true"`
	Internal string            `json:"-"`
}

func TestRedact(t *testing.T) {
	paidAt := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{
			name:     "nil",
			input:    nil,
			expected: `null`,
		},
		{
			name:     "scalar",
			input:    42,
			expected: `42`,
		},
		{
			name: "nested struct with masked fields",
			input: payment{
				Base:   Base{ID: "p-1"},
				Amount: 100,
				Card:   card{Number: "4111", Holder: "Ann"},
				Cards:  []card{{Number: "5500", Holder: "Bob"}},
				PIN:    1234,
				Extra:  map[string]any{"nested": card{Number: "1", Holder: "C"}},
				PaidAt: paidAt,
			},
			expected: `{
				"id": "p-1",
				"amount": 100,
				"card": {"number": "***masked-string***", "holder": "Ann"},
				"cards": [{"number": "***masked-string***", "holder": "Bob"}],
				"pin": "***masked-int***",
				"extra": {"nested": {"number": "***masked-string***", "holder": "C"}},
				"paidAt": "2024-01-02T03:04:05Z",
				"secret": null
			}`,
		},
		{
			name:     "pointer to struct",
			input:    &card{Number: "4111", Holder: "Ann"},
			expected: `{"number": "***masked-string***", "holder": "Ann"}`,
		},
		{
			name:     "zero masked value stays zero",
			input:    card{Holder: "Ann"},
			expected: `{"number": "", "holder": "Ann"}`,
		},
		{
			name:     "slice of maps",
			input:    []map[string]any{{"card": card{Number: "1"}}},
			expected: `[{"card": {"number": "***masked-string***", "holder": ""}}]`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// Act
			result := mask.Redact(tc.input)

			// Assert
			out, err := json.Marshal(result)
			require.NoError(t, err)
			assert.JSONEq(t, tc.expected, string(out))
		})
	}
}

func TestRedactKeepsFieldOrder(t *testing.T) {
	// Act
	result := mask.Redact(card{Number: "4111", Holder: "Ann"})

	// Assert
	om, ok := result.(*orderedmap.OrderedMap[string, any])
	require.True(t, ok)
	assert.Equal(t, "number", om.Oldest().Key)
	assert.Equal(t, "holder", om.Newest().Key)
}

func TestRedactDoesNotMutateInput(t *testing.T) {
	// Arrange
	in := card{Number: "4111", Holder: "Ann"}

	// Act
	_ = mask.Redact(&in)

	// Assert
	assert.Equal(t, "4111", in.Number)
}

func TestRedactAs(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		shape    reflect.Type
		expected string
	}{
		{
			name:     "map keyed by json names",
			input:    map[string]any{"id": "p-1", "pin": 1234, "note": "hi"},
			expected: `{"id": "p-1", "pin": "***masked-int***", "note": "hi"}`,
		},
		{
			name:     "key case is ignored",
			input:    map[string]any{"PIN": "1234"},
			expected: `{"PIN": "***masked-string***"}`,
		},
		{
			name: "nested maps and slices follow the field types",
			input: map[string]any{
				"card":  map[string]any{"number": "4111", "holder": "Ann"},
				"cards": []any{map[string]any{"number": "5500"}},
			},
			expected: `{
				"card": {"number": "***masked-string***", "holder": "Ann"},
				"cards": [{"number": "***masked-string***"}]
			}`,
		},
		{
			name:     "typed value is masked once",
			input:    payment{PIN: 1234, PaidAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
			expected: `{"id": "", "amount": 0, "card": {"number": "", "holder": ""}, "pin": "***masked-int***", "paidAt": "2024-01-02T03:04:05Z", "secret": null}`,
		},
		{
			name:     "unknown keys are kept",
			input:    map[string]any{"other": "4111"},
			expected: `{"other": "4111"}`,
		},
		{
			name:     "slice of maps",
			input:    []map[string]any{{"pin": 1}},
			shape:    reflect.TypeFor[[]payment](),
			expected: `[{"pin": "***masked-int***"}]`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			shape := tc.shape
			if shape == nil {
				shape = reflect.TypeFor[payment]()
			}

			// Act
			result := mask.RedactAs(tc.input, shape)

			// Assert
			out, err := json.Marshal(result)
			require.NoError(t, err)
			assert.JSONEq(t, tc.expected, string(out))
		})
	}
}

func TestRedactAsDoesNotMutateInput(t *testing.T) {
	// Arrange
	in := map[string]any{"pin": 1234}

	// Act
	_ = mask.RedactAs(in, reflect.TypeFor[payment]())

	// Assert
	assert.Equal(t, 1234, in["pin"])
}
