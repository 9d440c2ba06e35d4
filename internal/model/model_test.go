package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_Int(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  int
	}{
		{"int", 3, 3},
		{"float", 2.0, 2},
		{"json number", json.Number("7"), 7},
		{"json float", json.Number("4.0"), 4},
		{"numeric string", " 5 ", 5},
		{"garbage", "abc", 0},
		{"missing", nil, 0},
		{"bool", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Record{"order": tt.value}
			if got := r.Int("order"); got != tt.want {
				t.Errorf("Int() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRecord_Bool(t *testing.T) {
	tests := []struct {
		value any
		want  bool
	}{
		{true, true},
		{false, false},
		{"true", true},
		{"on", true},
		{"off", false},
		{"", false},
		{json.Number("1"), true},
		{nil, false},
	}

	for _, tt := range tests {
		r := Record{"isActive": tt.value}
		if got := r.Bool("isActive"); got != tt.want {
			t.Errorf("Bool(%v) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestRecord_String(t *testing.T) {
	r := Record{"a": "x", "b": json.Number("12"), "c": false, "d": map[string]any{"k": 1}}

	assert.Equal(t, "x", r.String("a"))
	assert.Equal(t, "12", r.String("b"))
	assert.Equal(t, "false", r.String("c"))
	assert.Equal(t, "", r.String("d"))
	assert.Equal(t, "", r.String("missing"))
}

func TestRecord_Without(t *testing.T) {
	r := Record{"id": "1", "title": "t"}
	out := r.Without("id")

	assert.Equal(t, Record{"title": "t"}, out)
	assert.Equal(t, "1", r.ID(), "original record must not change")
}

func TestValidate(t *testing.T) {
	form, ok := KindForm(KindProject)
	require.True(t, ok)

	err := Validate(form, Record{"title": "  ", "subtitle": "s"}, false)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.ElementsMatch(t, []string{"imageUrl", "title"}, verr.Missing)

	assert.NoError(t, Validate(form, Record{"title": "A", "imageUrl": "https://img/x.jpg"}, false))
}

func TestValidate_Partial(t *testing.T) {
	form, _ := KindForm(KindFAQ)

	assert.NoError(t, Validate(form, Record{"isActive": true}, true))
	assert.Error(t, Validate(form, Record{"question": ""}, true))
}

func TestCoerce(t *testing.T) {
	form, _ := KindForm(KindFAQ)

	got := Coerce(form, map[string][]string{
		"question": {" Why? "},
		"answer":   {"Because."},
		"order":    {"3"},
	})

	assert.Equal(t, "Why?", got["question"])
	assert.Equal(t, 3, got["order"])
	assert.Equal(t, false, got["isActive"])

	got = Coerce(form, map[string][]string{"order": {"x"}, "isActive": {"on"}})
	assert.Equal(t, 0, got["order"])
	assert.Equal(t, true, got["isActive"])
}

func TestKindOf(t *testing.T) {
	for _, k := range Kinds() {
		form, ok := KindForm(k)
		require.True(t, ok)

		got, ok := KindOf(form.Collection)
		require.True(t, ok, "collection %s", form.Collection)
		assert.Equal(t, k, got)
	}

	_, ok := KindOf("hero")
	assert.False(t, ok)
}

func TestSectionForm_Unknown(t *testing.T) {
	f := SectionForm("whatever")
	assert.Equal(t, "whatever", f.Name)
	assert.Empty(t, f.Fields)
}
