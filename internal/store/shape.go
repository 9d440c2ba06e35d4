package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/inovacc/pagewright/internal/model"
)

// flatten writes every scalar leaf of v into out, keyed by its full path.
// Nil leaves and empty containers produce nothing.
func flatten(prefix string, v any, out map[string]any) error {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		for k, child := range t {
			if k == "" || strings.Contains(k, "/") {
				return fmt.Errorf("%w: key %q", ErrInvalidPath, k)
			}

			p, err := Clean(Join(prefix, k))
			if err != nil {
				return err
			}

			if err := flatten(p, child, out); err != nil {
				return err
			}
		}
	case model.Record:
		return flatten(prefix, map[string]any(t), out)
	case []any:
		for i, child := range t {
			if err := flatten(Join(prefix, strconv.Itoa(i)), child, out); err != nil {
				return err
			}
		}
	case string, bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		if prefix == "" {
			return fmt.Errorf("%w: scalar at root", ErrInvalidPath)
		}

		out[prefix] = t
	default:
		return flattenReflect(prefix, v, out)
	}

	return nil
}

// flattenReflect handles typed slices and maps by round-tripping them
// through JSON into the generic shapes.
func flattenReflect(prefix string, v any, out map[string]any) error {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct, reflect.Pointer:
	default:
		return fmt.Errorf("unsupported value type %T at %q", v, prefix)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", prefix, err)
	}

	generic, err := decodeJSON(data)
	if err != nil {
		return err
	}

	return flatten(prefix, generic, out)
}

// assemble rebuilds the nested value rooted at base from its leaves.
func assemble(base string, leaves map[string]any) any {
	if v, ok := leaves[base]; ok {
		return v
	}

	if len(leaves) == 0 {
		return nil
	}

	root := map[string]any{}

	for p, v := range leaves {
		rel := p
		if base != "" {
			rel = strings.TrimPrefix(p, base+"/")
		}

		segs := strings.Split(rel, "/")
		node := root

		for _, s := range segs[:len(segs)-1] {
			next, ok := node[s].(map[string]any)
			if !ok {
				next = map[string]any{}
				node[s] = next
			}

			node = next
		}

		node[segs[len(segs)-1]] = v
	}

	return arrayify(root)
}

// arrayify converts maps whose keys form a dense-enough index range into
// slices, recursively.
func arrayify(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}

	maxIdx := -1
	allIdx := len(m) > 0

	for k, child := range m {
		m[k] = arrayify(child)

		if !allIdx {
			continue
		}

		n, err := strconv.Atoi(k)
		if err != nil || n < 0 || strconv.Itoa(n) != k {
			allIdx = false

			continue
		}

		maxIdx = max(maxIdx, n)
	}

	if !allIdx || maxIdx >= 2*len(m) {
		return m
	}

	arr := make([]any, maxIdx+1)
	for k, child := range m {
		n, _ := strconv.Atoi(k)
		arr[n] = child
	}

	return arr
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}

	return v, nil
}
