package repository

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// The stored form of a value is its JSON decoding with arrays turned into
// index-keyed maps and empty containers pruned, matching how the realtime
// database keeps them.

func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to normalize value: %w", err)
	}
	return out, nil
}

func toTree(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, c := range t {
			if cv := toTree(c); cv != nil {
				out[k] = cv
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case []any:
		out := make(map[string]any, len(t))
		for i, c := range t {
			if cv := toTree(c); cv != nil {
				out[strconv.Itoa(i)] = cv
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return t
	}
}

// fromTree returns a copy of a stored value with index-keyed maps read back as arrays.
func fromTree(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	if arr, ok := asArray(m); ok {
		return arr
	}
	out := make(map[string]any, len(m))
	for k, c := range m {
		out[k] = fromTree(c)
	}
	return out
}

func asArray(m map[string]any) ([]any, bool) {
	arr := make([]any, len(m))
	for k, c := range m {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 || i >= len(m) || strconv.Itoa(i) != k {
			return nil, false
		}
		arr[i] = fromTree(c)
	}
	return arr, true
}

func getAt(root any, segs []string) (any, bool) {
	cur := root
	for _, s := range segs {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[s]
		if !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

// setAt stores v (already in tree form) under root and prunes maps left empty.
func setAt(root map[string]any, segs []string, v any) {
	if len(segs) == 0 {
		return
	}
	if len(segs) == 1 {
		if v == nil {
			delete(root, segs[0])
		} else {
			root[segs[0]] = v
		}
		return
	}
	child, ok := root[segs[0]].(map[string]any)
	if !ok {
		if v == nil {
			return
		}
		child = make(map[string]any)
		root[segs[0]] = child
	}
	setAt(child, segs[1:], v)
	if len(child) == 0 {
		delete(root, segs[0])
	}
}

// flatten writes every leaf of a tree-form value as path -> JSON.
func flatten(prefix string, v any, out map[string]string) error {
	if m, ok := v.(map[string]any); ok {
		for k, c := range m {
			if err := flatten(joinPath(prefix, k), c, out); err != nil {
				return err
			}
		}
		return nil
	}
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	out[prefix] = string(data)
	return nil
}

// unflatten rebuilds the tree below base from leaf path -> JSON entries.
func unflatten(base string, leaves map[string]string) (any, error) {
	keys := make([]string, 0, len(leaves))
	for k := range leaves {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var root any
	for _, leaf := range keys {
		var value any
		if err := json.Unmarshal([]byte(leaves[leaf]), &value); err != nil {
			return nil, fmt.Errorf("failed to decode %q: %w", leaf, err)
		}
		rel := strings.Trim(strings.TrimPrefix(leaf, base), "/")
		if rel == "" {
			root = value
			continue
		}
		m, ok := root.(map[string]any)
		if !ok {
			m = make(map[string]any)
			root = m
		}
		setAt(m, strings.Split(rel, "/"), value)
	}
	return root, nil
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

// matchChildren applies q's child filter to the children of node.
func matchChildren(node any, q Query) (Children, error) {
	out := make(Children)
	m, ok := node.(map[string]any)
	if !ok {
		return out, nil
	}

	var childSegs []string
	var want any
	if q.Child != "" {
		var err error
		if childSegs, err = SplitPath(q.Child); err != nil {
			return nil, err
		}
		if want, err = normalize(q.Equals); err != nil {
			return nil, err
		}
	}

	for key, child := range m {
		if childSegs != nil {
			got, _ := getAt(child, childSegs)
			if !reflect.DeepEqual(fromTree(got), want) {
				continue
			}
		}
		data, err := json.Marshal(fromTree(child))
		if err != nil {
			return nil, fmt.Errorf("failed to encode %q: %w", key, err)
		}
		out[key] = data
	}
	return out, nil
}

func decodeInto(v any, dest any) error {
	data, err := json.Marshal(fromTree(v))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}
