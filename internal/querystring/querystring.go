// Package querystring serializes query parameters in bracket notation
// (tags[]=a&tags[]=b, filter[status]=open) and builds the canonical request
// keys the orchestrator de-duplicates on.
package querystring

import (
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strings"
	"time"
)

// Encode renders params with sorted keys so equal maps always produce the
// same string. Brackets are left unescaped; names and values are
// query-escaped. Nil values are dropped.
func Encode(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	var pairs []string
	for _, k := range sortedKeys(params) {
		pairs = appendValue(pairs, url.QueryEscape(k), params[k])
	}
	return strings.Join(pairs, "&")
}

// EncodeValues renders url.Values using the same bracket convention for
// multi-valued keys.
func EncodeValues(values url.Values) string {
	if len(values) == 0 {
		return ""
	}
	params := make(map[string]any, len(values))
	for k, v := range values {
		if len(v) == 1 {
			params[k] = v[0]
		} else {
			params[k] = v
		}
	}
	return Encode(params)
}

func appendValue(pairs []string, name string, v any) []string {
	if v == nil {
		return pairs
	}
	switch val := v.(type) {
	case string:
		return append(pairs, name+"="+url.QueryEscape(val))
	case []string:
		for _, s := range val {
			pairs = append(pairs, name+"[]="+url.QueryEscape(s))
		}
		return pairs
	case time.Time:
		return append(pairs, name+"="+url.QueryEscape(val.Format(time.RFC3339)))
	case fmt.Stringer:
		return append(pairs, name+"="+url.QueryEscape(val.String()))
	case map[string]any:
		for _, k := range sortedKeys(val) {
			pairs = appendValue(pairs, name+"["+url.QueryEscape(k)+"]", val[k])
		}
		return pairs
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return pairs
		}
		return appendValue(pairs, name, rv.Elem().Interface())
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		for _, k := range keys {
			elem := rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key()))
			pairs = appendValue(pairs, name+"["+url.QueryEscape(k)+"]", elem.Interface())
		}
		return pairs
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return append(pairs, name+"="+url.QueryEscape(string(rv.Bytes())))
		}
		for i := 0; i < rv.Len(); i++ {
			pairs = append(pairs, name+"[]="+url.QueryEscape(fmt.Sprint(rv.Index(i).Interface())))
		}
		return pairs
	}
	return append(pairs, name+"="+url.QueryEscape(fmt.Sprint(v)))
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Body renders a request body for key purposes. Strings and byte slices are
// used verbatim; everything else is JSON encoded, which sorts map keys.
func Body(body any) (string, error) {
	switch b := body.(type) {
	case nil:
		return "", nil
	case string:
		return b, nil
	case []byte:
		return string(b), nil
	case json.RawMessage:
		return string(b), nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Key builds METHOD:url:query:payload, where query comes from Encode or
// EncodeValues and payload is the body as rendered by Body.
func Key(method, rawURL, query, payload string) string {
	var sb strings.Builder
	sb.WriteString(strings.ToUpper(method))
	sb.WriteByte(':')
	sb.WriteString(rawURL)
	sb.WriteByte(':')
	sb.WriteString(query)
	sb.WriteByte(':')
	sb.WriteString(payload)
	return sb.String()
}
