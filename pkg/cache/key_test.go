package cache

import "testing"

func TestRequestKey(t *testing.T) {
	base := func() Key {
		return RequestKey("GET", "/x", "http://up", map[string]string{"Accept": "json", "X-Id": "1"}, []byte("body"), KeyOptions{})
	}

	t.Run("stable", func(t *testing.T) {
		if base() != base() {
			t.Error("identical requests produced different keys")
		}
		if base().IsZero() {
			t.Error("key is zero")
		}
		if len(base().String()) != 64 {
			t.Errorf("String() length = %d, want 64", len(base().String()))
		}
	})

	t.Run("header order does not matter", func(t *testing.T) {
		h1 := map[string]string{}
		h1["a"] = "1"
		h1["b"] = "2"
		h2 := map[string]string{}
		h2["b"] = "2"
		h2["a"] = "1"
		k1 := RequestKey("GET", "/x", "", h1, nil, KeyOptions{})
		k2 := RequestKey("GET", "/x", "", h2, nil, KeyOptions{})
		if k1 != k2 {
			t.Error("header insertion order changed the key")
		}
	})

	tests := []struct {
		name string
		key  Key
	}{
		{"method", RequestKey("HEAD", "/x", "http://up", map[string]string{"Accept": "json", "X-Id": "1"}, []byte("body"), KeyOptions{})},
		{"path", RequestKey("GET", "/y", "http://up", map[string]string{"Accept": "json", "X-Id": "1"}, []byte("body"), KeyOptions{})},
		{"target", RequestKey("GET", "/x", "http://other", map[string]string{"Accept": "json", "X-Id": "1"}, []byte("body"), KeyOptions{})},
		{"header value", RequestKey("GET", "/x", "http://up", map[string]string{"Accept": "json", "X-Id": "2"}, []byte("body"), KeyOptions{})},
		{"body", RequestKey("GET", "/x", "http://up", map[string]string{"Accept": "json", "X-Id": "1"}, []byte("other"), KeyOptions{})},
		{"field boundary", RequestKey("GE", "T/x", "http://up", map[string]string{"Accept": "json", "X-Id": "1"}, []byte("body"), KeyOptions{})},
	}
	for _, tt := range tests {
		t.Run("differs by "+tt.name, func(t *testing.T) {
			if tt.key == base() {
				t.Errorf("changing %s did not change the key", tt.name)
			}
		})
	}
}

func TestRequestKeyHeaderCasing(t *testing.T) {
	lower := map[string]string{"content-type": "application/json"}
	upper := map[string]string{"Content-Type": " application/json "}

	t.Run("verbatim by default", func(t *testing.T) {
		k1 := RequestKey("GET", "/x", "", lower, nil, KeyOptions{})
		k2 := RequestKey("GET", "/x", "", upper, nil, KeyOptions{})
		if k1 == k2 {
			t.Error("header casing should change the key without normalization")
		}
	})

	t.Run("normalized", func(t *testing.T) {
		opts := KeyOptions{NormalizeHeaders: true}
		k1 := RequestKey("GET", "/x", "", lower, nil, opts)
		k2 := RequestKey("GET", "/x", "", upper, nil, opts)
		if k1 != k2 {
			t.Error("normalized keys differ for headers that differ only in casing and spacing")
		}
	})
}
