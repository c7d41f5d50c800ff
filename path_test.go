package doctemplar

import "testing"

func TestResolve_NestedAndIndexed(t *testing.T) {
	root := map[string]interface{}{
		"a": map[string]interface{}{
			"b": map[string]interface{}{"c": 42.0},
		},
		"arr": []interface{}{
			map[string]interface{}{"name": "zero"},
			map[string]interface{}{"name": "one"},
		},
	}

	if v, ok := Resolve(root, "a.b.c"); !ok || v.(float64) != 42.0 {
		t.Fatalf("resolve a.b.c => %v ok=%v", v, ok)
	}
	// индекс через точку и через скобки
	if v, ok := Resolve(root, "arr.1.name"); !ok || v.(string) != "one" {
		t.Fatalf("resolve arr.1.name => %v ok=%v", v, ok)
	}
	if v, ok := Resolve(root, "arr[0].name"); !ok || v.(string) != "zero" {
		t.Fatalf("resolve arr[0].name => %v ok=%v", v, ok)
	}
}

func TestResolve_MissingNeverPanics(t *testing.T) {
	root := map[string]interface{}{"x": 1.0, "arr": []interface{}{"a"}}
	for _, p := range []string{"y", "x.y", "arr.5", "arr.-1", "arr.b", "x[0]"} {
		if v, ok := Resolve(root, p); ok {
			t.Fatalf("resolve %q => %v, want miss", p, v)
		}
	}
	if s := ResolveString(root, "nope.deep"); s != "" {
		t.Fatalf("ResolveString miss => %q", s)
	}
	if _, ok := Resolve(nil, "a"); ok {
		t.Fatalf("resolve on nil must miss")
	}
}

func TestResolve_TypedValues(t *testing.T) {
	root := map[string]interface{}{
		"tags":  map[string]string{"env": "prod"},
		"items": []map[string]interface{}{{"id": 7}},
	}
	if s := ResolveString(root, "tags.env"); s != "prod" {
		t.Fatalf("typed map => %q", s)
	}
	if s := ResolveString(root, "items.0.id"); s != "7" {
		t.Fatalf("typed slice => %q", s)
	}
}

func TestToString(t *testing.T) {
	cases := []struct {
		in   interface{}
		want string
	}{
		{nil, ""},
		{30.0, "30"},
		{2.5, "2.5"},
		{true, "true"},
		{[]interface{}{"a", "b"}, "a, b"},
		{[]interface{}{1.0, "b"}, `[1,"b"]`},
	}
	for _, c := range cases {
		if got := toString(c.in); got != c.want {
			t.Fatalf("toString(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNextSeg(t *testing.T) {
	// имя
	if seg, tail := nextSeg("foo.bar"); seg != "foo" || tail != "bar" {
		t.Fatalf("nextSeg name: seg=%q tail=%q", seg, tail)
	}
	// индекс
	if seg, tail := nextSeg("[10].rest"); seg != "[10]" || tail != "rest" {
		t.Fatalf("nextSeg index: seg=%q tail=%q", seg, tail)
	}
	if seg, tail := nextSeg("arr[2]"); seg != "arr" || tail != "[2]" {
		t.Fatalf("nextSeg bracket tail: seg=%q tail=%q", seg, tail)
	}
}
