package remoteval

import (
	"errors"
	"math"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/unkn0wn-root/remoteval/host"
	"github.com/unkn0wn-root/remoteval/remote"
)

func TestSerializeScalars(t *testing.T) {
	r := newTestRealm(t, nil)
	big1, _ := new(big.Int).SetString("12345678901234567890123456789", 10)

	cases := []struct {
		in   host.Value
		want string
	}{
		{host.Undefined{}, `{"type":"undefined"}`},
		{host.Null{}, `{"type":"null"}`},
		{host.String(""), `{"type":"string","value":""}`},
		{host.String("foobar"), `{"type":"string","value":"foobar"}`},
		{host.Boolean(false), `{"type":"boolean","value":false}`},
		{host.Number(42), `{"type":"number","value":42}`},
		{host.Number(-1.5), `{"type":"number","value":-1.5}`},
		{host.Number(math.NaN()), `{"type":"number","value":"NaN"}`},
		{host.Number(math.Inf(1)), `{"type":"number","value":"Infinity"}`},
		{host.Number(math.Inf(-1)), `{"type":"number","value":"-Infinity"}`},
		{host.Number(math.Copysign(0, -1)), `{"type":"number","value":"-0"}`},
		{host.BigInt{Int: big1}, `{"type":"bigint","value":"12345678901234567890123456789"}`},
	}
	for _, tc := range cases {
		rv, err := r.Serialize(tc.in, OwnershipRoot, 1)
		if err != nil {
			t.Fatalf("Serialize(%v): %v", tc.in, err)
		}
		if got := mustJSON(t, rv); got != tc.want {
			t.Errorf("Serialize(%v) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestSerializeDepthTruncation(t *testing.T) {
	r := newTestRealm(t, nil)
	v := host.NewObject().
		Set("foo", host.NewObject().Set("bar", host.String("baz"))).
		Set("qux", host.String("quux"))

	rv, err := r.Serialize(v, OwnershipNone, 1)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	want := `{"type":"object","value":[["foo",{"type":"object"}],["qux",{"type":"string","value":"quux"}]]}`
	if got := mustJSON(t, rv); got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}

	rv, _ = r.Serialize(v, OwnershipNone, 0)
	if got := mustJSON(t, rv); got != `{"type":"object"}` {
		t.Fatalf("depth 0: %s", got)
	}

	rv, _ = r.Serialize(v, OwnershipNone, 2)
	want = `{"type":"object","value":[["foo",{"type":"object","value":[["bar",{"type":"string","value":"baz"}]]}],["qux",{"type":"string","value":"quux"}]]}`
	if got := mustJSON(t, rv); got != want {
		t.Fatalf("depth 2: %s", got)
	}
}

func TestSerializeDefaultDepthIsOne(t *testing.T) {
	r := newTestRealm(t, nil)
	v := host.NewArray(host.NewArray(host.Number(1)), host.Number(2))
	rv, err := r.SerializeDefault(v, OwnershipNone)
	if err != nil {
		t.Fatalf("SerializeDefault: %v", err)
	}
	want := `{"type":"array","value":[{"type":"array"},{"type":"number","value":2}]}`
	if got := mustJSON(t, rv); got != want {
		t.Fatalf("got %s", got)
	}
}

func TestSerializeOwnership(t *testing.T) {
	r := newTestRealm(t, nil)
	v := host.NewArray(host.NewObject(), host.String("x"))

	none, _ := r.Serialize(v, OwnershipNone, 1)
	if none.Handle != "" || r.Registry().Len() != 0 {
		t.Fatalf("ownership none minted: %q (Len %d)", none.Handle, r.Registry().Len())
	}

	root, _ := r.Serialize(v, OwnershipRoot, 1)
	if root.Handle == "" {
		t.Fatalf("ownership root attached no handle")
	}
	items, _ := root.Items()
	for i, it := range items {
		if it.Handle != "" {
			t.Fatalf("nested item %d carries handle %q", i, it.Handle)
		}
	}
	if r.Registry().Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Registry().Len())
	}

	// Identical apart from the handle.
	root.Handle = ""
	if mustJSON(t, root) != mustJSON(t, none) {
		t.Fatalf("root and none differ beyond handle")
	}
}

func TestSerializeHandleStability(t *testing.T) {
	r := newTestRealm(t, nil)
	obj := host.NewObject().Set("a", host.Number(1))

	first, _ := r.Serialize(obj, OwnershipRoot, 1)
	second, _ := r.Serialize(obj, OwnershipRoot, 0)
	if first.Handle == "" || first.Handle != second.Handle {
		t.Fatalf("handles differ: %q vs %q", first.Handle, second.Handle)
	}
}

func TestSerializePrimitivesNeverCarryHandles(t *testing.T) {
	r := newTestRealm(t, nil)
	rv, _ := r.Serialize(host.String("s"), OwnershipRoot, 1)
	if rv.Handle != "" || r.Registry().Len() != 0 {
		t.Fatalf("primitive got handle %q", rv.Handle)
	}
}

func TestSerializeInvalidOwnership(t *testing.T) {
	r := newTestRealm(t, nil)
	if _, err := r.Serialize(host.Null{}, Ownership("weak"), 1); !errors.Is(err, ErrInvalidOwnership) {
		t.Fatalf("expected ErrInvalidOwnership, got %v", err)
	}
}

func TestSerializeMapKeys(t *testing.T) {
	r := newTestRealm(t, nil)
	m := host.NewMap().
		Set(host.String("a"), host.Number(1)).
		Set(host.Number(2), host.String("b")).
		Set(host.NewObject(), host.Boolean(true))

	rv, err := r.Serialize(m, OwnershipNone, 1)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	want := `{"type":"map","value":[` +
		`["a",{"type":"number","value":1}],` +
		`[{"type":"number","value":2},{"type":"string","value":"b"}],` +
		`[{"type":"object"},{"type":"boolean","value":true}]]}`
	if got := mustJSON(t, rv); got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}
}

func TestSerializeSetKeepsOrder(t *testing.T) {
	r := newTestRealm(t, nil)
	s := host.NewSet().Add(host.Number(3)).Add(host.Number(1)).Add(host.Number(3))
	rv, _ := r.Serialize(s, OwnershipNone, 1)
	want := `{"type":"set","value":[{"type":"number","value":3},{"type":"number","value":1}]}`
	if got := mustJSON(t, rv); got != want {
		t.Fatalf("got %s", got)
	}
}

func TestSerializeLeafHeapKinds(t *testing.T) {
	r := newTestRealm(t, nil)

	d := host.NewDate(time.Date(2020, 7, 19, 6, 34, 56, 789_000_000, time.UTC))
	rv, _ := r.Serialize(d, OwnershipRoot, 0)
	if rv.Handle == "" || rv.Value != "2020-07-19T06:34:56.789Z" {
		t.Fatalf("date = %+v", rv)
	}

	re := &host.RegExp{Pattern: "ab+c", Flags: "gi"}
	rv, _ = r.Serialize(re, OwnershipNone, 0)
	if got := mustJSON(t, rv); got != `{"type":"regexp","value":{"flags":"gi","pattern":"ab+c"}}` {
		t.Fatalf("regexp = %s", got)
	}

	rv, _ = r.Serialize(&host.Date{Invalid: true}, OwnershipNone, 1)
	if rv.Value != "Invalid Date" {
		t.Fatalf("invalid date = %v", rv.Value)
	}
}

func TestSerializeOpaqueKinds(t *testing.T) {
	r := newTestRealm(t, nil)
	cases := []struct {
		in   host.Ref
		want remote.Type
	}{
		{&host.Symbol{Description: "foo"}, remote.TypeSymbol},
		{&host.Function{Name: "f"}, remote.TypeFunction},
		{&host.Promise{}, remote.TypePromise},
		{&host.WeakMap{}, remote.TypeWeakMap},
		{&host.WeakSet{}, remote.TypeWeakSet},
		{&host.TypedArray{Class: "Int32Array", Length: 4}, remote.TypeTypedArray},
		{&host.Proxy{}, remote.TypeProxy},
		{&host.Error{Name: "Error", Message: "boom"}, remote.TypeError},
		{&host.Window{}, remote.TypeWindow},
	}
	for _, tc := range cases {
		rv, err := r.Serialize(tc.in, OwnershipRoot, 3)
		if err != nil {
			t.Fatalf("Serialize(%s): %v", tc.want, err)
		}
		if rv.Type != tc.want || rv.Handle == "" || rv.HasValue() {
			t.Fatalf("Serialize(%s) = %+v", tc.want, rv)
		}
		rv, _ = r.Serialize(tc.in, OwnershipNone, 3)
		if got := mustJSON(t, rv); got != `{"type":"`+string(tc.want)+`"}` {
			t.Fatalf("none: %s", got)
		}
	}
}

func TestSerializeUnserializable(t *testing.T) {
	r := newTestRealm(t, nil)
	var nilArr *host.Array
	_, err := r.Serialize(host.NewArray(host.Number(1), nilArr), OwnershipNone, 1)
	if !errors.Is(err, ErrUnserializableValue) {
		t.Fatalf("expected ErrUnserializableValue, got %v", err)
	}
	var ce *CodecError
	if !errors.As(err, &ce) || ce.Path != "$[1]" {
		t.Fatalf("expected CodecError at $[1], got %v", err)
	}
}

func TestSerializeDepthTruncatedHook(t *testing.T) {
	hooks := newRecordingHooks()
	r := newTestRealm(t, func(o *RealmOptions) { o.Hooks = hooks })
	v := host.NewArray(host.NewArray(), host.NewObject(), host.Number(1))
	if _, err := r.Serialize(v, OwnershipNone, 1); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if hooks.truncated != 2 {
		t.Fatalf("truncated = %d, want 2", hooks.truncated)
	}
}

// ==============================
// Nodes
// ==============================

func TestSerializeElementNode(t *testing.T) {
	r := newTestRealm(t, nil)
	div := host.NewElement("div", host.Attribute{Name: "id", Value: "x"}).
		Append(host.NewText("hello"), host.NewElement("span"))

	rv, err := r.Serialize(div, OwnershipNone, 1)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	want := `{"type":"node","value":{` +
		`"attributes":{"id":"x"},"childNodeCount":2,"children":[` +
		`{"type":"node","value":{"nodeType":3,"nodeValue":"hello","sharedId":"nav_element_2"}},` +
		`{"type":"node","value":{"attributes":{},"childNodeCount":0,"localName":"span","namespaceURI":"http://www.w3.org/1999/xhtml","nodeType":1,"sharedId":"nav_element_3"}}],` +
		`"localName":"div","namespaceURI":"http://www.w3.org/1999/xhtml","nodeType":1,"sharedId":"nav_element_1"}}`
	if got := mustJSON(t, rv); got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}

	// At depth 0 the node keeps its properties but not its children.
	rv, _ = r.Serialize(div, OwnershipNone, 0)
	props, ok := rv.Node()
	if !ok || props.Children != nil || props.ChildNodeCount != 2 || props.SharedID != "nav_element_1" {
		t.Fatalf("depth 0 node = %+v", props)
	}
}

func TestSerializeNodeSharedIdentity(t *testing.T) {
	r := newTestRealm(t, nil)
	n := host.NewElement("p")

	rv, _ := r.Serialize(host.NewArray(n, n), OwnershipNone, 1)
	items, _ := rv.Items()
	a, _ := items[0].Node()
	b, _ := items[1].Node()
	if a.SharedID == "" || a.SharedID != b.SharedID {
		t.Fatalf("array sharedIds: %q vs %q", a.SharedID, b.SharedID)
	}

	rv, _ = r.Serialize(host.NewObject().Set("a", n).Set("b", n), OwnershipNone, 1)
	pairs, _ := rv.Pairs()
	pa, _ := pairs[0].Value.Node()
	pb, _ := pairs[1].Value.Node()
	if pa.SharedID != a.SharedID || pb.SharedID != a.SharedID {
		t.Fatalf("object sharedIds %q %q, want %q", pa.SharedID, pb.SharedID, a.SharedID)
	}

	rv, _ = r.Serialize(n, OwnershipNone, 0)
	direct, _ := rv.Node()
	if direct.SharedID != a.SharedID {
		t.Fatalf("direct sharedId %q, want %q", direct.SharedID, a.SharedID)
	}
}

func TestSerializeMaxNodeChildren(t *testing.T) {
	r := newTestRealm(t, func(o *RealmOptions) { o.MaxNodeChildren = 2 })
	ul := host.NewElement("ul").Append(host.NewElement("li"), host.NewElement("li"), host.NewElement("li"))

	rv, _ := r.Serialize(ul, OwnershipNone, 1)
	props, _ := rv.Node()
	if props.ChildNodeCount != 3 || len(props.Children) != 2 {
		t.Fatalf("childNodeCount=%d children=%d", props.ChildNodeCount, len(props.Children))
	}
}

func TestSerializeNodeWithRootOwnership(t *testing.T) {
	r := newTestRealm(t, nil)
	n := host.NewElement("div")
	rv, _ := r.Serialize(n, OwnershipRoot, 0)
	if rv.Handle == "" {
		t.Fatalf("node got no handle under root ownership")
	}
	if !strings.HasPrefix(mustJSON(t, rv), `{"handle":"`) {
		t.Fatalf("unexpected shape %s", mustJSON(t, rv))
	}
}

func TestFormatDateExtendedYears(t *testing.T) {
	d := host.NewDate(time.Date(12345, 1, 2, 3, 4, 5, 0, time.UTC))
	if got := FormatDate(d); got != "+012345-01-02T03:04:05.000Z" {
		t.Fatalf("FormatDate = %q", got)
	}
}

func TestParseDateExtendedYears(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"+275760-09-13T00:00:00.000Z", time.Date(275760, 9, 13, 0, 0, 0, 0, time.UTC)},
		{"+012345-01-02T03:04:05.000Z", time.Date(12345, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"-000001-12-31T23:00:00.000-01:00", time.Date(0, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"+010000", time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if err != nil {
			t.Fatalf("ParseDate(%q): %v", tc.in, err)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("ParseDate(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	for _, bad := range []string{"-000000-01-01T00:00:00Z", "+012345-02-29T00:00:00Z", "+01234-01-01"} {
		if _, err := ParseDate(bad); !errors.Is(err, ErrMalformedValue) {
			t.Fatalf("ParseDate(%q) err = %v, want ErrMalformedValue", bad, err)
		}
	}
}

func TestDateExtendedYearEcho(t *testing.T) {
	r := newTestRealm(t, nil)
	in := remote.Date("+275760-09-13T00:00:00.000Z")
	v, err := r.Deserialize(in)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	rv, err := r.Serialize(v, OwnershipNone, 0)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if got := mustJSON(t, rv); got != `{"type":"date","value":"+275760-09-13T00:00:00.000Z"}` {
		t.Fatalf("echo = %s", got)
	}
}
