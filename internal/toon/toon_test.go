package toon

import (
	"reflect"
	"strings"
	"testing"
)

func TestEncode_SimpleObject(t *testing.T) {
	got := Encode(map[string]any{
		"name":   "Alice",
		"age":    30,
		"active": true,
	}, EncodeOptions{})

	want := "active: true\nage: 30\nname: Alice"
	if got != want {
		t.Errorf("Encode() =\n%s\nwant:\n%s", got, want)
	}
}

func TestEncode_NestedObject(t *testing.T) {
	got := Encode(map[string]any{
		"user": "Alice",
		"profile": map[string]any{
			"age":  30,
			"city": "NYC",
		},
	}, EncodeOptions{})

	want := strings.Join([]string{
		"profile:",
		"  age: 30",
		"  city: NYC",
		"user: Alice",
	}, "\n")
	if got != want {
		t.Errorf("Encode() =\n%s\nwant:\n%s", got, want)
	}
}

func TestEncode_TabularArray(t *testing.T) {
	got := Encode(map[string]any{
		"intent": "extract",
		"contacts": []any{
			map[string]any{"name": "Alice", "email": "alice@example.com"},
			map[string]any{"name": "Bob", "email": "bob@example.com"},
		},
	}, EncodeOptions{})

	want := strings.Join([]string{
		"contacts [2,]",
		"  email, name",
		"  alice@example.com, Alice",
		"  bob@example.com, Bob",
		"intent: extract",
	}, "\n")
	if got != want {
		t.Errorf("Encode() =\n%s\nwant:\n%s", got, want)
	}
}

func TestEncode_PrimitiveArray(t *testing.T) {
	got := Encode(map[string]any{"scores": []any{10, 20, 30}}, EncodeOptions{})
	if got != "scores [3]: 10, 20, 30" {
		t.Errorf("Encode() = %q", got)
	}
}

func TestEncode_LengthMarker(t *testing.T) {
	got := Encode(map[string]any{"tags": []any{"go", "llm"}}, EncodeOptions{LengthMarker: true})
	if got != "tags [#2]: go, llm" {
		t.Errorf("Encode() = %q", got)
	}
}

func TestEncode_NonUniformListArray(t *testing.T) {
	got := Encode(map[string]any{
		"items": []any{
			map[string]any{"type": "book", "title": "The Hobbit"},
			map[string]any{"type": "movie"},
		},
	}, EncodeOptions{})

	if !strings.Contains(got, "items [2]") {
		t.Errorf("missing list array header in:\n%s", got)
	}
	if !strings.Contains(got, "-") {
		t.Errorf("missing dash items in:\n%s", got)
	}
}

func TestEncode_QuotingRules(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Alice", "Alice"},
		{"", `""`},
		{"true", `"true"`},
		{"null", `"null"`},
		{"123", `"123"`},
		{"-4.5", `"-4.5"`},
		{" padded ", `" padded "`},
		{"a:b", `"a:b"`},
		{"a,b", `"a,b"`},
		{"not-a-number", `"not-a-number"`},
	}
	for _, tc := range cases {
		if got := formatPrimitive(tc.in); got != tc.want {
			t.Errorf("formatPrimitive(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDecode_SimpleObject(t *testing.T) {
	got, err := Decode("name: Alice\nage: 30\nactive: true\nscore: 0.75\nnothing: null", DecodeOptions{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := map[string]any{
		"name":    "Alice",
		"age":     int64(30),
		"active":  true,
		"score":   0.75,
		"nothing": nil,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Decode() = %#v, want %#v", got, want)
	}
}

func TestDecode_QuotedStrings(t *testing.T) {
	got, err := Decode(`name: "123"`+"\n"+`note: "true"`, DecodeOptions{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got["name"] != "123" || got["note"] != "true" {
		t.Errorf("quoted values not preserved as strings: %#v", got)
	}
}

func TestDecode_NestedObject(t *testing.T) {
	doc := strings.Join([]string{
		"user: Alice",
		"profile:",
		"  age: 30",
		"  address:",
		"    city: NYC",
	}, "\n")
	got, err := Decode(doc, DecodeOptions{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	profile, ok := got["profile"].(map[string]any)
	if !ok {
		t.Fatalf("profile is %T", got["profile"])
	}
	if profile["age"] != int64(30) {
		t.Errorf("profile.age = %#v", profile["age"])
	}
	address, ok := profile["address"].(map[string]any)
	if !ok || address["city"] != "NYC" {
		t.Errorf("profile.address = %#v", profile["address"])
	}
}

func TestDecode_TabularArray(t *testing.T) {
	doc := strings.Join([]string{
		"users [2,]",
		"  id, name",
		"  1, Alice",
		"  2, Bob",
	}, "\n")
	got, err := Decode(doc, DecodeOptions{Strict: true})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	users, ok := got["users"].([]any)
	if !ok || len(users) != 2 {
		t.Fatalf("users = %#v", got["users"])
	}
	first := users[0].(map[string]any)
	if first["id"] != int64(1) || first["name"] != "Alice" {
		t.Errorf("users[0] = %#v", first)
	}
}

func TestDecode_PrimitiveArray(t *testing.T) {
	got, err := Decode("scores [3]: 10, 20, 30", DecodeOptions{Strict: true})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []any{int64(10), int64(20), int64(30)}
	if !reflect.DeepEqual(got["scores"], want) {
		t.Errorf("scores = %#v", got["scores"])
	}
}

func TestDecode_ListArrayWithInlineFirstField(t *testing.T) {
	doc := strings.Join([]string{
		"items [2]",
		"  - type: book",
		"    title: The Hobbit",
		"  - type: movie",
		"    title: The Matrix",
	}, "\n")
	got, err := Decode(doc, DecodeOptions{Strict: true})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	items, ok := got["items"].([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("items = %#v", got["items"])
	}
	first := items[0].(map[string]any)
	if first["type"] != "book" || first["title"] != "The Hobbit" {
		t.Errorf("items[0] = %#v", first)
	}
}

func TestDecode_StrictArrayCountMismatch(t *testing.T) {
	if _, err := Decode("scores [5]: 1, 2", DecodeOptions{Strict: true}); err == nil {
		t.Fatal("expected count mismatch error")
	}
	if _, err := Decode("scores [5]: 1, 2", DecodeOptions{Strict: false}); err != nil {
		t.Fatalf("lenient decode should tolerate count mismatch: %v", err)
	}
}

func TestDecode_StrictRejectsMalformedLine(t *testing.T) {
	_, err := Decode("name Alice", DecodeOptions{Strict: true})
	if err == nil {
		t.Fatal("expected error for missing colon")
	}
	var decodeErr *DecodeError
	if !strings.Contains(err.Error(), "line 1") {
		t.Errorf("error should carry line number: %v", err)
	}
	_ = decodeErr
}

func TestRoundTrip(t *testing.T) {
	original := map[string]any{
		"intent":  "extract",
		"subject": "contact list",
		"entities": map[string]any{
			"source": "email thread",
			"target": "CRM",
		},
		"contacts": []any{
			map[string]any{"name": "Alice", "email": "alice@example.com"},
			map[string]any{"name": "Bob", "email": "bob@example.com"},
		},
		"tags":       []any{"crm", "import"},
		"confidence": 0.9,
	}

	encoded := Encode(original, EncodeOptions{})
	decoded, err := Decode(encoded, DecodeOptions{Strict: true})
	if err != nil {
		t.Fatalf("Decode(Encode(x)): %v\ndocument:\n%s", err, encoded)
	}

	if decoded["intent"] != "extract" || decoded["subject"] != "contact list" {
		t.Errorf("top-level fields lost: %#v", decoded)
	}
	entities := decoded["entities"].(map[string]any)
	if entities["source"] != "email thread" {
		t.Errorf("entities = %#v", entities)
	}
	contacts := decoded["contacts"].([]any)
	if len(contacts) != 2 {
		t.Fatalf("contacts = %#v", contacts)
	}
	if contacts[1].(map[string]any)["name"] != "Bob" {
		t.Errorf("contacts[1] = %#v", contacts[1])
	}
	tags := decoded["tags"].([]any)
	if !reflect.DeepEqual(tags, []any{"crm", "import"}) {
		t.Errorf("tags = %#v", tags)
	}
	if decoded["confidence"] != 0.9 {
		t.Errorf("confidence = %#v", decoded["confidence"])
	}
}
