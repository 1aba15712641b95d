package crypto

import (
	"bytes"
	"testing"
)

func TestCanonicalizeJSONSortsKeys(t *testing.T) {
	got, err := CanonicalizeJSON([]byte(`{"zeta":1,"alpha":{"nested_b":true,"nested_a":null},"mid":[3,2,1]}`))
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	want := `{"alpha":{"nested_a":null,"nested_b":true},"mid":[3,2,1],"zeta":1}`
	if string(got) != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestCanonicalizeJSONStableAcrossKeyOrder(t *testing.T) {
	a, err := CanonicalizeJSON([]byte(`{"b":2,"a":1}`))
	if err != nil {
		t.Fatalf("canonicalize a: %v", err)
	}
	b, err := CanonicalizeJSON([]byte(`{"a":1,"b":2}`))
	if err != nil {
		t.Fatalf("canonicalize b: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("same document in different key orders must canonicalize identically: %s vs %s", a, b)
	}
}

func TestCanonicalizeJSONPreservesNumberText(t *testing.T) {
	got, err := CanonicalizeJSON([]byte(`{"big":9007199254740993,"exp":1e3,"frac":0.1}`))
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	want := `{"big":9007199254740993,"exp":1e3,"frac":0.1}`
	if string(got) != want {
		t.Fatalf("numbers must pass through verbatim, got %s", got)
	}
}

func TestCanonicalizeJSONRejectsTrailingData(t *testing.T) {
	if _, err := CanonicalizeJSON([]byte(`{"a":1} {"b":2}`)); err == nil {
		t.Fatalf("expected error for trailing data")
	}
	if _, err := CanonicalizeJSON([]byte(`{"a":`)); err == nil {
		t.Fatalf("expected error for truncated document")
	}
}

func TestCanonicalizeStruct(t *testing.T) {
	type inner struct {
		B string `json:"b"`
		A string `json:"a"`
	}
	got, err := Canonicalize(inner{B: "two", A: "one"})
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	want := `{"a":"one","b":"two"}`
	if string(got) != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestHashAlgorithms(t *testing.T) {
	data := []byte("erasure evidence")
	sha, err := Hash(data, "sha256")
	if err != nil {
		t.Fatalf("sha256: %v", err)
	}
	if sha != SHA256Hex(data) {
		t.Fatalf("Hash sha256 must agree with SHA256Hex")
	}
	if _, err := Hash(data, "sha384"); err != nil {
		t.Fatalf("sha384: %v", err)
	}
	if _, err := Hash(data, "sha512"); err != nil {
		t.Fatalf("sha512: %v", err)
	}
	if _, err := Hash(data, "md5"); err == nil {
		t.Fatalf("weak algorithms must be rejected")
	}
	def, err := Hash(data, "")
	if err != nil || def != sha {
		t.Fatalf("empty algorithm must default to sha256")
	}
}
