package pflock

import (
	"encoding/json"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/go-cmp/cmp"
)

type config struct {
	Name  string            `json:"name" cbor:"name"`
	Ports []int             `json:"ports" cbor:"ports"`
	Tags  map[string]string `json:"tags,omitempty" cbor:"tags,omitempty"`
}

func TestGuarded_JSON(t *testing.T) {
	in := New(config{Name: "edge", Ports: []int{80, 443}, Tags: map[string]string{"zone": "a"}})
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(b), `{"name":"edge","ports":[80,443],"tags":{"zone":"a"}}`; got != want {
		t.Fatalf("Marshal = %s, want %s", got, want)
	}

	var out Guarded[config]
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(in.IntoInner(), out.IntoInner()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestGuarded_CBOR(t *testing.T) {
	in := New(config{Name: "edge", Ports: []int{80, 443}})
	b, err := cbor.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	out := New(config{Name: "stale"})
	if err := cbor.Unmarshal(b, out); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(in.IntoInner(), out.IntoInner()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestGuarded_DecodeErrorKeepsValue(t *testing.T) {
	g := New(config{Name: "keep"})
	if err := json.Unmarshal([]byte(`{"name": 5}`), g); err == nil {
		t.Fatal("UnmarshalJSON accepted a number for a string field")
	}
	if err := g.UnmarshalCBOR([]byte{0xff}); err == nil {
		t.Fatal("UnmarshalCBOR accepted garbage")
	}
	if got := g.IntoInner().Name; got != "keep" {
		t.Fatalf("Name = %q after failed decodes, want %q", got, "keep")
	}
	if !g.lock.TryLock() {
		t.Fatal("failed decode left the lock held")
	}
	g.lock.Unlock()
}

func TestGuarded_MarshalWaitsForWriter(t *testing.T) {
	g := New(1)
	w := g.Write()
	done := make(chan []byte)
	go func() {
		b, _ := json.Marshal(g)
		done <- b
	}()
	w.Set(2)
	w.Release()
	if got := string(<-done); got != "2" {
		t.Fatalf("Marshal = %s, want the value left by the writer", got)
	}
}
