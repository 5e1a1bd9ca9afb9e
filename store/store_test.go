package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPutGetRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir(), OpenDefault)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	key := MakeKey(TagBlock, []byte("h"))
	if err := s.Put(key, []byte("payload")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := s.Get(key)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("payload"), got)
}

func TestGetMissingKey(t *testing.T) {
	s, err := Open(t.TempDir(), OpenDefault)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	_, ok, err := s.Get(MakeKey(TagSystem, []byte("nope")))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("expected a missing key to report ok=false, not an error")
	}
}

func TestExistsAndRemove(t *testing.T) {
	s, err := Open(t.TempDir(), OpenDefault)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	key := MakeKey(TagPreviousBlockHash, []byte("x"))
	if err := s.Put(key, []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	ok, err := s.Exists(key)
	if err != nil || !ok {
		t.Fatalf("expected Exists to report true, err=%v ok=%v", err, ok)
	}
	if err := s.Remove(key); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	ok, err = s.Exists(key)
	if err != nil || ok {
		t.Fatalf("expected Exists to report false after Remove, err=%v ok=%v", err, ok)
	}
}

func TestMakeKeyDistinguishesTags(t *testing.T) {
	a := MakeKey(TagBlock, []byte("same"))
	b := MakeKey(TagSystem, []byte("same"))
	if string(a) == string(b) {
		t.Fatalf("expected different tags to produce different keys for the same payload")
	}
}

func TestOpenClearWipesExistingData(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, OpenDefault)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	key := MakeKey(TagBlock, []byte("h"))
	if err := s.Put(key, []byte("payload")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(dir, OpenClear)
	if err != nil {
		t.Fatalf("Open (clear): %v", err)
	}
	defer s2.Close()
	_, ok, err := s2.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("expected OpenClear to wipe the previous contents")
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "db")
	s, err := Open(dir, OpenDefault)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("expected leveldb to create %s, got: %v", dir, err)
	}
}
