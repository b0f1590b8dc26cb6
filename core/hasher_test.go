package core

import "testing"

func TestBucketDeterministic(t *testing.T) {
	salt := []byte("segment-salt")
	b1 := bucket(salt, "user-123", 1000)
	b2 := bucket(salt, "user-123", 1000)
	if b1 != b2 {
		t.Fatalf("bucket is not deterministic: %d != %d", b1, b2)
	}
}

func TestBucketWithinRange(t *testing.T) {
	salt := []byte("s")
	for i := 0; i < 500; i++ {
		unit := string(rune('a' + i%26))
		b := bucket(salt, unit, 137)
		if b >= 137 {
			t.Fatalf("bucket %d out of range [0,137)", b)
		}
	}
}

func TestBucketDifferentSaltsDiffer(t *testing.T) {
	unit := "stable-unit"
	a := bucket([]byte("salt-a"), unit, 1<<20)
	b := bucket([]byte("salt-b"), unit, 1<<20)
	if a == b {
		t.Skip("extremely unlikely hash collision, not a correctness bug")
	}
}

func TestBucketPanicsOnZeroBucketCount(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on bucketCount == 0")
		}
	}()
	bucket([]byte("s"), "unit", 0)
}

func TestBucketPanicsOnEmptyUnit(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on empty unit")
		}
	}()
	bucket([]byte("s"), "", 10)
}

func TestFractionalBucketRange(t *testing.T) {
	salt := []byte("alloc-salt")
	for i := 0; i < 200; i++ {
		unit := string(rune('a'+i%26)) + string(rune('0'+i%10))
		frac := fractionalBucket(salt, unit)
		if frac < 0 || frac >= 1 {
			t.Fatalf("fractionalBucket(%q) = %v out of [0,1)", unit, frac)
		}
	}
}

func TestBucketModuloConsistency(t *testing.T) {
	salt := []byte("modtest")
	unit := "consistent-unit"
	full := fullHash(salt, unit)
	for _, k := range []uint32{1, 7, 100, 1 << 16} {
		if bucket(salt, unit, k) != full%k {
			t.Fatalf("bucket(%d) inconsistent with fullHash %% %d", k, k)
		}
	}
}
