package argon

import (
	"errors"
	"testing"
)

var fastParams = Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("Depuration#Tank4", fastParams)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	ok, err := Verify("Depuration#Tank4", hash)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected password to match")
	}

	ok, err = Verify("depuration#tank4", hash)
	if err != nil {
		t.Fatalf("verify wrong: %v", err)
	}
	if ok {
		t.Fatalf("expected password mismatch")
	}
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	for _, encoded := range []string{"", "$bcrypt$x", "$argon2id$v=19$m=x$a$b", "$argon2id$v=18$m=1,t=1,p=1$YQ$YQ"} {
		if _, err := Verify("pw", encoded); !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("encoded %q: expected ErrMalformedHash, got %v", encoded, err)
		}
	}
}

func TestHashRejectsBlank(t *testing.T) {
	if _, err := Hash("   ", fastParams); !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
}
