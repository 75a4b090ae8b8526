package security_test

import (
	"strings"
	"testing"

	"github.com/reddragons/storefront-backend/pkg/config"
	"github.com/reddragons/storefront-backend/pkg/security"
)

var fastCfg = config.PasswordConfig{
	ArgonMemoryKB:    8192,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

func TestHashAndVerify(t *testing.T) {
	hasher := security.NewHasher(fastCfg)

	hash, err := hasher.Hash("very-secure-password")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected hash format %q", hash)
	}

	ok, err := security.Verify("very-secure-password", hash)
	if err != nil || !ok {
		t.Fatalf("expected correct password to verify, got %v %v", ok, err)
	}
	ok, err = security.Verify("bogus-password", hash)
	if err != nil || ok {
		t.Fatalf("expected wrong password to fail, got %v %v", ok, err)
	}

	again, _ := hasher.Hash("very-secure-password")
	if again == hash {
		t.Fatal("two hashes of the same password must use different salts")
	}
}

func TestHashRejectsEmptyPassword(t *testing.T) {
	if _, err := security.NewHasher(fastCfg).Hash(""); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func TestVerifyMalformedHashes(t *testing.T) {
	for _, encoded := range []string{
		"not-a-hash",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHQ$a2V5",
		"$argon2id$v=16$m=8192,t=1,p=1$c2FsdHNhbHQ$a2V5",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdHNhbHQ$a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$!!$a2V5",
	} {
		if _, err := security.Verify("irrelevant", encoded); err != security.ErrInvalidHash {
			t.Fatalf("%q: expected ErrInvalidHash, got %v", encoded, err)
		}
	}
}

func TestNeedsRehash(t *testing.T) {
	weak := security.NewHasher(fastCfg)
	strongCfg := fastCfg
	strongCfg.ArgonMemoryKB = 65536
	strongCfg.ArgonTime = 3
	strong := security.NewHasher(strongCfg)

	hash, err := weak.Hash("dragon-scales")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if weak.NeedsRehash(hash) {
		t.Fatal("hash should satisfy the parameters it was built with")
	}
	if !strong.NeedsRehash(hash) {
		t.Fatal("expected weaker hash to need rehash")
	}
	if !weak.NeedsRehash("garbage") {
		t.Fatal("malformed hash should need rehash")
	}
}

func TestDecoyDoesNotPanic(t *testing.T) {
	hasher := security.NewHasher(fastCfg)
	hasher.Decoy("whatever")
	hasher.Decoy("whatever")
}
