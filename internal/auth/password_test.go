// SPDX-License-Identifier: MIT

package auth

import "testing"

func TestPasswordHashRoundtrip(t *testing.T) {
	hash, err := HashPassword("cat")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "cat" {
		t.Fatal("hash must not equal plaintext")
	}
	if !CheckPassword(hash, "cat") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "dog") {
		t.Error("wrong password accepted")
	}
}

func TestPasswordHashesAreSalted(t *testing.T) {
	h1, err := HashPassword("cat")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	h2, err := HashPassword("cat")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if h1 == h2 {
		t.Error("two hashes of the same password must differ (embedded salt)")
	}
}

func TestCheckPasswordInvalidHash(t *testing.T) {
	if CheckPassword("not-a-bcrypt-hash", "cat") {
		t.Error("malformed hash must not verify")
	}
}
