package main

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/base64"
	"encoding/binary"
	"net/http/httptest"
	"testing"
)

func mintTestKey(salt []byte, isRoot byte) string {
	var data [apikeyLength]byte
	data[0] = 1
	binary.LittleEndian.PutUint32(data[apikeyVersion:], 11)
	binary.LittleEndian.PutUint16(data[apikeyVersion+apikeyAppID:], 1)
	data[apikeyVersion+apikeyAppID+apikeySequence] = isRoot

	hasher := hmac.New(md5.New, salt)
	hasher.Write(data[:apikeyVersion+apikeyAppID+apikeySequence+apikeyWho])
	copy(data[apikeyVersion+apikeyAppID+apikeySequence+apikeyWho:], hasher.Sum(nil))

	return base64.URLEncoding.EncodeToString(data[:])
}

func TestCheckAPIKey(t *testing.T) {
	salt := []byte("0123456789abcdef0123456789abcdef")
	oldSalt := globals.apiKeySalt
	globals.apiKeySalt = salt
	defer func() { globals.apiKeySalt = oldSalt }()

	if valid, root := checkAPIKey(mintTestKey(salt, 0)); !valid || root {
		t.Errorf("ordinary key: valid=%v root=%v", valid, root)
	}
	if valid, root := checkAPIKey(mintTestKey(salt, 1)); !valid || !root {
		t.Errorf("root key: valid=%v root=%v", valid, root)
	}

	// Signed with a different salt.
	if valid, _ := checkAPIKey(mintTestKey([]byte("another-salt-entirely-here-1234!"), 1)); valid {
		t.Error("key with wrong signature accepted")
	}

	// Root byte flipped without re-signing.
	key := mintTestKey(salt, 0)
	raw, _ := base64.URLEncoding.DecodeString(key)
	raw[apikeyVersion+apikeyAppID+apikeySequence] = 1
	if valid, _ := checkAPIKey(base64.URLEncoding.EncodeToString(raw)); valid {
		t.Error("privilege-escalated key accepted")
	}

	for _, bad := range []string{"", "short", "not base64 but slightly too long!"} {
		if valid, _ := checkAPIKey(bad); valid {
			t.Errorf("garbage key %q accepted", bad)
		}
	}
}

func TestGetAPIKey(t *testing.T) {
	req := httptest.NewRequest("GET", "http://localhost/v0/channels?apikey=form-key", nil)
	if key := getAPIKey(req); key != "form-key" {
		t.Errorf("form value: got %q", key)
	}

	req = httptest.NewRequest("POST", "http://localhost/v0/publish", nil)
	req.Header.Set("X-Relay-APIKey", "header-key")
	if key := getAPIKey(req); key != "header-key" {
		t.Errorf("header: got %q", key)
	}

	req = httptest.NewRequest("GET", "http://localhost/v0/channels", nil)
	if key := getAPIKey(req); key != "" {
		t.Errorf("no key: got %q", key)
	}
}
