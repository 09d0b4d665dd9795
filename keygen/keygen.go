// Command line utility for generating and validating relay API keys.
package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/md5"
	"encoding/base64"
	"encoding/binary"
	"flag"
	"fmt"
)

// Must match the api_key_salt value in the server config.
var hmacSalt = []byte{
	0x9c, 0x51, 0x2e, 0x7a, 0x0b, 0xe4, 0x33, 0xd1,
	0x5f, 0x88, 0xc0, 0x16, 0xae, 0x6d, 0x94, 0x02,
	0x71, 0x3b, 0xdd, 0x48, 0x05, 0xfa, 0x62, 0xb9,
	0x2c, 0x87, 0x10, 0xe5, 0x4e, 0x93, 0x6f, 0x21}

// Generate API key
// Composition:
//  [1:algorithm version][4:appid][2:key sequence][1:isRoot][16:signature] = 24 bytes
// convertible to base64 without padding
// All integers are little-endian
func main() {
	var appID = flag.Int("appid", 0, "App ID to sign")
	var sequence = flag.Int("sequence", 1, "Sequential number of the API key")
	var isRoot = flag.Int("isroot", 0, "Is this a root API key?")
	var apikey = flag.String("validate", "", "API key to validate")
	var salt = flag.String("salt", "", "Base64-encoded salt overriding the default")

	flag.Parse()

	if *salt != "" {
		decoded, err := base64.StdEncoding.DecodeString(*salt)
		if err != nil {
			fmt.Println("failed to decode salt:", err)
			return
		}
		hmacSalt = decoded
	}

	if *appID != 0 {
		fmt.Println(generate(*appID, *sequence, *isRoot))
	} else if *apikey != "" {
		fmt.Println(validate(*apikey))
	} else {
		flag.Usage()
	}
}

const (
	apikeyVersion   = 1
	apikeyAppID     = 4
	apikeySequence  = 2
	apikeyWho       = 1
	apikeySignature = 16
	apikeyLength    = apikeyVersion + apikeyAppID + apikeySequence + apikeyWho + apikeySignature
)

func generate(appID, sequence, isRoot int) string {
	var data [apikeyLength]byte

	// [1:algorithm version][4:appid][2:key sequence][1:isRoot]
	data[0] = 1 // default algorithm
	binary.LittleEndian.PutUint32(data[apikeyVersion:], uint32(appID))
	binary.LittleEndian.PutUint16(data[apikeyVersion+apikeyAppID:], uint16(sequence))
	data[apikeyVersion+apikeyAppID+apikeySequence] = uint8(isRoot)

	hasher := hmac.New(md5.New, hmacSalt)
	hasher.Write(data[:apikeyVersion+apikeyAppID+apikeySequence+apikeyWho])
	signature := hasher.Sum(nil)

	copy(data[apikeyVersion+apikeyAppID+apikeySequence+apikeyWho:], signature)

	strIsRoot := "ordinary"
	if isRoot == 1 {
		strIsRoot = "ROOT"
	}

	return fmt.Sprintf("API key v1 for (%d:%d), %s: %s", appID, sequence, strIsRoot,
		base64.URLEncoding.EncodeToString(data[:]))
}

func validate(apikey string) string {
	if declen := base64.URLEncoding.DecodedLen(len(apikey)); declen != apikeyLength {
		return "INVALID: wrong length"
	}

	data, err := base64.URLEncoding.DecodeString(apikey)
	if err != nil {
		return "INVALID: failed to decode base64"
	}

	if data[0] != 1 {
		return fmt.Sprintf("INVALID: unknown signature algorithm %d", data[0])
	}

	hasher := hmac.New(md5.New, hmacSalt)
	hasher.Write(data[:apikeyVersion+apikeyAppID+apikeySequence+apikeyWho])
	signature := hasher.Sum(nil)

	if !bytes.Equal(data[apikeyVersion+apikeyAppID+apikeySequence+apikeyWho:], signature) {
		return "INVALID: signature mismatch"
	}

	// [1:algorithm version][4:appid][2:key sequence][1:isRoot]
	buf := bytes.NewReader(data[apikeyVersion:])
	var appid uint32
	var sequence uint16
	var isRoot uint8
	binary.Read(buf, binary.LittleEndian, &appid)
	binary.Read(buf, binary.LittleEndian, &sequence)
	binary.Read(buf, binary.LittleEndian, &isRoot)

	strIsRoot := "ordinary"
	if isRoot == 1 {
		strIsRoot = "ROOT"
	}

	return fmt.Sprintf("Valid (%d:%d), %s", appid, sequence, strIsRoot)
}
