package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Hash parameters used when encoding new passwords. Verification always
// honors the parameters carried in the encoded hash.
const (
	hashTime    = 1
	hashMemory  = 64 * 1024
	hashThreads = 4
	hashKeyLen  = 32
	hashSaltLen = 16
)

var errMalformedHash = errors.New("malformed argon2 encoded hash")

// HashPassword encodes password in the PHC argon2id form stored under
// /users/<name>/password.
func HashPassword(password string) (string, error) {
	salt := make([]byte, hashSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt, hashTime, hashMemory, hashThreads, hashKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, hashMemory, hashTime, hashThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// VerifyPassword checks password against a PHC-encoded argon2id or argon2i
// hash. A malformed hash is an error; a wrong password is (false, nil).
func VerifyPassword(encodedHash, password string) (bool, error) {
	variant, version, memory, time, threads, salt, key, err := decodeHash(encodedHash)
	if err != nil {
		return false, err
	}
	if version != argon2.Version {
		return false, fmt.Errorf("unsupported argon2 version %d", version)
	}

	var computed []byte
	switch variant {
	case "argon2id":
		computed = argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(key)))
	case "argon2i":
		computed = argon2.Key([]byte(password), salt, time, memory, threads, uint32(len(key)))
	default:
		return false, fmt.Errorf("unsupported argon2 variant %q", variant)
	}

	return subtle.ConstantTimeCompare(computed, key) == 1, nil
}

func decodeHash(encodedHash string) (variant string, version int, memory, time uint32, threads uint8, salt, key []byte, err error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" {
		err = errMalformedHash
		return
	}
	variant = parts[1]

	if _, err = fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		err = errMalformedHash
		return
	}
	if _, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		err = errMalformedHash
		return
	}

	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		err = errMalformedHash
		return
	}
	if key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		err = errMalformedHash
		return
	}
	return
}
