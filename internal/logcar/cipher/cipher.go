// Package cipher implements the optional confidentiality layer: values are
// serialized to canonical JSON, encrypted with AES-256-CBC, and rendered as
// a colon-delimited hex wire string the chunker can split like any other
// string value. The encryption key comes from one of two key-input forms: a
// 64-hex-character pre-shared key used directly as the 32 raw AES-256 key
// bytes, or an arbitrary passphrase from which the key is derived via
// PBKDF2-HMAC-SHA512.
package cipher

import (
	"bytes"
	"crypto/aes"
	stdcipher "crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/julianstephens/go-utils/jsonutil"

	"github.com/logcar/logcar/internal/logcar/logcarerr"
)

const (
	keyLen           = 32 // AES-256
	saltLen          = 16
	rawKeyHexLen     = keyLen * 2
	pbkdf2Iterations = 100_000
)

// Envelope seals and opens values under a single key input. It carries no
// mutable state and is safe for concurrent use.
type Envelope struct {
	KeyInput string
}

// New creates an Envelope for the given key input: a 64-hex-character
// string is used directly as the raw AES-256 key, anything else is treated
// as a passphrase to derive the key from via PBKDF2. An empty key input is
// accepted by the type but Seal will refuse to run with one, since that
// would silently produce recoverable ciphertext.
func New(keyInput string) *Envelope {
	return &Envelope{KeyInput: keyInput}
}

// rawKey reports whether keyInput is a 64-hex-character pre-shared key and,
// if so, returns its decoded 32 raw bytes.
func rawKey(keyInput string) ([]byte, bool) {
	if len(keyInput) != rawKeyHexLen {
		return nil, false
	}
	b, err := hex.DecodeString(keyInput)
	if err != nil {
		return nil, false
	}
	return b, true
}

// deriveKey resolves keyInput to a 32-byte AES-256 key, using it directly if
// it's a raw pre-shared key, else deriving one from it as a passphrase.
func deriveKey(keyInput string, salt []byte) []byte {
	if raw, ok := rawKey(keyInput); ok {
		return raw
	}
	return pbkdf2.Key([]byte(keyInput), salt, pbkdf2Iterations, keyLen, sha512.New)
}

// Seal serializes value to canonical JSON and returns the
// "salt_hex:iv_hex:ciphertext_hex" wire string for it.
func (e *Envelope) Seal(rid string, value any) (string, error) {
	if e.KeyInput == "" {
		return "", wrapErr("seal", logcarerr.ErrDecryptionError, rid, fmt.Errorf("empty key input"))
	}

	plaintext, err := jsonutil.Marshal(value)
	if err != nil {
		return "", wrapErr("seal", logcarerr.ErrDecryptionError, rid, fmt.Errorf("marshal payload: %w", err))
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", wrapErr("seal", logcarerr.ErrDecryptionError, rid, fmt.Errorf("generate salt: %w", err))
	}
	key := deriveKey(e.KeyInput, salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", wrapErr("seal", logcarerr.ErrDecryptionError, rid, fmt.Errorf("new cipher: %w", err))
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", wrapErr("seal", logcarerr.ErrDecryptionError, rid, fmt.Errorf("generate iv: %w", err))
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	stdcipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return strings.Join([]string{
		hex.EncodeToString(salt),
		hex.EncodeToString(iv),
		hex.EncodeToString(ciphertext),
	}, ":"), nil
}

// Open reverses Seal. If blob contains no ':' it is treated as plaintext
// JSON (the confidentiality layer was not in effect when the value was
// written) and decoded directly; any other malformed input is a
// DecryptionError, never a silent fallback to plaintext.
func (e *Envelope) Open(rid string, blob string) (any, error) {
	if !strings.Contains(blob, ":") {
		var v any
		if err := json.Unmarshal([]byte(blob), &v); err != nil {
			return nil, wrapErr("open", logcarerr.ErrDecryptionError, rid, fmt.Errorf("unmarshal plaintext payload: %w", err))
		}
		return v, nil
	}

	if e.KeyInput == "" {
		return nil, wrapErr("open", logcarerr.ErrDecryptionError, rid, fmt.Errorf("empty key input"))
	}

	parts := strings.SplitN(blob, ":", 3)
	if len(parts) != 3 {
		return nil, wrapErr("open", logcarerr.ErrDecryptionError, rid, fmt.Errorf("malformed envelope: expected salt:iv:ciphertext"))
	}

	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return nil, wrapErr("open", logcarerr.ErrDecryptionError, rid, fmt.Errorf("decode salt: %w", err))
	}
	iv, err := hex.DecodeString(parts[1])
	if err != nil {
		return nil, wrapErr("open", logcarerr.ErrDecryptionError, rid, fmt.Errorf("decode iv: %w", err))
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return nil, wrapErr("open", logcarerr.ErrDecryptionError, rid, fmt.Errorf("decode ciphertext: %w", err))
	}
	if len(iv) != aes.BlockSize || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, wrapErr("open", logcarerr.ErrDecryptionError, rid, fmt.Errorf("malformed envelope dimensions"))
	}

	key := deriveKey(e.KeyInput, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, wrapErr("open", logcarerr.ErrDecryptionError, rid, fmt.Errorf("new cipher: %w", err))
	}

	padded := make([]byte, len(ciphertext))
	stdcipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	plaintext, err := pkcs7Unpad(padded, aes.BlockSize)
	if err != nil {
		return nil, wrapErr("open", logcarerr.ErrDecryptionError, rid, err)
	}

	var v any
	if err := json.Unmarshal(plaintext, &v); err != nil {
		return nil, wrapErr("open", logcarerr.ErrDecryptionError, rid, fmt.Errorf("unmarshal decrypted payload: %w", err))
	}
	return v, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := bytes.Repeat([]byte{byte(padLen)}, padLen)
	return append(data, padding...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("pkcs7: invalid data length %d", len(data))
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, fmt.Errorf("pkcs7: invalid padding length %d", padLen)
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("pkcs7: invalid padding bytes")
		}
	}
	return data[:len(data)-padLen], nil
}
