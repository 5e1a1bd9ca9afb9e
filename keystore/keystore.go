// Package keystore implements the encrypted keyfile envelope of spec §6.5:
// a secp256k1 private key encrypted with AES-256-CBC under a scrypt-derived
// key, in the encryptedKeyJSONV3 shape of
// accounts/keystore/key.go, scoped down to the one
// signer type this node's data model uses.
package keystore

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/scrypt"

	"github.com/lk-network/lkchain/common"
	"github.com/lk-network/lkchain/crypto"
	"github.com/lk-network/lkchain/lkerrors"
)

const (
	version = 3
	scryptN = 1 << 18
	scryptR = 8
	scryptP = 1
	// scryptDK is 64: the derived key splits into a 32-byte AES-256
	// encryption key and a 32-byte HMAC-SHA256 MAC key.
	scryptDK = 64
	saltSize = 32
)

// Key is the decrypted in-memory record: identity plus plaintext private
// key, mirroring accounts/keystore/key.go's Key (trimmed to secp256k1).
type Key struct {
	ID         uuid.UUID
	Address    common.Address
	PrivateKey *crypto.PrivateKey
}

func newKey(priv *crypto.PrivateKey) (*Key, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, lkerrors.Wrap(lkerrors.CryptoError, "keystore: uuid", err)
	}
	return &Key{ID: id, Address: priv.Address(), PrivateKey: priv}, nil
}

// NewKey generates a fresh secp256k1 key.
func NewKey() (*Key, error) {
	priv, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	return newKey(priv)
}

type cryptoJSON struct {
	Cipher       string           `json:"cipher"`
	CipherText   string           `json:"ciphertext"`
	CipherParams cipherparamsJSON `json:"cipherparams"`
	KDF          string           `json:"kdf"`
	KDFParams    kdfParamsJSON    `json:"kdfparams"`
	MAC          string           `json:"mac"`
}

type cipherparamsJSON struct {
	IV string `json:"iv"`
}

type kdfParamsJSON struct {
	N     int    `json:"n"`
	R     int    `json:"r"`
	P     int    `json:"p"`
	DKLen int    `json:"dklen"`
	Salt  string `json:"salt"`
}

type encryptedKeyJSONV3 struct {
	Address string     `json:"address"`
	Crypto  cryptoJSON `json:"crypto"`
	ID      string     `json:"id"`
	Version int        `json:"version"`
}

// EncryptKey encrypts k's private key under passphrase, producing the
// encryptedKeyJSONV3 document.
func EncryptKey(k *Key, passphrase string) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, lkerrors.Wrap(lkerrors.CryptoError, "keystore: salt", err)
	}
	derived, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, scryptDK)
	if err != nil {
		return nil, lkerrors.Wrap(lkerrors.CryptoError, "keystore: scrypt", err)
	}
	encKey, macKey := derived[:32], derived[32:64]

	iv, ciphertext, err := crypto.AESEncryptCBC(encKey, k.PrivateKey.Bytes())
	if err != nil {
		return nil, err
	}
	mac := computeMAC(macKey, ciphertext)

	doc := encryptedKeyJSONV3{
		Address: hex.EncodeToString(k.Address[:]),
		Crypto: cryptoJSON{
			Cipher:     "aes-256-cbc",
			CipherText: hex.EncodeToString(ciphertext),
			CipherParams: cipherparamsJSON{
				IV: hex.EncodeToString(iv),
			},
			KDF: "scrypt",
			KDFParams: kdfParamsJSON{
				N: scryptN, R: scryptR, P: scryptP, DKLen: scryptDK,
				Salt: hex.EncodeToString(salt),
			},
			MAC: hex.EncodeToString(mac),
		},
		ID:      k.ID.String(),
		Version: version,
	}
	return json.Marshal(doc)
}

// DecryptKey parses and decrypts an encryptedKeyJSONV3 document. A wrong
// passphrase is detected by MAC mismatch and reported as CryptoError, never
// a panic (spec §4.2).
func DecryptKey(data []byte, passphrase string) (*Key, error) {
	var doc encryptedKeyJSONV3
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, lkerrors.Wrap(lkerrors.ParsingError, "keystore: decode keyfile", err)
	}
	if doc.Version != version {
		return nil, lkerrors.Newf(lkerrors.ParsingError, "keystore: unsupported version %d", doc.Version)
	}
	if doc.Crypto.Cipher != "aes-256-cbc" || doc.Crypto.KDF != "scrypt" {
		return nil, lkerrors.Newf(lkerrors.ParsingError, "keystore: unsupported cipher/kdf %s/%s", doc.Crypto.Cipher, doc.Crypto.KDF)
	}

	salt, err := hex.DecodeString(doc.Crypto.KDFParams.Salt)
	if err != nil {
		return nil, lkerrors.Wrap(lkerrors.ParsingError, "keystore: salt", err)
	}
	derived, err := scrypt.Key([]byte(passphrase), salt, doc.Crypto.KDFParams.N, doc.Crypto.KDFParams.R, doc.Crypto.KDFParams.P, doc.Crypto.KDFParams.DKLen)
	if err != nil {
		return nil, lkerrors.Wrap(lkerrors.CryptoError, "keystore: scrypt", err)
	}
	encKey, macKey := derived[:32], derived[32:64]

	ciphertext, err := hex.DecodeString(doc.Crypto.CipherText)
	if err != nil {
		return nil, lkerrors.Wrap(lkerrors.ParsingError, "keystore: ciphertext", err)
	}
	if !hmac.Equal(computeMAC(macKey, ciphertext), mustHex(doc.Crypto.MAC)) {
		return nil, lkerrors.New(lkerrors.CryptoError, "keystore: wrong passphrase (MAC mismatch)")
	}

	iv, err := hex.DecodeString(doc.Crypto.CipherParams.IV)
	if err != nil {
		return nil, lkerrors.Wrap(lkerrors.ParsingError, "keystore: iv", err)
	}
	plain, err := crypto.AESDecryptCBC(encKey, iv, ciphertext)
	if err != nil {
		return nil, err
	}
	priv, err := crypto.PrivateKeyFromBytes(plain)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, lkerrors.Wrap(lkerrors.ParsingError, "keystore: id", err)
	}
	addrBytes, err := hex.DecodeString(doc.Address)
	if err != nil {
		return nil, lkerrors.Wrap(lkerrors.ParsingError, "keystore: address", err)
	}
	return &Key{ID: id, Address: common.BytesToAddress(addrBytes), PrivateKey: priv}, nil
}

func computeMAC(macKey, ciphertext []byte) []byte {
	h := hmac.New(sha256.New, macKey)
	h.Write(ciphertext)
	return h.Sum(nil)
}

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}

// keyFileName implements the UTC--<ISO8601>--<hexaddr> naming convention
// from accounts/keystore/key.go's keyFileName.
func keyFileName(addr common.Address) string {
	ts := time.Now().UTC()
	return fmt.Sprintf("UTC--%s--%s", ts.Format("2006-01-02T15-04-05.000000000Z"), hex.EncodeToString(addr[:]))
}

// StoreKey writes k, encrypted under passphrase, into dir using the
// standard keyfile name.
func StoreKey(dir string, k *Key, passphrase string) (string, error) {
	data, err := EncryptKey(k, passphrase)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", lkerrors.Wrap(lkerrors.InaccessibleFile, "keystore: mkdir", err)
	}
	path := filepath.Join(dir, keyFileName(k.Address))
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", lkerrors.Wrap(lkerrors.InaccessibleFile, "keystore: write keyfile", err)
	}
	return path, nil
}

// LoadKey reads and decrypts a keyfile at path.
func LoadKey(path, passphrase string) (*Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, lkerrors.Wrap(lkerrors.InaccessibleFile, "keystore: read keyfile", err)
	}
	return DecryptKey(data, passphrase)
}
