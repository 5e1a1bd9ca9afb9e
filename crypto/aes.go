package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"

	"github.com/lk-network/lkchain/lkerrors"
)

const IVSize = 16

// AESEncryptCBC encrypts plaintext under key (32 bytes for AES-256-CBC, 16
// bytes for AES-128-CBC) with a freshly generated random 16-byte IV,
// returning the IV and the ciphertext as separate slices. plaintext is
// PKCS#7 padded to the block size.
func AESEncryptCBC(key, plaintext []byte) (iv, ciphertext []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, lkerrors.Wrap(lkerrors.CryptoError, "aes new cipher", err)
	}
	iv = make([]byte, IVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, nil, lkerrors.Wrap(lkerrors.CryptoError, "aes iv", err)
	}
	padded := pkcs7Pad(plaintext, block.BlockSize())
	ciphertext = make([]byte, len(padded))
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(ciphertext, padded)
	return iv, ciphertext, nil
}

// AESDecryptCBC decrypts ciphertext under key and iv. Decryption with the
// wrong key yields CryptoError (spec §4.2) rather than a panic: a bad key
// produces invalid padding, which is detected and reported here.
func AESDecryptCBC(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, lkerrors.Wrap(lkerrors.CryptoError, "aes new cipher", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, lkerrors.New(lkerrors.CryptoError, "aes ciphertext not block aligned")
	}
	plain := make([]byte, len(ciphertext))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(plain, ciphertext)
	unpadded, err := pkcs7Unpad(plain, block.BlockSize())
	if err != nil {
		return nil, lkerrors.Wrap(lkerrors.CryptoError, "aes decrypt: bad key or corrupt data", err)
	}
	return unpadded, nil
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	padLen := blockSize - len(b)%blockSize
	padded := make([]byte, len(b)+padLen)
	copy(padded, b)
	for i := len(b); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 {
		return nil, lkerrors.New(lkerrors.CryptoError, "empty buffer")
	}
	padLen := int(b[len(b)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(b) {
		return nil, lkerrors.New(lkerrors.CryptoError, "invalid padding")
	}
	for _, c := range b[len(b)-padLen:] {
		if int(c) != padLen {
			return nil, lkerrors.New(lkerrors.CryptoError, "invalid padding")
		}
	}
	return b[:len(b)-padLen], nil
}
