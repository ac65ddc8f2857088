// Package cfb8 implements the 8-bit cipher feedback mode used to encrypt Minecraft: Java Edition
// connections once login encryption has been negotiated.
package cfb8

import "crypto/cipher"

type stream struct {
	block   cipher.Block
	iv      []byte
	tmp     []byte
	decrypt bool
}

// NewEncrypter returns a stream encrypting with block in CFB8 mode using iv.
func NewEncrypter(block cipher.Block, iv []byte) cipher.Stream {
	return newStream(block, iv, false)
}

// NewDecrypter returns a stream decrypting with block in CFB8 mode using iv.
func NewDecrypter(block cipher.Block, iv []byte) cipher.Stream {
	return newStream(block, iv, true)
}

func newStream(block cipher.Block, iv []byte, decrypt bool) *stream {
	if len(iv) != block.BlockSize() {
		panic("cfb8: iv length must equal block size")
	}
	return &stream{
		block:   block,
		iv:      append([]byte(nil), iv...),
		tmp:     make([]byte, block.BlockSize()),
		decrypt: decrypt,
	}
}

// XORKeyStream ...
func (s *stream) XORKeyStream(dst, src []byte) {
	if len(dst) < len(src) {
		panic("cfb8: output smaller than input")
	}
	for i, b := range src {
		s.block.Encrypt(s.tmp, s.iv)
		out := b ^ s.tmp[0]

		copy(s.iv, s.iv[1:])
		if s.decrypt {
			s.iv[len(s.iv)-1] = b
		} else {
			s.iv[len(s.iv)-1] = out
		}
		dst[i] = out
	}
}
