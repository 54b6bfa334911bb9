package auth

import (
	"errors"
	"sync"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

// bcrypt 只使用前 72 个字节
const maxPasswordBytes = 72

// truncatePassword 在不切断 UTF-8 字符的前提下截取前 72 个字节
func truncatePassword(plaintext string) []byte {
	b := []byte(plaintext)
	if len(b) <= maxPasswordBytes {
		return b
	}
	cut := maxPasswordBytes
	for cut > 0 && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return b[:cut]
}

// dummyHash 用于用户不存在时消耗与真实校验相同的时间
var dummyHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcryptCost)
	return hash
})

// HashPassword 返回明文密码的 bcrypt 哈希
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(truncatePassword(plaintext), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword 比较明文与哈希。不匹配时返回 false 和 nil，
// 只有哈希本身损坏时才返回错误。
func VerifyPassword(plaintext, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), truncatePassword(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}

// VerifyDummy 在用户不存在时做一次无意义的比较，使登录耗时与密码错误时一致
func VerifyDummy(plaintext string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash(), truncatePassword(plaintext))
}
