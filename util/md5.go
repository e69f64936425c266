package util

import (
	"crypto/md5"
	"fmt"
)

// MD5 hex md5 digest of a string, used as a stable key for run parameters
func MD5(str string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(str)))
}
