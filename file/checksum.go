package file

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"github.com/pkg/errors"
	"hash"
	"io"
	"strings"
)

//OKFlagChecksumer generate and verify an empty file with '.ok' suffix indicating the data file completed
type OKFlagChecksumer struct {
}

func (ch *OKFlagChecksumer) Verify(fd FileDescriptor) (bool, error) {
	ok, err := fd.FileStore.Exists(fd.FileName)
	if err != nil || !ok {
		return false, err
	}
	_, ok, err = findCompanion(fd, "ok")
	return ok, err
}

func (ch *OKFlagChecksumer) Checksum(fd FileDescriptor) error {
	w, err := fd.FileStore.Create(fd.FileName + ".ok")
	if err != nil {
		return err
	}
	return w.Close()
}

//DigestChecksumer generate and verify a check file named after the algorithm containing the hex digest of the data file
type DigestChecksumer struct {
	Alg string
}

func (ch *DigestChecksumer) newHash() (hash.Hash, error) {
	switch ch.Alg {
	case MD5:
		return md5.New(), nil
	case SHA1:
		return sha1.New(), nil
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	}
	return nil, errors.Errorf("unsupported checksum algorithm:%v", ch.Alg)
}

func (ch *DigestChecksumer) digest(fd FileDescriptor) (string, error) {
	h, err := ch.newHash()
	if err != nil {
		return "", err
	}
	reader, err := fd.FileStore.Open(fd.FileName)
	if err != nil {
		return "", err
	}
	defer reader.Close()
	if _, err = io.Copy(h, reader); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func (ch *DigestChecksumer) Verify(fd FileDescriptor) (bool, error) {
	ok, err := fd.FileStore.Exists(fd.FileName)
	if err != nil || !ok {
		return false, err
	}
	checkFile, ok, err := findCompanion(fd, ch.Alg)
	if err != nil || !ok {
		return false, err
	}
	checkReader, err := fd.FileStore.Open(checkFile)
	if err != nil {
		return false, err
	}
	defer checkReader.Close()
	buf, err := io.ReadAll(checkReader)
	if err != nil {
		return false, err
	}
	fileHash, err := ch.digest(fd)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(buf)) == fileHash, nil
}

func (ch *DigestChecksumer) Checksum(fd FileDescriptor) error {
	fileHash, err := ch.digest(fd)
	if err != nil {
		return err
	}
	w, err := fd.FileStore.Create(fmt.Sprintf("%s.%s", fd.FileName, strings.ToLower(ch.Alg)))
	if err != nil {
		return err
	}
	if _, err = w.Write([]byte(fileHash)); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

//findCompanion look for data.ext.suffix then data.suffix, in lower and upper case
func findCompanion(fd FileDescriptor, suffix string) (string, bool, error) {
	bases := []string{fd.FileName}
	if dotIdx := strings.LastIndex(fd.FileName, "."); dotIdx > 0 {
		bases = append(bases, fd.FileName[0:dotIdx])
	}
	for _, base := range bases {
		for _, s := range []string{strings.ToLower(suffix), strings.ToUpper(suffix)} {
			name := base + "." + s
			ok, err := fd.FileStore.Exists(name)
			if err != nil {
				return "", false, err
			}
			if ok {
				return name, true, nil
			}
		}
	}
	return "", false, nil
}
