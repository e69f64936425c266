// Package file persists result layers: layer readers and writers per format, the storages
// files live on, and checksum companions of written files.
package file

import (
	"fmt"
	"github.com/chararch/zonalbatch/vector"
	"github.com/pkg/errors"
	"io"
	"path/filepath"
	"strings"
)

const (
	GeoJSON = "geojson"
	CSV     = "csv"
	TSV     = "tsv"
)

const (
	OKFlag = "OK"
	MD5    = "MD5"
	SHA1   = "SHA1"
	SHA256 = "SHA256"
	SHA512 = "SHA512"
)

//FileDescriptor a file of a given type on a storage
type FileDescriptor struct {
	FileStore      FileStorage
	FileName       string
	Type           string
	FieldSeparator string
	Checksum       string
}

func (fd FileDescriptor) String() string {
	return fmt.Sprintf("%s://%s", fd.FileStore, fd.FileName)
}

type FileStorage interface {
	Exists(fileName string) (ok bool, err error)
	Open(fileName string) (reader io.ReadCloser, err error)
	Create(fileName string) (writer io.WriteCloser, err error)
}

//LayerReader load a whole layer from a file
type LayerReader interface {
	Read(fd FileDescriptor) (*vector.Layer, error)
}

//LayerWriter write a whole layer to a file
type LayerWriter interface {
	Write(fd FileDescriptor, layer *vector.Layer) error
}

type ChecksumVerifier interface {
	Verify(fd FileDescriptor) (bool, error)
}

type ChecksumFlusher interface {
	Checksum(fd FileDescriptor) error
}

type Checksumer interface {
	ChecksumVerifier
	ChecksumFlusher
}

//TypeOf file type implied by the extension of fileName, "" when unknown
func TypeOf(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".geojson", ".json":
		return GeoJSON
	case ".csv":
		return CSV
	case ".tsv", ".tab":
		return TSV
	}
	return ""
}

//Copy copy the content of src to dest, the storages may differ
func Copy(src FileDescriptor, dest FileDescriptor) (err error) {
	reader, err := src.FileStore.Open(src.FileName)
	if err != nil {
		return errors.Wrapf(err, "open %v", src)
	}
	defer reader.Close()
	writer, err := dest.FileStore.Create(dest.FileName)
	if err != nil {
		return errors.Wrapf(err, "create %v", dest)
	}
	defer func() {
		if er := writer.Close(); er != nil && err == nil {
			err = errors.Wrapf(er, "close %v", dest)
		}
	}()
	if _, err = io.Copy(writer, reader); err != nil {
		return errors.Wrapf(err, "copy %v to %v", src, dest)
	}
	return nil
}
