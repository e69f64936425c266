package zonalbatch

import (
	"context"
	"github.com/chararch/zonalbatch/file"
	"path"
	"path/filepath"
)

//Publisher copies a written output file, with its checksum companion, to another storage
type Publisher struct {
	Target   file.FileStorage
	Dir      string
	Checksum string
}

//Publish copy src into the target directory keeping the file name
func (p *Publisher) Publish(ctx context.Context, src file.FileDescriptor) BatchError {
	dest := file.FileDescriptor{
		FileStore: p.Target,
		FileName:  path.Join(p.Dir, filepath.Base(src.FileName)),
		Type:      src.Type,
	}
	if err := file.Copy(src, dest); err != nil {
		return NewBatchError(ErrCodePersist, "publish %v to %v failed", src, dest, err)
	}
	logger.Info(ctx, "published %v to %v", src, dest)
	if p.Checksum == "" {
		return nil
	}
	checksumer := file.GetChecksumer(p.Checksum)
	if checksumer == nil {
		return NewBatchError(ErrCodePersist, "unknown checksum:%v", p.Checksum)
	}
	if err := checksumer.Checksum(dest); err != nil {
		return NewBatchError(ErrCodePersist, "write %v checksum of %v failed", p.Checksum, dest, err)
	}
	return nil
}
